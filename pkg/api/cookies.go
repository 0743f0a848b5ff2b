package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/greenbasket/storefront/pkg/storage"
)

// CookieKey is the storage key holding the API session cookies.
const CookieKey = "session_cookies"

// PersistentJar is a cookie jar for a single API origin whose cookies can
// be saved to and restored from storage, so a CLI invocation can resume the
// server session started by a previous one.
type PersistentJar struct {
	mu     sync.RWMutex
	jar    *cookiejar.Jar
	origin *url.URL
	store  storage.Storage
	logger *slog.Logger
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewPersistentJar creates a jar for baseURL backed by s.
func NewPersistentJar(baseURL string, s storage.Storage, logger *slog.Logger) (*PersistentJar, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistentJar{jar: jar, origin: u, store: s, logger: logger}, nil
}

// SetCookies implements http.CookieJar.
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.jar.SetCookies(u, cookies)
}

// Cookies implements http.CookieJar.
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.jar.Cookies(u)
}

// Load restores saved cookies. Malformed data is ignored.
func (j *PersistentJar) Load(ctx context.Context) {
	data, err := j.store.GetItem(ctx, CookieKey)
	if err != nil || data == nil {
		if err != nil {
			j.logger.Warn("session cookies unreadable", "error", err)
		}
		return
	}
	var saved []storedCookie
	if err := json.Unmarshal(data, &saved); err != nil {
		j.logger.Warn("session cookies malformed", "error", err)
		return
	}
	cookies := make([]*http.Cookie, 0, len(saved))
	for _, c := range saved {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	j.SetCookies(j.origin, cookies)
}

// Save writes the cookies currently held for the origin.
func (j *PersistentJar) Save(ctx context.Context) error {
	current := j.Cookies(j.origin)
	if len(current) == 0 {
		return j.store.RemoveItem(ctx, CookieKey)
	}
	saved := make([]storedCookie, 0, len(current))
	for _, c := range current {
		saved = append(saved, storedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(saved)
	if err != nil {
		return err
	}
	return j.store.SetItem(ctx, CookieKey, data)
}

// Reset drops every cookie held for the origin, in memory and in storage.
func (j *PersistentJar) Reset(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	j.mu.Lock()
	j.jar = jar
	j.mu.Unlock()
	return j.store.RemoveItem(ctx, CookieKey)
}
