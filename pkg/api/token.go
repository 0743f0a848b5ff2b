package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/greenbasket/storefront/pkg/storage"
)

// TokenKey is the storage key holding the access token.
const TokenKey = "access_token"

// TokenStore keeps the bearer token in memory and mirrors it to storage so
// it survives restarts. Expired JWTs are dropped on read; tokens that are
// not JWTs are kept as-is.
type TokenStore struct {
	mu     sync.RWMutex
	token  string
	store  storage.Storage
	logger *slog.Logger
	now    func() time.Time
}

// TokenStoreOption configures a TokenStore.
type TokenStoreOption func(*TokenStore)

// WithTokenLogger sets the logger.
func WithTokenLogger(l *slog.Logger) TokenStoreOption {
	return func(t *TokenStore) {
		t.logger = l
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) TokenStoreOption {
	return func(t *TokenStore) {
		t.now = now
	}
}

// NewTokenStore creates a token store persisting to s. A nil s keeps the
// token in memory only.
func NewTokenStore(s storage.Storage, opts ...TokenStoreOption) *TokenStore {
	t := &TokenStore{
		store:  s,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Load reads the persisted token. Storage errors and expired tokens leave
// the store empty.
func (t *TokenStore) Load(ctx context.Context) {
	if t.store == nil {
		return
	}
	data, err := t.store.GetItem(ctx, TokenKey)
	if err != nil {
		t.logger.Warn("access token unreadable", "error", err)
		return
	}
	tok := string(data)
	if tok != "" && t.expired(tok) {
		t.logger.Debug("persisted access token expired")
		_ = t.store.RemoveItem(ctx, TokenKey)
		return
	}
	t.mu.Lock()
	t.token = tok
	t.mu.Unlock()
}

// Token implements TokenSource.
func (t *TokenStore) Token() string {
	t.mu.RLock()
	tok := t.token
	t.mu.RUnlock()
	if tok != "" && t.expired(tok) {
		t.mu.Lock()
		if t.token == tok {
			t.token = ""
		}
		t.mu.Unlock()
		return ""
	}
	return tok
}

// Set replaces the token and persists it.
func (t *TokenStore) Set(ctx context.Context, tok string) error {
	t.mu.Lock()
	t.token = tok
	t.mu.Unlock()
	if t.store == nil {
		return nil
	}
	if tok == "" {
		return t.store.RemoveItem(ctx, TokenKey)
	}
	return t.store.SetItem(ctx, TokenKey, []byte(tok))
}

// Clear drops the token from memory and storage.
func (t *TokenStore) Clear(ctx context.Context) error {
	return t.Set(ctx, "")
}

func (t *TokenStore) expired(tok string) bool {
	claims, err := TokenClaims(tok)
	if err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !t.now().Before(exp.Time)
}

// TokenClaims decodes the claims of a JWT without verifying its
// signature. The server is the only party that can verify it; the client
// reads claims only to skip requests with a token it knows has expired.
func TokenClaims(tok string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
