package gateway

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	sferrors "github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/internal/logging"
	"github.com/greenbasket/storefront/pkg/app"
	"github.com/greenbasket/storefront/pkg/auth"
	"github.com/greenbasket/storefront/pkg/cart"
	"github.com/greenbasket/storefront/pkg/storage"
)

type closeRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (c *closeRecorder) record(bc *browserContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, bc.ID)
}

func (c *closeRecorder) closed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}

func newTestRegistry(t *testing.T, cfg RegistryConfig) (*registry, *closeRecorder) {
	t.Helper()
	// A long interval keeps the background sweep out of the way.
	cfg.CleanupInterval = time.Hour
	rec := &closeRecorder{}
	r := newRegistry(cfg, logging.Discard(), rec.record)
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	return r, rec
}

func newTestContext(t *testing.T, id string, store storage.Storage) *browserContext {
	t.Helper()
	a, err := app.New(context.Background(), app.Options{
		BaseURL: "http://127.0.0.1:1",
		Storage: storage.WithPrefix(store, "ctx:"+id+":"),
		Logger:  logging.Discard(),
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	now := time.Now()
	return &browserContext{ID: id, App: a, CreatedAt: now, LastActive: now, hub: newHub(nil)}
}

func TestRegistryGetAndAdd(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{})
	store := storage.NewMemoryStore()

	if r.Get("a") != nil {
		t.Fatal("Get on empty registry returned a context")
	}
	a := newTestContext(t, "a", store)
	got, err := r.Add(a)
	if err != nil || got != a {
		t.Fatalf("Add = %v, %v", got, err)
	}
	if r.Get("a") != a {
		t.Error("Get did not return the added context")
	}

	dup := newTestContext(t, "a", store)
	got, _ = r.Add(dup)
	if got != a {
		t.Error("duplicate Add replaced the existing context")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestRegistryEvictsLeastRecentlyUsed(t *testing.T) {
	r, rec := newTestRegistry(t, RegistryConfig{MaxContexts: 2})
	store := storage.NewMemoryStore()

	_, _ = r.Add(newTestContext(t, "a", store))
	_, _ = r.Add(newTestContext(t, "b", store))
	r.Get("a")
	_, _ = r.Add(newTestContext(t, "c", store))

	if r.Get("b") != nil {
		t.Error("b should have been evicted")
	}
	if r.Get("a") == nil || r.Get("c") == nil {
		t.Error("a and c should be live")
	}
	if got := rec.closed(); len(got) != 1 || got[0] != "b" {
		t.Errorf("closed = %v, want [b]", got)
	}
}

func TestRegistryCleanupExpired(t *testing.T) {
	r, rec := newTestRegistry(t, RegistryConfig{IdleTTL: time.Minute})
	store := storage.NewMemoryStore()

	clock := time.Now()
	r.now = func() time.Time { return clock }

	_, _ = r.Add(newTestContext(t, "old", store))
	clock = clock.Add(45 * time.Second)
	_, _ = r.Add(newTestContext(t, "new", store))
	clock = clock.Add(30 * time.Second)

	r.cleanupExpired()
	if r.Get("old") != nil {
		t.Error("old context survived cleanup")
	}
	if r.Get("new") == nil {
		t.Error("new context was cleaned up")
	}
	if got := rec.closed(); len(got) != 1 || got[0] != "old" {
		t.Errorf("closed = %v, want [old]", got)
	}
}

func TestEvictedContextResumes(t *testing.T) {
	r, _ := newTestRegistry(t, RegistryConfig{MaxContexts: 1})
	store := storage.NewMemoryStore()

	a := newTestContext(t, "a", store)
	_, _ = r.Add(a)
	a.App.Cart.Add(cart.Product{ID: 7, Name: "Pepper", Price: 0.75})
	_, _ = r.Add(newTestContext(t, "b", store))
	if r.Get("a") != nil {
		t.Fatal("a was not evicted")
	}

	again := newTestContext(t, "a", store)
	defer again.close()
	if again.App.Cart.ItemCount() != 1 {
		t.Errorf("resumed cart count = %d, want 1", again.App.Cart.ItemCount())
	}
}

func TestRegistryShutdown(t *testing.T) {
	r, rec := newTestRegistry(t, RegistryConfig{})
	store := storage.NewMemoryStore()
	_, _ = r.Add(newTestContext(t, "a", store))
	_, _ = r.Add(newTestContext(t, "b", store))

	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if r.Len() != 0 || len(rec.closed()) != 2 {
		t.Errorf("after shutdown: len = %d, closed = %v", r.Len(), rec.closed())
	}
	if _, err := r.Add(newTestContext(t, "c", store)); !errors.Is(err, ErrRegistryStopped) {
		t.Errorf("Add after shutdown = %v, want ErrRegistryStopped", err)
	}
	if err := r.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown = %v", err)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
		code string
	}{
		{"guest", auth.ErrUnauthorized, http.StatusUnauthorized, "E030"},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden, "E031"},
		{"bad input", badRequest("nope"), http.StatusBadRequest, "E021"},
		{"empty cart", errorCode("E020"), http.StatusBadRequest, "E020"},
		{"api 404", apiFailure(404), http.StatusNotFound, "E002"},
		{"api no status", apiFailure(0), http.StatusBadGateway, "E002"},
		{"transport", errorCode("E001"), http.StatusBadGateway, "E001"},
		{"decode", errorCode("E003"), http.StatusBadGateway, "E003"},
		{"plain", errors.New("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := normalize(tt.err)
			if got := statusFor(err); got != tt.want {
				t.Errorf("statusFor = %d, want %d", got, tt.want)
			}
			if got := codeFor(err); got != tt.code {
				t.Errorf("codeFor = %q, want %q", got, tt.code)
			}
		})
	}
}

func errorCode(code string) error { return sferrors.New(code) }

func apiFailure(status int) error { return sferrors.New("E002").WithStatus(status) }
