package gateway

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/greenbasket/storefront/pkg/app"
)

// browserContext is the state of one browser: its App and the websocket
// subscribers watching it.
type browserContext struct {
	ID         string
	App        *app.App
	CreatedAt  time.Time
	LastActive time.Time

	hub   *hub
	unsub []func()
}

func (bc *browserContext) close() {
	for _, fn := range bc.unsub {
		fn()
	}
	bc.hub.Close()
	bc.App.Teardown()
}

// RegistryConfig configures the context registry.
type RegistryConfig struct {
	// IdleTTL is how long an unused context is kept. Default: 30 minutes.
	IdleTTL time.Duration

	// MaxContexts caps the number of live contexts; the least recently
	// used is torn down to make room. Default: 10000.
	MaxContexts int

	// CleanupInterval is how often idle contexts are swept.
	// Default: IdleTTL / 2, at least one second.
	CleanupInterval time.Duration
}

func (c RegistryConfig) withDefaults() RegistryConfig {
	if c.IdleTTL <= 0 {
		c.IdleTTL = 30 * time.Minute
	}
	if c.MaxContexts <= 0 {
		c.MaxContexts = 10000
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = c.IdleTTL / 2
		if c.CleanupInterval < time.Second {
			c.CleanupInterval = time.Second
		}
	}
	return c
}

// ErrRegistryStopped is returned after Shutdown.
var ErrRegistryStopped = errors.New("context registry is stopped")

// registry holds live browser contexts in LRU order (front = most recently
// used) and tears down the idle ones.
type registry struct {
	mu       sync.Mutex
	contexts map[string]*list.Element
	lru      *list.List

	config  RegistryConfig
	logger  *slog.Logger
	now     func() time.Time
	onClose func(*browserContext)

	done    chan struct{}
	stopped bool
}

func newRegistry(config RegistryConfig, logger *slog.Logger, onClose func(*browserContext)) *registry {
	r := &registry{
		contexts: make(map[string]*list.Element),
		lru:      list.New(),
		config:   config.withDefaults(),
		logger:   logger.With("component", "context_registry"),
		now:      time.Now,
		onClose:  onClose,
		done:     make(chan struct{}),
	}
	go r.cleanupLoop()
	return r
}

// Get returns the context with id and marks it used.
func (r *registry) Get(id string) *browserContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	elem, ok := r.contexts[id]
	if !ok {
		return nil
	}
	bc := elem.Value.(*browserContext)
	bc.LastActive = r.now()
	r.lru.MoveToFront(elem)
	return bc
}

// Add registers bc, evicting the least recently used context when full.
// If a context with the same id was added concurrently, that one is kept
// and returned and bc is closed.
func (r *registry) Add(bc *browserContext) (*browserContext, error) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		bc.close()
		return nil, ErrRegistryStopped
	}
	if elem, ok := r.contexts[bc.ID]; ok {
		existing := elem.Value.(*browserContext)
		r.lru.MoveToFront(elem)
		r.mu.Unlock()
		bc.close()
		return existing, nil
	}

	var evicted []*browserContext
	for r.lru.Len() >= r.config.MaxContexts {
		evicted = append(evicted, r.removeLocked(r.lru.Back()))
	}
	bc.LastActive = r.now()
	r.contexts[bc.ID] = r.lru.PushFront(bc)
	r.mu.Unlock()

	for _, old := range evicted {
		r.logger.Debug("evicted context", "context_id", old.ID, "reason", "limit_exceeded")
		r.finish(old)
	}
	return bc, nil
}

// Remove tears down the context with id.
func (r *registry) Remove(id string) {
	r.mu.Lock()
	elem, ok := r.contexts[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	bc := r.removeLocked(elem)
	r.mu.Unlock()
	r.finish(bc)
}

// Len returns the number of live contexts.
func (r *registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

func (r *registry) removeLocked(elem *list.Element) *browserContext {
	bc := elem.Value.(*browserContext)
	r.lru.Remove(elem)
	delete(r.contexts, bc.ID)
	return bc
}

// finish closes bc outside the lock; teardown writes to storage.
func (r *registry) finish(bc *browserContext) {
	bc.close()
	if r.onClose != nil {
		r.onClose(bc)
	}
}

func (r *registry) cleanupLoop() {
	ticker := time.NewTicker(r.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.cleanupExpired()
		case <-r.done:
			return
		}
	}
}

// cleanupExpired tears down contexts idle for longer than IdleTTL. Contexts
// with an open websocket are never idle.
func (r *registry) cleanupExpired() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	now := r.now()
	var expired []*browserContext
	for e := r.lru.Back(); e != nil; {
		prev := e.Prev()
		bc := e.Value.(*browserContext)
		if bc.hub.Len() == 0 && now.Sub(bc.LastActive) > r.config.IdleTTL {
			expired = append(expired, r.removeLocked(e))
		}
		e = prev
	}
	remaining := r.lru.Len()
	r.mu.Unlock()

	for _, bc := range expired {
		r.finish(bc)
	}
	if len(expired) > 0 {
		r.logger.Debug("cleaned up idle contexts",
			"count", len(expired),
			"remaining", remaining)
	}
}

// Shutdown tears down every context.
func (r *registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return nil
	}
	r.stopped = true
	close(r.done)
	all := make([]*browserContext, 0, r.lru.Len())
	for e := r.lru.Front(); e != nil; e = e.Next() {
		all = append(all, e.Value.(*browserContext))
	}
	r.contexts = make(map[string]*list.Element)
	r.lru.Init()
	r.mu.Unlock()

	for _, bc := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		r.finish(bc)
	}
	return nil
}
