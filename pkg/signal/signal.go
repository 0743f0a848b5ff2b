// Package signal provides a small observable value used by the client
// state containers to publish changes to presentation layers.
package signal

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// Listener receives the new value after a change.
type Listener[T any] func(T)

type subscription[T any] struct {
	id uint64
	fn Listener[T]
}

// Signal holds a value of type T and notifies subscribers when it changes.
// It is safe for concurrent use. Listeners run on the goroutine that made
// the change, after all internal locks are released.
type Signal[T any] struct {
	// value is the current signal value.
	value T

	// mu protects value.
	mu sync.RWMutex

	// subs are the registered listeners.
	subs []subscription[T]

	// subMu protects subs.
	subMu sync.RWMutex

	nextID atomic.Uint64
}

// New creates a new signal with the given initial value.
func New[T any](initial T) *Signal[T] {
	return &Signal[T]{value: initial}
}

// Get returns the current value.
func (s *Signal[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and notifies subscribers if it changed.
func (s *Signal[T]) Set(value T) {
	s.mu.Lock()
	changed := !reflect.DeepEqual(s.value, value)
	if changed {
		s.value = value
	}
	s.mu.Unlock()

	if changed {
		s.notify(value)
	}
}

// Update atomically reads and updates the value. fn runs under the
// signal's lock and must not call back into the signal.
func (s *Signal[T]) Update(fn func(T) T) {
	s.mu.Lock()
	oldValue := s.value
	newValue := fn(oldValue)
	changed := !reflect.DeepEqual(oldValue, newValue)
	if changed {
		s.value = newValue
	}
	s.mu.Unlock()

	if changed {
		s.notify(newValue)
	}
}

// Publish stores value and notifies subscribers unconditionally.
func (s *Signal[T]) Publish(value T) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	s.notify(value)
}

// Subscribe registers fn and returns a function that removes it.
// The returned function is idempotent.
func (s *Signal[T]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	id := s.nextID.Add(1)

	s.subMu.Lock()
	s.subs = append(s.subs, subscription[T]{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(id) })
	}
}

// Subscribers returns the number of registered listeners.
func (s *Signal[T]) Subscribers() int {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	return len(s.subs)
}

// Reset removes every listener.
func (s *Signal[T]) Reset() {
	s.subMu.Lock()
	s.subs = nil
	s.subMu.Unlock()
}

func (s *Signal[T]) unsubscribe(id uint64) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for i, sub := range s.subs {
		if sub.id == id {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			return
		}
	}
}

// notify copies the listener list before calling out so listeners may
// subscribe or unsubscribe without deadlocking.
func (s *Signal[T]) notify(value T) {
	s.subMu.RLock()
	subs := make([]subscription[T], len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()

	for _, sub := range subs {
		sub.fn(value)
	}
}
