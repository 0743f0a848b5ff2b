package cart

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/greenbasket/storefront/internal/config"
	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/signal"
	"github.com/greenbasket/storefront/pkg/storage"
)

// OrderSubmitter places orders. *api.Client satisfies it.
type OrderSubmitter interface {
	CreateOrder(ctx context.Context, lines []api.OrderLine) (*api.Order, error)
}

// Store is the cart of one browser context. It is safe for concurrent use;
// mutations are applied and persisted in call order.
type Store struct {
	mu    sync.Mutex
	items []LineItem

	storage        storage.Storage
	key            string
	logger         *slog.Logger
	persistTimeout time.Duration
	onPersistError func(error)

	state *signal.Signal[Snapshot]
}

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key. Default: "cart".
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithPersistTimeout bounds each storage write. Default: 5s.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.persistTimeout = d
	}
}

// WithPersistErrorHandler is called when a storage write fails, in
// addition to the warning that is logged.
func WithPersistErrorHandler(fn func(error)) Option {
	return func(s *Store) {
		s.onPersistError = fn
	}
}

// New creates a cart backed by st and rehydrates it.
func New(ctx context.Context, st storage.Storage, opts ...Option) *Store {
	s := &Store{
		storage:        st,
		key:            config.DefaultCartKey,
		logger:         slog.Default(),
		persistTimeout: 5 * time.Second,
		state:          signal.New(Snapshot{Items: []LineItem{}, Total: decimal.Zero}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Rehydrate(ctx)
	return s
}

// Rehydrate replaces the in-memory cart with the persisted one. Absent,
// unreadable or malformed data produces an empty cart.
func (s *Store) Rehydrate(ctx context.Context) {
	items := s.load(ctx)
	s.mu.Lock()
	s.items = items
	snap := snapshotOf(s.items)
	s.mu.Unlock()
	s.state.Publish(snap)
}

func (s *Store) load(ctx context.Context) []LineItem {
	data, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		s.logger.Warn("cart storage unreadable, starting empty",
			"key", s.key, "error", errors.New("E011").Wrap(err))
		return []LineItem{}
	}
	if len(data) == 0 {
		return []LineItem{}
	}
	var stored []LineItem
	if err := json.Unmarshal(data, &stored); err != nil {
		s.logger.Warn("persisted cart malformed, starting empty",
			"key", s.key, "error", errors.New("E010").Wrap(err))
		return []LineItem{}
	}
	return normalize(stored)
}

// normalize drops non-positive quantities, clamps negative prices and
// merges duplicate ids so a hand-edited cart still holds the invariants.
func normalize(in []LineItem) []LineItem {
	out := make([]LineItem, 0, len(in))
	index := make(map[int64]int, len(in))
	for _, li := range in {
		if li.Quantity <= 0 {
			continue
		}
		if li.UnitPrice < 0 {
			li.UnitPrice = 0
		}
		if i, ok := index[li.ProductID]; ok {
			out[i].Quantity += li.Quantity
			continue
		}
		index[li.ProductID] = len(out)
		out = append(out, li)
	}
	return out
}

// Add puts one unit of p in the cart, or increments its quantity if it is
// already there.
func (s *Store) Add(p Product) {
	s.mutate(func(items []LineItem) []LineItem {
		for i := range items {
			if items[i].ProductID == p.ID {
				items[i].Quantity++
				return items
			}
		}
		return append(items, p.lineItem())
	})
}

// Remove deletes the line for productID. Unknown ids are a no-op.
func (s *Store) Remove(productID int64) {
	s.mutate(func(items []LineItem) []LineItem {
		return removeID(items, productID)
	})
}

// UpdateQuantity sets the quantity of productID. A quantity of zero or
// less removes the line. Unknown ids are a no-op.
func (s *Store) UpdateQuantity(productID int64, quantity int) {
	s.mutate(func(items []LineItem) []LineItem {
		if quantity <= 0 {
			return removeID(items, productID)
		}
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = quantity
				break
			}
		}
		return items
	})
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mutate(func([]LineItem) []LineItem {
		return []LineItem{}
	})
}

func removeID(items []LineItem, id int64) []LineItem {
	out := items[:0]
	for _, li := range items {
		if li.ProductID != id {
			out = append(out, li)
		}
	}
	return out
}

// mutate applies fn, persists the result and notifies subscribers. The
// write happens under the lock so storage sees mutations in call order.
func (s *Store) mutate(fn func([]LineItem) []LineItem) {
	s.mu.Lock()
	work := make([]LineItem, len(s.items))
	copy(work, s.items)
	s.items = fn(work)
	s.persistLocked()
	snap := snapshotOf(s.items)
	s.mu.Unlock()

	s.state.Publish(snap)
}

func (s *Store) persistLocked() {
	data, err := json.Marshal(s.items)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
		err = s.storage.SetItem(ctx, s.key, data)
		cancel()
	}
	if err != nil {
		s.logger.Warn("cart not persisted", "key", s.key, "items", len(s.items), "error", err)
		if s.onPersistError != nil {
			s.onPersistError(err)
		}
	}
}

// Items returns a copy of the line items in insertion order.
func (s *Store) Items() []LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LineItem, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of distinct products.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Total returns the sum of price x quantity over all lines.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return total(s.items)
}

// TotalFloat returns Total as a float64 for display code.
func (s *Store) TotalFloat() float64 {
	f, _ := s.Total().Float64()
	return f
}

// ItemCount returns the sum of quantities over all lines.
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return itemCount(s.items)
}

// Snapshot returns items, total and count read together.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.items)
}

// Subscribe registers fn to receive a snapshot after every mutation.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}

// Close drops every subscriber.
func (s *Store) Close() {
	s.state.Reset()
}

// Checkout submits the cart as an order. The cart is cleared only when the
// order is accepted; on failure it is left intact and the error is
// returned unchanged.
func (s *Store) Checkout(ctx context.Context, sub OrderSubmitter) (*api.Order, error) {
	items := s.Items()
	if len(items) == 0 {
		return nil, errors.New("E020")
	}
	lines := make([]api.OrderLine, len(items))
	for i, li := range items {
		lines[i] = api.OrderLine{
			ID:             li.ProductID,
			Name:           li.Name,
			Price:          li.UnitPrice,
			Quantity:       li.Quantity,
			Unit:           li.Unit,
			FarmerID:       li.SellerID,
			FarmerUsername: li.SellerName,
		}
	}
	order, err := sub.CreateOrder(ctx, lines)
	if err != nil {
		return nil, err
	}
	s.Clear()
	s.logger.Info("order placed", "order", order.ID, "lines", len(lines))
	return order, nil
}
