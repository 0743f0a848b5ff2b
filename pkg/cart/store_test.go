package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	sferrors "github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/internal/logging"
	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/storage"
)

var (
	tomato = Product{ID: 1, Name: "Tomato", Price: 4.99, Unit: "kg", SellerID: 10, SellerName: "ana"}
	yam    = Product{ID: 2, Name: "Yam", Price: 2.50, Unit: "tuber", SellerID: 11}
)

func newTestStore(t *testing.T, st storage.Storage, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithLogger(logging.Discard())}, opts...)
	return New(context.Background(), st, opts...)
}

func persisted(t *testing.T, st storage.Storage) []LineItem {
	t.Helper()
	data, err := st.GetItem(context.Background(), "cart")
	if err != nil {
		t.Fatal(err)
	}
	var items []LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		t.Fatalf("persisted cart is not a JSON list: %q", data)
	}
	return items
}

func TestAddNewAndExisting(t *testing.T) {
	st := storage.NewMemoryStore()
	c := newTestStore(t, st)

	c.Add(tomato)
	c.Add(tomato)

	items := c.Items()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("items = %+v, want one tomato x2", items)
	}
	if got := c.Total().String(); got != "9.98" {
		t.Errorf("Total() = %s, want 9.98", got)
	}
	if got := c.TotalFloat(); got != 9.98 {
		t.Errorf("TotalFloat() = %v, want 9.98", got)
	}
	if c.ItemCount() != 2 {
		t.Errorf("ItemCount() = %d, want 2", c.ItemCount())
	}
	if p := persisted(t, st); len(p) != 1 || p[0].Quantity != 2 {
		t.Errorf("persisted = %+v", p)
	}
}

func TestInsertionOrderPreserved(t *testing.T) {
	c := newTestStore(t, storage.NewMemoryStore())
	c.Add(yam)
	c.Add(tomato)
	c.Add(yam)

	items := c.Items()
	if items[0].ProductID != yam.ID || items[1].ProductID != tomato.ID {
		t.Errorf("order = %d,%d; want 2,1", items[0].ProductID, items[1].ProductID)
	}
}

func TestUpdateQuantity(t *testing.T) {
	st := storage.NewMemoryStore()
	c := newTestStore(t, st)
	c.Add(tomato)
	c.Add(yam)

	c.UpdateQuantity(tomato.ID, 5)
	if c.ItemCount() != 6 {
		t.Errorf("ItemCount() = %d, want 6", c.ItemCount())
	}

	c.UpdateQuantity(tomato.ID, 0)
	items := c.Items()
	if len(items) != 1 || items[0].ProductID != yam.ID {
		t.Errorf("items after qty 0 = %+v", items)
	}

	c.UpdateQuantity(yam.ID, -3)
	if c.Len() != 0 {
		t.Errorf("negative quantity should remove, items = %+v", c.Items())
	}
	if p := persisted(t, st); len(p) != 0 {
		t.Errorf("persisted = %+v, want []", p)
	}

	c.UpdateQuantity(99, 4)
	if c.Len() != 0 {
		t.Error("unknown id should be a no-op")
	}
}

func TestRemove(t *testing.T) {
	c := newTestStore(t, storage.NewMemoryStore())
	c.Add(tomato)
	c.Remove(42)
	if c.Len() != 1 {
		t.Error("removing an absent id changed the cart")
	}
	c.Remove(tomato.ID)
	if c.Len() != 0 {
		t.Error("Remove did not delete the line")
	}
}

func TestClearPersistsEmptyList(t *testing.T) {
	st := storage.NewMemoryStore()
	c := newTestStore(t, st)
	c.Add(tomato)
	c.Clear()

	raw, _ := st.GetItem(context.Background(), "cart")
	if string(raw) != "[]" {
		t.Errorf("persisted = %q, want []", raw)
	}
	if !c.Total().IsZero() || c.ItemCount() != 0 {
		t.Error("cleared cart should have zero totals")
	}
}

func TestNegativePriceClamped(t *testing.T) {
	c := newTestStore(t, storage.NewMemoryStore())
	c.Add(Product{ID: 5, Price: -3})
	if c.Items()[0].UnitPrice != 0 || !c.Total().IsZero() {
		t.Errorf("items = %+v", c.Items())
	}
}

func TestRehydrate(t *testing.T) {
	st := storage.NewMemoryStore()
	first := newTestStore(t, st)
	first.Add(tomato)
	first.Add(yam)
	first.UpdateQuantity(yam.ID, 3)

	second := newTestStore(t, st)
	if second.ItemCount() != 4 {
		t.Errorf("rehydrated ItemCount() = %d, want 4", second.ItemCount())
	}
	if second.Items()[1].Unit != "tuber" {
		t.Errorf("rehydrated items = %+v", second.Items())
	}
}

func TestRehydrateMalformedData(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{{`},
		{"object instead of list", `{"id":1}`},
		{"wrong field types", `[{"id":"one","quantity":"two"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := storage.NewMemoryStore()
			_ = st.SetItem(context.Background(), "cart", []byte(tt.data))
			c := newTestStore(t, st)
			if c.Len() != 0 {
				t.Errorf("items = %+v, want empty", c.Items())
			}
		})
	}
}

func TestRehydrateNormalizes(t *testing.T) {
	st := storage.NewMemoryStore()
	_ = st.SetItem(context.Background(), "cart", []byte(
		`[{"id":1,"price":1,"quantity":2},{"id":2,"price":1,"quantity":0},{"id":1,"price":1,"quantity":3},{"id":3,"price":-1,"quantity":1}]`))
	c := newTestStore(t, st)

	items := c.Items()
	if len(items) != 2 || items[0].Quantity != 5 || items[1].UnitPrice != 0 {
		t.Errorf("items = %+v", items)
	}
}

type failingStorage struct {
	storage.Storage
	getErr error
	setErr error
}

func (f failingStorage) GetItem(ctx context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.Storage.GetItem(ctx, key)
}

func (f failingStorage) SetItem(ctx context.Context, key string, v []byte) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Storage.SetItem(ctx, key, v)
}

func TestStorageFailuresAreNotSurfaced(t *testing.T) {
	st := failingStorage{
		Storage: storage.NewMemoryStore(),
		getErr:  errors.New("disk gone"),
		setErr:  errors.New("quota exceeded"),
	}
	var persistErrs int
	c := newTestStore(t, st, WithPersistErrorHandler(func(error) { persistErrs++ }))
	if c.Len() != 0 {
		t.Fatal("unreadable storage should give an empty cart")
	}

	c.Add(tomato)
	if c.ItemCount() != 1 {
		t.Error("in-memory cart should change even when persisting fails")
	}
	if persistErrs != 1 {
		t.Errorf("persist errors = %d, want 1", persistErrs)
	}
}

func TestCustomKey(t *testing.T) {
	st := storage.NewMemoryStore()
	c := newTestStore(t, st, WithKey("basket"))
	c.Add(tomato)
	if v, _ := st.GetItem(context.Background(), "basket"); v == nil {
		t.Error("cart not persisted under custom key")
	}
}

func TestSubscribe(t *testing.T) {
	c := newTestStore(t, storage.NewMemoryStore())
	var snaps []Snapshot
	unsub := c.Subscribe(func(s Snapshot) { snaps = append(snaps, s) })

	c.Add(tomato)
	c.Add(tomato)
	unsub()
	c.Add(yam)

	if len(snaps) != 2 {
		t.Fatalf("got %d snapshots, want 2", len(snaps))
	}
	last := snaps[1]
	if last.ItemCount != 2 || last.Total.String() != "9.98" || len(last.Items) != 1 {
		t.Errorf("last snapshot = %+v", last)
	}
}

func TestConcurrentAdds(t *testing.T) {
	st := storage.NewMemoryStore()
	c := newTestStore(t, st)
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Add(tomato)
		}()
	}
	wg.Wait()
	if c.ItemCount() != 40 {
		t.Errorf("ItemCount() = %d, want 40", c.ItemCount())
	}
	if p := persisted(t, st); p[0].Quantity != 40 {
		t.Errorf("persisted quantity = %d, want 40", p[0].Quantity)
	}
}

type fakeSubmitter struct {
	lines []api.OrderLine
	err   error
}

func (f *fakeSubmitter) CreateOrder(_ context.Context, lines []api.OrderLine) (*api.Order, error) {
	f.lines = lines
	if f.err != nil {
		return nil, f.err
	}
	return &api.Order{ID: 77, TotalAmount: 9.98, Status: "pending"}, nil
}

func TestCheckout(t *testing.T) {
	c := newTestStore(t, storage.NewMemoryStore())

	if _, err := c.Checkout(context.Background(), &fakeSubmitter{}); !sferrors.HasCategory(err, sferrors.CategoryValidation) {
		t.Errorf("empty checkout error = %v", err)
	}

	c.Add(tomato)
	c.Add(tomato)

	failing := &fakeSubmitter{err: sferrors.New("E002").WithStatus(400).WithMessage("Product Tomato is not available in requested quantity")}
	if _, err := c.Checkout(context.Background(), failing); sferrors.UserMessage(err) != "Product Tomato is not available in requested quantity" {
		t.Errorf("checkout error = %v", err)
	}
	if c.ItemCount() != 2 {
		t.Error("failed checkout should keep the cart")
	}

	ok := &fakeSubmitter{}
	order, err := c.Checkout(context.Background(), ok)
	if err != nil || order.ID != 77 {
		t.Fatalf("Checkout() = %+v, %v", order, err)
	}
	if len(ok.lines) != 1 || ok.lines[0].ID != tomato.ID || ok.lines[0].Quantity != 2 || ok.lines[0].FarmerID != 10 {
		t.Errorf("submitted lines = %+v", ok.lines)
	}
	if c.Len() != 0 {
		t.Error("successful checkout should clear the cart")
	}
}

func TestFromAPI(t *testing.T) {
	p := FromAPI(api.Product{ID: 3, Name: "Okra", Price: 1.25, Unit: "kg", FarmerID: 4, FarmerUsername: "kofi"})
	if p.ID != 3 || p.SellerID != 4 || p.SellerName != "kofi" || p.Price != 1.25 {
		t.Errorf("FromAPI() = %+v", p)
	}
}
