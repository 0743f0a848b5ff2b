package app

import (
	"context"
	"testing"
	"time"

	"github.com/greenbasket/storefront/internal/apitest"
	"github.com/greenbasket/storefront/internal/config"
	"github.com/greenbasket/storefront/internal/logging"
	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/auth"
	"github.com/greenbasket/storefront/pkg/cart"
	"github.com/greenbasket/storefront/pkg/session"
	"github.com/greenbasket/storefront/pkg/storage"
)

func newTestApp(t *testing.T, baseURL string, st storage.Storage) *App {
	t.Helper()
	a, err := New(context.Background(), Options{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
		Storage: st,
		Logger:  logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestInitWithoutSession(t *testing.T) {
	srv := apitest.New(t)
	a := newTestApp(t, srv.URL, storage.NewMemoryStore())
	defer a.Teardown()

	if !a.Session.Loading() {
		t.Error("session should be loading before Init")
	}
	a.Init(context.Background())
	if a.Session.Loading() || a.Session.Current().Status != session.StatusUnauthenticated {
		t.Errorf("session = %+v", a.Session.Current())
	}
}

func TestLoginPersistsAcrossApps(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ana", "secret", auth.RoleBasicUser)
	st := storage.NewMemoryStore()
	ctx := context.Background()

	first := newTestApp(t, srv.URL, st)
	first.Init(ctx)
	if _, err := first.Session.Login(ctx, "ana", "secret", auth.RoleGuest); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	first.Cart.Add(cart.Product{ID: 1, Name: "Tomato", Price: 4.99})
	first.Teardown()

	if tok, _ := st.GetItem(ctx, api.TokenKey); len(tok) == 0 {
		t.Fatal("access token not persisted")
	}

	second := newTestApp(t, srv.URL, st)
	defer second.Teardown()
	if second.Cart.ItemCount() != 1 {
		t.Errorf("cart not rehydrated: %+v", second.Cart.Items())
	}
	second.Init(ctx)
	if cur := second.Session.Current(); !cur.Authenticated() || cur.Username != "ana" {
		t.Errorf("session not resumed: %+v", cur)
	}
}

func TestCheckoutThroughAPI(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ana", "secret", auth.RoleBasicUser)
	ctx := context.Background()
	a := newTestApp(t, srv.URL, storage.NewMemoryStore())
	defer a.Teardown()

	if _, err := a.Session.Login(ctx, "ana", "secret", auth.RoleGuest); err != nil {
		t.Fatal(err)
	}
	a.Cart.Add(cart.Product{ID: 2, Name: "Yam", Price: 2.50})
	a.Cart.UpdateQuantity(2, 5)

	if _, err := a.Cart.Checkout(ctx, a.API); err == nil {
		t.Fatal("checkout beyond stock should fail")
	}
	if a.Cart.ItemCount() != 5 {
		t.Error("failed checkout emptied the cart")
	}

	a.Cart.UpdateQuantity(2, 2)
	order, err := a.Cart.Checkout(ctx, a.API)
	if err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	if order.TotalAmount != 5.0 || a.Cart.Len() != 0 {
		t.Errorf("order = %+v, cart = %+v", order, a.Cart.Items())
	}
	if srv.Stock(2) != 1 {
		t.Errorf("stock = %d, want 1", srv.Stock(2))
	}
}

func TestLogoutForgetsCredentials(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ana", "secret", auth.RoleBasicUser)
	st := storage.NewMemoryStore()
	ctx := context.Background()
	a := newTestApp(t, srv.URL, st)
	defer a.Teardown()

	if _, err := a.Session.Login(ctx, "ana", "secret", auth.RoleGuest); err != nil {
		t.Fatal(err)
	}
	if err := a.Session.Logout(ctx); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if a.Tokens.Token() != "" {
		t.Error("token kept after logout")
	}
	if v, _ := st.GetItem(ctx, api.CookieKey); v != nil {
		t.Errorf("cookies kept after logout: %s", v)
	}

	a.Session.CheckSession(ctx)
	if a.Session.Current().Authenticated() {
		t.Error("session resumed after logout")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.New()
	cfg.Storage.Driver = config.DriverFile
	cfg.Storage.Dir = t.TempDir()
	cfg.API.BaseURL = "http://127.0.0.1:1"

	a, err := FromConfig(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatalf("FromConfig() error = %v", err)
	}
	a.Cart.Add(cart.Product{ID: 9, Price: 1})
	a.Init(context.Background())
	if a.Session.Current().Authenticated() {
		t.Error("unreachable API should leave the session unauthenticated")
	}
	a.Teardown()

	b, err := FromConfig(context.Background(), cfg, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Teardown()
	if b.Cart.Len() != 1 {
		t.Error("file storage did not keep the cart")
	}
}

func TestNilStorageUsesMemory(t *testing.T) {
	a, err := New(context.Background(), Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatal(err)
	}
	defer a.Teardown()
	a.Cart.Add(cart.Product{ID: 1})
	if a.API.BaseURL() != config.DefaultBaseURL {
		t.Errorf("BaseURL() = %q", a.API.BaseURL())
	}
}
