// Package app assembles the state of one browser context: the API client,
// the cart and the session, all sharing one storage namespace.
//
// There are no package-level singletons. A CLI builds one App per
// invocation; the gateway builds one per browser context.
//
//	a, err := app.New(ctx, app.Options{BaseURL: cfg.API.BaseURL, Storage: store})
//	if err != nil {
//	    return err
//	}
//	defer a.Teardown()
//	a.Init(ctx)
package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/greenbasket/storefront/internal/config"
	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/cart"
	"github.com/greenbasket/storefront/pkg/session"
	"github.com/greenbasket/storefront/pkg/storage"
)

// Options configures an App.
type Options struct {
	// BaseURL is the marketplace API origin. Default: config.DefaultBaseURL.
	BaseURL string

	// Timeout bounds each API call. Default: 15s.
	Timeout time.Duration

	// Storage backs the cart, token and cookies. Required.
	Storage storage.Storage

	// OwnsStorage makes Teardown close Storage.
	OwnsStorage bool

	// CartKey is the cart's storage key. Default: "cart".
	CartKey string

	// Observer receives every API call. Optional.
	Observer api.Observer

	// OnPersistError is called when a cart write fails. Optional.
	OnPersistError func(error)

	// HTTPClient replaces the API client's transport. Optional.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// App is the state of one browser context.
type App struct {
	API     *api.Client
	Cart    *cart.Store
	Session *session.Store
	Tokens  *api.TokenStore
	Cookies *api.PersistentJar

	storage storage.Storage
	owns    bool
	logger  *slog.Logger
}

// New builds an App and rehydrates its persisted state. It does not talk
// to the API; call Init for that.
func New(ctx context.Context, opts Options) (*App, error) {
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStore()
		opts.OwnsStorage = true
	}
	if opts.BaseURL == "" {
		opts.BaseURL = config.DefaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.CartKey == "" {
		opts.CartKey = config.DefaultCartKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tokens := api.NewTokenStore(opts.Storage, api.WithTokenLogger(logger))
	tokens.Load(ctx)

	jar, err := api.NewPersistentJar(opts.BaseURL, opts.Storage, logger)
	if err != nil {
		return nil, err
	}
	jar.Load(ctx)

	clientOpts := []api.Option{
		api.WithTimeout(opts.Timeout),
		api.WithTokenSource(tokens),
		api.WithCookieJar(jar),
		api.WithLogger(logger),
	}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, api.WithHTTPClient(opts.HTTPClient))
	}
	if opts.Observer != nil {
		clientOpts = append(clientOpts, api.WithObserver(opts.Observer))
	}
	client := api.New(opts.BaseURL, clientOpts...)

	cartOpts := []cart.Option{
		cart.WithKey(opts.CartKey),
		cart.WithLogger(logger.With("component", "cart")),
	}
	if opts.OnPersistError != nil {
		cartOpts = append(cartOpts, cart.WithPersistErrorHandler(opts.OnPersistError))
	}

	a := &App{
		API:     client,
		Cart:    cart.New(ctx, opts.Storage, cartOpts...),
		Tokens:  tokens,
		Cookies: jar,
		storage: opts.Storage,
		owns:    opts.OwnsStorage,
		logger:  logger,
	}
	a.Session = session.New(client,
		session.WithCredentials(credentials{tokens: tokens, jar: jar}),
		session.WithLogger(logger.With("component", "session")),
	)
	return a, nil
}

// FromConfig opens the storage cfg selects and builds an App that owns it.
func FromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	st, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	a, err := New(ctx, Options{
		BaseURL:     cfg.API.BaseURL,
		Timeout:     cfg.APITimeout(),
		Storage:     st,
		OwnsStorage: true,
		CartKey:     cfg.Cart.Key,
		Logger:      logger,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

// Init runs the first session check. It never fails.
func (a *App) Init(ctx context.Context) {
	a.Session.CheckSession(ctx)
	a.saveCookies(ctx)
}

// Teardown drops all subscriptions, saves the session cookies and closes
// the storage when the App owns it.
func (a *App) Teardown() {
	a.Cart.Close()
	a.Session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.saveCookies(ctx)

	if a.owns {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("closing storage failed", "error", err)
		}
	}
}

func (a *App) saveCookies(ctx context.Context) {
	if err := a.Cookies.Save(ctx); err != nil {
		a.logger.Debug("saving session cookies failed", "error", err)
	}
}

// credentials keeps the bearer token and the session cookies in step: a
// login stores both, a logout forgets both.
type credentials struct {
	tokens *api.TokenStore
	jar    *api.PersistentJar
}

func (c credentials) Set(ctx context.Context, token string) error {
	if err := c.tokens.Set(ctx, token); err != nil {
		return err
	}
	return c.jar.Save(ctx)
}

func (c credentials) Clear(ctx context.Context) error {
	if err := c.tokens.Clear(ctx); err != nil {
		return err
	}
	return c.jar.Reset(ctx)
}
