package gateway

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"

	"github.com/greenbasket/storefront/pkg/app"
	"github.com/greenbasket/storefront/pkg/cart"
	"github.com/greenbasket/storefront/pkg/middleware"
	"github.com/greenbasket/storefront/pkg/session"
	"github.com/greenbasket/storefront/pkg/storage"
)

const (
	// CookieName is the name of the browser-context cookie.
	CookieName = "storefront"
	contextKey = "ctx"
)

// Options configures a Server.
type Options struct {
	// Addr is the listen address for ListenAndServe.
	Addr string

	// BaseURL is the marketplace API origin.
	BaseURL string

	// APITimeout bounds each API call.
	APITimeout time.Duration

	// Storage is the shared backend. Each browser context sees it through
	// WithPrefix under "ctx:<id>:". Default: an in-memory store.
	Storage storage.Storage

	// SessionSecret signs the context cookie. An empty secret generates a
	// random one, so contexts do not survive a restart.
	SessionSecret string

	// SecureCookie sets the Secure flag on the context cookie.
	SecureCookie bool

	// Registry configures context lifetime.
	Registry RegistryConfig

	// AllowedOrigins lists origins accepted on /ws. Empty means same
	// origin only.
	AllowedOrigins []string

	// Metrics, when set, instruments the router and serves /metrics.
	Metrics *middleware.Metrics

	// Tracing enables the OpenTelemetry middleware.
	Tracing bool

	// HTTPClient replaces the API client's transport.
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Server is the browser-facing gateway. It holds one App per browser
// context and exposes it as JSON routes plus a websocket state stream.
type Server struct {
	opts     Options
	router   chi.Router
	cookies  *sessions.CookieStore
	contexts *registry
	upgrader websocket.Upgrader
	logger   *slog.Logger
	httpSrv  *http.Server
}

// New creates a gateway.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Storage == nil {
		opts.Storage = storage.NewMemoryStore()
	}
	secret := opts.SessionSecret
	if secret == "" {
		secret = uuid.NewString() + uuid.NewString()
		opts.Logger.Warn("gateway session secret not set; using a random one")
	}

	cookies := sessions.NewCookieStore([]byte(secret))
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 30,
		HttpOnly: true,
		Secure:   opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		opts:    opts,
		cookies: cookies,
		logger:  opts.Logger.With("component", "gateway"),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.contexts = newRegistry(opts.Registry, s.logger, func(*browserContext) {
		if opts.Metrics != nil {
			opts.Metrics.RecordContextClose()
		}
	})
	s.router = s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on opts.Addr until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("gateway listening", "addr", s.opts.Addr, "api", s.opts.BaseURL)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown", "error", err)
	}
	return s.Close(shutdownCtx)
}

// Close tears down every browser context and closes the shared storage.
func (s *Server) Close(ctx context.Context) error {
	err := s.contexts.Shutdown(ctx)
	if cerr := s.opts.Storage.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if len(s.opts.AllowedOrigins) == 0 {
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
	for _, o := range s.opts.AllowedOrigins {
		if o == "*" || o == origin {
			return true
		}
	}
	return false
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(s.logger))
	if s.opts.Tracing {
		r.Use(middleware.Tracing(
			middleware.WithTracerName("storefront-gateway"),
			middleware.WithRequestFilter(func(r *http.Request) bool {
				return r.URL.Path != "/healthz" && r.URL.Path != "/metrics"
			}),
		))
	}
	if s.opts.Metrics != nil {
		r.Use(s.opts.Metrics.Instrument)
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "contexts": s.contexts.Len()})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.withContext)

		r.Get("/ws", s.handleWebSocket)
		r.Route("/api", func(r chi.Router) {
			r.Get("/state", s.handleState)

			r.Post("/cart/items", s.handleAddItem)
			r.Patch("/cart/items/{id}", s.handleUpdateItem)
			r.Delete("/cart/items/{id}", s.handleRemoveItem)
			r.Delete("/cart", s.handleClearCart)
			r.With(s.require(capCheckout)).Post("/checkout", s.handleCheckout)
			r.With(s.require(capViewOrders)).Get("/orders", s.handleOrders)

			r.Get("/products/search", s.handleSearch)
			r.Get("/products/{id}", s.handleProduct)
			r.With(s.require(capSell)).Post("/products", s.handleCreateProduct)

			r.Post("/session/login", s.handleLogin)
			r.Post("/session/register", s.handleRegister)
			r.Post("/session/logout", s.handleLogout)
			r.Post("/session/check", s.handleCheck)

			r.Route("/admin/applications", func(r chi.Router) {
				r.Use(s.require(capReview))
				r.Get("/", s.handleApplications)
				r.Get("/stats", s.handleApplicationStats)
				r.Post("/{id}/approve", s.handleApprove)
				r.Post("/{id}/deny", s.handleDeny)
			})

			r.Route("/delivery/packages", func(r chi.Router) {
				r.Use(s.require(capDeliver))
				r.Get("/", s.handlePackages)
				r.Put("/{id}/status", s.handlePackageStatus)
			})
		})
	})
	return r
}

type ctxKey struct{}

func contextFrom(r *http.Request) *browserContext {
	bc, _ := r.Context().Value(ctxKey{}).(*browserContext)
	return bc
}

// withContext resolves the browser context named by the cookie, creating
// one (and the cookie) when there is none or it has been torn down.
func (s *Server) withContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := s.cookies.Get(r, CookieName)
		id, _ := sess.Values[contextKey].(string)

		var bc *browserContext
		if id != "" {
			bc = s.contexts.Get(id)
		}
		if bc == nil {
			if id == "" {
				id = uuid.NewString()
				sess.Values[contextKey] = id
				if err := sess.Save(r, w); err != nil {
					s.logger.Warn("saving context cookie failed", "error", err)
				}
			}
			var err error
			bc, err = s.openContext(r.Context(), id)
			if err != nil {
				writeError(w, err)
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, bc)))
	})
}

// openContext builds the App for id on the shared storage and runs its
// first session check. A context whose id was seen before picks up the
// cart, token and cookies it persisted.
func (s *Server) openContext(ctx context.Context, id string) (*browserContext, error) {
	m := s.opts.Metrics
	var h *hub
	appOpts := app.Options{
		BaseURL:    s.opts.BaseURL,
		Timeout:    s.opts.APITimeout,
		Storage:    storage.WithPrefix(s.opts.Storage, "ctx:"+id+":"),
		HTTPClient: s.opts.HTTPClient,
		Logger:     s.logger.With("context_id", id),
	}
	if m != nil {
		appOpts.Observer = m
		appOpts.OnPersistError = m.RecordPersistFailure
		h = newHub(m.RecordWebSocketError)
	} else {
		h = newHub(nil)
	}
	a, err := app.New(ctx, appOpts)
	if err != nil {
		return nil, err
	}
	a.Init(ctx)

	bc := &browserContext{ID: id, App: a, CreatedAt: time.Now(), hub: h}
	push := func() { h.broadcast(Frame{Type: FrameState, Data: stateOf(bc)}) }
	bc.unsub = []func(){
		a.Cart.Subscribe(func(cart.Snapshot) { push() }),
		a.Session.Subscribe(func(session.Session) { push() }),
	}

	added, err := s.contexts.Add(bc)
	if err != nil {
		return nil, err
	}
	if added == bc && m != nil {
		m.RecordContextOpen()
	}
	s.logger.Debug("context opened", "context_id", id, "authenticated", a.Session.Current().Authenticated())
	return added, nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	bc := contextFrom(r)
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	c, ok := bc.hub.attach(conn, Frame{Type: FrameState, Data: stateOf(bc)})
	if !ok {
		conn.Close()
		return
	}
	if m := s.opts.Metrics; m != nil {
		m.RecordWebSocketOpen()
		defer m.RecordWebSocketClose()
	}
	bc.hub.readPump(c)
}
