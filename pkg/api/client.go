package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenbasket/storefront/internal/errors"
)

const tracerName = "github.com/greenbasket/storefront/pkg/api"

// RequestIDHeader carries a per-request id for correlating client and
// server logs.
const RequestIDHeader = "X-Request-ID"

// TokenSource supplies the bearer token attached to each request.
// An empty token means no Authorization header.
type TokenSource interface {
	Token() string
}

// Observer is notified after every API call.
type Observer interface {
	ObserveAPICall(method, route string, status int, elapsed time.Duration, err error)
}

// Client talks to the marketplace API.
type Client struct {
	http     *resty.Client
	baseURL  string
	tokens   TokenSource
	observer Observer
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	timeout    time.Duration
	tokens     TokenSource
	observer   Observer
	logger     *slog.Logger
	httpClient *http.Client
	jar        http.CookieJar
}

// WithTimeout bounds every request. Default: 15s.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *clientConfig) {
		c.tokens = ts
	}
}

// WithObserver registers a call observer, typically metrics.
func WithObserver(o Observer) Option {
	return func(c *clientConfig) {
		c.observer = o
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = hc
	}
}

// WithCookieJar sets the jar holding the server session cookie.
// Default: a fresh in-memory jar.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *clientConfig) {
		c.jar = jar
	}
}

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) *Client {
	cfg := &clientConfig{
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	var rc *resty.Client
	if cfg.httpClient != nil {
		rc = resty.NewWithClient(cfg.httpClient)
	} else {
		rc = resty.New()
	}
	if cfg.jar == nil {
		cfg.jar, _ = cookiejar.New(nil)
	}
	rc.SetBaseURL(baseURL).
		SetTimeout(cfg.timeout).
		SetCookieJar(cfg.jar).
		SetHeader("Accept", "application/json")

	c := &Client{
		http:     rc,
		baseURL:  baseURL,
		tokens:   cfg.tokens,
		observer: cfg.observer,
		logger:   cfg.logger,
		tracer:   otel.Tracer(tracerName),
	}
	rc.OnBeforeRequest(func(_ *resty.Client, r *resty.Request) error {
		if c.tokens != nil {
			if tok := c.tokens.Token(); tok != "" {
				r.SetAuthToken(tok)
			}
		}
		if r.Header.Get(RequestIDHeader) == "" {
			r.SetHeader(RequestIDHeader, uuid.NewString())
		}
		return nil
	})
	return c
}

// BaseURL returns the API origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// validator is implemented by every response record.
type validator interface {
	validate() error
}

// do sends one request and decodes a 2xx body into out. route is the path
// template (e.g. "/api/products/{id}") used for tracing and metrics.
func (c *Client) do(ctx context.Context, method, route string, build func(*resty.Request), out validator) error {
	ctx, span := c.tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.route", route),
		),
	)
	defer span.End()

	start := time.Now()
	req := c.http.R().SetContext(ctx)
	if build != nil {
		build(req)
	}
	resp, err := req.Execute(method, route)

	status := 0
	if resp != nil {
		status = resp.StatusCode()
	}
	err = c.interpret(resp, err, out)

	span.SetAttributes(attribute.Int("http.status_code", status))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errors.UserMessage(err))
	}
	if c.observer != nil {
		c.observer.ObserveAPICall(method, route, status, time.Since(start), err)
	}
	c.logger.Debug("api call",
		"method", method,
		"route", route,
		"status", status,
		"elapsed", time.Since(start),
		"error", err,
	)
	return err
}

func (c *Client) interpret(resp *resty.Response, err error, out validator) error {
	if err != nil {
		return errors.New("E001").Wrap(err).WithDetail(err.Error())
	}
	if resp.IsError() || resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return apiError(resp.StatusCode(), resp.Body())
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.New("E003").Wrap(err).WithDetail(err.Error())
	}
	if err := out.validate(); err != nil {
		return errors.New("E003").Wrap(err).WithDetail(err.Error())
	}
	return nil
}

// ErrorBody is the error payload returned by the API.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Text returns message, else error, else the default message.
func (b ErrorBody) Text() string {
	if b.Message != "" {
		return b.Message
	}
	if b.Error != "" {
		return b.Error
	}
	return errors.DefaultUserMessage
}

func apiError(status int, body []byte) *errors.StorefrontError {
	var eb ErrorBody
	// Non-JSON error bodies (proxies, HTML error pages) fall back to the
	// default message.
	_ = json.Unmarshal(body, &eb)
	e := errors.New("E002").WithStatus(status).WithMessage(eb.Text())
	if eb.Error != "" && eb.Error != e.Message {
		e.Detail = eb.Error
	}
	return e
}
