package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/auth"
	"github.com/greenbasket/storefront/pkg/signal"
)

// Identity is the part of the API the store talks to. *api.Client
// satisfies it.
type Identity interface {
	GetSession(ctx context.Context) (*api.SessionInfo, error)
	GetProfile(ctx context.Context) (*api.User, error)
	Login(ctx context.Context, cr api.Credentials) (*api.AuthResponse, error)
	Register(ctx context.Context, r api.Registration) (*api.RegisterResult, error)
	Logout(ctx context.Context) error
}

// Credentials receives the access token issued at login and is cleared at
// logout. *api.TokenStore satisfies it.
type Credentials interface {
	Set(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// Store caches the session of one browser context.
type Store struct {
	mu sync.Mutex
	// seq advances on every state change; lastOp is the seq at which the
	// most recent Login, Register or Logout began.
	seq     uint64
	lastOp  uint64
	loading bool
	current Session
	// settled is the last non-pending session, restored when a Login or
	// Register fails.
	settled Session
	// published is the seq of the value held by state. It is only touched
	// inside state.Update.
	published uint64

	identity Identity
	creds    Credentials
	logger   *slog.Logger
	state    *signal.Signal[Session]
}

// Option configures a Store.
type Option func(*Store)

// WithCredentials sets where access tokens are kept.
func WithCredentials(c Credentials) Option {
	return func(s *Store) {
		s.creds = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New creates a store in the loading state.
func New(id Identity, opts ...Option) *Store {
	initial := Session{Role: auth.RoleGuest, Status: StatusLoading}
	s := &Store{
		identity: id,
		loading:  true,
		current:  initial,
		settled:  initial,
		logger:   slog.Default(),
		state:    signal.New(initial),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Current returns the cached session.
func (s *Store) Current() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Loading reports whether the first CheckSession is still outstanding.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Can reports whether the current user's role grants c.
func (s *Store) Can(c auth.Capability) bool {
	cur := s.Current()
	role := cur.Role
	if !cur.Authenticated() {
		role = auth.RoleGuest
	}
	return auth.Can(role, c)
}

// Subscribe registers fn to be called with every new session value.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	return s.state.Subscribe(fn)
}

// Close drops all subscribers.
func (s *Store) Close() {
	s.state.Reset()
}

// CheckSession asks the server whether the cookie or token still names a
// logged-in user and caches the answer. It never fails: any error leaves
// the session unauthenticated.
func (s *Store) CheckSession(ctx context.Context) {
	s.mu.Lock()
	seq := s.seq
	s.mu.Unlock()

	next := s.resolve(ctx)

	s.mu.Lock()
	s.loading = false
	if seq != s.seq {
		s.mu.Unlock()
		s.logger.Debug("stale session check dropped")
		return
	}
	s.setLocked(next)
	seq = s.seq
	s.mu.Unlock()
	s.publish(seq, next)
}

func (s *Store) resolve(ctx context.Context) Session {
	info, err := s.identity.GetSession(ctx)
	if err != nil {
		s.logger.Debug("session check failed", "error", err)
		return anonymous()
	}
	if !info.Active() {
		return anonymous()
	}
	user, err := s.identity.GetProfile(ctx)
	if err != nil {
		s.logger.Debug("profile fetch failed", "error", err)
		return anonymous()
	}
	return fromUser(user)
}

// Login authenticates and stores the issued token. roleHint may be
// auth.RoleGuest to accept any role. On failure the session and stored
// credentials are left as they were before the attempt and the server's
// error is returned unchanged.
func (s *Store) Login(ctx context.Context, username, password string, roleHint auth.Role) (Session, error) {
	op := s.begin()
	resp, err := s.identity.Login(ctx, api.Credentials{
		Username: username,
		Password: password,
		RoleHint: roleHint,
	})
	if err != nil {
		return s.restore(op), err
	}
	next := fromUser(resp.User)
	s.finish(ctx, op, next, resp.AccessToken)
	s.logger.Info("logged in", "username", next.Username, "role", next.Role.String())
	return next, nil
}

// Register creates an account. A producer registration that carries a
// certification document is queued for review instead of logging in.
func (s *Store) Register(ctx context.Context, r api.Registration) (*RegisterResult, error) {
	op := s.begin()
	res, err := s.identity.Register(ctx, r)
	if err != nil {
		s.restore(op)
		return nil, err
	}
	if res.PendingApproval() {
		s.finish(ctx, op, anonymous(), "")
		return &RegisterResult{
			Outcome:     PendingApproval,
			Message:     res.Application.Message,
			Session:     anonymous(),
			Application: res.Application.Application,
		}, nil
	}
	next := fromUser(res.Auth.User)
	s.finish(ctx, op, next, res.Auth.AccessToken)
	return &RegisterResult{
		Outcome: Registered,
		Message: res.Auth.Message,
		Session: next,
	}, nil
}

// Logout ends the server session and then clears the cached session and
// stored token whatever the server said. The returned error is the
// server's, for logging; the local state is cleared either way.
func (s *Store) Logout(ctx context.Context) error {
	op := s.begin()
	err := s.identity.Logout(ctx)
	if err != nil {
		s.logger.Warn("logout request failed", "error", err)
	}
	s.finish(ctx, op, anonymous(), "")
	return err
}

// begin starts a Login, Register or Logout and marks the session pending.
func (s *Store) begin() uint64 {
	s.mu.Lock()
	next := s.current
	next.Status = StatusPending
	s.setLocked(next)
	s.lastOp = s.seq
	op := s.lastOp
	s.mu.Unlock()
	s.publish(op, next)
	return op
}

// finish applies the result of the operation begun at op, unless a newer
// operation has begun since.
func (s *Store) finish(ctx context.Context, op uint64, next Session, token string) {
	s.mu.Lock()
	if op != s.lastOp {
		s.mu.Unlock()
		s.logger.Debug("stale session result dropped", "username", next.Username)
		return
	}
	if s.creds != nil {
		var err error
		if next.Authenticated() && token != "" {
			err = s.creds.Set(ctx, token)
		} else if !next.Authenticated() {
			err = s.creds.Clear(ctx)
		}
		if err != nil {
			s.logger.Warn("credential storage failed", "error", err)
		}
	}
	s.setLocked(next)
	seq := s.seq
	s.mu.Unlock()
	s.publish(seq, next)
}

// restore puts back the session that was settled before the failed
// operation begun at op. Credentials are not touched. A store that was
// still loading becomes unauthenticated.
func (s *Store) restore(op uint64) Session {
	s.mu.Lock()
	prev := s.settled
	if prev.Status == StatusLoading {
		prev = anonymous()
	}
	if op != s.lastOp {
		cur := s.current
		s.mu.Unlock()
		s.logger.Debug("stale session failure dropped")
		return cur
	}
	s.setLocked(prev)
	seq := s.seq
	s.mu.Unlock()
	s.publish(seq, prev)
	return prev
}

func (s *Store) setLocked(next Session) {
	s.seq++
	s.current = next
	if next.Status != StatusPending {
		s.settled = next
	}
}

// publish hands the value applied at seq to the signal outside the store
// lock so subscribers may read the store. A value older than the one the
// signal already holds is dropped, so the signal always ends on the newest
// session even when two operations publish at once.
func (s *Store) publish(seq uint64, v Session) {
	s.state.Update(func(old Session) Session {
		if seq < s.published {
			return old
		}
		s.published = seq
		return v
	})
}
