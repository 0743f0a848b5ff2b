package session

import (
	"github.com/greenbasket/storefront/pkg/api"
	"github.com/greenbasket/storefront/pkg/auth"
)

// Status is where a Store is in its lifecycle.
type Status string

const (
	// StatusLoading is the state before the first CheckSession resolves.
	StatusLoading Status = "loading"
	// StatusUnauthenticated means no user is logged in.
	StatusUnauthenticated Status = "unauthenticated"
	// StatusPending means a login or registration is in flight.
	StatusPending Status = "pending"
	// StatusAuthenticated means a user is logged in.
	StatusAuthenticated Status = "authenticated"
)

// Session is the cached identity of the current user.
type Session struct {
	UserID   int64     `json:"user_id,omitempty"`
	Username string    `json:"username,omitempty"`
	Email    string    `json:"email,omitempty"`
	Role     auth.Role `json:"role"`
	Active   bool      `json:"is_active"`
	Status   Status    `json:"status"`
}

// Authenticated reports whether a user is logged in.
func (s Session) Authenticated() bool {
	return s.Status == StatusAuthenticated && s.UserID != 0
}

func fromUser(u *api.User) Session {
	return Session{
		UserID:   u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
		Active:   u.Active,
		Status:   StatusAuthenticated,
	}
}

func anonymous() Session {
	return Session{Role: auth.RoleGuest, Status: StatusUnauthenticated}
}

// Outcome says how a registration ended.
type Outcome int

const (
	// Registered means the account was created and the user is logged in.
	Registered Outcome = iota
	// PendingApproval means a producer application was queued for review.
	PendingApproval
)

func (o Outcome) String() string {
	if o == PendingApproval {
		return "pending_approval"
	}
	return "registered"
}

// RegisterResult is returned by Store.Register.
type RegisterResult struct {
	Outcome Outcome
	Message string
	// Session is set when Outcome is Registered.
	Session Session
	// Application is set when Outcome is PendingApproval.
	Application *api.Application
}
