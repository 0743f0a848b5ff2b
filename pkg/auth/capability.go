package auth

import (
	"errors"
	"net/http"
)

// Capability names an action offered by the client.
type Capability string

const (
	CapBrowse             Capability = "browse"
	CapCheckout           Capability = "checkout"
	CapViewOrders         Capability = "orders.view"
	CapSell               Capability = "products.create"
	CapApplyAsProducer    Capability = "farmers.apply"
	CapDeliver            Capability = "delivery.manage"
	CapReviewApplications Capability = "applications.review"
)

// ErrUnauthorized is returned when authentication is required but not present.
var ErrUnauthorized = errors.New("unauthorized: authentication required")

// ErrForbidden is returned when authentication is present but insufficient.
var ErrForbidden = errors.New("forbidden: insufficient permissions")

var grants = map[Role]map[Capability]bool{
	RoleGuest: {
		CapBrowse:          true,
		CapApplyAsProducer: true,
	},
	RoleBasicUser: {
		CapBrowse:          true,
		CapCheckout:        true,
		CapViewOrders:      true,
		CapApplyAsProducer: true,
	},
	RoleProducer: {
		CapBrowse:     true,
		CapCheckout:   true,
		CapViewOrders: true,
		CapSell:       true,
	},
	RoleLogisticsOperator: {
		CapBrowse:     true,
		CapCheckout:   true,
		CapViewOrders: true,
		CapDeliver:    true,
	},
	RoleAdministrator: {
		CapBrowse:             true,
		CapCheckout:           true,
		CapViewOrders:         true,
		CapDeliver:            true,
		CapReviewApplications: true,
	},
}

// Can reports whether role r is granted c.
func Can(r Role, c Capability) bool {
	return grants[r][c]
}

// Require returns nil when r is granted c, ErrUnauthorized when a guest
// asks for something that needs a session, and ErrForbidden otherwise.
func Require(r Role, c Capability) error {
	if Can(r, c) {
		return nil
	}
	if r == RoleGuest {
		return ErrUnauthorized
	}
	return ErrForbidden
}

// StatusCode returns the HTTP status code for auth errors.
//
// Example:
//
//	if code, ok := auth.StatusCode(err); ok {
//	    w.WriteHeader(code)
//	}
func StatusCode(err error) (int, bool) {
	if err == nil {
		return 0, false
	}
	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, true
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, true
	default:
		return 0, false
	}
}

// IsAuthError returns true if the error is an authentication or authorization error.
func IsAuthError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}
