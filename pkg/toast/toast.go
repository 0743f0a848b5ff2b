package toast

import (
	"github.com/greenbasket/storefront/internal/errors"
)

// EventName is the event name dispatched for toasts.
const EventName = "storefront:toast"

// Type represents the toast notification type.
type Type string

const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// Emitter dispatches a named event to the user.
type Emitter interface {
	Emit(name string, data any)
}

// Toast is the payload of a toast event.
type Toast struct {
	Level       Type   `json:"level"`
	Title       string `json:"title,omitempty"`
	Message     string `json:"message"`
	ActionLabel string `json:"actionLabel,omitempty"`
	ActionID    string `json:"actionID,omitempty"`
	// Code is the storefront error code for error toasts.
	Code string `json:"code,omitempty"`
}

// Show displays a toast notification to the user.
func Show(e Emitter, level Type, message string) {
	e.Emit(EventName, Toast{Level: level, Message: message})
}

// Success shows a success toast.
//
//	toast.Success(e, "Added to cart")
func Success(e Emitter, message string) {
	Show(e, TypeSuccess, message)
}

// Error shows an error toast.
func Error(e Emitter, message string) {
	Show(e, TypeError, message)
}

// Warning shows a warning toast.
func Warning(e Emitter, message string) {
	Show(e, TypeWarning, message)
}

// Info shows an info toast.
func Info(e Emitter, message string) {
	Show(e, TypeInfo, message)
}

// WithTitle shows a toast with a title and message.
func WithTitle(e Emitter, level Type, title, message string) {
	e.Emit(EventName, Toast{Level: level, Title: title, Message: message})
}

// WithAction shows a toast with an action button.
//
//	toast.WithAction(e, toast.TypeInfo, "Item removed", "Undo", "cart.undo")
func WithAction(e Emitter, level Type, message, actionLabel, actionID string) {
	e.Emit(EventName, Toast{
		Level:       level,
		Message:     message,
		ActionLabel: actionLabel,
		ActionID:    actionID,
	})
}

// FromError builds the toast shown for a failed user action. The message
// is the server's when the error carries one.
func FromError(err error) Toast {
	t := Toast{
		Level:   TypeError,
		Message: errors.UserMessage(err),
		Code:    errors.CodeOf(err),
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryAuth:
		t.Title = "Sign in required"
		if errors.StatusOf(err) == 403 {
			t.Title = "Not allowed"
		}
	case errors.CategoryValidation:
		t.Level = TypeWarning
	case errors.CategoryTransport:
		t.Title = "Connection problem"
	}
	return t
}

// Fail shows the toast for err. A nil err shows nothing.
func Fail(e Emitter, err error) {
	if err == nil {
		return
	}
	e.Emit(EventName, FromError(err))
}
