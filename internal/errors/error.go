package errors

import (
	goerrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryTransport  Category = "transport"
	CategoryAPI        Category = "api"
	CategoryDecode     Category = "decode"
	CategoryStorage    Category = "storage"
	CategoryValidation Category = "validation"
	CategoryAuth       Category = "auth"
	CategoryConfig     Category = "config"
	CategoryCLI        Category = "cli"
)

// DefaultUserMessage is shown when neither the server nor the client
// produced a more specific message.
const DefaultUserMessage = "Request failed"

// StorefrontError is a structured error carrying a code, a category and,
// for API failures, the HTTP status returned by the server.
type StorefrontError struct {
	// Code is a unique error identifier (e.g., "E002").
	Code string

	// Category is the error type (transport, api, etc.).
	Category Category

	// Message is a short description of the error. For API errors it is
	// the message supplied by the server.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Status is the HTTP status code for api errors, 0 otherwise.
	Status int

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *StorefrontError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *StorefrontError) Unwrap() error {
	return e.Wrapped
}

// Is reports whether target is a StorefrontError with the same code.
// This lets errors.Is(err, errors.New("E002")) match any API failure.
func (e *StorefrontError) Is(target error) bool {
	t, ok := target.(*StorefrontError)
	if !ok || t.Code == "" {
		return false
	}
	return t.Code == e.Code
}

// WithMessage replaces the template message.
func (e *StorefrontError) WithMessage(msg string) *StorefrontError {
	e.Message = msg
	return e
}

// WithStatus records the HTTP status of an API failure.
func (e *StorefrontError) WithStatus(status int) *StorefrontError {
	e.Status = status
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *StorefrontError) WithSuggestion(s string) *StorefrontError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *StorefrontError) WithDetail(d string) *StorefrontError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *StorefrontError) Wrap(err error) *StorefrontError {
	e.Wrapped = err
	return e
}

// New creates a StorefrontError from a registered error code.
func New(code string) *StorefrontError {
	template, ok := registry[code]
	if !ok {
		return &StorefrontError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &StorefrontError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a new StorefrontError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *StorefrontError {
	return &StorefrontError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a StorefrontError.
func FromError(err error, code string) *StorefrontError {
	if err == nil {
		return nil
	}
	var se *StorefrontError
	if goerrors.As(err, &se) {
		return se
	}
	return New(code).Wrap(err)
}

// CategoryOf returns the category of the first StorefrontError in err's
// chain, or "" when there is none.
func CategoryOf(err error) Category {
	var se *StorefrontError
	if goerrors.As(err, &se) {
		return se.Category
	}
	return ""
}

// CodeOf returns the code of the first StorefrontError in err's chain.
func CodeOf(err error) string {
	var se *StorefrontError
	if goerrors.As(err, &se) {
		return se.Code
	}
	return ""
}

// HasCategory reports whether err carries the given category.
func HasCategory(err error, c Category) bool {
	return err != nil && CategoryOf(err) == c
}

// StatusOf returns the HTTP status attached to an API failure.
func StatusOf(err error) int {
	var se *StorefrontError
	if goerrors.As(err, &se) {
		return se.Status
	}
	return 0
}

// UserMessage returns the text shown to a user for err. StorefrontErrors
// contribute their message unchanged; other errors use their Error text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *StorefrontError
	if goerrors.As(err, &se) {
		if se.Message != "" {
			return se.Message
		}
		return DefaultUserMessage
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultUserMessage
}

// Recoverable reports whether err belongs to a category that passive
// refreshes swallow instead of surfacing.
func Recoverable(err error) bool {
	switch CategoryOf(err) {
	case CategoryStorage, CategoryDecode:
		return true
	}
	return false
}
