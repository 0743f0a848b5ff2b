package gateway

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/greenbasket/storefront/internal/errors"
	"github.com/greenbasket/storefront/pkg/auth"
)

// ErrorBody is the JSON body of every failed gateway request.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps an error onto the status the browser sees. API failures
// keep the marketplace's status so a 400 "out of stock" stays a 400.
func statusFor(err error) int {
	if code, ok := auth.StatusCode(err); ok {
		return code
	}
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		if errors.CodeOf(err) == "E031" {
			return http.StatusForbidden
		}
		return http.StatusUnauthorized
	case errors.CategoryAPI:
		if s := errors.StatusOf(err); s >= 400 && s < 600 {
			return s
		}
		return http.StatusBadGateway
	case errors.CategoryTransport, errors.CategoryDecode:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// normalize turns the auth package's sentinel errors into coded errors so
// responses and toasts carry E030/E031.
func normalize(err error) error {
	if errors.CodeOf(err) != "" || !auth.IsAuthError(err) {
		return err
	}
	if stderrors.Is(err, auth.ErrForbidden) {
		return errors.New("E031").Wrap(err)
	}
	return errors.New("E030").Wrap(err)
}

func codeFor(err error) string {
	if c := errors.CodeOf(err); c != "" {
		return c
	}
	return "internal"
}

func writeError(w http.ResponseWriter, err error) {
	err = normalize(err)
	writeJSON(w, statusFor(err), ErrorBody{Error: codeFor(err), Message: errors.UserMessage(err)})
}

// badRequest builds the E021 error for malformed request input.
func badRequest(msg string) error {
	return errors.New("E021").WithMessage(msg)
}
