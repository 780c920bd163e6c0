package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Closed error set produced by the lower layers (store, identity, schema)
// and matched at the route boundary. Routes never inspect message text.
var (
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("resource not found")
	ErrValidation       = errors.New("validation failed")
)

// Wrap annotates err with context while keeping it matchable via errors.Is.
func Wrap(err error, format string, v ...interface{}) error {
	return fmt.Errorf(format+": %w", append(v, err)...)
}

// Status maps an error to its HTTP status code. Unclassified errors are 500.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
