// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the boundary layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Coded errors carry a machine-readable failure code.
type Coded interface {
	error
	Code() string
}

type codenamed interface {
	RequiredCodename() string
}

var codeStatus = map[string]int{
	"unauthenticated":           http.StatusUnauthorized,
	"account_inactive":          http.StatusUnauthorized,
	"no_role_assigned":          http.StatusForbidden,
	"permission_denied":         http.StatusForbidden,
	"not_found":                 http.StatusNotFound,
	"duplicate_name":            http.StatusConflict,
	"duplicate_resource_action": http.StatusConflict,
	"duplicate_codename":        http.StatusConflict,
	"already_granted":           http.StatusConflict,
	"role_in_use":               http.StatusConflict,
	"permission_in_use":         http.StatusConflict,
	"validation":                http.StatusBadRequest,
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	var coded Coded
	if errors.As(err, &coded) {
		if status, ok := codeStatus[coded.Code()]; ok {
			return status
		}
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondError maps domain errors to HTTP responses using RFC7807.
// Internal failures never leak their detail.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	problem := ProblemDetail{Title: http.StatusText(status), Status: status}
	if status == http.StatusInternalServerError {
		problem.Code = "internal"
		JSON(w, status, problem)
		return
	}
	problem.Detail = err.Error()
	var coded Coded
	switch {
	case errors.As(err, &coded):
		problem.Code = coded.Code()
	case errors.Is(err, ErrValidation):
		problem.Code = "validation"
	case errors.Is(err, ErrNotFound):
		problem.Code = "not_found"
	}
	var named codenamed
	if errors.As(err, &named) {
		problem.Codename = named.RequiredCodename()
	}
	JSON(w, status, problem)
}
