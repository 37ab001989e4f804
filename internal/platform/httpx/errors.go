// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors for the transport layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// Mapping binds a domain error to an HTTP status and problem title.
type Mapping struct {
	Err    error
	Status int
	Title  string
}

var defaultMappings = []Mapping{
	{Err: ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: ErrDuplicate, Status: http.StatusConflict, Title: "Duplicate"},
	{Err: ErrValidation, Status: http.StatusBadRequest, Title: "Validation Failed"},
	{Err: ErrForbidden, Status: http.StatusForbidden, Title: "Forbidden"},
	{Err: ErrUnauthorized, Status: http.StatusUnauthorized, Title: "Unauthorized"},
}

// RespondError maps err to an RFC7807 response. Package specific mappings
// are consulted before the defaults; unknown errors become a 500 without
// leaking the message.
func RespondError(w http.ResponseWriter, err error, mappings ...Mapping) {
	if m, ok := match(err, mappings); ok {
		Problem(w, m.Status, m.Title, err.Error())
		return
	}
	if m, ok := match(err, defaultMappings); ok {
		Problem(w, m.Status, m.Title, err.Error())
		return
	}
	Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

// StatusOf reports the status RespondError would use for err.
func StatusOf(err error, mappings ...Mapping) int {
	if m, ok := match(err, mappings); ok {
		return m.Status
	}
	if m, ok := match(err, defaultMappings); ok {
		return m.Status
	}
	return http.StatusInternalServerError
}

func match(err error, mappings []Mapping) (Mapping, bool) {
	for _, m := range mappings {
		if m.Err != nil && errors.Is(err, m.Err) {
			return m, true
		}
	}
	return Mapping{}, false
}
