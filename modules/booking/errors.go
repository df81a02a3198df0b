package booking

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/commonshall/hallbook/engine"
)

// ErrorKind buckets every failure the booking engine can produce. Callers
// branch on the kind; the message is for humans.
type ErrorKind string

const (
	ErrValidation    ErrorKind = "validation"
	ErrFormat        ErrorKind = "format"
	ErrOrdering      ErrorKind = "ordering"
	ErrInvalidHall   ErrorKind = "invalid_hall"
	ErrNoOccurrences ErrorKind = "no_occurrences"
	ErrConflict      ErrorKind = "conflict"
	ErrNotFound      ErrorKind = "not_found"
	ErrForbidden     ErrorKind = "forbidden"
	ErrNotASeries    ErrorKind = "not_a_series"

	// ErrPartialWrite means the storage layer broke the series write invariant.
	// Retrying the same call can't help - this needs an operator.
	ErrPartialWrite ErrorKind = "partial_write"
)

// Error is the typed failure returned by every operation in this package.
type Error struct {
	Kind    ErrorKind
	Message string

	// Populated when Kind == ErrConflict so callers can point at the
	// offending occurrence.
	ConflictDate      string
	ConflictRequester string

	// Populated on ErrForbidden when the row stores a hint. The hash itself
	// never leaves the server.
	SecretHint string
}

func (e *Error) Error() string { return e.Message }

func errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func conflictError(date, requester string) *Error {
	e := errorf(ErrConflict, "the requested time overlaps an existing booking")
	if date != "" {
		e.Message += " on " + date
	}
	e.ConflictDate = date
	e.ConflictRequester = requester
	return e
}

var kindStatus = map[ErrorKind]int{
	ErrValidation:    http.StatusBadRequest,
	ErrFormat:        http.StatusBadRequest,
	ErrOrdering:      http.StatusBadRequest,
	ErrNoOccurrences: http.StatusBadRequest,
	ErrInvalidHall:   http.StatusUnprocessableEntity,
	ErrNotASeries:    http.StatusUnprocessableEntity,
	ErrConflict:      http.StatusConflict,
	ErrNotFound:      http.StatusNotFound,
	ErrForbidden:     http.StatusForbidden,
	ErrPartialWrite:  http.StatusInternalServerError,
}

// errResponse maps an error onto the wire. Untyped errors become generic 500s.
func errResponse(err error) engine.Response {
	e, ok := err.(*Error)
	if !ok {
		return engine.Error(err)
	}
	if e.Kind == ErrPartialWrite {
		// Already logged at the source, but make the severity unmissable.
		slog.Error("series write invariant violated", "error", e.Message)
	}

	body := map[string]any{"error": e.Message, "kind": string(e.Kind)}
	if e.ConflictDate != "" {
		body["conflict_date"] = e.ConflictDate
	}
	if e.ConflictRequester != "" {
		body["conflict_requester"] = e.ConflictRequester
	}
	if e.SecretHint != "" {
		body["secret_hint"] = e.SecretHint
	}

	status, ok := kindStatus[e.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	return engine.JSONStatus(status, body)
}
