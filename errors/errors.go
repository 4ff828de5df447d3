// Package errors defines the error taxonomy shared by every layer.
// Services wrap these sentinels with context; the HTTP/WS edge maps
// them to client-visible responses in a single place.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidRequest covers malformed input: empty content after
	// trimming, a self-chat attempt, a backward status transition.
	ErrInvalidRequest = fmt.Errorf("invalid request")

	// ErrNotFound is returned when a referenced chat, participant or
	// message does not exist.
	ErrNotFound = fmt.Errorf("resource not found")

	// ErrForbidden is returned when the caller is not a member of the
	// chat it tries to send to or subscribe to.
	ErrForbidden = fmt.Errorf("forbidden")

	// ErrConflict is returned when a participant is already present in
	// a chat. Concurrent private-chat creation races are resolved by
	// re-reading, never surfaced to the caller.
	ErrConflict = fmt.Errorf("conflict")

	// ErrUnauthenticated is returned when identity verification fails.
	ErrUnauthenticated = fmt.Errorf("unauthenticated")

	// ErrUnavailable is returned on storage or transport failure.
	ErrUnavailable = fmt.Errorf("unavailable")

	ErrWorkerPanic = fmt.Errorf("worker panic")
)

// MapToHTTPStatus translates a service error into the status code the
// client sees. Unknown errors are treated as storage/transport failures.
func MapToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
