package pawtrail

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrAuth is returned when no valid credential could be obtained: a
	// pre-flight refresh failed, or the backend kept rejecting a freshly
	// refreshed token. The session is terminally invalid; callers are
	// expected to route to re-authentication.
	ErrAuth = errors.New("authentication failed")
	// ErrNoCredential is returned when the credential store holds no
	// refresh token to exchange.
	ErrNoCredential = errors.New("no credential available")
	// ErrDecoding is returned when a response body does not match the
	// expected shape.
	ErrDecoding = errors.New("response decoding failed")
	// ErrTogglePending is returned for a toggle request on an entity that
	// already has an intent in flight. Callers should disable the
	// triggering control while [Reconciler.Pending] reports true.
	ErrTogglePending = errors.New("toggle already in flight for entity")
	// ErrEmptyEntityID is returned for a toggle request without an entity id.
	ErrEmptyEntityID = errors.New("entity id must not be empty")
	// ErrSessionClosed is returned for operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
	// ErrBuilderReused is returned by a second Build call on the same builder.
	ErrBuilderReused = errors.New("builder already used")
)

// HTTPError is a non-2xx, non-auth HTTP status surfaced verbatim to the
// caller. The pipeline does not interpret business-level error bodies.
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected http status %d", e.Status)
}

// Retryable reports whether the status is conventionally worth a caller
// retry. The pipeline itself never retries non-auth failures; that policy
// belongs to callers.
func (e *HTTPError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}
