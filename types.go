package pawtrail

import (
	"context"
	"io"

	"github.com/pawtrail/pawtrail/credentials"
	"github.com/pawtrail/pawtrail/internal/events"
)

// Credential is the access/refresh token pair. See [credentials.Credential].
type Credential = credentials.Credential

// TokenExchanger performs the network call that trades a refresh token for
// a new credential pair. The session installs an HTTP implementation by
// default; tests and non-HTTP transports inject their own.
//
// Exchange is invoked by at most one goroutine at a time — the session's
// single-flight refresher serializes it.
type TokenExchanger interface {
	Exchange(ctx context.Context, refreshToken string) (credentials.Credential, error)
}

// ToggleBackend submits completion-flag mutations and reads back
// authoritative state. Implementations issue their calls through the
// session's pipeline so they inherit credential handling.
type ToggleBackend interface {
	// Submit applies the toggle mutation and returns the authoritative
	// state the server committed.
	Submit(ctx context.Context, entityID string, state bool) (bool, error)

	// Fetch reads the entity's current state. found is false when the
	// entity is absent from the read's result set, which the reconciler
	// treats the same as a mismatch.
	Fetch(ctx context.Context, entityID string) (state bool, found bool, err error)
}

// Event is a structured observability record emitted by the session.
type Event = events.Event

// EventType identifies the kind of session event.
type EventType = events.Type

const (
	// EventSessionInvalidated marks the terminal end of the session.
	EventSessionInvalidated = events.TypeSessionInvalidated
	// EventRefreshFailed records a failed token exchange.
	EventRefreshFailed = events.TypeRefreshFailed
	// EventToggleRollback records a reverted optimistic toggle.
	EventToggleRollback = events.TypeToggleRollback
	// EventConsistencyWarning records a toggle whose verification reads
	// never matched the mutation-confirmed state.
	EventConsistencyWarning = events.TypeConsistencyWarning
)

// EventSink receives [Event] values from the session's dispatcher.
type EventSink = events.Sink

// NoOpSink is an [EventSink] that silently discards all events.
type NoOpSink = events.NoOpSink

// ChannelSink is a buffered channel-based [EventSink].
type ChannelSink = events.ChannelSink

// JSONWriterSink is an [EventSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = events.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return events.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return events.NewJSONWriterSink(w)
}
