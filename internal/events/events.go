package events

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Type identifies the kind of session event.
type Type string

const (
	// TypeSessionInvalidated marks the terminal end of the session: a
	// refresh conclusively failed or the backend kept rejecting a freshly
	// refreshed token.
	TypeSessionInvalidated Type = "session_invalidated"

	// TypeRefreshFailed records a failed token exchange.
	TypeRefreshFailed Type = "refresh_failed"

	// TypeToggleRollback records an optimistic toggle reverted because its
	// mutation failed.
	TypeToggleRollback Type = "toggle_rollback"

	// TypeConsistencyWarning records a toggle whose verification reads never
	// matched the mutation-confirmed state. Non-fatal; it points at a
	// backend data-consistency defect rather than a client bug.
	TypeConsistencyWarning Type = "consistency_warning"
)

// Event is the canonical session event model.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      Type              `json:"type"`
	EntityID  string            `json:"entity_id,omitempty"`
	Attempts  int               `json:"attempts,omitempty"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink receives emitted session events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
