package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	pawtrail "github.com/pawtrail/pawtrail"
)

// Init configures the global Sentry client. An empty dsn disables
// reporting without error so the sink can stay wired in all environments.
func Init(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// Flush drains buffered Sentry events, typically deferred in main.
func Flush() {
	sentry.Flush(2 * time.Second)
}

// Sink forwards session events to Sentry.
type Sink struct {
	hub *sentry.Hub
}

// NewSink returns a sink reporting through the current global hub.
func NewSink() *Sink {
	return &Sink{hub: sentry.CurrentHub()}
}

// NewSinkFromHub returns a sink reporting through hub, for callers that
// scope Sentry state per session.
func NewSinkFromHub(hub *sentry.Hub) *Sink {
	return &Sink{hub: hub}
}

// Emit implements the pawtrail event sink contract.
func (s *Sink) Emit(_ context.Context, ev pawtrail.Event) {
	if s == nil || s.hub == nil {
		return
	}

	level := sentry.LevelError
	if ev.Type == pawtrail.EventConsistencyWarning {
		level = sentry.LevelWarning
	}

	extra := map[string]any{}
	if ev.EntityID != "" {
		extra["entity_id"] = ev.EntityID
	}
	if ev.Attempts > 0 {
		extra["attempts"] = ev.Attempts
	}
	if ev.Error != "" {
		extra["error"] = ev.Error
	}
	for k, v := range ev.Metadata {
		extra[k] = v
	}

	s.hub.CaptureEvent(&sentry.Event{
		Message:   string(ev.Type),
		Level:     level,
		Timestamp: ev.Timestamp,
		Extra:     extra,
	})
}
