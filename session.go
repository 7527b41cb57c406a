package pawtrail

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pawtrail/pawtrail/credentials"
	"github.com/pawtrail/pawtrail/internal/events"
)

// Session is the dependency-injected context every API call flows through.
// It owns the credential store access, the single-flight refresher, the
// request pipeline, the optimistic toggle reconciler, and the invalidation
// broadcast.
//
// Sessions are built once through [Builder.Build] and are safe for
// concurrent use afterwards. A session invalidates itself terminally when a
// refresh conclusively fails; from then on every call fails with [ErrAuth]
// until the caller re-authenticates and seeds the store again.
type Session struct {
	config    Config
	client    *http.Client
	store     credentials.Store
	exchanger TokenExchanger
	refresher *refresher
	toggles   *Reconciler
	events    *events.Dispatcher
	metrics   *Metrics
	signal    *invalidationBroadcast
	warn      func(msg string, args ...any)
	now       func() time.Time
	after     func(d time.Duration) <-chan time.Time

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Store exposes the credential store so login/logout flows outside the
// pipeline can seed or drop the credential.
func (s *Session) Store() credentials.Store {
	return s.store
}

// Toggles returns the optimistic toggle reconciler, or nil when the session
// was built without a [ToggleBackend].
func (s *Session) Toggles() *Reconciler {
	return s.toggles
}

// SubscribeInvalidation registers a subscriber for the session invalidation
// signal. The returned channel receives at most one pending notification at
// a time; delivery never blocks the pipeline. Subscribe at composition
// time, before issuing requests.
func (s *Session) SubscribeInvalidation() <-chan struct{} {
	return s.signal.subscribe()
}

// MetricsSnapshot copies the session counters.
func (s *Session) MetricsSnapshot() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// EventsDropped reports how many events were discarded due to a full
// dispatch buffer.
func (s *Session) EventsDropped() uint64 {
	return s.events.Dropped()
}

// Close cancels outstanding verification loops and drains the event
// dispatcher. In-flight HTTP calls are not interrupted; cancel their
// contexts for that.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.done)
		if s.toggles != nil {
			s.toggles.wait()
		}
		s.events.Close()
	})
}

// invalidate ends the session: the credential is cleared, the invalidation
// signal broadcast, and the event recorded. Each terminal failure publishes
// exactly once; separate failures are not deduplicated.
func (s *Session) invalidate(ctx context.Context, reason error) {
	if err := s.store.Clear(ctx); err != nil {
		s.warnf("pawtrail: credential clear failed", "err", err)
	}
	s.metrics.Inc(MetricSessionInvalidated)

	ev := Event{Type: EventSessionInvalidated}
	if reason != nil {
		ev.Error = reason.Error()
	}
	s.events.Publish(ev)
	s.signal.publish()
}

// sleep returns a channel firing after d, through the injected timer so
// tests run verification schedules without real waits.
func (s *Session) sleep(d time.Duration) <-chan time.Time {
	return s.after(d)
}

func (s *Session) warnf(msg string, args ...any) {
	if s.warn != nil {
		s.warn(msg, args...)
	}
}
