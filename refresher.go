package pawtrail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pawtrail/pawtrail/credentials"
)

// pendingRefresh is the shared outcome of one in-flight token exchange.
// cred and err are written before done is closed and never afterwards.
type pendingRefresh struct {
	done chan struct{}
	cred credentials.Credential
	err  error
}

// refresher serializes token exchanges. The invariant it enforces is that
// the set of in-flight exchanges has cardinality at most one: concurrent
// 401s or pre-flight checks attach to the same pending outcome instead of
// issuing parallel refresh calls that would invalidate each other's
// refresh tokens.
type refresher struct {
	session *Session

	mu      sync.Mutex // guards pending
	pending *pendingRefresh
}

func newRefresher(s *Session) *refresher {
	return &refresher{session: s}
}

// refresh returns a fresh credential, either by joining the in-flight
// exchange or by starting one. All callers that observe the same exchange
// receive the same outcome.
func (r *refresher) refresh(ctx context.Context) (credentials.Credential, error) {
	r.mu.Lock()
	if p := r.pending; p != nil {
		r.mu.Unlock()
		r.session.metrics.Inc(MetricRefreshCoalesced)
		select {
		case <-p.done:
			return p.cred, p.err
		case <-ctx.Done():
			return credentials.Credential{}, ctx.Err()
		}
	}

	p := &pendingRefresh{done: make(chan struct{})}
	r.pending = p
	r.mu.Unlock()

	// The exchange outcome is shared by every waiter, so it must not be
	// aborted by the initiating caller's context alone. Transport timeouts
	// still bound the call.
	p.cred, p.err = r.exchange(context.WithoutCancel(ctx))

	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()

	close(p.done)
	return p.cred, p.err
}

// exchange runs one refresh attempt end to end: read the stored refresh
// token, trade it in, persist the new pair. Failure is terminal for the
// session — the store is cleared and the invalidation signal published
// before any waiter is released.
func (r *refresher) exchange(ctx context.Context) (credentials.Credential, error) {
	s := r.session

	cur, err := s.store.Get(ctx)
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			err = ErrNoCredential
		}
		return credentials.Credential{}, r.fail(ctx, err)
	}
	if cur.RefreshToken == "" {
		return credentials.Credential{}, r.fail(ctx, ErrNoCredential)
	}

	next, err := s.exchanger.Exchange(ctx, cur.RefreshToken)
	if err != nil {
		return credentials.Credential{}, r.fail(ctx, fmt.Errorf("token exchange: %w", err))
	}
	if next.AccessToken == "" || next.RefreshToken == "" {
		return credentials.Credential{}, r.fail(ctx, fmt.Errorf("%w: exchange returned incomplete pair", ErrDecoding))
	}

	if err := s.store.Set(ctx, next); err != nil {
		return credentials.Credential{}, r.fail(ctx, fmt.Errorf("persist credential: %w", err))
	}

	s.metrics.Inc(MetricRefreshSuccess)
	return next, nil
}

func (r *refresher) fail(ctx context.Context, reason error) error {
	s := r.session

	s.metrics.Inc(MetricRefreshFailure)
	s.events.Publish(Event{
		Type:  EventRefreshFailed,
		Error: reason.Error(),
	})
	s.invalidate(ctx, reason)

	return reason
}
