package pawtrail

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// exhaustionPolicy selects what happens to local state when verification
// runs out of attempts with a persistent mismatch.
type exhaustionPolicy int

const (
	// keepConfirmed trusts the mutation's own success response over
	// repeated read inconsistency: the optimistic, mutation-confirmed
	// state stands and the mismatch is surfaced as a consistency warning
	// for out-of-band investigation.
	keepConfirmed exhaustionPolicy = iota
	// revertToRead adopts the read endpoint's last observed state after
	// exhaustion.
	revertToRead
)

// verificationExhaustionPolicy is the product decision for persistent
// verification mismatches. The read endpoint is eventually consistent and
// must never revert a confirmed mutation purely due to lag; only a failed
// mutation rolls back.
const verificationExhaustionPolicy = keepConfirmed

// toggleIntent tracks one in-flight optimistic toggle from local flip to
// confirmed, exhausted, or rolled-back resolution.
type toggleIntent struct {
	id       string
	entityID string
	expected bool
	original bool
	issuedAt time.Time
	attempt  int
}

// Reconciler applies completion-flag toggles optimistically and reconciles
// the local state map against what the server eventually reports.
//
// At most one intent is in flight per entity: a toggle for an entity with a
// pending intent is rejected with [ErrTogglePending] rather than superseded,
// so callers can debounce the triggering control via [Reconciler.Pending].
type Reconciler struct {
	session *Session
	backend ToggleBackend
	cfg     ToggleConfig

	mu      sync.Mutex
	states  map[string]bool
	intents map[string]*toggleIntent

	wg sync.WaitGroup
}

func newReconciler(s *Session, backend ToggleBackend) *Reconciler {
	return &Reconciler{
		session: s,
		backend: backend,
		cfg:     s.config.Toggle,
		states:  make(map[string]bool),
		intents: make(map[string]*toggleIntent),
	}
}

// Toggle flips the entity's completion flag: local state changes to
// !current immediately, the mutation is submitted through the session
// pipeline, and a bounded verification loop is scheduled in the background.
//
// A mutation failure rolls local state back to current and returns the
// error. A mutation success returns nil; divergence detected later never
// fails the operation (see [verificationExhaustionPolicy]).
func (r *Reconciler) Toggle(ctx context.Context, entityID string, current bool) error {
	if entityID == "" {
		return ErrEmptyEntityID
	}
	if r.session.closed.Load() {
		return ErrSessionClosed
	}

	intent := &toggleIntent{
		id:       uuid.NewString(),
		entityID: entityID,
		expected: !current,
		original: current,
		issuedAt: r.session.now(),
	}

	r.mu.Lock()
	if _, inFlight := r.intents[entityID]; inFlight {
		r.mu.Unlock()
		return ErrTogglePending
	}
	r.intents[entityID] = intent
	r.states[entityID] = intent.expected
	r.mu.Unlock()

	r.session.metrics.Inc(MetricToggleApplied)

	confirmed, err := r.backend.Submit(ctx, entityID, intent.expected)
	if err != nil {
		// Rollback: the optimistic flip is undone, the intent destroyed.
		r.mu.Lock()
		r.states[entityID] = current
		delete(r.intents, entityID)
		r.mu.Unlock()

		r.session.metrics.Inc(MetricToggleRollback)
		r.session.events.Publish(Event{
			Type:     EventToggleRollback,
			EntityID: entityID,
			Error:    err.Error(),
		})
		return fmt.Errorf("toggle %s: %w", entityID, err)
	}

	if confirmed != intent.expected {
		// The mutation response is authoritative over the optimistic guess.
		r.mu.Lock()
		r.states[entityID] = confirmed
		r.mu.Unlock()
		intent.expected = confirmed
	}

	r.wg.Add(1)
	go r.verify(intent)

	return nil
}

// verify runs the bounded verification loop for one intent. The first read
// waits one base interval to absorb read-after-write lag; after a mismatch
// the delay grows linearly.
func (r *Reconciler) verify(intent *toggleIntent) {
	defer r.wg.Done()

	var lastSeen *bool

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		mult := attempt - 1
		if mult < 1 {
			mult = 1
		}
		delay := time.Duration(mult) * r.cfg.BaseInterval

		select {
		case <-r.session.sleep(delay):
		case <-r.session.done:
			return
		}

		intent.attempt = attempt

		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.VerifyTimeout)
		state, found, err := r.backend.Fetch(ctx, intent.entityID)
		cancel()

		if err != nil {
			r.session.warnf("pawtrail: toggle verification read failed",
				"entity", intent.entityID,
				"attempt", attempt,
				"err", err,
			)
		}
		if err == nil && found {
			if state == intent.expected {
				r.session.metrics.Inc(MetricToggleConfirmed)
				r.clearIntent(intent.entityID)
				return
			}
			seen := state
			lastSeen = &seen
		}

		if attempt < r.cfg.MaxAttempts {
			r.session.metrics.Inc(MetricToggleRetry)
		}
	}

	if verificationExhaustionPolicy == revertToRead && lastSeen != nil {
		r.mu.Lock()
		r.states[intent.entityID] = *lastSeen
		r.mu.Unlock()
	}

	r.session.metrics.Inc(MetricToggleExhausted)
	r.session.events.Publish(Event{
		Type:     EventConsistencyWarning,
		EntityID: intent.entityID,
		Attempts: intent.attempt,
		Metadata: map[string]string{
			"expected_state": strconv.FormatBool(intent.expected),
			"intent_id":      intent.id,
		},
	})
	r.clearIntent(intent.entityID)
}

func (r *Reconciler) clearIntent(entityID string) {
	r.mu.Lock()
	delete(r.intents, entityID)
	r.mu.Unlock()
}

// Pending reports whether an intent is in flight for the entity, so callers
// can disable the triggering control.
func (r *Reconciler) Pending(entityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.intents[entityID]
	return ok
}

// State returns the locally known state for the entity.
func (r *Reconciler) State(entityID string) (state, known bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, known = r.states[entityID]
	return state, known
}

// States copies the shared state map.
func (r *Reconciler) States() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]bool, len(r.states))
	for id, state := range r.states {
		out[id] = state
	}
	return out
}

// Prime seeds local state from an authoritative read, e.g. after fetching
// the entity list. Entities with an in-flight intent are skipped so a stale
// list response cannot clobber an optimistic flip.
func (r *Reconciler) Prime(states map[string]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, state := range states {
		if _, inFlight := r.intents[id]; inFlight {
			continue
		}
		r.states[id] = state
	}
}

// wait blocks until all verification loops observed session shutdown.
func (r *Reconciler) wait() {
	r.wg.Wait()
}
