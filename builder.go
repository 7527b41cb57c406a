package pawtrail

import (
	"errors"
	"net/http"
	"time"

	"github.com/pawtrail/pawtrail/credentials"
	"github.com/pawtrail/pawtrail/internal/events"
)

// Builder assembles a [Session]. Construction is allocation-only: no I/O
// happens until the session is used.
type Builder struct {
	config Config

	httpClient *http.Client
	store      credentials.Store
	exchanger  TokenExchanger
	backend    ToggleBackend
	sink       EventSink
	warn       func(msg string, args ...any)
	now        func() time.Time
	after      func(d time.Duration) <-chan time.Time

	built bool
}

// New returns a builder carrying the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithHTTPClient sets the underlying transport. Defaults to a plain
// http.Client; the pipeline adds no timeout policy beyond the transport's.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithStore sets the credential store. Defaults to an in-memory store.
func (b *Builder) WithStore(store credentials.Store) *Builder {
	b.store = store
	return b
}

// WithExchanger replaces the default HTTP token exchanger. When set,
// Config.Refresh.URL is not required.
func (b *Builder) WithExchanger(ex TokenExchanger) *Builder {
	b.exchanger = ex
	return b
}

// WithToggleBackend enables the optimistic toggle reconciler.
func (b *Builder) WithToggleBackend(backend ToggleBackend) *Builder {
	b.backend = backend
	return b
}

// WithEventSink sets the sink receiving session events.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithWarnFunc installs a hook for non-fatal internal conditions, typically
// slog.Warn or a test recorder.
func (b *Builder) WithWarnFunc(warn func(msg string, args ...any)) *Builder {
	b.warn = warn
	return b
}

// WithClock overrides the wall clock and timer, enabling fake-clock tests.
// Either argument may be nil to keep the real one.
func (b *Builder) WithClock(now func() time.Time, after func(d time.Duration) <-chan time.Time) *Builder {
	b.now = now
	b.after = after
	return b
}

// Build validates the configuration and wires the session together.
func (b *Builder) Build() (*Session, error) {
	if b.built {
		return nil, ErrBuilderReused
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.exchanger == nil && cfg.Refresh.URL == "" {
		return nil, errors.New("refresh url or custom exchanger required")
	}

	client := b.httpClient
	if client == nil {
		client = &http.Client{}
	}
	store := b.store
	if store == nil {
		store = credentials.NewMemoryStore()
	}

	s := &Session{
		config: cfg,
		client: client,
		store:  store,
		warn:   b.warn,
		now:    b.now,
		after:  b.after,
		done:   make(chan struct{}),
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.after == nil {
		s.after = time.After
	}

	s.metrics = NewMetrics(cfg.Metrics)

	sink := b.sink
	if !cfg.Events.Enabled {
		sink = events.NoOpSink{}
	}
	s.events = events.NewDispatcher(sink, cfg.Events.BufferSize)

	s.signal = newInvalidationBroadcast()

	s.exchanger = b.exchanger
	if s.exchanger == nil {
		s.exchanger = newHTTPExchanger(client, cfg)
	}
	s.refresher = newRefresher(s)

	if b.backend != nil {
		s.toggles = newReconciler(s, b.backend)
	}

	b.built = true
	return s, nil
}
