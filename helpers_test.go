package pawtrail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pawtrail/pawtrail/credentials"
)

func makeToken(t *testing.T, id string, exp time.Time) string {
	t.Helper()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"jti": id,
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte("pipeline-test-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// fakeExchanger scripts the token exchange and counts invocations.
type fakeExchanger struct {
	cred  credentials.Credential
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (f *fakeExchanger) Exchange(ctx context.Context, _ string) (credentials.Credential, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return credentials.Credential{}, ctx.Err()
		}
	}
	if f.err != nil {
		return credentials.Credential{}, f.err
	}
	return f.cred, nil
}

// recordingTimer fires timers immediately and records the requested delays.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (rt *recordingTimer) after(d time.Duration) <-chan time.Time {
	rt.mu.Lock()
	rt.delays = append(rt.delays, d)
	rt.mu.Unlock()

	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (rt *recordingTimer) recorded() []time.Duration {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	out := make([]time.Duration, len(rt.delays))
	copy(out, rt.delays)
	return out
}

type sessionOptions struct {
	exchanger TokenExchanger
	backend   ToggleBackend
	sink      EventSink
	client    *http.Client
	seed      *credentials.Credential
	config    *Config
	after     func(time.Duration) <-chan time.Time
}

func newTestSession(t *testing.T, opts sessionOptions) *Session {
	t.Helper()

	cfg := defaultConfig()
	cfg.Refresh.URL = "http://127.0.0.1:0/refresh" // never dialed; tests inject exchangers
	if opts.config != nil {
		cfg = *opts.config
	}

	b := New().WithConfig(cfg)
	if opts.exchanger != nil {
		b = b.WithExchanger(opts.exchanger)
	}
	if opts.backend != nil {
		b = b.WithToggleBackend(opts.backend)
	}
	if opts.sink != nil {
		b = b.WithEventSink(opts.sink)
	}
	if opts.client != nil {
		b = b.WithHTTPClient(opts.client)
	}
	if opts.after != nil {
		b = b.WithClock(nil, opts.after)
	}

	s, err := b.Build()
	if err != nil {
		t.Fatalf("build session: %v", err)
	}
	t.Cleanup(s.Close)

	if opts.seed != nil {
		if err := s.Store().Set(context.Background(), *opts.seed); err != nil {
			t.Fatalf("seed credential: %v", err)
		}
	}
	return s
}

// newBearerServer accepts requests carrying the given access token and
// answers 401 to anything else.
func newBearerServer(t *testing.T, accept func() string, status int, body string) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer "+accept() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", timeout, msg)
}
