package pawtrail

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pawtrail/pawtrail/credentials"
)

func TestPreflightRefreshBeforeNetwork(t *testing.T) {
	now := time.Now()
	oldAccess := makeToken(t, "old", now.Add(-time.Minute))
	newAccess := makeToken(t, "new", now.Add(time.Hour))

	exchanger := &fakeExchanger{
		cred: credentials.Credential{AccessToken: newAccess, RefreshToken: "ref-new"},
	}
	srv, hits := newBearerServer(t, func() string { return newAccess }, http.StatusOK, `{}`)

	s := newTestSession(t, sessionOptions{
		exchanger: exchanger,
		seed:      &credentials.Credential{AccessToken: oldAccess, RefreshToken: "ref-old"},
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	discard(resp)

	// The expired token never reached the wire: one request, already
	// carrying the refreshed token.
	if got := hits.Load(); got != 1 {
		t.Fatalf("expected 1 backend hit, got %d", got)
	}
	if got := exchanger.calls.Load(); got != 1 {
		t.Fatalf("expected 1 exchange, got %d", got)
	}
	if got := s.metrics.Value(MetricPreflightRefresh); got != 1 {
		t.Fatalf("expected 1 pre-flight refresh, got %d", got)
	}
}

func TestReactive401RetryOnce(t *testing.T) {
	now := time.Now()
	// Valid by local expiry but rejected by the server: revoked remotely.
	revoked := makeToken(t, "revoked", now.Add(time.Hour))
	fresh := makeToken(t, "fresh", now.Add(time.Hour))

	exchanger := &fakeExchanger{
		cred: credentials.Credential{AccessToken: fresh, RefreshToken: "ref-new"},
	}
	srv, hits := newBearerServer(t, func() string { return fresh }, http.StatusOK, `{"ok":true}`)

	s := newTestSession(t, sessionOptions{
		exchanger: exchanger,
		seed:      &credentials.Credential{AccessToken: revoked, RefreshToken: "ref-old"},
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	discard(resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 after retry, got %d", resp.StatusCode)
	}

	if got := hits.Load(); got != 2 {
		t.Fatalf("expected 401 then retry (2 hits), got %d", got)
	}
	if got := s.metrics.Value(MetricReactiveRefresh); got != 1 {
		t.Fatalf("expected 1 reactive refresh, got %d", got)
	}

	// No credential left stale: the retried token is the stored one.
	cred, err := s.Store().Get(context.Background())
	if err != nil {
		t.Fatalf("store read failed: %v", err)
	}
	if cred.AccessToken != fresh {
		t.Fatalf("stale credential in store: %+v", cred)
	}
}

func TestDouble401FailsWithOneSignal(t *testing.T) {
	now := time.Now()
	revoked := makeToken(t, "revoked", now.Add(time.Hour))
	fresh := makeToken(t, "fresh", now.Add(time.Hour))

	exchanger := &fakeExchanger{
		cred: credentials.Credential{AccessToken: fresh, RefreshToken: "ref-new"},
	}

	// A permanently rejecting backend: 401 regardless of token.
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	sink := NewChannelSink(8)
	s := newTestSession(t, sessionOptions{
		exchanger: exchanger,
		sink:      sink,
		seed:      &credentials.Credential{AccessToken: revoked, RefreshToken: "ref-old"},
	})
	invalidated := s.SubscribeInvalidation()

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	_, err := s.Do(req)
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected ErrAuth, got %v", err)
	}

	// Bounded to one reactive retry: no infinite 401 loop.
	if got := hits.Load(); got != 2 {
		t.Fatalf("expected exactly 2 hits, got %d", got)
	}
	if got := exchanger.calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 refresh, got %d", got)
	}

	select {
	case <-invalidated:
	case <-time.After(time.Second):
		t.Fatal("invalidation signal not published")
	}
	if got := s.metrics.Value(MetricSessionInvalidated); got != 1 {
		t.Fatalf("expected exactly one invalidation, got %d", got)
	}

	if _, err := s.Store().Get(context.Background()); !errors.Is(err, credentials.ErrNotFound) {
		t.Fatalf("expected cleared store, got %v", err)
	}
}

func TestNonAuthStatusReturnedVerbatim(t *testing.T) {
	access := makeToken(t, "ok", time.Now().Add(time.Hour))
	exchanger := &fakeExchanger{}

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	s := newTestSession(t, sessionOptions{
		exchanger: exchanger,
		seed:      &credentials.Credential{AccessToken: access, RefreshToken: "ref"},
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("expected response, got error %v", err)
	}
	discard(resp)

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 passed through, got %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("pipeline must not retry non-auth failures; hits=%d", got)
	}
	if got := exchanger.calls.Load(); got != 0 {
		t.Fatalf("non-auth status must not trigger refresh; exchanges=%d", got)
	}
}

func TestHeadersInjected(t *testing.T) {
	access := makeToken(t, "hdr", time.Now().Add(time.Hour))

	var gotAuth, gotRefresh, gotCorr string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRefresh = r.Header.Get("X-Refresh-Token")
		gotCorr = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	s := newTestSession(t, sessionOptions{
		exchanger: &fakeExchanger{},
		seed:      &credentials.Credential{AccessToken: access, RefreshToken: "ref-h"},
	})

	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	discard(resp)

	if gotAuth != "Bearer "+access {
		t.Fatalf("access header not injected: %q", gotAuth)
	}
	if gotRefresh != "ref-h" {
		t.Fatalf("refresh header not injected: %q", gotRefresh)
	}
	if gotCorr == "" {
		t.Fatal("correlation header not injected")
	}
	// The caller's request must never be mutated.
	if req.Header.Get("Authorization") != "" {
		t.Fatal("caller request mutated")
	}
}

func TestNonReplayableBodyNotRetried(t *testing.T) {
	access := makeToken(t, "body", time.Now().Add(time.Hour))

	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	s := newTestSession(t, sessionOptions{
		exchanger: &fakeExchanger{},
		seed:      &credentials.Credential{AccessToken: access, RefreshToken: "ref"},
	})

	req, _ := http.NewRequest(http.MethodPost, srv.URL, io.NopCloser(strings.NewReader("one-shot")))
	req.GetBody = nil

	resp, err := s.Do(req)
	if err != nil {
		t.Fatalf("expected the 401 response back, got error %v", err)
	}
	discard(resp)

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 surfaced as-is, got %d", resp.StatusCode)
	}
	if got := hits.Load(); got != 1 {
		t.Fatalf("one-shot body must not be replayed; hits=%d", got)
	}
}

func TestDoJSON(t *testing.T) {
	access := makeToken(t, "json", time.Now().Add(time.Hour))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"w1","done":true}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/garbled":
			_, _ = w.Write([]byte(`{"id":`))
		}
	}))
	t.Cleanup(srv.Close)

	s := newTestSession(t, sessionOptions{
		exchanger: &fakeExchanger{},
		seed:      &credentials.Credential{AccessToken: access, RefreshToken: "ref"},
	})

	var out struct {
		ID   string `json:"id"`
		Done bool   `json:"done"`
	}
	if err := s.DoJSON(context.Background(), http.MethodGet, srv.URL+"/ok", nil, &out); err != nil {
		t.Fatalf("DoJSON failed: %v", err)
	}
	if out.ID != "w1" || !out.Done {
		t.Fatalf("decoded payload mismatch: %+v", out)
	}

	err := s.DoJSON(context.Background(), http.MethodGet, srv.URL+"/missing", nil, &out)
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Status != http.StatusNotFound {
		t.Fatalf("expected HTTPError{404}, got %v", err)
	}
	if httpErr.Retryable() {
		t.Fatal("404 must not be reported retryable")
	}

	err = s.DoJSON(context.Background(), http.MethodGet, srv.URL+"/garbled", nil, &out)
	if !errors.Is(err, ErrDecoding) {
		t.Fatalf("expected ErrDecoding, got %v", err)
	}
}

func TestDoAfterClose(t *testing.T) {
	s := newTestSession(t, sessionOptions{exchanger: &fakeExchanger{}})
	s.Close()

	req, _ := http.NewRequest(http.MethodGet, "http://127.0.0.1:0/", nil)
	if _, err := s.Do(req); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}
