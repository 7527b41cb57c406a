package pawtrail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/pawtrail/pawtrail/credentials"
	"github.com/pawtrail/pawtrail/token"
)

// Do executes req through the authenticated pipeline:
//
//  1. Pre-flight: the stored access token is checked locally; an expired,
//     expiring, or missing token triggers a refresh before any network
//     round-trip. A failed refresh fails the call with [ErrAuth].
//  2. The access and refresh tokens are injected as headers on a clone of
//     req; the caller's request is never mutated.
//  3. On a 401 response, exactly one reactive refresh-and-retry runs with
//     the new token. A second 401 is terminal: the invalidation signal is
//     published once and the call fails with [ErrAuth].
//
// Any other status is returned verbatim for the caller to interpret; the
// pipeline performs no retries for non-auth failures. Transport errors are
// returned as-is.
//
// The reactive retry needs a replayable body: when req has a body but no
// GetBody, a 401 response is returned untouched instead of being retried.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	s.metrics.Inc(MetricRequest)

	ctx := req.Context()

	cred, err := s.store.Get(ctx)
	if err != nil && !errors.Is(err, credentials.ErrNotFound) {
		return nil, fmt.Errorf("credential store: %w", err)
	}
	if err != nil || !token.Valid(cred.AccessToken, s.now().Add(s.config.Refresh.ExpiryLeeway)) {
		s.metrics.Inc(MetricPreflightRefresh)
		cred, err = s.refresher.refresh(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: pre-flight refresh: %w", ErrAuth, err)
		}
	}

	resp, err := s.send(req, cred, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	if req.Body != nil && req.GetBody == nil {
		return resp, nil
	}
	discard(resp)

	s.metrics.Inc(MetricReactiveRefresh)
	cred, err = s.refresher.refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reactive refresh: %w", ErrAuth, err)
	}

	resp, err = s.send(req, cred, true)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		discard(resp)
		reason := errors.New("request rejected after refresh")
		s.invalidate(ctx, reason)
		return nil, fmt.Errorf("%w: %w", ErrAuth, reason)
	}
	return resp, nil
}

// DoJSON is the convenience form used by typed endpoint clients: it builds
// the request from payload, runs it through [Session.Do], maps non-2xx
// statuses to [*HTTPError], and decodes the body into out when out is
// non-nil.
func (s *Session) DoJSON(ctx context.Context, method, url string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.Do(req)
	if err != nil {
		return err
	}
	defer discard(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &HTTPError{Status: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecoding, err)
	}
	return nil
}

// send executes one attempt with the given credential injected. rewind
// re-materializes the body from GetBody for the retry attempt.
func (s *Session) send(req *http.Request, cred credentials.Credential, rewind bool) (*http.Response, error) {
	r := req.Clone(req.Context())

	if rewind && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		r.Body = body
	}

	p := s.config.Pipeline
	if cred.AccessToken != "" {
		value := cred.AccessToken
		if p.AccessScheme != "" {
			value = p.AccessScheme + " " + value
		}
		r.Header.Set(p.AccessHeader, value)
	}
	if cred.RefreshToken != "" && p.RefreshHeader != "" {
		r.Header.Set(p.RefreshHeader, cred.RefreshToken)
	}
	if p.CorrelationHeader != "" && r.Header.Get(p.CorrelationHeader) == "" {
		r.Header.Set(p.CorrelationHeader, uuid.NewString())
	}

	return s.client.Do(r)
}

// discard drains and closes a response body so the transport can reuse the
// connection.
func discard(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
