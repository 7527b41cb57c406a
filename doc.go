// Package pawtrail is the authenticated request pipeline and optimistic
// state reconciler used by PawTrail API clients.
//
// Every outbound API call flows through a [Session]: pre-flight token
// validation, transparent refresh (proactive on expiry, reactive on a 401,
// bounded to one retry), and header injection. The refresher is
// single-flight — concurrent requests that observe an invalid credential
// converge on one token exchange and share its outcome, so overlapping
// calls can never race each other into conflicting refresh attempts.
//
// Idempotent completion-flag updates go through the [Reconciler]: local
// state flips immediately, the mutation is submitted through the pipeline,
// and a bounded, delayed verification loop detects divergence between the
// optimistic state and what the server eventually reports. The backend's
// read side is treated as eventually consistent: repeated read mismatch is
// surfaced as a consistency warning, never as a reverted mutation.
//
// The package is designed for concurrent client workloads: Session methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// pawtrail is the public surface. It exposes [Session], [Builder],
// [Config], [Reconciler], and value types (MetricsSnapshot, Event, etc.).
// Token inspection lives in package token, credential persistence in
// package credentials, event dispatch under internal/.
//
// # What this package must NOT do
//
//   - Interpret business payloads — endpoint clients own request/response
//     shapes; the pipeline treats them as opaque.
//   - Retry non-auth failures. That policy belongs to callers.
//   - Hold global mutable state. Everything hangs off an explicitly
//     constructed Session, so tests run with fake transports and fake
//     clocks.
package pawtrail
