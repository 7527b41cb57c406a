// Package credentials owns the access/refresh token pair for one
// authenticated session and the stores that persist it.
//
// Exactly one live [Credential] exists per session. It is written only by a
// successful refresh exchange or an explicit login, and cleared on logout or
// an unrecoverable refresh failure. The stores here do not serialize
// concurrent refreshes — the session's single-flight refresher is the only
// writer during normal operation, which is what makes the simple Get/Set/
// Clear contract safe.
//
// [MemoryStore] suits a single-process client. [RedisStore] lets several
// processes of a server-side consumer share one session so they do not race
// each other's refresh tokens.
//
// # What this package must NOT do
//
//   - Inspect token contents (expiry lives in package token).
//   - Talk to the authentication backend.
//   - Import the root pawtrail package (no upward imports).
package credentials
