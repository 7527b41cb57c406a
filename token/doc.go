// Package token inspects access tokens on the client side without verifying
// signatures.
//
// The client never holds signing keys; it only needs to know whether the
// access token it is about to attach to a request is still usable. Valid
// decodes the expiry claim locally (no network I/O) so the pipeline can
// refresh proactively instead of burning a round-trip on a request that is
// guaranteed to be rejected.
//
// # What this package must NOT do
//
//   - Verify signatures or accept/reject tokens on cryptographic grounds —
//     that is the server's job.
//   - Treat malformed tokens differently from expired ones. Both answer
//     "can I use this?" with no, and callers must not be able to tell them
//     apart.
//   - Panic on arbitrary input.
package token
