// Package sentry provides an event sink that forwards pawtrail session
// events to Sentry.
//
// Session invalidations and refresh failures are captured at error level,
// consistency warnings at warning level — the latter point at backend
// data-consistency defects and are the events most worth alerting on.
//
// # What this package must NOT do
//
//   - Initialize the global Sentry client implicitly — callers run
//     [Init] (or their own sentry.Init) at composition time.
//   - Block event dispatch; captures are fire-and-forget.
package sentry
