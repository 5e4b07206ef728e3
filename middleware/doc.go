// Package middleware gates HTTP handlers of a consuming local server on the engine's current
// session.
//
// # Guards
//
//   - [Guard] admits an Active session of any listed source.
//   - [RequireSession] admits any Active session.
//   - [RequireSource] admits only one identity source.
//   - [RequireRole] admits only one user role.
//
// Each guard reads [goSession.Engine.Session] once per request and attaches that snapshot to
// the request context; handlers read it back with [SessionFromContext].
//
// # What this package must NOT do
//
//   - Call the backend, the provider, or the directory (the engine owns all I/O).
//   - Change session state.
package middleware
