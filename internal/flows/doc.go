// Package flows contains the decision logic behind every Engine operation: startup resolution,
// token validation, revocation checks, the federated watcher, and the credential flows.
//
// Each Run* function takes a typed dependency struct and returns a result value. Flows do not
// touch session state. The Engine applies results under its own lock and decides whether a
// result is still current.
//
// # Architecture boundaries
//
// Flows call the backend, the federated provider, the directory and the throttle only through
// the func fields of their deps. Ownership of those resources stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold session state between calls. [Watcher] holds only its subscriptions.
//   - Import goSession (to avoid import cycles).
//   - Write the session store directly. Commits go through the Engine's Commit callbacks.
package flows
