// Package goSession keeps one client-side authentication session consistent across two
// identity sources: a bearer-token REST backend for end users and a federated identity
// provider for administrators. An external directory can revoke federated sessions by marking
// accounts disabled.
//
// An [Engine] is built once through [Builder.Build], started with [Engine.Start], and is the
// only owner of the [Session]. Engine methods are safe to call from multiple goroutines.
//
// # Precedence
//
// A persisted apiToken session is restored first. Federated observation is the fallback and
// never displaces an active apiToken session; an explicit admin login does.
//
// # Architecture boundaries
//
// goSession is the public surface: [Engine], [Builder], [Config], [Session], [User] and the
// error taxonomy. Decision logic lives in internal/flows. Persistence lives in session,
// transport in backend, the identity provider in federated, and the disabled-account
// lookup in directory.
//
// # What this package must NOT do
//
//   - Keep package-level session state. Every session belongs to one Engine.
//   - Persist federated identities. Only apiToken sessions survive a restart.
//   - Surface background validation or directory failures to callers. They are logged and
//     audited instead.
//   - Import any sub-package that re-imports goSession (no import cycles).
package goSession
