// Package federated models the external identity provider used by administrators: password
// sign-in, sign-out, and a push stream of the current identity.
//
// # Components
//
//   - [Provider]: the contract the Engine consumes.
//   - [Hub]: current-identity holder that fans changes out to [Subscription]s.
//   - [Local]: in-process provider with an argon2id credential table and signed ID tokens.
//   - [REST]: password sign-in against an identity-toolkit style HTTP endpoint.
//   - [ProviderError]: provider error codes, translated to the session taxonomy by the Engine.
//
// # Stream semantics
//
// A subscription receives the identity current at subscribe time, then every change. Slow
// consumers lose intermediate values, never the latest one. Close is idempotent.
package federated
