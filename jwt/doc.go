// Package jwt issues and verifies federated identity tokens and reads claims from bearer tokens
// without verifying them.
//
// # Verified path
//
// [Manager] signs ID tokens for the in-process federated provider and verifies them with the
// configured key set.
//
// # Unverified path
//
// [Peek] and [ExpiresAt] decode claims only. They are used to skip a network round-trip for a
// bearer token that has visibly expired, and to read profile claims from an ID token that the
// issuing provider already returned over TLS. Never use them to admit a session.
package jwt
