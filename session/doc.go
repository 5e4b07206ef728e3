// Package session provides durable persistence of the active client session: one opaque bearer
// token paired with the cached user record it was issued for.
//
// # Stores
//
//   - [RedisStore]: two Redis keys written in one MULTI/EXEC transaction.
//   - [FileStore]: a single JSON document replaced with an atomic rename.
//   - [MemoryStore]: process-local, for tests and short-lived tools.
//
// # Consistency
//
// Writers persist the token and the user together or not at all. Readers never observe a user
// without its token. A bare token (no cached user) is a valid read result and signals that the
// caller must fetch the user before trusting the session.
//
// # Architecture boundaries
//
// This package owns the persisted [Record] and the user wire codec. It does NOT validate tokens,
// talk to the backend, or decide session state: those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import goSession, backend, or federated (no upward imports).
//   - Persist federated identities; only apiToken sessions are stored.
package session
