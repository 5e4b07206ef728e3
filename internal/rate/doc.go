// Package rate throttles credential attempts per identity source and identifier using Redis
// fixed-window counters.
//
// # Window semantics
//
// INCR with an expiry set on the first hit of a window. Keys are
// "<prefix>:<source>:<identifier>", with the identifier trimmed and lowercased, so "user" and
// "admin" logins for the same address are counted separately.
//
// # What this package must NOT do
//
//   - Decide which failures count; the login flows call RecordFailure.
//   - Be imported outside the goSession module.
package rate
