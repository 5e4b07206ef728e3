// Package directory looks up admin accounts in an external directory that can mark them
// disabled. Lookups are read-only and keyed by normalized email.
//
// Implementations:
//
//   - [RedisDirectory]: hash per account at "<prefix>:<email>" with a "disabled" field.
//   - [HTTPDirectory]: GET <base>/admins/<email>; 404 means no record.
//   - [StaticDirectory]: in-memory table, for tests and local tooling.
//
// A missing record is [ErrNotFound]. Any other error means the directory could not be asked.
package directory
