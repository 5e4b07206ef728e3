// Package audit delivers session audit events (logins, silent clears, revocations) to sinks
// off the caller's goroutine.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, slog, no-op).
//   - [Dispatcher]: buffered async relay; drop-if-full or block-if-full.
//   - [Event]: one record: uuid id, timestamp, type, session source, subject, outcome.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. The Engine and flow functions decide which
// events to emit.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on session state.
//   - Import goSession or any sibling internal package.
package audit
