// Package repositories implements SQLite persistence for login sessions and per-user client state.
//
// Key Implementations:
//   - [SessionRepository] : browser sessions bound to a Spotify account, with soft deletes
//   - [StateRepository] : keyed JSON client state scoped by owner, usable as a [state.Store]
//
// Sequence numbers provide stable, human-readable ordering (e.g., session #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
