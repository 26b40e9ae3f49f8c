// Package episode defines the episode data model, its status state machine,
// and the SQLite-backed store that persists episodes, their append-only
// generation audit trail, and reusable content templates.
//
// All status transitions funnel through Store.Transition, which validates
// edges against the state machine before touching the database. Timestamps
// are stored as RFC3339Nano strings in UTC.
package episode
