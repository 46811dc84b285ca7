// Package ledger persists per-stage unit status records.
//
// Each stage owns exactly one Store. A record maps a unit key to its last
// outcome (SUCCESS or FAILED), an optional error message, and a UTC
// timestamp. SUCCESS is terminal for that store: executors consult IsDone
// before invoking a stage operation so completed units are never reprocessed.
//
// Two backends are available. FileStore keeps the whole mapping in one JSON
// document rewritten atomically on every update. SQLiteStore keeps one row
// per unit in a per-stage database. Both hold a sidecar flock while open, so
// a second writer gets ErrLocked. Open picks the backend from configuration.
package ledger
