// Package store persists subtrans state in SQLite.
//
// One database holds the queue snapshot, the finished result record of each
// video, the persisted batch settings, and the provider key pool. The schema
// is embedded and versioned; a version mismatch is reported as
// ErrSchemaMismatch rather than migrated. Writes retry briefly when SQLite
// reports the database as busy.
package store
