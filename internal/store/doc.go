// Package store persists limit-order records keyed by their identity.
//
// Every backend implements RecordStore:
//
//	Load(ctx, key) -> (record, found, error)
//	Save(ctx, key, record) -> error
//
// Backends:
//   - Store:    SQLite file (WAL), the default
//   - Badger:   embedded LSM key-value store
//   - Redis:    remote key-value store, one JSON value per key
//   - Postgres: pgx connection pool
//   - Memory:   process-local map, for tests and dry runs
//
// # Critical Patterns
//
// Versioned saves: Save succeeds only when the stored record is absent and
// the new record is at version 1, or the stored UpdatesCount is exactly one
// below the new one. Anything else returns ErrConflict and leaves the stored
// record untouched. A lost update between two writers is therefore an error,
// never silent.
//
// Write-once identity: SQL backends update only remaining_amount and
// updates_count on conflict, so identity columns cannot change.
//
// Scheme guard: persistent backends record order.IdentityScheme on first
// open and refuse a database written under another scheme.
//
// Failures of the underlying database are returned as *UnavailableError.
// Nothing in this package retries.
package store
