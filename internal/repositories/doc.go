// Package repositories implements durable client-side state on SQLite.
//
// State is a small set of records stored under fixed keys in the kv_records table
// (see internal/shared/sql). The auth flow keeps its Session and PendingAuth records here.
//
// Key Implementations:
//   - [KVRepository] : SQLite-backed records with upsert semantics
//   - [MemoryStore] : map-backed equivalent for tests and ephemeral runs
package repositories
