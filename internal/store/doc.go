// Package store provides the durable entry collection behind the diary.
//
// Two backends implement [Handle]:
//   - SQLite (sqlite://path): the default. WAL journal, one connection.
//   - Pebble (pebble://dir): an embedded LSM key/value store.
//
// Neither backend is safe for concurrent use by design of the application:
// the request engine is the only caller and serializes every operation.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - user_version: Incremental migrations
//
// # Ordering
//
// Page reads order by (created_at, id) in the requested direction so ties on
// creation time are still deterministic.
//
// Entry content is NFC-normalized on write, and substring filters match
// under Unicode case folding on both backends.
package store
