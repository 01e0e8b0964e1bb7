// Package storage caches the last successfully fetched schedule so the
// announcer can start while the schedule API is unreachable.
//
// Two drivers are available:
//   - "file": a single JSON snapshot, replaced atomically on every save
//   - "sqlite": a SQLite database (modernc.org/sqlite, no cgo)
//
// Delivered notifications are never stored.
package storage
