// Package database provides the SQLite download ledger of papergrab.
//
// The Ledger records every run, every processed series and the outcome of
// every document fetch, so that `papergrab history` can show what was
// downloaded when and which documents keep failing. The files on disk stay
// the source of truth for idempotence; the ledger is history only.
//
// SQLite is accessed through modernc.org/sqlite, a CGO-free driver, and the
// database is a single file in the data directory.
package database
