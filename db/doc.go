// Package db provides the SQLite persistence layer of the UPI scanner.
// It backs the preference store's key-value collaborator and keeps the
// activity log written by the scanner.
//
// This package is responsible for:
// - Establishing the database connection and applying migrations (`db.go`, `migrations/`).
// - Implementing `domain.KeyValueStore` on the `preference` table (`preference_repo.go`).
// - Implementing `domain.LogRepository` and `domain.StatsRepository` on the `logs` table.
// - Converting between domain structs and database rows, using `sql.Null*` types for nullable fields.
package db
