// Package fallback persists submissions whose delivery was exhausted so that
// an operator can recover them later. Records are append-only and live in a
// single relational table, on SQLite or SQL Server.
package fallback
