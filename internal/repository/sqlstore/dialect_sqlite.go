package sqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	// BLANK IMPORT:
	// The sqlite package's init() registers a database/sql driver named
	// "sqlite". It is pure Go, so no C compiler is needed to build.
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string                { return "sqlite" }
func (sqliteDialect) DriverName() string          { return "sqlite" }
func (sqliteDialect) GooseDialect() string        { return "sqlite3" }
func (sqliteDialect) MigrationsDir() string       { return "sqlite" }
func (sqliteDialect) Rewrite(query string) string { return query }

// Configure pins the pool to one connection and sets the session pragmas.
//
// WHY ONE CONNECTION?
// SQLite allows a single writer at a time, so a bigger pool only buys
// "database is locked" errors under load. It also matters for ":memory:":
// every new connection to ":memory:" opens a brand-new empty database, so
// a second pooled connection would not see the tables migrations created.
//
// WAL (Write-Ahead Logging) lets readers proceed while a write is in
// flight. Foreign keys are OFF by default in SQLite; we want them on so
// mail_recipients rows cannot point at a missing mail.
func (sqliteDialect) Configure(db *sql.DB) error {
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	return nil
}

func (sqliteDialect) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Primary code only, when extended result codes are off.
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
