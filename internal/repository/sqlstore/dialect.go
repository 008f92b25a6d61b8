package sqlstore

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
)

// Dialect hides what differs between the SQLite and Postgres backends.
// Queries are written once with ? placeholders and rewritten per dialect.
type Dialect interface {
	// Name is the value accepted by DB_DRIVER.
	Name() string
	// DriverName is what sql.Open expects.
	DriverName() string
	// GooseDialect names the dialect for goose.SetDialect.
	GooseDialect() string
	// MigrationsDir is the subdirectory of the embedded migrations.
	MigrationsDir() string
	Rewrite(query string) string
	// Configure applies pool and session settings after the pool opens.
	Configure(db *sql.DB) error
	IsUniqueViolation(err error) bool
}

// DialectFor returns the dialect for a DB_DRIVER value.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "", "sqlite":
		return sqliteDialect{}, nil
	case "postgres":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("sqlstore: unknown driver %q", driver)
	}
}

// placeholderRegexp matches ? placeholders. Queries in this package never
// carry a literal ? inside quotes; values always travel as arguments.
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}
