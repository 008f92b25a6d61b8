package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure.
const uniqueViolation = "23505"

type postgresDialect struct{}

func (postgresDialect) Name() string          { return "postgres" }
func (postgresDialect) DriverName() string    { return "pgx" }
func (postgresDialect) GooseDialect() string  { return "postgres" }
func (postgresDialect) MigrationsDir() string { return "postgres" }

func (postgresDialect) Rewrite(query string) string {
	return rewritePlaceholdersToNumbered(query)
}

func (postgresDialect) Configure(db *sql.DB) error {
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(1 * time.Minute)
	return nil
}

func (postgresDialect) IsUniqueViolation(err error) bool {
	var pe *pgconn.PgError
	return errors.As(err, &pe) && pe.Code == uniqueViolation
}
