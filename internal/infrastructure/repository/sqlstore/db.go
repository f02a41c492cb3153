package sqlstore

import (
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects SQL flavour differences between PostgreSQL (pgx) and SQLite (modernc).
type Dialect string

const (
	DialectPostgres Dialect = "pgx"
	DialectSQLite   Dialect = "sqlite"
)

func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func OpenDB(dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if dialect == DialectSQLite {
		// One writer at a time; concurrent writers get SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

var placeholder = regexp.MustCompile(`\$(\d+)`)

// rebind rewrites $N placeholders to ?N for SQLite, where $N is a named parameter bound by
// order of first appearance.
func (d Dialect) rebind(query string) string {
	if d != DialectSQLite {
		return query
	}
	return placeholder.ReplaceAllString(query, "?$1")
}

func (d Dialect) schema() string {
	if d == DialectSQLite {
		return `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	outcome_status TEXT,
	confidence REAL,
	outcome TEXT,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_created_at ON extraction_jobs(created_at DESC);
`
	}
	return `
CREATE TABLE IF NOT EXISTS extraction_jobs (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	outcome_status TEXT,
	confidence DOUBLE PRECISION,
	outcome JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_status ON extraction_jobs(status);
CREATE INDEX IF NOT EXISTS idx_extraction_jobs_created_at ON extraction_jobs(created_at DESC);
`
}
