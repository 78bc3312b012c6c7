// Package sqlite persists the payment ledger in an embedded SQLite
// database. Write transactions take the database write lock at BEGIN
// (_txlock=immediate), so concurrent recorders queue on busy_timeout
// instead of failing at commit.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "modernc.org/sqlite"

	"github.com/obrapay/abono/internal/domain"
)

// SQLite primary result codes surfaced on lock contention.
const (
	codeBusy   = 5
	codeLocked = 6
)

// DB wraps the embedded SQLite handle.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path and applies
// pending migrations.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_txlock=immediate&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		path,
	)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite ledger: %w", err)
	}

	db := &DB{db: sqlDB}
	if err := db.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
// Amounts are stored as integer cents so SQL aggregation stays exact.
func Migrations() []string {
	return []string{
		// Projects are owned externally; the rows live here so the ledger
		// is runnable standalone. This subsystem never mutates them.
		`CREATE TABLE IF NOT EXISTS projects (
			id                   INTEGER PRIMARY KEY AUTOINCREMENT,
			total_cost_cents     INTEGER NOT NULL CHECK (total_cost_cents >= 0),
			client_allows_credit INTEGER NOT NULL DEFAULT 0,
			created_at           TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Payment entries: append-mostly, soft-cancelled, never deleted.
		`CREATE TABLE IF NOT EXISTS payments (
			id                  INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id          INTEGER NOT NULL REFERENCES projects(id),
			sale_id             INTEGER,
			ts                  TEXT NOT NULL,
			amount_cents        INTEGER NOT NULL CHECK (amount_cents > 0),
			method              TEXT NOT NULL,
			active              INTEGER NOT NULL DEFAULT 1,
			cancellation_reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_project ON payments(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_project_active ON payments(project_id, active)`,
	}
}

// Migrate applies the schema migrations.
func (d *DB) Migrate() error {
	for _, stmt := range Migrations() {
		if _, err := d.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate sqlite ledger: %w", err)
		}
	}
	return nil
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// mapErr converts lock-contention driver errors to the retryable ErrBusy.
// Domain errors and everything else pass through untouched.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var se *sqlite3.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case codeBusy, codeLocked:
			return domain.ErrBusy
		}
	}
	return err
}
