// Package postgres persists the payment ledger in PostgreSQL. Concurrency
// control is pessimistic: recorders take SELECT ... FOR UPDATE on the
// project row, so two payments against the same project serialize while
// payments against different projects proceed in parallel.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/obrapay/abono/internal/domain"
)

const defaultLockTimeout = 5 * time.Second

const entryColumns = `id, project_id, sale_id, ts, amount, method, active, cancellation_reason`

// Store implements domain.LedgerStore on PostgreSQL.
type Store struct {
	db          *sql.DB
	lockTimeout time.Duration
}

// Open connects to the given DSN and returns a Store. lockTimeout bounds
// how long a recorder waits for a contended project lock; zero means the
// default of five seconds.
func Open(dsn string, lockTimeout time.Duration) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres ledger: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return NewStore(db, lockTimeout), nil
}

// NewStore wraps an existing connection pool.
func NewStore(db *sql.DB, lockTimeout time.Duration) *Store {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	return &Store{db: db, lockTimeout: lockTimeout}
}

// Migrations returns the schema migration statements.
func Migrations() []string {
	return []string{
		// Projects are owned externally; this subsystem never mutates them.
		`CREATE TABLE IF NOT EXISTS projects (
			id                   BIGSERIAL PRIMARY KEY,
			total_cost           NUMERIC(14,2) NOT NULL CHECK (total_cost >= 0),
			client_allows_credit BOOLEAN NOT NULL DEFAULT FALSE,
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS payments (
			id                  BIGSERIAL PRIMARY KEY,
			project_id          BIGINT NOT NULL REFERENCES projects(id),
			sale_id             BIGINT,
			ts                  TIMESTAMPTZ NOT NULL,
			amount              NUMERIC(14,2) NOT NULL CHECK (amount > 0),
			method              TEXT NOT NULL,
			active              BOOLEAN NOT NULL DEFAULT TRUE,
			cancellation_reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_project ON payments(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_payments_project_active ON payments(project_id, active)`,
	}
}

// Migrate applies the schema migrations.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range Migrations() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres ledger: %w", err)
		}
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// ─── Unit of Work ───────────────────────────────────────────────────────────

type ledgerTx struct {
	tx        *sql.Tx
	projectID int64
}

// InProjectLock implements domain.LedgerStore. The project row lock is the
// serialization point for all writers of one project; active payment rows
// are locked alongside it. A lock wait past the configured timeout surfaces
// as ErrBusy.
func (s *Store) InProjectLock(ctx context.Context, projectID int64, fn func(tx domain.LedgerTx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())); err != nil {
		return mapErr(err)
	}

	var locked int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM projects WHERE id = $1 FOR UPDATE`, projectID).Scan(&locked)
	if err == sql.ErrNoRows {
		return domain.ErrProjectNotFound
	}
	if err != nil {
		return mapErr(err)
	}
	if _, err := tx.ExecContext(ctx,
		`SELECT id FROM payments WHERE project_id = $1 AND active FOR UPDATE`, projectID); err != nil {
		return mapErr(err)
	}

	if err := fn(&ledgerTx{tx: tx, projectID: projectID}); err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}

func (t *ledgerTx) Project(ctx context.Context) (domain.Project, error) {
	var p domain.Project
	err := t.tx.QueryRowContext(ctx, `
		SELECT id, total_cost, client_allows_credit FROM projects WHERE id = $1
	`, t.projectID).Scan(&p.ID, &p.TotalCost, &p.ClientAllowsCredit)
	if err == sql.ErrNoRows {
		return domain.Project{}, domain.ErrProjectNotFound
	}
	return p, err
}

func (t *ledgerTx) ActivePayments(ctx context.Context) ([]domain.PaymentEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM payments
		WHERE project_id = $1 AND active ORDER BY id
	`, t.projectID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (t *ledgerTx) SumActive(ctx context.Context) (decimal.Decimal, error) {
	var paid decimal.Decimal
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount), 0) FROM payments
		WHERE project_id = $1 AND active
	`, t.projectID).Scan(&paid)
	return paid, err
}

func (t *ledgerTx) CountActive(ctx context.Context) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payments WHERE project_id = $1 AND active
	`, t.projectID).Scan(&count)
	return count, err
}

func (t *ledgerTx) Insert(ctx context.Context, entry *domain.PaymentEntry) error {
	return t.tx.QueryRowContext(ctx, `
		INSERT INTO payments (project_id, sale_id, ts, amount, method, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		RETURNING id
	`, entry.ProjectID, entry.SaleID, entry.Timestamp.UTC(), entry.Amount,
		string(entry.Method)).Scan(&entry.ID)
}

// ─── Unlocked Reads and the Conditional Cancel ──────────────────────────────

// LoadProject implements domain.LedgerStore.
func (s *Store) LoadProject(ctx context.Context, id int64) (domain.Project, error) {
	var p domain.Project
	err := s.db.QueryRowContext(ctx, `
		SELECT id, total_cost, client_allows_credit FROM projects WHERE id = $1
	`, id).Scan(&p.ID, &p.TotalCost, &p.ClientAllowsCredit)
	if err == sql.ErrNoRows {
		return domain.Project{}, domain.ErrProjectNotFound
	}
	return p, err
}

// FindByID implements domain.LedgerStore.
func (s *Store) FindByID(ctx context.Context, id int64) (*domain.PaymentEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM payments WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	entries, err := collectEntries(rows)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, domain.ErrNotFound
	}
	return &entries[0], nil
}

// FindAll implements domain.LedgerStore.
func (s *Store) FindAll(ctx context.Context) ([]domain.PaymentEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM payments ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// FindByProject implements domain.LedgerStore.
func (s *Store) FindByProject(ctx context.Context, projectID int64) ([]domain.PaymentEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM payments WHERE project_id = $1 ORDER BY id
	`, projectID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// Search implements domain.LedgerStore.
func (s *Store) Search(ctx context.Context, term string) ([]domain.PaymentEntry, error) {
	clauses := []string{"method ILIKE $1"}
	args := []any{"%" + term + "%"}

	if n, err := strconv.ParseInt(term, 10, 64); err == nil {
		p := len(args) + 1
		clauses = append(clauses,
			fmt.Sprintf("id = $%d", p),
			fmt.Sprintf("project_id = $%d", p+1),
			fmt.Sprintf("sale_id = $%d", p+2))
		args = append(args, n, n, n)
	}
	if b, err := strconv.ParseBool(term); err == nil {
		clauses = append(clauses, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, b)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM payments
		WHERE `+strings.Join(clauses, " OR ")+` ORDER BY id
	`, args...)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// ConditionalDeactivate implements domain.LedgerStore.
func (s *Store) ConditionalDeactivate(ctx context.Context, id int64, reason string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE payments SET active = FALSE, cancellation_reason = $1
		WHERE id = $2 AND active
	`, reason, id)
	if err != nil {
		return false, mapErr(err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, mapErr(err)
}

// InsertProject seeds a project row for local runs. Project records are
// owned externally; the ledger never calls this.
func (s *Store) InsertProject(ctx context.Context, totalCost decimal.Decimal, allowsCredit bool) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO projects (total_cost, client_allows_credit)
		VALUES ($1, $2) RETURNING id
	`, domain.Round2(totalCost), allowsCredit).Scan(&id)
	return id, mapErr(err)
}

// ─── Row Mapping ────────────────────────────────────────────────────────────

func collectEntries(rows *sql.Rows) ([]domain.PaymentEntry, error) {
	defer rows.Close()
	var entries []domain.PaymentEntry
	for rows.Next() {
		var e domain.PaymentEntry
		var saleID sql.NullInt64
		var method string
		var reason sql.NullString
		if err := rows.Scan(&e.ID, &e.ProjectID, &saleID, &e.Timestamp,
			&e.Amount, &method, &e.Active, &reason); err != nil {
			return nil, err
		}
		if saleID.Valid {
			e.SaleID = &saleID.Int64
		}
		e.Method = domain.Method(method)
		if reason.Valid {
			e.CancellationReason = &reason.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// mapErr converts lock-contention and serialization failures to the
// retryable ErrBusy. Domain errors and everything else pass through.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "55P03", "40001", "40P01": // lock_not_available, serialization, deadlock
			return domain.ErrBusy
		}
	}
	return err
}

var _ domain.LedgerStore = (*Store)(nil)
