package sqlite

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/obrapay/abono/internal/domain"
)

const entryColumns = `id, project_id, sale_id, ts, amount_cents, method, active, cancellation_reason`

// ─── Unit of Work ───────────────────────────────────────────────────────────

// ledgerTx is the per-project transactional view handed to the calculator
// and policy. The immediate transaction holds the write lock from BEGIN.
type ledgerTx struct {
	tx        *sql.Tx
	projectID int64
}

// InProjectLock implements domain.LedgerStore.
func (d *DB) InProjectLock(ctx context.Context, projectID int64, fn func(tx domain.LedgerTx) error) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(err)
	}

	if err := fn(&ledgerTx{tx: tx, projectID: projectID}); err != nil {
		tx.Rollback()
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}

func (t *ledgerTx) Project(ctx context.Context) (domain.Project, error) {
	return scanProject(t.tx.QueryRowContext(ctx, `
		SELECT id, total_cost_cents, client_allows_credit FROM projects WHERE id = ?
	`, t.projectID))
}

func (t *ledgerTx) ActivePayments(ctx context.Context) ([]domain.PaymentEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM payments
		WHERE project_id = ? AND active = 1 ORDER BY id
	`, t.projectID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

func (t *ledgerTx) SumActive(ctx context.Context) (decimal.Decimal, error) {
	var cents int64
	err := t.tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0) FROM payments
		WHERE project_id = ? AND active = 1
	`, t.projectID).Scan(&cents)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(cents, -2), nil
}

func (t *ledgerTx) CountActive(ctx context.Context) (int, error) {
	var count int
	err := t.tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payments WHERE project_id = ? AND active = 1
	`, t.projectID).Scan(&count)
	return count, err
}

func (t *ledgerTx) Insert(ctx context.Context, entry *domain.PaymentEntry) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO payments (project_id, sale_id, ts, amount_cents, method, active)
		VALUES (?, ?, ?, ?, ?, 1)
	`, entry.ProjectID, entry.SaleID, entry.Timestamp.UTC().Format(time.RFC3339Nano),
		centsOf(entry.Amount), string(entry.Method))
	if err != nil {
		return err
	}
	entry.ID, err = res.LastInsertId()
	return err
}

// ─── Unlocked Reads and the Conditional Cancel ──────────────────────────────

// LoadProject implements domain.LedgerStore.
func (d *DB) LoadProject(ctx context.Context, id int64) (domain.Project, error) {
	return scanProject(d.db.QueryRowContext(ctx, `
		SELECT id, total_cost_cents, client_allows_credit FROM projects WHERE id = ?
	`, id))
}

// FindByID implements domain.LedgerStore.
func (d *DB) FindByID(ctx context.Context, id int64) (*domain.PaymentEntry, error) {
	entry, err := scanEntry(d.db.QueryRowContext(ctx, `
		SELECT `+entryColumns+` FROM payments WHERE id = ?
	`, id))
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindAll implements domain.LedgerStore.
func (d *DB) FindAll(ctx context.Context) ([]domain.PaymentEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM payments ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// FindByProject implements domain.LedgerStore.
func (d *DB) FindByProject(ctx context.Context, projectID int64) ([]domain.PaymentEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM payments WHERE project_id = ? ORDER BY id
	`, projectID)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// Search implements domain.LedgerStore. The method column always matches by
// substring; terms that parse as an integer additionally match the id
// columns, and boolean literals match the active flag.
func (d *DB) Search(ctx context.Context, term string) ([]domain.PaymentEntry, error) {
	clauses := []string{"LOWER(method) LIKE ?"}
	args := []any{"%" + strings.ToLower(term) + "%"}

	if n, err := strconv.ParseInt(term, 10, 64); err == nil {
		clauses = append(clauses, "id = ?", "project_id = ?", "sale_id = ?")
		args = append(args, n, n, n)
	}
	if b, err := strconv.ParseBool(term); err == nil {
		active := 0
		if b {
			active = 1
		}
		clauses = append(clauses, "active = ?")
		args = append(args, active)
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT `+entryColumns+` FROM payments
		WHERE `+strings.Join(clauses, " OR ")+` ORDER BY id
	`, args...)
	if err != nil {
		return nil, err
	}
	return collectEntries(rows)
}

// ConditionalDeactivate implements domain.LedgerStore. The WHERE clause is
// the idempotency guard: a row that is already cancelled is not touched.
func (d *DB) ConditionalDeactivate(ctx context.Context, id int64, reason string) (bool, error) {
	res, err := d.db.ExecContext(ctx, `
		UPDATE payments SET active = 0, cancellation_reason = ?
		WHERE id = ? AND active = 1
	`, reason, id)
	if err != nil {
		return false, mapErr(err)
	}
	affected, err := res.RowsAffected()
	return affected > 0, mapErr(err)
}

// InsertProject seeds a project row for local runs and tests. The ledger
// itself never calls this; project records are owned externally.
func (d *DB) InsertProject(ctx context.Context, totalCost decimal.Decimal, allowsCredit bool) (int64, error) {
	credit := 0
	if allowsCredit {
		credit = 1
	}
	res, err := d.db.ExecContext(ctx, `
		INSERT INTO projects (total_cost_cents, client_allows_credit) VALUES (?, ?)
	`, centsOf(totalCost), credit)
	if err != nil {
		return 0, mapErr(err)
	}
	return res.LastInsertId()
}

// ─── Row Mapping ────────────────────────────────────────────────────────────

func centsOf(d decimal.Decimal) int64 {
	return domain.Round2(d).Shift(2).IntPart()
}

func scanProject(row *sql.Row) (domain.Project, error) {
	var p domain.Project
	var cents int64
	var credit int
	err := row.Scan(&p.ID, &cents, &credit)
	if err == sql.ErrNoRows {
		return domain.Project{}, domain.ErrProjectNotFound
	}
	if err != nil {
		return domain.Project{}, err
	}
	p.TotalCost = decimal.New(cents, -2)
	p.ClientAllowsCredit = credit == 1
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (domain.PaymentEntry, error) {
	var e domain.PaymentEntry
	var saleID sql.NullInt64
	var ts string
	var cents int64
	var method string
	var active int
	var reason sql.NullString

	if err := row.Scan(&e.ID, &e.ProjectID, &saleID, &ts, &cents, &method, &active, &reason); err != nil {
		return domain.PaymentEntry{}, err
	}

	if saleID.Valid {
		e.SaleID = &saleID.Int64
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return domain.PaymentEntry{}, err
	}
	e.Timestamp = parsed
	e.Amount = decimal.New(cents, -2)
	e.Method = domain.Method(method)
	e.Active = active == 1
	if reason.Valid {
		e.CancellationReason = &reason.String
	}
	return e, nil
}

func collectEntries(rows *sql.Rows) ([]domain.PaymentEntry, error) {
	defer rows.Close()
	var entries []domain.PaymentEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ domain.LedgerStore = (*DB)(nil)
