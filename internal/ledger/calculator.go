// Package ledger implements the installment-payment ledger: outstanding
// balance calculation, the admission policy, and the transaction
// coordinator that keeps the paid total within the contracted cost.
package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/obrapay/abono/internal/domain"
)

// ComputeOutstanding derives a project's pending balance from a consistent
// read of the project and its active payments under the caller's lock
// context. Pending is clamped at zero and rounded to two decimals so
// repeated calls cannot drift.
func ComputeOutstanding(ctx context.Context, tx domain.LedgerTx) (domain.Outstanding, error) {
	project, err := tx.Project(ctx)
	if err != nil {
		return domain.Outstanding{}, err
	}

	paid, err := tx.SumActive(ctx)
	if err != nil {
		return domain.Outstanding{}, err
	}

	pending := domain.Round2(project.TotalCost.Sub(paid))
	if pending.IsNegative() {
		pending = decimal.Zero
	}

	return domain.Outstanding{
		Project:   project,
		TotalCost: project.TotalCost,
		TotalPaid: paid,
		Pending:   pending,
	}, nil
}
