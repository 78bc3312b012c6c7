package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/obrapay/abono/internal/domain"
)

// Admission is the context a successful policy check hands back so the
// caller avoids a second full recomputation.
type Admission struct {
	Outstanding   domain.Outstanding
	CreditAllowed bool
}

// Admit decides whether amount may be recorded against the locked project.
//
// Cash clients (credit flag off) settle the entire contract in one shot: a
// second payment, or any amount other than the exact pending balance, is
// rejected. Credit clients may pay in installments as long as the running
// total stays within the contracted cost.
func Admit(ctx context.Context, tx domain.LedgerTx, amount decimal.Decimal) (*Admission, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}
	amount = domain.Round2(amount)

	out, err := ComputeOutstanding(ctx, tx)
	if err != nil {
		return nil, err
	}

	if !out.Project.ClientAllowsCredit {
		// The single-payment rule dominates for cash clients: once any
		// active payment exists, every further payment is a second one,
		// even after the balance reaches zero.
		count, err := tx.CountActive(ctx)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, domain.ErrSinglePaymentRequired
		}
		if out.Pending.LessThanOrEqual(decimal.Zero) {
			return nil, domain.ErrAlreadySettled
		}
		if !amount.Equal(out.Pending) {
			return nil, domain.ErrSinglePaymentRequired
		}
	} else {
		if out.Pending.LessThanOrEqual(decimal.Zero) {
			return nil, domain.ErrAlreadySettled
		}
		if amount.GreaterThan(out.Pending) {
			return nil, domain.ErrOverTotal
		}
	}

	return &Admission{Outstanding: out, CreditAllowed: out.Project.ClientAllowsCredit}, nil
}
