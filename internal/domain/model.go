// Package domain contains the pure ledger types with ZERO infrastructure
// imports. This is the innermost ring — it depends on nothing below it.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Payment Types ──────────────────────────────────────────────────────────

// Method is a payment instrument. The set is closed: extending it is a
// schema migration, not runtime configuration.
type Method string

const (
	MethodCash     Method = "Cash"
	MethodTransfer Method = "Transfer"
	MethodCard     Method = "Card"
	MethodCheck    Method = "Check"
)

// Methods lists every legal payment instrument.
func Methods() []Method {
	return []Method{MethodCash, MethodTransfer, MethodCard, MethodCheck}
}

// ParseMethod resolves s against the closed instrument set.
func ParseMethod(s string) (Method, bool) {
	for _, m := range Methods() {
		if string(m) == s {
			return m, true
		}
	}
	return "", false
}

// Project is the externally owned record a payment is applied against.
// This subsystem only reads it; total_cost is fixed at approval time and
// the credit flag is re-read on every admission decision, never cached.
type Project struct {
	ID                 int64           `json:"id"`
	TotalCost          decimal.Decimal `json:"total_cost"`
	ClientAllowsCredit bool            `json:"client_allows_credit"`
}

// PaymentEntry is one recorded installment against a project. Amount is
// immutable after creation; the only legal mutation is the one-way flip of
// Active to false with a cancellation reason.
type PaymentEntry struct {
	ID                 int64           `json:"id"`
	ProjectID          int64           `json:"project_id"`
	SaleID             *int64          `json:"sale_id,omitempty"`
	Timestamp          time.Time       `json:"timestamp"`
	Amount             decimal.Decimal `json:"amount"`
	Method             Method          `json:"method"`
	Active             bool            `json:"active"`
	CancellationReason *string         `json:"cancellation_reason,omitempty"`
}

// PaymentInput is a proposed payment before admission. Timestamp defaults
// to the current time when nil.
type PaymentInput struct {
	ProjectID int64
	SaleID    *int64
	Timestamp *time.Time
	Amount    decimal.Decimal
	Method    Method
}

// Outstanding is a consistent snapshot of a project's balance: what was
// contracted, what the active payments add up to, and what remains.
// Pending is derived, never stored, so no write path can desynchronize it.
type Outstanding struct {
	Project   Project         `json:"-"`
	TotalCost decimal.Decimal `json:"total_cost"`
	TotalPaid decimal.Decimal `json:"total_paid"`
	Pending   decimal.Decimal `json:"pending"`
}

// Round2 normalizes a money amount to two decimal places, half up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
