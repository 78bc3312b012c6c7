package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers. Infrastructure
// implements them; the ledger coordinator depends on them.

// LedgerTx is the unit of work handed to the calculator and policy. Every
// read is consistent with the transaction that opened it, so balance math
// cannot race concurrent writers. Instances never outlive InProjectLock.
type LedgerTx interface {
	// Project loads the locked project row. ErrProjectNotFound if absent.
	Project(ctx context.Context) (Project, error)

	// ActivePayments lists the project's active entries under the lock.
	ActivePayments(ctx context.Context) ([]PaymentEntry, error)

	// SumActive totals the active entry amounts for the project.
	SumActive(ctx context.Context) (decimal.Decimal, error)

	// CountActive counts the project's active entries.
	CountActive(ctx context.Context) (int, error)

	// Insert appends a new entry and assigns its id.
	Insert(ctx context.Context, entry *PaymentEntry) error
}

// LedgerStore abstracts the durable payment collection.
type LedgerStore interface {
	// InProjectLock runs fn inside a transaction that holds the write lock
	// for the given project, serializing concurrent recorders. fn returning
	// an error rolls everything back; the error propagates untouched.
	// Lock acquisition timing out surfaces as ErrBusy.
	InProjectLock(ctx context.Context, projectID int64, fn func(tx LedgerTx) error) error

	// LoadProject reads a project outside any lock. ErrProjectNotFound if absent.
	LoadProject(ctx context.Context, id int64) (Project, error)

	FindByID(ctx context.Context, id int64) (*PaymentEntry, error)
	FindAll(ctx context.Context) ([]PaymentEntry, error)
	FindByProject(ctx context.Context, projectID int64) ([]PaymentEntry, error)

	// Search matches method by substring; integer terms additionally match
	// id, project id and sale id; boolean literals match the active flag.
	Search(ctx context.Context, term string) ([]PaymentEntry, error)

	// ConditionalDeactivate flips an entry to cancelled with the given
	// reason, but only if it is currently active. Reports whether a row
	// was affected; repeat cancels affect zero rows.
	ConditionalDeactivate(ctx context.Context, id int64, reason string) (bool, error)
}

// EventPublisher emits ledger lifecycle events after commit. Implementations
// must not influence transaction outcome.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, event any) error
}
