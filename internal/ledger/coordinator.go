package ledger

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/obrapay/abono/internal/domain"
	"github.com/obrapay/abono/internal/infra/events"
	"github.com/obrapay/abono/internal/infra/observability"
)

// Coordinator wraps admission, insertion and re-verification in one atomic
// unit per payment. All correctness comes from the store's transaction and
// locking primitives; the coordinator itself holds no state worth locking.
type Coordinator struct {
	store     domain.LedgerStore
	publisher domain.EventPublisher
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPublisher sets the post-commit event publisher.
func WithPublisher(p domain.EventPublisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a Coordinator over the given store.
func New(store domain.LedgerStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:     store,
		publisher: events.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RecordPayment admits, inserts and commits one payment. Two concurrent
// calls for the same project serialize at the store's project lock; the
// later one re-reads a fresh balance and is judged against it.
func (c *Coordinator) RecordPayment(ctx context.Context, in domain.PaymentInput) (*domain.PaymentEntry, error) {
	start := c.now()

	if in.ProjectID <= 0 {
		return nil, domain.Validationf("project id is required")
	}
	if in.Method == "" {
		return nil, domain.Validationf("payment method is required")
	}
	method, ok := domain.ParseMethod(string(in.Method))
	if !ok {
		return nil, domain.Validationf("unknown payment method %q", in.Method)
	}
	if in.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidAmount
	}

	ts := c.now()
	if in.Timestamp != nil {
		ts = *in.Timestamp
	}

	entry := &domain.PaymentEntry{
		ProjectID: in.ProjectID,
		SaleID:    in.SaleID,
		Timestamp: ts,
		Amount:    domain.Round2(in.Amount),
		Method:    method,
		Active:    true,
	}

	err := c.store.InProjectLock(ctx, in.ProjectID, func(tx domain.LedgerTx) error {
		if _, err := Admit(ctx, tx, entry.Amount); err != nil {
			return err
		}
		if err := tx.Insert(ctx, entry); err != nil {
			return err
		}

		// Recompute once more inside the same transaction. Unreachable if
		// the policy holds; guards against drift between policy and insert.
		out, err := ComputeOutstanding(ctx, tx)
		if err != nil {
			return err
		}
		if out.TotalPaid.GreaterThan(out.TotalCost) {
			return domain.ErrOverTotal
		}
		return nil
	})
	if err != nil {
		observability.PaymentRejected(err)
		return nil, err
	}

	observability.PaymentRecorded(time.Since(start))
	c.publish(ctx, events.TypePaymentRecorded, *entry)
	return entry, nil
}

// CancelPayment flips an active entry to cancelled with the given reason.
// The conditional update is the correctness mechanism: a repeat cancel, or
// a cancel of an unknown id, affects zero rows and fails cleanly.
// Removing a payment can only raise the pending balance, so no balance
// re-validation is needed here.
func (c *Coordinator) CancelPayment(ctx context.Context, id int64, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return domain.Validationf("cancellation reason is required")
	}

	ok, err := c.store.ConditionalDeactivate(ctx, id, reason)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyCancelledOrNotFound
	}

	observability.PaymentCancelled()
	if entry, err := c.store.FindByID(ctx, id); err == nil {
		c.publish(ctx, events.TypePaymentCancelled, *entry)
	}
	return nil
}

// GetPayment returns one entry by id.
func (c *Coordinator) GetPayment(ctx context.Context, id int64) (*domain.PaymentEntry, error) {
	return c.store.FindByID(ctx, id)
}

// ListPayments returns all entries, or the entries of one project when
// projectID is set.
func (c *Coordinator) ListPayments(ctx context.Context, projectID *int64) ([]domain.PaymentEntry, error) {
	if projectID != nil {
		return c.store.FindByProject(ctx, *projectID)
	}
	return c.store.FindAll(ctx)
}

// SearchPayments returns entries matching the free-form term.
func (c *Coordinator) SearchPayments(ctx context.Context, term string) ([]domain.PaymentEntry, error) {
	return c.store.Search(ctx, term)
}

// Outstanding computes a project's balance snapshot under the same lock
// recorders take, so the numbers are consistent with in-flight writes.
func (c *Coordinator) Outstanding(ctx context.Context, projectID int64) (domain.Outstanding, error) {
	var out domain.Outstanding
	err := c.store.InProjectLock(ctx, projectID, func(tx domain.LedgerTx) error {
		var err error
		out, err = ComputeOutstanding(ctx, tx)
		return err
	})
	return out, err
}

// publish emits a post-commit event. The ledger state is already durable;
// a publish failure is logged and swallowed.
func (c *Coordinator) publish(ctx context.Context, eventType string, entry domain.PaymentEntry) {
	if c.publisher == nil {
		return
	}
	env := events.NewEnvelope(eventType, entry)
	if err := c.publisher.Publish(ctx, eventType, env); err != nil {
		log.Printf("[ledger] publish %s for payment %d: %v", eventType, entry.ID, err)
	}
}
