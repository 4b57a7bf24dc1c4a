package payment

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List queries. Zero values mean "no filter".
type ListFilter struct {
	InvoiceID uuid.UUID
	Status    Status
	Type      Type
	Limit     int
	Offset    int
}

// Repository defines the interface for payment persistence
type Repository interface {
	// Create creates a new payment
	Create(ctx context.Context, p *Payment) error

	// GetByID retrieves a payment by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Payment, error)

	// GetByProcessorRef retrieves a payment by its processor reference
	GetByProcessorRef(ctx context.Context, ref string) (*Payment, error)

	// GetByProcessorRefForUpdate retrieves a payment by processor reference
	// holding a row lock until the surrounding transaction ends. Concurrent
	// reconcilers for the same reference serialize here.
	GetByProcessorRefForUpdate(ctx context.Context, ref string) (*Payment, error)

	// Update updates an existing payment
	Update(ctx context.Context, p *Payment) error

	// List returns payments matching the filter, newest first
	List(ctx context.Context, filter ListFilter) ([]*Payment, error)

	// LatestCompletedAdvance returns the most recent completed advance
	// payment for an invoice, or ErrPaymentNotFound if none exists.
	LatestCompletedAdvance(ctx context.Context, invoiceID uuid.UUID) (*Payment, error)

	// CompletedTotalCents sums completed payment amounts for an invoice
	CompletedTotalCents(ctx context.Context, invoiceID uuid.UUID) (int64, error)

	// SumCompleted sums completed payment amounts across all invoices
	SumCompleted(ctx context.Context) (int64, error)
}
