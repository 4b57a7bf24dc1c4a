package invoice

import (
	"context"

	"github.com/google/uuid"
)

// ListFilter narrows List and Count queries. Zero values mean "no filter".
type ListFilter struct {
	Status Status
	Search string
	Limit  int
	Offset int
}

// Repository defines the interface for invoice persistence
type Repository interface {
	// Create creates a new invoice together with its items
	Create(ctx context.Context, inv *Invoice) error

	// GetByID retrieves an invoice with its items by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// GetByNumber retrieves an invoice by its unique invoice number
	GetByNumber(ctx context.Context, number string) (*Invoice, error)

	// Update updates the invoice row. Items are immutable after creation.
	Update(ctx context.Context, inv *Invoice) error

	// List returns invoices matching the filter, newest first
	List(ctx context.Context, filter ListFilter) ([]*Invoice, error)

	// Count returns the number of invoices matching the filter
	Count(ctx context.Context, filter ListFilter) (int64, error)

	// StatusCounts returns the number of invoices per status
	StatusCounts(ctx context.Context) (map[Status]int64, error)

	// OutstandingCents sums the remaining balance across open invoices
	OutstandingCents(ctx context.Context) (int64, error)
}
