package invoice

import (
	"time"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/google/uuid"
)

// Status represents the invoice status in the state machine
type Status string

const (
	StatusAdvancePending Status = "ADVANCE_PENDING"
	StatusAdvancePaid    Status = "ADVANCE_PAID"
	StatusFullyPaid      Status = "FULLY_PAID"
	StatusOverdue        Status = "OVERDUE"
)

// Item is a single invoice line. Amount is always quantity times rate.
type Item struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	Description string
	Quantity    int
	RateCents   int64
	AmountCents int64
}

// Invoice is the financial record for one job. The total is split into a
// fixed 50% advance due up front and the remaining balance charged
// off-session after delivery. Invoices are never deleted.
type Invoice struct {
	ID             uuid.UUID
	InvoiceNumber  string
	CustomerID     uuid.UUID
	TotalCents     int64
	AdvanceCents   int64
	RemainingCents int64
	Status         Status
	DueDate        time.Time
	Notes          string
	Items          []Item
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ItemInput describes one line of a new invoice.
type ItemInput struct {
	Description string
	Quantity    int
	RateCents   int64
}

// New creates a new invoice with the 50/50 advance split. The advance gets
// the smaller half of an odd total so advance + remaining always equals the
// total exactly.
func New(invoiceNumber string, customerID uuid.UUID, dueDate time.Time, notes string, items []ItemInput) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, errors.NewValidationError("invoice_number", "cannot be empty")
	}
	if len(items) == 0 {
		return nil, errors.NewValidationError("items", "at least one item is required")
	}

	id := uuid.New()
	var total int64
	lines := make([]Item, 0, len(items))
	for _, in := range items {
		if in.Description == "" {
			return nil, errors.NewValidationError("items.description", "cannot be empty")
		}
		if in.Quantity <= 0 {
			return nil, errors.NewValidationError("items.quantity", "must be greater than 0")
		}
		if in.RateCents <= 0 {
			return nil, errors.NewValidationError("items.rate", "must be greater than 0")
		}
		amount := int64(in.Quantity) * in.RateCents
		total += amount
		lines = append(lines, Item{
			ID:          uuid.New(),
			InvoiceID:   id,
			Description: in.Description,
			Quantity:    in.Quantity,
			RateCents:   in.RateCents,
			AmountCents: amount,
		})
	}

	advance := total / 2
	now := time.Now()
	return &Invoice{
		ID:             id,
		InvoiceNumber:  invoiceNumber,
		CustomerID:     customerID,
		TotalCents:     total,
		AdvanceCents:   advance,
		RemainingCents: total - advance,
		Status:         StatusAdvancePending,
		DueDate:        dueDate,
		Notes:          notes,
		Items:          lines,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// CanTransitionTo checks if the invoice can transition to the given status
func (i *Invoice) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusAdvancePending: {StatusAdvancePaid, StatusOverdue},
		StatusAdvancePaid:    {StatusFullyPaid, StatusOverdue},
		StatusOverdue:        {StatusAdvancePaid, StatusFullyPaid},
		StatusFullyPaid:      {}, // Terminal state
	}

	allowed, exists := transitions[i.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the invoice to a new status
func (i *Invoice) TransitionTo(newStatus Status) error {
	if !i.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition invoice from "+string(i.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	i.Status = newStatus
	i.UpdatedAt = time.Now()
	return nil
}

// MarkAdvancePaid transitions the invoice to ADVANCE_PAID
func (i *Invoice) MarkAdvancePaid() error {
	return i.TransitionTo(StatusAdvancePaid)
}

// MarkFullyPaid transitions the invoice to FULLY_PAID and zeroes the
// remaining balance. The two always change together.
func (i *Invoice) MarkFullyPaid() error {
	if err := i.TransitionTo(StatusFullyPaid); err != nil {
		return err
	}
	i.RemainingCents = 0
	return nil
}

// MarkOverdue transitions the invoice to OVERDUE
func (i *Invoice) MarkOverdue() error {
	return i.TransitionTo(StatusOverdue)
}

// IsPayable reports whether any balance can still be collected.
func (i *Invoice) IsPayable() bool {
	return i.Status != StatusFullyPaid
}
