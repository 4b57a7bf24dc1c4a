package customer

import (
	"strings"
	"time"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/google/uuid"
)

// Customer is the payer an invoice is addressed to. Customers are created
// lazily on the first invoice for a new email and are never deleted.
type Customer struct {
	ID           uuid.UUID
	Name         string
	Email        string
	Address      string
	ProcessorRef *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// New creates a new customer. Email uniqueness is enforced by the store.
func New(name, email, address string) (*Customer, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))

	if name == "" {
		return nil, errors.NewValidationError("name", "cannot be empty")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.NewValidationError("email", "must be a valid email address")
	}

	now := time.Now()
	return &Customer{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Address:   address,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// SetProcessorRef records the processor-side customer identity. It is set
// once, when the first charge intent is created for the customer.
func (c *Customer) SetProcessorRef(ref string) {
	c.ProcessorRef = &ref
	c.UpdatedAt = time.Now()
}

// HasProcessorRef reports whether a processor-side identity exists.
func (c *Customer) HasProcessorRef() bool {
	return c.ProcessorRef != nil && *c.ProcessorRef != ""
}
