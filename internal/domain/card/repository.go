package card

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for stored card persistence
type Repository interface {
	// Create creates a new stored card
	Create(ctx context.Context, c *Card) error

	// Update updates an existing stored card
	Update(ctx context.Context, c *Card) error

	// ListByCustomer returns all stored cards for a customer
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*Card, error)

	// DefaultForCustomer returns the customer's default card, or
	// ErrPaymentMethodNotFound if none is set.
	DefaultForCustomer(ctx context.Context, customerID uuid.UUID) (*Card, error)

	// SetDefault marks the given card as the customer's default and clears
	// the flag on every other card, inside the caller's transaction.
	SetDefault(ctx context.Context, customerID, cardID uuid.UUID) error
}
