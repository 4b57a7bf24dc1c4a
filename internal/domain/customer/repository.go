package customer

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for customer persistence
type Repository interface {
	// Create creates a new customer
	Create(ctx context.Context, c *Customer) error

	// GetByID retrieves a customer by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Customer, error)

	// GetByEmail retrieves a customer by its unique email
	GetByEmail(ctx context.Context, email string) (*Customer, error)

	// Update updates an existing customer
	Update(ctx context.Context, c *Customer) error
}
