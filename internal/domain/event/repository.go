package event

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for parked event persistence
type Repository interface {
	// Insert parks an event. Runs on its own connection so a parked event
	// survives the rollback of the transaction that failed to apply it.
	Insert(ctx context.Context, u *Unreconciled) error

	// GetByID retrieves a parked event by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Unreconciled, error)

	// ListPending returns parked events awaiting replay, oldest first
	ListPending(ctx context.Context, limit int) ([]*Unreconciled, error)

	// Update persists a resolution status change
	Update(ctx context.Context, u *Unreconciled) error
}
