package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/event"
)

const eventColumns = `id, processor_ref, event_type, payload, reason, status, attempts,
	created_at, updated_at, resolved_at`

// EventRepository implements event.Repository using PostgreSQL
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates a new parked event repository
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

// Insert intentionally writes through the pool, never the caller's
// transaction. A parked event must survive the rollback that parked it.
func (r *EventRepository) Insert(ctx context.Context, u *event.Unreconciled) error {
	query := `
		INSERT INTO unreconciled_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := r.pool.Exec(ctx, query,
		u.ID, u.ProcessorRef, u.EventType, u.Payload, u.Reason, string(u.Status),
		u.Attempts, u.CreatedAt, u.UpdatedAt, u.ResolvedAt)
	if err != nil {
		if isUniqueViolation(err, "uq_unreconciled_events_pending") {
			return errors.ErrEventAlreadyParked
		}
		return fmt.Errorf("parking unreconciled event: %w", err)
	}
	return nil
}

func (r *EventRepository) GetByID(ctx context.Context, id uuid.UUID) (*event.Unreconciled, error) {
	query := `SELECT ` + eventColumns + ` FROM unreconciled_events WHERE id = $1`
	return scanEvent(ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *EventRepository) ListPending(ctx context.Context, limit int) ([]*event.Unreconciled, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM unreconciled_events
		WHERE status = $1
		ORDER BY created_at
		LIMIT $2`

	rows, err := ConnFromCtx(ctx, r.pool).Query(ctx, query, string(event.ResolutionPending), limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending events: %w", err)
	}
	defer rows.Close()

	var events []*event.Unreconciled
	for rows.Next() {
		u, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, u)
	}
	return events, rows.Err()
}

func (r *EventRepository) Update(ctx context.Context, u *event.Unreconciled) error {
	query := `
		UPDATE unreconciled_events
		SET reason = $2, status = $3, attempts = $4, updated_at = $5, resolved_at = $6
		WHERE id = $1`

	tag, err := ConnFromCtx(ctx, r.pool).Exec(ctx, query,
		u.ID, u.Reason, string(u.Status), u.Attempts, u.UpdatedAt, u.ResolvedAt)
	if err != nil {
		return fmt.Errorf("updating unreconciled event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrUnreconcilable
	}
	return nil
}

func scanEvent(row scanner) (*event.Unreconciled, error) {
	var u event.Unreconciled
	var status string
	err := row.Scan(&u.ID, &u.ProcessorRef, &u.EventType, &u.Payload, &u.Reason, &status,
		&u.Attempts, &u.CreatedAt, &u.UpdatedAt, &u.ResolvedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrUnreconcilable
		}
		return nil, fmt.Errorf("scanning unreconciled event: %w", err)
	}
	u.Status = event.ResolutionStatus(status)
	return &u, nil
}
