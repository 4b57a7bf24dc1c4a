package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cassiomorais/invoicing/internal/domain/card"
	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

const cardColumns = `id, customer_id, processor_method_ref, brand, last4, exp_month, exp_year,
	fingerprint, is_default, created_at, updated_at`

// CardRepository implements card.Repository using PostgreSQL
type CardRepository struct {
	pool *pgxpool.Pool
}

// NewCardRepository creates a new card repository
func NewCardRepository(pool *pgxpool.Pool) *CardRepository {
	return &CardRepository{pool: pool}
}

func (r *CardRepository) Create(ctx context.Context, c *card.Card) error {
	query := `
		INSERT INTO payment_methods (` + cardColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := ConnFromCtx(ctx, r.pool).Exec(ctx, query,
		c.ID, c.CustomerID, c.ProcessorMethodRef, c.Brand, c.Last4, c.ExpMonth, c.ExpYear,
		c.Fingerprint, c.IsDefault, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "payment_methods_processor_method_ref_key") {
			return errors.ErrDuplicateProcessorRef
		}
		return fmt.Errorf("creating payment method: %w", err)
	}
	return nil
}

func (r *CardRepository) Update(ctx context.Context, c *card.Card) error {
	query := `
		UPDATE payment_methods
		SET processor_method_ref = $2, brand = $3, last4 = $4, exp_month = $5, exp_year = $6,
			fingerprint = $7, is_default = $8, updated_at = $9
		WHERE id = $1`

	tag, err := ConnFromCtx(ctx, r.pool).Exec(ctx, query,
		c.ID, c.ProcessorMethodRef, c.Brand, c.Last4, c.ExpMonth, c.ExpYear,
		c.Fingerprint, c.IsDefault, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrPaymentMethodNotFound
	}
	return nil
}

func (r *CardRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*card.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM payment_methods
		WHERE customer_id = $1
		ORDER BY created_at DESC`

	rows, err := ConnFromCtx(ctx, r.pool).Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("listing payment methods: %w", err)
	}
	defer rows.Close()

	var cards []*card.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func (r *CardRepository) DefaultForCustomer(ctx context.Context, customerID uuid.UUID) (*card.Card, error) {
	query := `
		SELECT ` + cardColumns + `
		FROM payment_methods
		WHERE customer_id = $1 AND is_default`

	return scanCard(ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, customerID))
}

// SetDefault clears the default flag across the customer's cards and sets
// it on the given one. Callers run this inside a transaction; the partial
// unique index on (customer_id) WHERE is_default backstops races.
func (r *CardRepository) SetDefault(ctx context.Context, customerID, cardID uuid.UUID) error {
	conn := ConnFromCtx(ctx, r.pool)

	_, err := conn.Exec(ctx,
		`UPDATE payment_methods SET is_default = FALSE, updated_at = NOW()
		 WHERE customer_id = $1 AND is_default AND id <> $2`, customerID, cardID)
	if err != nil {
		return fmt.Errorf("clearing default payment method: %w", err)
	}

	tag, err := conn.Exec(ctx,
		`UPDATE payment_methods SET is_default = TRUE, updated_at = NOW()
		 WHERE customer_id = $1 AND id = $2`, customerID, cardID)
	if err != nil {
		return fmt.Errorf("setting default payment method: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrPaymentMethodNotFound
	}
	return nil
}

func scanCard(row scanner) (*card.Card, error) {
	var c card.Card
	err := row.Scan(&c.ID, &c.CustomerID, &c.ProcessorMethodRef, &c.Brand, &c.Last4,
		&c.ExpMonth, &c.ExpYear, &c.Fingerprint, &c.IsDefault, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrPaymentMethodNotFound
		}
		return nil, fmt.Errorf("scanning payment method: %w", err)
	}
	return &c, nil
}
