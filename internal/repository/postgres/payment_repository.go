package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
)

const paymentColumns = `id, invoice_id, customer_id, payment_method_id, amount, type, status,
	processor_ref, client_secret, failure_reason, created_at, updated_at, completed_at`

// PaymentRepository implements payment.Repository using PostgreSQL
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := ConnFromCtx(ctx, r.pool).Exec(ctx, query,
		p.ID, p.InvoiceID, p.CustomerID, p.PaymentMethodID,
		CentsToNumeric(p.AmountCents), string(p.Type), string(p.Status),
		p.ProcessorRef, p.ClientSecret, p.FailureReason,
		p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	if err != nil {
		if isUniqueViolation(err, "payments_processor_ref_key") {
			return errors.ErrDuplicateProcessorRef
		}
		return fmt.Errorf("creating payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *PaymentRepository) GetByProcessorRef(ctx context.Context, ref string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE processor_ref = $1`
	return scanPayment(ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, ref))
}

func (r *PaymentRepository) GetByProcessorRefForUpdate(ctx context.Context, ref string) (*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE processor_ref = $1 FOR UPDATE`
	return scanPayment(ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, ref))
}

func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	query := `
		UPDATE payments
		SET payment_method_id = $2, status = $3, processor_ref = $4, client_secret = $5,
			failure_reason = $6, updated_at = $7, completed_at = $8
		WHERE id = $1`

	tag, err := ConnFromCtx(ctx, r.pool).Exec(ctx, query,
		p.ID, p.PaymentMethodID, string(p.Status), p.ProcessorRef, p.ClientSecret,
		p.FailureReason, p.UpdatedAt, p.CompletedAt)
	if err != nil {
		if isUniqueViolation(err, "payments_processor_ref_key") {
			return errors.ErrDuplicateProcessorRef
		}
		return fmt.Errorf("updating payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) List(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	var clauses []string
	var args []any

	if filter.InvoiceID != uuid.Nil {
		args = append(args, filter.InvoiceID)
		clauses = append(clauses, fmt.Sprintf("invoice_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, string(filter.Type))
		clauses = append(clauses, fmt.Sprintf("type = $%d", len(args)))
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := ConnFromCtx(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing payments: %w", err)
	}
	defer rows.Close()

	var payments []*payment.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *PaymentRepository) LatestCompletedAdvance(ctx context.Context, invoiceID uuid.UUID) (*payment.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE invoice_id = $1 AND type = $2 AND status = $3
		ORDER BY completed_at DESC
		LIMIT 1`

	return scanPayment(ConnFromCtx(ctx, r.pool).QueryRow(ctx, query,
		invoiceID, string(payment.TypeAdvance), string(payment.StatusCompleted)))
}

func (r *PaymentRepository) CompletedTotalCents(ctx context.Context, invoiceID uuid.UUID) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0)
		FROM payments
		WHERE invoice_id = $1 AND status = $2`

	var total pgtype.Numeric
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, invoiceID, string(payment.StatusCompleted)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing completed payments: %w", err)
	}
	return NumericToCents(total)
}

func (r *PaymentRepository) SumCompleted(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = $1`

	var total pgtype.Numeric
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, string(payment.StatusCompleted)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing completed payments: %w", err)
	}
	return NumericToCents(total)
}

func scanPayment(row scanner) (*payment.Payment, error) {
	var p payment.Payment
	var amount pgtype.Numeric
	var pType, status string

	err := row.Scan(&p.ID, &p.InvoiceID, &p.CustomerID, &p.PaymentMethodID, &amount, &pType, &status,
		&p.ProcessorRef, &p.ClientSecret, &p.FailureReason, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("scanning payment: %w", err)
	}

	p.Type = payment.Type(pType)
	p.Status = payment.Status(status)
	if p.AmountCents, err = NumericToCents(amount); err != nil {
		return nil, fmt.Errorf("payment amount: %w", err)
	}
	return &p, nil
}
