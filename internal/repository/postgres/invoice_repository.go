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
	"github.com/cassiomorais/invoicing/internal/domain/invoice"
)

// InvoiceRepository implements invoice.Repository using PostgreSQL
type InvoiceRepository struct {
	pool *pgxpool.Pool
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(pool *pgxpool.Pool) *InvoiceRepository {
	return &InvoiceRepository{pool: pool}
}

func (r *InvoiceRepository) Create(ctx context.Context, inv *invoice.Invoice) error {
	conn := ConnFromCtx(ctx, r.pool)

	query := `
		INSERT INTO invoices (id, invoice_number, customer_id, total, advance, remaining,
			status, due_date, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := conn.Exec(ctx, query,
		inv.ID, inv.InvoiceNumber, inv.CustomerID,
		CentsToNumeric(inv.TotalCents), CentsToNumeric(inv.AdvanceCents), CentsToNumeric(inv.RemainingCents),
		string(inv.Status), inv.DueDate, inv.Notes, inv.CreatedAt, inv.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "invoices_invoice_number_key") {
			return errors.ErrDuplicateInvoiceNumber
		}
		return fmt.Errorf("creating invoice: %w", err)
	}

	itemQuery := `
		INSERT INTO invoice_items (id, invoice_id, description, quantity, rate, amount)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, item := range inv.Items {
		_, err := conn.Exec(ctx, itemQuery,
			item.ID, item.InvoiceID, item.Description, item.Quantity,
			CentsToNumeric(item.RateCents), CentsToNumeric(item.AmountCents))
		if err != nil {
			return fmt.Errorf("creating invoice item: %w", err)
		}
	}
	return nil
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return r.getOne(ctx, "id = $1", id)
}

func (r *InvoiceRepository) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return r.getOne(ctx, "invoice_number = $1", number)
}

func (r *InvoiceRepository) getOne(ctx context.Context, where string, arg any) (*invoice.Invoice, error) {
	conn := ConnFromCtx(ctx, r.pool)

	query := `
		SELECT id, invoice_number, customer_id, total, advance, remaining,
			status, due_date, notes, created_at, updated_at
		FROM invoices
		WHERE ` + where

	inv, err := scanInvoice(conn.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, conn, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (r *InvoiceRepository) loadItems(ctx context.Context, conn DBTX, inv *invoice.Invoice) error {
	query := `
		SELECT id, invoice_id, description, quantity, rate, amount
		FROM invoice_items
		WHERE invoice_id = $1
		ORDER BY created_at, id`

	rows, err := conn.Query(ctx, query, inv.ID)
	if err != nil {
		return fmt.Errorf("loading invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item invoice.Item
		var rate, amount pgtype.Numeric
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.Description, &item.Quantity, &rate, &amount); err != nil {
			return fmt.Errorf("scanning invoice item: %w", err)
		}
		if item.RateCents, err = NumericToCents(rate); err != nil {
			return fmt.Errorf("invoice item rate: %w", err)
		}
		if item.AmountCents, err = NumericToCents(amount); err != nil {
			return fmt.Errorf("invoice item amount: %w", err)
		}
		inv.Items = append(inv.Items, item)
	}
	return rows.Err()
}

func (r *InvoiceRepository) Update(ctx context.Context, inv *invoice.Invoice) error {
	query := `
		UPDATE invoices
		SET status = $2, remaining = $3, due_date = $4, notes = $5, updated_at = $6
		WHERE id = $1`

	tag, err := ConnFromCtx(ctx, r.pool).Exec(ctx, query,
		inv.ID, string(inv.Status), CentsToNumeric(inv.RemainingCents),
		inv.DueDate, inv.Notes, inv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("updating invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrInvoiceNotFound
	}
	return nil
}

func buildInvoiceFilter(filter invoice.ListFilter) (string, []any) {
	var clauses []string
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		clauses = append(clauses, fmt.Sprintf(
			`(invoice_number ILIKE $%[1]d OR customer_id IN
				(SELECT id FROM customers WHERE name ILIKE $%[1]d OR email ILIKE $%[1]d))`, len(args)))
	}

	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	return where, args
}

func (r *InvoiceRepository) List(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, error) {
	conn := ConnFromCtx(ctx, r.pool)
	where, args := buildInvoiceFilter(filter)

	query := `
		SELECT id, invoice_number, customer_id, total, advance, remaining,
			status, due_date, notes, created_at, updated_at
		FROM invoices` + where + `
		ORDER BY created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*invoice.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, inv := range invoices {
		if err := r.loadItems(ctx, conn, inv); err != nil {
			return nil, err
		}
	}
	return invoices, nil
}

func (r *InvoiceRepository) Count(ctx context.Context, filter invoice.ListFilter) (int64, error) {
	where, args := buildInvoiceFilter(filter)

	var count int64
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx, "SELECT COUNT(*) FROM invoices"+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting invoices: %w", err)
	}
	return count, nil
}

func (r *InvoiceRepository) StatusCounts(ctx context.Context) (map[invoice.Status]int64, error) {
	rows, err := ConnFromCtx(ctx, r.pool).Query(ctx, "SELECT status, COUNT(*) FROM invoices GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting invoices by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[invoice.Status]int64)
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scanning status count: %w", err)
		}
		counts[invoice.Status(status)] = count
	}
	return counts, rows.Err()
}

func (r *InvoiceRepository) OutstandingCents(ctx context.Context) (int64, error) {
	query := `SELECT COALESCE(SUM(remaining), 0) FROM invoices WHERE status <> $1`

	var total pgtype.Numeric
	err := ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, string(invoice.StatusFullyPaid)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("summing outstanding balances: %w", err)
	}
	return NumericToCents(total)
}

func scanInvoice(row scanner) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	var status string
	var total, advance, remaining pgtype.Numeric

	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &total, &advance, &remaining,
		&status, &inv.DueDate, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("scanning invoice: %w", err)
	}

	inv.Status = invoice.Status(status)
	if inv.TotalCents, err = NumericToCents(total); err != nil {
		return nil, fmt.Errorf("invoice total: %w", err)
	}
	if inv.AdvanceCents, err = NumericToCents(advance); err != nil {
		return nil, fmt.Errorf("invoice advance: %w", err)
	}
	if inv.RemainingCents, err = NumericToCents(remaining); err != nil {
		return nil, fmt.Errorf("invoice remaining: %w", err)
	}
	return &inv, nil
}
