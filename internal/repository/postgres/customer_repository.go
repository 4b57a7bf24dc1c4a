package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cassiomorais/invoicing/internal/domain/customer"
	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return constraint == "" || pgErr.ConstraintName == constraint
	}
	return false
}

type scanner interface {
	Scan(dest ...any) error
}

// CustomerRepository implements customer.Repository using PostgreSQL
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	query := `
		INSERT INTO customers (id, name, email, address, processor_ref, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := ConnFromCtx(ctx, r.pool).Exec(ctx, query,
		c.ID, c.Name, c.Email, c.Address, c.ProcessorRef, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "customers_email_key") {
			return errors.ErrDuplicateEmail
		}
		return fmt.Errorf("creating customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (*customer.Customer, error) {
	query := `
		SELECT id, name, email, address, processor_ref, created_at, updated_at
		FROM customers
		WHERE id = $1`

	row := ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, id)
	return scanCustomer(row)
}

func (r *CustomerRepository) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	query := `
		SELECT id, name, email, address, processor_ref, created_at, updated_at
		FROM customers
		WHERE email = $1`

	row := ConnFromCtx(ctx, r.pool).QueryRow(ctx, query, email)
	return scanCustomer(row)
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	query := `
		UPDATE customers
		SET name = $2, email = $3, address = $4, processor_ref = $5, updated_at = $6
		WHERE id = $1`

	tag, err := ConnFromCtx(ctx, r.pool).Exec(ctx, query,
		c.ID, c.Name, c.Email, c.Address, c.ProcessorRef, c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err, "customers_email_key") {
			return errors.ErrDuplicateEmail
		}
		return fmt.Errorf("updating customer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrCustomerNotFound
	}
	return nil
}

func scanCustomer(row scanner) (*customer.Customer, error) {
	var c customer.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Address, &c.ProcessorRef, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("scanning customer: %w", err)
	}
	return &c, nil
}
