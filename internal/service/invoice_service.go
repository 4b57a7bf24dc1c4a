package service

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cassiomorais/invoicing/internal/domain/customer"
	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/invoice"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
)

// InvoiceService handles invoice creation and admin queries.
type InvoiceService struct {
	invoices  invoice.Repository
	customers customer.Repository
	payments  payment.Repository
	tx        TransactionManager
	logger    zerolog.Logger
}

// NewInvoiceService creates an invoice service
func NewInvoiceService(
	invoices invoice.Repository,
	customers customer.Repository,
	payments payment.Repository,
	tx TransactionManager,
	logger zerolog.Logger,
) *InvoiceService {
	return &InvoiceService{
		invoices:  invoices,
		customers: customers,
		payments:  payments,
		tx:        tx,
		logger:    logger,
	}
}

// CreateInvoice creates an invoice, resolving the customer by email and
// creating one on first sight. Customer resolution and invoice insert share
// a transaction so a duplicate invoice number never leaves a stray customer
// behind.
func (s *InvoiceService) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*invoice.Invoice, error) {
	var created *invoice.Invoice

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		cust, err := s.customers.GetByEmail(ctx, input.CustomerEmail)
		if stderrors.Is(err, errors.ErrCustomerNotFound) {
			cust, err = customer.New(input.CustomerName, input.CustomerEmail, input.CustomerAddress)
			if err != nil {
				return err
			}
			if err := s.customers.Create(ctx, cust); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		inv, err := invoice.New(input.InvoiceNumber, cust.ID, input.DueDate, input.Notes, input.Items)
		if err != nil {
			return err
		}
		if err := s.invoices.Create(ctx, inv); err != nil {
			return err
		}

		created = inv
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("invoice_number", created.InvoiceNumber).
		Str("invoice_id", created.ID.String()).
		Int64("total_cents", created.TotalCents).
		Msg("invoice created")
	return created, nil
}

// GetInvoice returns an invoice by ID
func (s *InvoiceService) GetInvoice(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

// GetInvoiceByNumber returns an invoice by its invoice number
func (s *InvoiceService) GetInvoiceByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return s.invoices.GetByNumber(ctx, number)
}

// ListInvoices returns invoices matching the filter plus the total count
func (s *InvoiceService) ListInvoices(ctx context.Context, filter invoice.ListFilter) ([]*invoice.Invoice, int64, error) {
	invoices, err := s.invoices.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.invoices.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return invoices, count, nil
}

// MarkInvoiceOverdue flags an invoice past its due date. Driven by an
// operator or an external scheduler, never by this service on its own.
func (s *InvoiceService) MarkInvoiceOverdue(ctx context.Context, id uuid.UUID) (*invoice.Invoice, error) {
	var result *invoice.Invoice
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		inv, err := s.invoices.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := inv.MarkOverdue(); err != nil {
			return err
		}
		if err := s.invoices.Update(ctx, inv); err != nil {
			return err
		}
		result = inv
		return nil
	})
	return result, err
}

// Stats returns the dashboard summary
func (s *InvoiceService) Stats(ctx context.Context) (*InvoiceStats, error) {
	counts, err := s.invoices.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, c := range counts {
		total += c
	}

	collected, err := s.payments.SumCompleted(ctx)
	if err != nil {
		return nil, err
	}
	outstanding, err := s.invoices.OutstandingCents(ctx)
	if err != nil {
		return nil, err
	}

	return &InvoiceStats{
		TotalInvoices:    total,
		CountsByStatus:   counts,
		CollectedCents:   collected,
		OutstandingCents: outstanding,
	}, nil
}
