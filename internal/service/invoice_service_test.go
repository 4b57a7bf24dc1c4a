package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/invoice"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
	"github.com/cassiomorais/invoicing/internal/service"
	"github.com/cassiomorais/invoicing/internal/testutil"
)

type invoiceHarness struct {
	svc       *service.InvoiceService
	invoices  *testutil.MockInvoiceRepository
	customers *testutil.MockCustomerRepository
	payments  *testutil.MockPaymentRepository
}

func newInvoiceHarness(t *testing.T) *invoiceHarness {
	t.Helper()
	h := &invoiceHarness{
		invoices:  testutil.NewMockInvoiceRepository(),
		customers: testutil.NewMockCustomerRepository(),
		payments:  testutil.NewMockPaymentRepository(),
	}
	h.svc = service.NewInvoiceService(h.invoices, h.customers, h.payments,
		testutil.NoopTxManager{}, zerolog.Nop())
	return h
}

func validInput() service.CreateInvoiceInput {
	return service.CreateInvoiceInput{
		InvoiceNumber: "INV-2001",
		CustomerName:  "Grace Hopper",
		CustomerEmail: "grace@example.com",
		DueDate:       time.Now().Add(30 * 24 * time.Hour),
		Items: []invoice.ItemInput{
			{Description: "Compiler work", Quantity: 2, RateCents: 75000},
		},
	}
}

func TestCreateInvoice_CreatesCustomerOnFirstSight(t *testing.T) {
	h := newInvoiceHarness(t)

	inv, err := h.svc.CreateInvoice(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, int64(150000), inv.TotalCents)
	assert.Equal(t, invoice.StatusAdvancePending, inv.Status)

	cust, err := h.customers.GetByEmail(context.Background(), "grace@example.com")
	require.NoError(t, err)
	assert.Equal(t, cust.ID, inv.CustomerID)
}

func TestCreateInvoice_ReusesCustomerByEmail(t *testing.T) {
	h := newInvoiceHarness(t)

	first, err := h.svc.CreateInvoice(context.Background(), validInput())
	require.NoError(t, err)

	input := validInput()
	input.InvoiceNumber = "INV-2002"
	input.CustomerName = "G. Hopper" // different display name, same email
	second, err := h.svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, first.CustomerID, second.CustomerID)
}

func TestCreateInvoice_DuplicateNumberRejected(t *testing.T) {
	h := newInvoiceHarness(t)

	_, err := h.svc.CreateInvoice(context.Background(), validInput())
	require.NoError(t, err)

	_, err = h.svc.CreateInvoice(context.Background(), validInput())
	assert.ErrorIs(t, err, errors.ErrDuplicateInvoiceNumber)
}

func TestListInvoices_FilterByStatus(t *testing.T) {
	h := newInvoiceHarness(t)

	_, err := h.svc.CreateInvoice(context.Background(), validInput())
	require.NoError(t, err)

	input := validInput()
	input.InvoiceNumber = "INV-2002"
	paid, err := h.svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	require.NoError(t, paid.MarkAdvancePaid())
	require.NoError(t, h.invoices.Update(context.Background(), paid))

	list, count, err := h.svc.ListInvoices(context.Background(),
		invoice.ListFilter{Status: invoice.StatusAdvancePaid})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	require.Len(t, list, 1)
	assert.Equal(t, "INV-2002", list[0].InvoiceNumber)
}

func TestMarkInvoiceOverdue(t *testing.T) {
	h := newInvoiceHarness(t)
	inv, err := h.svc.CreateInvoice(context.Background(), validInput())
	require.NoError(t, err)

	got, err := h.svc.MarkInvoiceOverdue(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, invoice.StatusOverdue, got.Status)

	// fully paid invoices cannot go overdue
	require.NoError(t, got.MarkAdvancePaid())
	require.NoError(t, got.MarkFullyPaid())
	require.NoError(t, h.invoices.Update(context.Background(), got))

	_, err = h.svc.MarkInvoiceOverdue(context.Background(), inv.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
}

func TestStats(t *testing.T) {
	h := newInvoiceHarness(t)
	inv, err := h.svc.CreateInvoice(context.Background(), validInput())
	require.NoError(t, err)

	p, err := payment.New(inv.ID, inv.CustomerID, inv.AdvanceCents, payment.TypeAdvance)
	require.NoError(t, err)
	require.NoError(t, p.MarkCompleted())
	require.NoError(t, h.payments.Create(context.Background(), p))

	stats, err := h.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.TotalInvoices)
	assert.Equal(t, int64(1), stats.CountsByStatus[invoice.StatusAdvancePending])
	assert.Equal(t, int64(75000), stats.CollectedCents)
	assert.Equal(t, int64(75000), stats.OutstandingCents)
}
