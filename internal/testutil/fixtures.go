package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cassiomorais/invoicing/internal/domain/card"
	"github.com/cassiomorais/invoicing/internal/domain/customer"
	"github.com/cassiomorais/invoicing/internal/domain/invoice"
)

// SeedCustomer stores a customer with a processor identity.
func SeedCustomer(t *testing.T, repo *MockCustomerRepository) *customer.Customer {
	t.Helper()
	cust, err := customer.New("Ada Lovelace", "ada@example.com", "12 Analytical Way")
	require.NoError(t, err)
	cust.SetProcessorRef("cus_test_1")
	require.NoError(t, repo.Create(context.Background(), cust))
	return cust
}

// SeedInvoice stores a two-line invoice in ADVANCE_PENDING for the given
// customer. Total is 100000 cents, split 50000 / 50000.
func SeedInvoice(t *testing.T, repo *MockInvoiceRepository, cust *customer.Customer) *invoice.Invoice {
	t.Helper()
	inv, err := invoice.New("INV-1001", cust.ID, time.Now().Add(14*24*time.Hour), "test invoice",
		[]invoice.ItemInput{
			{Description: "Design", Quantity: 4, RateCents: 20000},
			{Description: "Hosting", Quantity: 1, RateCents: 20000},
		})
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), inv))
	return inv
}

// SeedDefaultCard stores a default card for the customer.
func SeedDefaultCard(t *testing.T, repo *MockCardRepository, cust *customer.Customer) *card.Card {
	t.Helper()
	fp := "fp_pm_stored_1"
	c, err := card.New(cust.ID, "pm_stored_1", "visa", "4242", 12, 2030, &fp)
	require.NoError(t, err)
	c.IsDefault = true
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}
