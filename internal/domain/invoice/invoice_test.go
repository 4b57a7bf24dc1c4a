package invoice

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

func newTestInvoice(t *testing.T, items []ItemInput) *Invoice {
	t.Helper()
	inv, err := New("INV-2026-0042", uuid.New(), time.Now().Add(14*24*time.Hour), "", items)
	require.NoError(t, err)
	return inv
}

func TestNew_SplitsTotalEvenly(t *testing.T) {
	inv := newTestInvoice(t, []ItemInput{
		{Description: "Design work", Quantity: 10, RateCents: 15000},
	})

	assert.Equal(t, int64(150000), inv.TotalCents)
	assert.Equal(t, int64(75000), inv.AdvanceCents)
	assert.Equal(t, int64(75000), inv.RemainingCents)
	assert.Equal(t, StatusAdvancePending, inv.Status)
}

func TestNew_OddTotalRoundsAdvanceDown(t *testing.T) {
	inv := newTestInvoice(t, []ItemInput{
		{Description: "Consulting", Quantity: 1, RateCents: 10001},
	})

	assert.Equal(t, int64(5000), inv.AdvanceCents)
	assert.Equal(t, int64(5001), inv.RemainingCents)
	assert.Equal(t, inv.TotalCents, inv.AdvanceCents+inv.RemainingCents)
}

func TestNew_ComputesLineAmounts(t *testing.T) {
	inv := newTestInvoice(t, []ItemInput{
		{Description: "Hosting", Quantity: 3, RateCents: 2500},
		{Description: "Support", Quantity: 2, RateCents: 10000},
	})

	require.Len(t, inv.Items, 2)
	assert.Equal(t, int64(7500), inv.Items[0].AmountCents)
	assert.Equal(t, int64(20000), inv.Items[1].AmountCents)
	assert.Equal(t, int64(27500), inv.TotalCents)
}

func TestNew_Validation(t *testing.T) {
	customerID := uuid.New()
	due := time.Now()

	_, err := New("", customerID, due, "", []ItemInput{{Description: "x", Quantity: 1, RateCents: 100}})
	assert.Error(t, err)

	_, err = New("INV-1", customerID, due, "", nil)
	assert.Error(t, err)

	_, err = New("INV-1", customerID, due, "", []ItemInput{{Description: "", Quantity: 1, RateCents: 100}})
	assert.Error(t, err)

	_, err = New("INV-1", customerID, due, "", []ItemInput{{Description: "x", Quantity: 0, RateCents: 100}})
	assert.Error(t, err)

	_, err = New("INV-1", customerID, due, "", []ItemInput{{Description: "x", Quantity: 1, RateCents: 0}})
	assert.Error(t, err)
}

func TestTransitions_HappyPath(t *testing.T) {
	inv := newTestInvoice(t, []ItemInput{{Description: "x", Quantity: 1, RateCents: 10000}})

	require.NoError(t, inv.MarkAdvancePaid())
	assert.Equal(t, StatusAdvancePaid, inv.Status)

	require.NoError(t, inv.MarkFullyPaid())
	assert.Equal(t, StatusFullyPaid, inv.Status)
	assert.Equal(t, int64(0), inv.RemainingCents)
}

func TestTransitions_FullyPaidIsTerminal(t *testing.T) {
	inv := newTestInvoice(t, []ItemInput{{Description: "x", Quantity: 1, RateCents: 10000}})
	require.NoError(t, inv.MarkAdvancePaid())
	require.NoError(t, inv.MarkFullyPaid())

	err := inv.MarkAdvancePaid()
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
	err = inv.MarkOverdue()
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
	assert.False(t, inv.IsPayable())
}

func TestTransitions_SkipAdvanceNotAllowed(t *testing.T) {
	inv := newTestInvoice(t, []ItemInput{{Description: "x", Quantity: 1, RateCents: 10000}})

	err := inv.MarkFullyPaid()
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
	// failed transition must not zero the balance
	assert.Equal(t, int64(5000), inv.RemainingCents)
}

func TestTransitions_OverdueRecovers(t *testing.T) {
	inv := newTestInvoice(t, []ItemInput{{Description: "x", Quantity: 1, RateCents: 10000}})

	require.NoError(t, inv.MarkOverdue())
	assert.True(t, inv.IsPayable())

	require.NoError(t, inv.MarkAdvancePaid())
	assert.Equal(t, StatusAdvancePaid, inv.Status)

	require.NoError(t, inv.MarkOverdue())
	require.NoError(t, inv.MarkFullyPaid())
	assert.Equal(t, StatusFullyPaid, inv.Status)
}
