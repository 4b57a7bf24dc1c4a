package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassiomorais/invoicing/internal/domain/customer"
	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/event"
	"github.com/cassiomorais/invoicing/internal/domain/invoice"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
	"github.com/cassiomorais/invoicing/internal/infrastructure/observability"
	"github.com/cassiomorais/invoicing/internal/notification"
	"github.com/cassiomorais/invoicing/internal/processor"
	"github.com/cassiomorais/invoicing/internal/service"
	"github.com/cassiomorais/invoicing/internal/testutil"
)

type recordingSender struct {
	mu        sync.Mutex
	receipts  []notification.Receipt
	delivered chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{delivered: make(chan struct{}, 16)}
}

func (s *recordingSender) SendReceipt(ctx context.Context, r notification.Receipt) error {
	s.mu.Lock()
	s.receipts = append(s.receipts, r)
	s.mu.Unlock()
	s.delivered <- struct{}{}
	return nil
}

func (s *recordingSender) waitForReceipt(t *testing.T) notification.Receipt {
	t.Helper()
	select {
	case <-s.delivered:
	case <-time.After(2 * time.Second):
		t.Fatal("no receipt delivered")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.receipts[len(s.receipts)-1]
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.receipts)
}

type reconcileHarness struct {
	svc       *service.ReconcileService
	invoices  *testutil.MockInvoiceRepository
	customers *testutil.MockCustomerRepository
	payments  *testutil.MockPaymentRepository
	cards     *testutil.MockCardRepository
	events    *testutil.MockEventRepository
	sim       *processor.SimulatedClient
	sender    *recordingSender
	cust      *customer.Customer
	inv       *invoice.Invoice
}

func newReconcileHarness(t *testing.T, simOpts ...processor.SimulatedOption) *reconcileHarness {
	t.Helper()
	h := &reconcileHarness{
		invoices:  testutil.NewMockInvoiceRepository(),
		customers: testutil.NewMockCustomerRepository(),
		payments:  testutil.NewMockPaymentRepository(),
		cards:     testutil.NewMockCardRepository(),
		events:    testutil.NewMockEventRepository(),
		sim:       processor.NewSimulatedClient(simOpts...),
		sender:    newRecordingSender(),
	}
	notifier := notification.NewNotifier(h.sender, zerolog.Nop())
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	h.svc = service.NewReconcileService(
		h.invoices, h.customers, h.payments, h.cards, h.events,
		testutil.NoopTxManager{}, testutil.NoopLockFactory{},
		h.sim, notifier, metrics, zerolog.Nop(), 50,
	)

	h.cust = testutil.SeedCustomer(t, h.customers)
	h.inv = testutil.SeedInvoice(t, h.invoices, h.cust)
	return h
}

func (h *reconcileHarness) initiateAdvance(t *testing.T) *service.AdvanceChargeResult {
	t.Helper()
	res, err := h.svc.InitiateAdvanceCharge(context.Background(), h.inv.ID)
	require.NoError(t, err)
	return res
}

func (h *reconcileHarness) mustInvoice(t *testing.T) *invoice.Invoice {
	t.Helper()
	inv, err := h.invoices.GetByID(context.Background(), h.inv.ID)
	require.NoError(t, err)
	return inv
}

func TestInitiateAdvanceCharge(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)

	assert.Equal(t, int64(50000), res.AmountCents)
	assert.NotEmpty(t, res.ClientSecret)

	p, err := h.payments.GetByID(context.Background(), res.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusPending, p.Status)
	assert.Equal(t, payment.TypeAdvance, p.Type)
	require.NotNil(t, p.ProcessorRef)
	assert.Equal(t, res.ProcessorRef, *p.ProcessorRef)
}

func TestInitiateAdvanceCharge_CreatesProcessorCustomer(t *testing.T) {
	h := newReconcileHarness(t)
	// strip the processor identity
	h.cust.ProcessorRef = nil
	require.NoError(t, h.customers.Update(context.Background(), h.cust))

	h.initiateAdvance(t)

	cust, err := h.customers.GetByID(context.Background(), h.cust.ID)
	require.NoError(t, err)
	assert.True(t, cust.HasProcessorRef())
}

func TestInitiateAdvanceCharge_RejectedWhenAdvancePaid(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)
	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeSucceeded, Source: "webhook",
	})
	require.NoError(t, err)

	_, err = h.svc.InitiateAdvanceCharge(context.Background(), h.inv.ID)
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestApplyPaymentOutcome_AdvanceSuccess(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)

	out, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef,
		Outcome:      service.OutcomeSucceeded,
		AmountCents:  50000,
		MethodRef:    "pm_new_1",
		Source:       "webhook",
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, payment.StatusCompleted, out.PaymentStatus)
	assert.Equal(t, invoice.StatusAdvancePaid, out.InvoiceStatus)

	// the card seen on the charge was stored and became the default
	cards, err := h.cards.ListByCustomer(context.Background(), h.cust.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, "pm_new_1", cards[0].ProcessorMethodRef)
	assert.True(t, cards[0].IsDefault)

	receipt := h.sender.waitForReceipt(t)
	assert.Equal(t, "INV-1001", receipt.InvoiceNumber)
	assert.Equal(t, "ADVANCE", receipt.PaymentType)
	assert.Equal(t, int64(50000), receipt.AmountCents)
	assert.Equal(t, int64(50000), receipt.RemainingCents)
}

func TestApplyPaymentOutcome_DuplicateSuccessAcked(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)
	ev := service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeSucceeded,
		MethodRef: "pm_new_1", Source: "webhook",
	}

	first, err := h.svc.ApplyPaymentOutcome(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, first.Applied)
	h.sender.waitForReceipt(t)

	// same event redelivered
	second, err := h.svc.ApplyPaymentOutcome(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, second.Applied)
	assert.True(t, second.Duplicate)
	assert.Equal(t, invoice.StatusAdvancePaid, second.InvoiceStatus)

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, h.sender.count(), "duplicates never resend the receipt")
}

func TestApplyPaymentOutcome_LateFailureConflicts(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)

	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeSucceeded, Source: "confirm",
	})
	require.NoError(t, err)

	out, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeFailed,
		DeclineCode: "insufficient_funds", Source: "webhook",
	})
	require.NoError(t, err)
	assert.True(t, out.Conflict)
	assert.Equal(t, payment.StatusCompleted, out.PaymentStatus)
	assert.Equal(t, invoice.StatusAdvancePaid, out.InvoiceStatus)
}

func TestApplyPaymentOutcome_FailureThenRecovery(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)

	out, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeFailed,
		DeclineCode: "expired_card", Source: "webhook",
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, payment.StatusFailed, out.PaymentStatus)
	assert.Equal(t, invoice.StatusAdvancePending, out.InvoiceStatus)

	// duplicate failure is acked without churn
	dup, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeFailed, Source: "webhook",
	})
	require.NoError(t, err)
	assert.True(t, dup.Duplicate)

	// a late success wins, money moved
	win, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeSucceeded, Source: "webhook",
	})
	require.NoError(t, err)
	assert.True(t, win.Applied)
	assert.Equal(t, payment.StatusCompleted, win.PaymentStatus)
	assert.Equal(t, invoice.StatusAdvancePaid, win.InvoiceStatus)
}

func TestApplyPaymentOutcome_SynthesizesFromMetadata(t *testing.T) {
	h := newReconcileHarness(t)

	out, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: "pi_external_1",
		Outcome:      service.OutcomeSucceeded,
		AmountCents:  50000,
		InvoiceID:    h.inv.ID,
		CustomerID:   h.cust.ID,
		PaymentType:  payment.TypeAdvance,
		Source:       "webhook",
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, invoice.StatusAdvancePaid, out.InvoiceStatus)

	p, err := h.payments.GetByProcessorRef(context.Background(), "pi_external_1")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, p.Status)
	assert.Equal(t, int64(50000), p.AmountCents)
}

func TestApplyPaymentOutcome_SynthesisInfersTypeAndAmount(t *testing.T) {
	h := newReconcileHarness(t)

	// no amount and no type: inferred from the invoice status and split
	out, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: "pi_external_2",
		Outcome:      service.OutcomeSucceeded,
		InvoiceID:    h.inv.ID,
		Source:       "webhook",
	})
	require.NoError(t, err)
	assert.True(t, out.Applied)

	p, err := h.payments.GetByProcessorRef(context.Background(), "pi_external_2")
	require.NoError(t, err)
	assert.Equal(t, payment.TypeAdvance, p.Type)
	assert.Equal(t, int64(50000), p.AmountCents)
}

func TestApplyPaymentOutcome_OrphanEventParked(t *testing.T) {
	h := newReconcileHarness(t)

	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: "pi_unknown",
		Outcome:      service.OutcomeSucceeded,
		Source:       "webhook",
		Raw:          []byte(`{"intent_ref":"pi_unknown"}`),
	})
	require.ErrorIs(t, err, errors.ErrUnreconcilable)

	parked := h.events.All()
	require.Len(t, parked, 1)
	assert.Equal(t, "pi_unknown", parked[0].ProcessorRef)
	assert.Equal(t, event.ResolutionPending, parked[0].Status)
	assert.JSONEq(t, `{"intent_ref":"pi_unknown"}`, string(parked[0].Payload))
}

func TestRetryUnreconciled(t *testing.T) {
	h := newReconcileHarness(t)

	// park an event that references a payment that does not exist yet
	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: "pi_late_registered",
		Outcome:      service.OutcomeSucceeded,
		Source:       "webhook",
	})
	require.ErrorIs(t, err, errors.ErrUnreconcilable)

	// the payment row shows up later (for example a delayed insert from
	// another path)
	p, err := payment.New(h.inv.ID, h.cust.ID, 50000, payment.TypeAdvance)
	require.NoError(t, err)
	p.AttachProcessorRef("pi_late_registered", "")
	require.NoError(t, h.payments.Create(context.Background(), p))

	resolved, failed, err := h.svc.RetryUnreconciled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 0, failed)

	got, err := h.payments.GetByProcessorRef(context.Background(), "pi_late_registered")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusCompleted, got.Status)

	parked := h.events.All()
	require.Len(t, parked, 1)
	assert.Equal(t, event.ResolutionResolved, parked[0].Status)
}

func TestRetryUnreconciled_StillUnreconcilable(t *testing.T) {
	h := newReconcileHarness(t)

	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: "pi_forever_orphan",
		Outcome:      service.OutcomeSucceeded,
		Source:       "webhook",
	})
	require.ErrorIs(t, err, errors.ErrUnreconcilable)

	resolved, failed, err := h.svc.RetryUnreconciled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)
	assert.Equal(t, 1, failed)

	// replay must not park a second copy
	assert.Len(t, h.events.All(), 1)
}

func TestInitiateRemainingCharge_HappyPath(t *testing.T) {
	h := newReconcileHarness(t)

	// advance paid first
	adv := h.initiateAdvance(t)
	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: adv.ProcessorRef, Outcome: service.OutcomeSucceeded,
		MethodRef: "pm_stored_1", Source: "webhook",
	})
	require.NoError(t, err)
	h.sender.waitForReceipt(t)

	res, err := h.svc.InitiateRemainingCharge(context.Background(), h.inv.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, res.Reconciled)
	assert.True(t, res.Reconciled.Applied)
	assert.Equal(t, invoice.StatusFullyPaid, res.Reconciled.InvoiceStatus)

	inv := h.mustInvoice(t)
	assert.Equal(t, invoice.StatusFullyPaid, inv.Status)
	assert.Equal(t, int64(0), inv.RemainingCents)

	receipt := h.sender.waitForReceipt(t)
	assert.Equal(t, "REMAINING", receipt.PaymentType)
	assert.Equal(t, int64(0), receipt.RemainingCents)
}

func TestInitiateRemainingCharge_AdvanceUnpaid(t *testing.T) {
	h := newReconcileHarness(t)

	_, err := h.svc.InitiateRemainingCharge(context.Background(), h.inv.ID, nil)
	assert.ErrorIs(t, err, errors.ErrInvalidState)
}

func TestInitiateRemainingCharge_Declined(t *testing.T) {
	h := newReconcileHarness(t, processor.WithDeclineCode("insufficient_funds"))
	payAdvanceDirectly(t, h)
	testutil.SeedDefaultCard(t, h.cards, h.cust)

	res, err := h.svc.InitiateRemainingCharge(context.Background(), h.inv.ID, nil)
	require.ErrorIs(t, err, errors.ErrProcessorDeclined)
	require.NotNil(t, res)
	require.NotNil(t, res.Reconciled)
	assert.True(t, res.Reconciled.Applied)
	assert.Equal(t, payment.StatusFailed, res.Reconciled.PaymentStatus)

	inv := h.mustInvoice(t)
	assert.Equal(t, invoice.StatusAdvancePaid, inv.Status)
	assert.Equal(t, int64(50000), inv.RemainingCents)
}

func TestInitiateRemainingCharge_FingerprintMismatch(t *testing.T) {
	h := newReconcileHarness(t, processor.WithPaymentMethod(processor.PaymentMethod{
		Ref: "pm_stored_1", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030,
		Fingerprint: "fp_completely_different",
	}))
	payAdvanceDirectly(t, h)
	testutil.SeedDefaultCard(t, h.cards, h.cust)

	_, err := h.svc.InitiateRemainingCharge(context.Background(), h.inv.ID, nil)
	assert.ErrorIs(t, err, errors.ErrPaymentMethodChanged)
}

func TestInitiateRemainingCharge_ExpiredCard(t *testing.T) {
	h := newReconcileHarness(t)
	payAdvanceDirectly(t, h)
	c := testutil.SeedDefaultCard(t, h.cards, h.cust)
	c.ExpYear = 2020
	require.NoError(t, h.cards.Update(context.Background(), c))

	_, err := h.svc.InitiateRemainingCharge(context.Background(), h.inv.ID, nil)
	assert.ErrorIs(t, err, errors.ErrProcessorDeclined)
}

func TestInitiateRemainingCharge_NoStoredCard(t *testing.T) {
	h := newReconcileHarness(t)
	payAdvanceDirectly(t, h)

	_, err := h.svc.InitiateRemainingCharge(context.Background(), h.inv.ID, nil)
	assert.ErrorIs(t, err, errors.ErrPaymentMethodNotFound)
}

func TestVerifyAndReconcile_SucceededIntent(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)
	h.sim.MarkSucceeded(res.ProcessorRef)

	out, err := h.svc.VerifyAndReconcile(context.Background(), res.ProcessorRef, uuid.Nil)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, payment.StatusCompleted, out.PaymentStatus)
	assert.Equal(t, invoice.StatusAdvancePaid, out.InvoiceStatus)
}

func TestVerifyAndReconcile_UnsettledIntentReportsState(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)
	// intent is still requires_payment_method at the simulator, which maps
	// to a failure outcome; use a fresh harness state where the intent is
	// mid-flight instead
	h.sim.MarkProcessing(res.ProcessorRef)

	out, err := h.svc.VerifyAndReconcile(context.Background(), res.ProcessorRef, uuid.Nil)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, payment.StatusPending, out.PaymentStatus)
	assert.Equal(t, invoice.StatusAdvancePending, out.InvoiceStatus)
}

func TestVerifyAndReconcile_ClientClaimNotTrusted(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)
	// the processor still says requires_payment_method, so the confirm
	// call records a failure no matter what the client claims
	out, err := h.svc.VerifyAndReconcile(context.Background(), res.ProcessorRef, uuid.Nil)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.Equal(t, payment.StatusFailed, out.PaymentStatus)
	assert.Equal(t, invoice.StatusAdvancePending, out.InvoiceStatus)
}

func TestVerifyAndReconcile_InvoiceMismatchRejected(t *testing.T) {
	h := newReconcileHarness(t)
	res := h.initiateAdvance(t)
	h.sim.MarkSucceeded(res.ProcessorRef)

	_, err := h.svc.VerifyAndReconcile(context.Background(), res.ProcessorRef, uuid.New())
	require.Error(t, err)

	// nothing was applied
	p, getErr := h.payments.GetByProcessorRef(context.Background(), res.ProcessorRef)
	require.NoError(t, getErr)
	assert.Equal(t, payment.StatusPending, p.Status)
}

func TestCardDedup_SameFingerprintRefreshes(t *testing.T) {
	h := newReconcileHarness(t, processor.WithPaymentMethod(processor.PaymentMethod{
		Ref: "pm_reattached", Brand: "visa", Last4: "4242", ExpMonth: 1, ExpYear: 2031,
		Fingerprint: "fp_pm_stored_1",
	}))
	stored := testutil.SeedDefaultCard(t, h.cards, h.cust)

	res := h.initiateAdvance(t)
	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeSucceeded,
		MethodRef: "pm_reattached", Source: "webhook",
	})
	require.NoError(t, err)

	cards, err := h.cards.ListByCustomer(context.Background(), h.cust.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1, "same physical card must not create a second row")
	assert.Equal(t, stored.ID, cards[0].ID)
	assert.Equal(t, "pm_reattached", cards[0].ProcessorMethodRef)
	assert.Equal(t, 2031, cards[0].ExpYear)
}

func TestCardDedup_SameRefRefreshes(t *testing.T) {
	h := newReconcileHarness(t, processor.WithPaymentMethod(processor.PaymentMethod{
		Ref: "pm_stored_1", Brand: "visa", Last4: "4242", ExpMonth: 3, ExpYear: 2033,
		Fingerprint: "fp_reissued",
	}))
	stored := testutil.SeedDefaultCard(t, h.cards, h.cust)

	res := h.initiateAdvance(t)
	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeSucceeded,
		MethodRef: "pm_stored_1", Source: "webhook",
	})
	require.NoError(t, err)

	// reference match wins even when the processor reports a new fingerprint,
	// and the stored row picks up the fresh expiry
	cards, err := h.cards.ListByCustomer(context.Background(), h.cust.ID)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.Equal(t, stored.ID, cards[0].ID)
	assert.Equal(t, 2033, cards[0].ExpYear)
}

func TestCardDefault_FollowsTheCardThatPaid(t *testing.T) {
	h := newReconcileHarness(t)
	old := testutil.SeedDefaultCard(t, h.cards, h.cust)

	res := h.initiateAdvance(t)
	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: res.ProcessorRef, Outcome: service.OutcomeSucceeded,
		MethodRef: "pm_new_1", Source: "webhook",
	})
	require.NoError(t, err)

	cards, err := h.cards.ListByCustomer(context.Background(), h.cust.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)

	byRef := map[string]bool{}
	for _, c := range cards {
		byRef[c.ProcessorMethodRef] = c.IsDefault
	}
	assert.True(t, byRef["pm_new_1"], "the card used on the charge becomes the default")
	assert.False(t, byRef[old.ProcessorMethodRef], "the previous default is cleared")

	// the off-session remaining charge now runs against the new card
	got, err := h.cards.DefaultForCustomer(context.Background(), h.cust.ID)
	require.NoError(t, err)
	assert.Equal(t, "pm_new_1", got.ProcessorMethodRef)
}

func TestCardVaulting_SkippedForRemainingCharge(t *testing.T) {
	h := newReconcileHarness(t)
	payAdvanceDirectly(t, h)

	p, err := payment.New(h.inv.ID, h.cust.ID, h.inv.RemainingCents, payment.TypeRemaining)
	require.NoError(t, err)
	p.AttachProcessorRef("pi_remaining_direct", "")
	require.NoError(t, h.payments.Create(context.Background(), p))

	_, err = h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: "pi_remaining_direct", Outcome: service.OutcomeSucceeded,
		MethodRef: "pm_new_1", Source: "webhook",
	})
	require.NoError(t, err)
	h.sender.waitForReceipt(t)

	// a remaining charge always runs against an already stored card, so the
	// method on the event is never vaulted
	cards, err := h.cards.ListByCustomer(context.Background(), h.cust.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)
}

func TestApplyPaymentOutcome_RedeliveredOrphanParksOnce(t *testing.T) {
	h := newReconcileHarness(t)
	ev := service.OutcomeEvent{
		ProcessorRef: "pi_unknown_redelivered",
		Outcome:      service.OutcomeSucceeded,
		Source:       "webhook",
	}

	_, err := h.svc.ApplyPaymentOutcome(context.Background(), ev)
	require.ErrorIs(t, err, errors.ErrUnreconcilable)

	// the sender redelivers before any operator touched the parked row
	_, err = h.svc.ApplyPaymentOutcome(context.Background(), ev)
	require.ErrorIs(t, err, errors.ErrUnreconcilable)

	assert.Len(t, h.events.All(), 1, "redelivery must not park a second row")
}

func TestRetryUnreconciled_FailedReplayStaysReplayable(t *testing.T) {
	h := newReconcileHarness(t)

	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: "pi_eventually_matched",
		Outcome:      service.OutcomeSucceeded,
		Source:       "webhook",
	})
	require.ErrorIs(t, err, errors.ErrUnreconcilable)

	resolved, failed, err := h.svc.RetryUnreconciled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)
	assert.Equal(t, 1, failed)

	parked := h.events.All()
	require.Len(t, parked, 1)
	assert.Equal(t, event.ResolutionPending, parked[0].Status, "a failed replay keeps the event replayable")
	assert.Equal(t, 1, parked[0].Attempts)

	// the payment shows up, the next replay resolves the event
	p, err := payment.New(h.inv.ID, h.cust.ID, 50000, payment.TypeAdvance)
	require.NoError(t, err)
	p.AttachProcessorRef("pi_eventually_matched", "")
	require.NoError(t, h.payments.Create(context.Background(), p))

	resolved, failed, err = h.svc.RetryUnreconciled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 0, failed)
}

func TestRetryUnreconciled_AttemptBudgetExhausted(t *testing.T) {
	h := newReconcileHarness(t)

	_, err := h.svc.ApplyPaymentOutcome(context.Background(), service.OutcomeEvent{
		ProcessorRef: "pi_never_matched",
		Outcome:      service.OutcomeSucceeded,
		Source:       "webhook",
	})
	require.ErrorIs(t, err, errors.ErrUnreconcilable)

	for i := 0; i < event.MaxReplayAttempts; i++ {
		_, failed, err := h.svc.RetryUnreconciled(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, failed)
	}

	parked := h.events.All()
	require.Len(t, parked, 1)
	assert.Equal(t, event.ResolutionFailed, parked[0].Status)
	assert.Equal(t, event.MaxReplayAttempts, parked[0].Attempts)

	// a failed event is out of the replay set
	resolved, failed, err := h.svc.RetryUnreconciled(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, resolved)
	assert.Equal(t, 0, failed)
}

// payAdvanceDirectly moves the invoice to ADVANCE_PAID with a completed
// advance payment, bypassing the charge flow.
func payAdvanceDirectly(t *testing.T, h *reconcileHarness) {
	t.Helper()
	p, err := payment.New(h.inv.ID, h.cust.ID, h.inv.AdvanceCents, payment.TypeAdvance)
	require.NoError(t, err)
	p.AttachProcessorRef("pi_advance_direct_"+uuid.NewString(), "")
	require.NoError(t, p.MarkCompleted())
	require.NoError(t, h.payments.Create(context.Background(), p))

	inv := h.mustInvoice(t)
	require.NoError(t, inv.MarkAdvancePaid())
	require.NoError(t, h.invoices.Update(context.Background(), inv))
	h.inv = inv
}
