package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cassiomorais/invoicing/internal/domain/card"
	"github.com/cassiomorais/invoicing/internal/domain/customer"
	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/event"
	"github.com/cassiomorais/invoicing/internal/domain/invoice"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
	"github.com/cassiomorais/invoicing/internal/infrastructure/observability"
	"github.com/cassiomorais/invoicing/internal/notification"
	"github.com/cassiomorais/invoicing/internal/processor"
)

// ReconcileService owns the payment lifecycle: initiating charges and
// applying processor outcome events. Outcome application is idempotent and
// safe under races between the webhook and client-confirmation paths.
type ReconcileService struct {
	invoices  invoice.Repository
	customers customer.Repository
	payments  payment.Repository
	cards     card.Repository
	events    event.Repository
	tx        TransactionManager
	locks     LockFactory
	processor processor.Client
	notifier  *notification.Notifier
	metrics   *observability.Metrics
	logger    zerolog.Logger

	replayBatchSize int
}

// NewReconcileService creates a reconcile service
func NewReconcileService(
	invoices invoice.Repository,
	customers customer.Repository,
	payments payment.Repository,
	cards card.Repository,
	events event.Repository,
	tx TransactionManager,
	locks LockFactory,
	proc processor.Client,
	notifier *notification.Notifier,
	metrics *observability.Metrics,
	logger zerolog.Logger,
	replayBatchSize int,
) *ReconcileService {
	if replayBatchSize <= 0 {
		replayBatchSize = 50
	}
	return &ReconcileService{
		invoices:        invoices,
		customers:       customers,
		payments:        payments,
		cards:           cards,
		events:          events,
		tx:              tx,
		locks:           locks,
		processor:       proc,
		notifier:        notifier,
		metrics:         metrics,
		logger:          logger,
		replayBatchSize: replayBatchSize,
	}
}

// InitiateAdvanceCharge creates the on-session charge intent for an
// invoice's advance half and returns the client secret the browser needs
// to confirm it.
func (s *ReconcileService) InitiateAdvanceCharge(ctx context.Context, invoiceID uuid.UUID) (*AdvanceChargeResult, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoice.StatusAdvancePending && inv.Status != invoice.StatusOverdue {
		return nil, errors.NewDomainError("advance_already_paid",
			"invoice "+inv.InvoiceNumber+" is not awaiting its advance", errors.ErrInvalidState)
	}
	if _, err := s.payments.LatestCompletedAdvance(ctx, inv.ID); err == nil {
		return nil, errors.NewDomainError("advance_already_paid",
			"advance for invoice "+inv.InvoiceNumber+" already completed", errors.ErrInvalidState)
	} else if !stderrors.Is(err, errors.ErrPaymentNotFound) {
		return nil, err
	}

	cust, err := s.customers.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return nil, err
	}
	if !cust.HasProcessorRef() {
		ref, err := s.processor.CreateCustomer(ctx, cust.Name, cust.Email)
		if err != nil {
			return nil, err
		}
		cust.SetProcessorRef(ref)
		if err := s.customers.Update(ctx, cust); err != nil {
			return nil, err
		}
	}

	intent, err := s.processor.CreateIntent(ctx, processor.CreateIntentParams{
		AmountCents:    inv.AdvanceCents,
		CustomerRef:    *cust.ProcessorRef,
		SetupFutureUse: true,
		Metadata: processor.Metadata{
			InvoiceID:   inv.ID,
			CustomerID:  cust.ID,
			PaymentType: string(payment.TypeAdvance),
		},
	})
	if err != nil {
		return nil, err
	}

	p, err := payment.New(inv.ID, cust.ID, inv.AdvanceCents, payment.TypeAdvance)
	if err != nil {
		return nil, err
	}
	p.AttachProcessorRef(intent.Ref, intent.ClientSecret)
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}

	s.metrics.ChargesInitiated.WithLabelValues(string(payment.TypeAdvance)).Inc()
	s.logger.Info().
		Str("invoice_number", inv.InvoiceNumber).
		Str("payment_id", p.ID.String()).
		Str("processor_ref", intent.Ref).
		Msg("advance charge initiated")

	return &AdvanceChargeResult{
		PaymentID:    p.ID,
		ProcessorRef: intent.Ref,
		ClientSecret: intent.ClientSecret,
		AmountCents:  p.AmountCents,
	}, nil
}

// InitiateRemainingCharge charges the remaining balance off-session against
// a stored card. The payment row is committed as PROCESSING before the
// confirmation call, so a webhook racing the confirmation always finds it.
func (s *ReconcileService) InitiateRemainingCharge(ctx context.Context, invoiceID uuid.UUID, cardID *uuid.UUID) (*RemainingChargeResult, error) {
	inv, err := s.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.Status != invoice.StatusAdvancePaid && inv.Status != invoice.StatusOverdue {
		return nil, errors.NewDomainError("remaining_not_chargeable",
			"invoice "+inv.InvoiceNumber+" is not ready for its remaining balance", errors.ErrInvalidState)
	}
	if inv.RemainingCents <= 0 {
		return nil, errors.NewDomainError("nothing_to_charge",
			"invoice "+inv.InvoiceNumber+" has no remaining balance", errors.ErrInvalidState)
	}
	if _, err := s.payments.LatestCompletedAdvance(ctx, inv.ID); err != nil {
		if stderrors.Is(err, errors.ErrPaymentNotFound) {
			return nil, errors.NewDomainError("advance_unpaid",
				"advance for invoice "+inv.InvoiceNumber+" has not completed", errors.ErrInvalidState)
		}
		return nil, err
	}

	cust, err := s.customers.GetByID(ctx, inv.CustomerID)
	if err != nil {
		return nil, err
	}
	if !cust.HasProcessorRef() {
		return nil, errors.NewDomainError("no_processor_customer",
			"customer has no processor identity", errors.ErrInvalidState)
	}

	c, err := s.resolveCard(ctx, cust.ID, cardID)
	if err != nil {
		return nil, err
	}
	if c.IsExpired(time.Now()) {
		return nil, errors.MapDeclineCode("expired_card")
	}

	// re-verify the stored method against the processor before charging
	method, err := s.processor.RetrievePaymentMethod(ctx, c.ProcessorMethodRef)
	if err != nil {
		return nil, err
	}
	if c.Fingerprint != nil && method.Fingerprint != "" && *c.Fingerprint != method.Fingerprint {
		return nil, errors.NewDomainError("method_fingerprint_mismatch",
			"stored card no longer matches the processor method", errors.ErrPaymentMethodChanged)
	}

	intent, err := s.processor.CreateIntent(ctx, processor.CreateIntentParams{
		AmountCents: inv.RemainingCents,
		CustomerRef: *cust.ProcessorRef,
		MethodRef:   c.ProcessorMethodRef,
		OffSession:  true,
		Metadata: processor.Metadata{
			InvoiceID:   inv.ID,
			CustomerID:  cust.ID,
			PaymentType: string(payment.TypeRemaining),
		},
	})
	if err != nil {
		return nil, err
	}

	p, err := payment.New(inv.ID, cust.ID, inv.RemainingCents, payment.TypeRemaining)
	if err != nil {
		return nil, err
	}
	p.PaymentMethodID = &c.ID
	if err := p.MarkProcessing(); err != nil {
		return nil, err
	}
	p.AttachProcessorRef(intent.Ref, intent.ClientSecret)
	if err := s.payments.Create(ctx, p); err != nil {
		return nil, err
	}

	s.metrics.ChargesInitiated.WithLabelValues(string(payment.TypeRemaining)).Inc()
	result := &RemainingChargeResult{
		PaymentID:    p.ID,
		ProcessorRef: intent.Ref,
		ClientSecret: intent.ClientSecret,
	}

	confirmed, err := s.processor.ConfirmOffSession(ctx, intent.Ref)
	if err != nil {
		var decline *errors.DeclineError
		if stderrors.As(err, &decline) {
			res, applyErr := s.ApplyPaymentOutcome(ctx, OutcomeEvent{
				ProcessorRef: intent.Ref,
				Outcome:      OutcomeFailed,
				DeclineCode:  decline.ProcessorCode,
				InvoiceID:    inv.ID,
				CustomerID:   cust.ID,
				PaymentType:  payment.TypeRemaining,
				Source:       "confirm",
			})
			if applyErr != nil {
				s.logger.Error().Err(applyErr).Str("processor_ref", intent.Ref).
					Msg("failed to record declined charge")
			}
			result.Reconciled = res
			return result, err
		}
		// unknown failure: the payment stays PROCESSING and the webhook
		// carries the real outcome
		s.logger.Warn().Err(err).Str("processor_ref", intent.Ref).
			Msg("off-session confirmation inconclusive")
		return result, err
	}

	switch confirmed.Status {
	case processor.IntentSucceeded:
		res, err := s.ApplyPaymentOutcome(ctx, OutcomeEvent{
			ProcessorRef: intent.Ref,
			Outcome:      OutcomeSucceeded,
			AmountCents:  confirmed.AmountCents,
			MethodRef:    c.ProcessorMethodRef,
			InvoiceID:    inv.ID,
			CustomerID:   cust.ID,
			PaymentType:  payment.TypeRemaining,
			Source:       "confirm",
		})
		if err != nil {
			return result, err
		}
		result.Reconciled = res
	case processor.IntentRequiresAction:
		result.RequiresAction = true
	default:
		// still processing, the webhook will settle it
	}
	return result, nil
}

func (s *ReconcileService) resolveCard(ctx context.Context, customerID uuid.UUID, cardID *uuid.UUID) (*card.Card, error) {
	if cardID == nil {
		return s.cards.DefaultForCustomer(ctx, customerID)
	}
	cards, err := s.cards.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		if c.ID == *cardID {
			return c, nil
		}
	}
	return nil, errors.ErrPaymentMethodNotFound
}

// ApplyPaymentOutcome applies one processor outcome event. It is the single
// write path for payment and invoice state: webhooks, client confirmations,
// off-session results, and operator replays all funnel through here.
//
// Exactly one of Applied, Duplicate, Conflict is set in the result. An
// event that cannot be matched to a payment and cannot be synthesized from
// its metadata is parked and reported as ErrUnreconcilable.
func (s *ReconcileService) ApplyPaymentOutcome(ctx context.Context, ev OutcomeEvent) (*ReconcileResult, error) {
	if ev.ProcessorRef == "" {
		return nil, s.parkOnce(ctx, ev, "event carries no processor reference")
	}

	// fetch method details before the transaction opens; failure here only
	// skips the card upsert, never the payment itself
	var method *processor.PaymentMethod
	if ev.Outcome == OutcomeSucceeded && ev.MethodRef != "" {
		m, err := s.processor.RetrievePaymentMethod(ctx, ev.MethodRef)
		if err != nil {
			s.logger.Warn().Err(err).Str("method_ref", ev.MethodRef).
				Msg("could not fetch payment method details, skipping card upsert")
		} else {
			method = m
		}
	}

	// advisory cross-instance lock; the FOR UPDATE row lock below is what
	// correctness rests on
	if lock, err := s.locks.Acquire(ctx, "payment:"+ev.ProcessorRef); err == nil {
		defer lock.Release(context.WithoutCancel(ctx))
	} else {
		s.logger.Debug().Err(err).Str("processor_ref", ev.ProcessorRef).
			Msg("proceeding without distributed lock")
	}

	var (
		result  ReconcileResult
		pType   payment.Type
		receipt *notification.Receipt
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		p, err := s.payments.GetByProcessorRefForUpdate(ctx, ev.ProcessorRef)
		if stderrors.Is(err, errors.ErrPaymentNotFound) {
			p, err = s.synthesizePayment(ctx, ev)
		}
		if err != nil {
			return err
		}

		inv, err := s.invoices.GetByID(ctx, p.InvoiceID)
		if err != nil {
			return err
		}

		result.PaymentID = p.ID
		result.InvoiceID = inv.ID
		pType = p.Type

		switch {
		case p.IsTerminal() && ev.Outcome == OutcomeSucceeded:
			result.Duplicate = true

		case p.IsTerminal() && ev.Outcome == OutcomeFailed:
			// money moved; a late failure event never unwinds it
			result.Conflict = true

		case ev.Outcome == OutcomeFailed:
			if p.Status == payment.StatusFailed {
				result.Duplicate = true
				break
			}
			reason := ev.DeclineCode
			if reason == "" {
				reason = "declined"
			}
			if err := p.MarkFailed(reason); err != nil {
				return err
			}
			if err := s.payments.Update(ctx, p); err != nil {
				return err
			}
			result.Applied = true

		default:
			if err := p.MarkCompleted(); err != nil {
				return err
			}

			// card vaulting is an advance-payment side effect only; the
			// remaining charge always runs against an already stored card
			var maskedCard string
			if method != nil && p.Type == payment.TypeAdvance {
				c, err := s.upsertCard(ctx, p.CustomerID, method)
				if err != nil {
					return err
				}
				p.PaymentMethodID = &c.ID
				maskedCard = c.Masked()
			} else if p.PaymentMethodID != nil {
				if c, err := s.resolveCard(ctx, p.CustomerID, p.PaymentMethodID); err == nil {
					maskedCard = c.Masked()
				}
			}
			if err := s.payments.Update(ctx, p); err != nil {
				return err
			}

			if err := s.advanceInvoice(ctx, inv, p); err != nil {
				return err
			}
			result.Applied = true

			cust, err := s.customers.GetByID(ctx, p.CustomerID)
			if err != nil {
				return err
			}
			receipt = s.buildReceipt(cust, inv, p, maskedCard)
		}

		result.PaymentStatus = p.Status
		result.InvoiceStatus = inv.Status
		return nil
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrUnreconcilable) {
			return nil, s.parkOnce(ctx, ev, err.Error())
		}
		return nil, err
	}

	switch {
	case result.Applied:
		s.metrics.OutcomesApplied.WithLabelValues(string(pType), string(ev.Outcome)).Inc()
	case result.Duplicate:
		s.metrics.DuplicateOutcomes.Inc()
	case result.Conflict:
		s.metrics.OutcomeConflicts.Inc()
		s.logger.Warn().
			Str("processor_ref", ev.ProcessorRef).
			Str("source", ev.Source).
			Msg("failure event for completed payment ignored")
	}

	if receipt != nil {
		s.notifier.SendAsync(*receipt)
	}

	s.logger.Info().
		Str("processor_ref", ev.ProcessorRef).
		Str("outcome", string(ev.Outcome)).
		Str("source", ev.Source).
		Bool("applied", result.Applied).
		Bool("duplicate", result.Duplicate).
		Bool("conflict", result.Conflict).
		Str("payment_status", string(result.PaymentStatus)).
		Str("invoice_status", string(result.InvoiceStatus)).
		Msg("payment outcome reconciled")
	return &result, nil
}

// synthesizePayment builds a payment row for an event whose initiating
// request never recorded one, using the metadata echoed by the processor.
func (s *ReconcileService) synthesizePayment(ctx context.Context, ev OutcomeEvent) (*payment.Payment, error) {
	if ev.InvoiceID == uuid.Nil {
		return nil, errors.NewDomainError("orphan_event",
			"no payment for processor ref and no invoice metadata", errors.ErrUnreconcilable)
	}

	inv, err := s.invoices.GetByID(ctx, ev.InvoiceID)
	if err != nil {
		if stderrors.Is(err, errors.ErrInvoiceNotFound) {
			return nil, errors.NewDomainError("orphan_event",
				"event references an unknown invoice", errors.ErrUnreconcilable)
		}
		return nil, err
	}

	pType := ev.PaymentType
	if pType == "" {
		if inv.Status == invoice.StatusAdvancePending {
			pType = payment.TypeAdvance
		} else {
			pType = payment.TypeRemaining
		}
	}

	amount := ev.AmountCents
	if amount <= 0 {
		if pType == payment.TypeAdvance {
			amount = inv.AdvanceCents
		} else {
			amount = inv.RemainingCents
		}
	}
	if amount <= 0 {
		return nil, errors.NewDomainError("orphan_event",
			"cannot determine an amount for the event", errors.ErrUnreconcilable)
	}

	p, err := payment.New(inv.ID, inv.CustomerID, amount, pType)
	if err != nil {
		return nil, err
	}
	p.AttachProcessorRef(ev.ProcessorRef, "")

	if err := s.payments.Create(ctx, p); err != nil {
		if stderrors.Is(err, errors.ErrDuplicateProcessorRef) {
			// a racing reconciler created it first; take the row lock
			return s.payments.GetByProcessorRefForUpdate(ctx, ev.ProcessorRef)
		}
		return nil, err
	}

	s.logger.Info().
		Str("processor_ref", ev.ProcessorRef).
		Str("invoice_id", inv.ID.String()).
		Str("type", string(pType)).
		Msg("payment synthesized from event metadata")
	return p, nil
}

func (s *ReconcileService) upsertCard(ctx context.Context, customerID uuid.UUID, m *processor.PaymentMethod) (*card.Card, error) {
	existing, err := s.cards.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var fingerprint *string
	if m.Fingerprint != "" {
		fingerprint = &m.Fingerprint
	}

	c := card.Dedupe(existing, m.Ref, fingerprint)
	if c != nil {
		c.Refresh(m.Ref, m.Brand, m.Last4, m.ExpMonth, m.ExpYear)
		if err := s.cards.Update(ctx, c); err != nil {
			return nil, err
		}
	} else {
		c, err = card.New(customerID, m.Ref, m.Brand, m.Last4, m.ExpMonth, m.ExpYear, fingerprint)
		if err != nil {
			return nil, err
		}
		if err := s.cards.Create(ctx, c); err != nil {
			return nil, err
		}
	}

	// the card that just paid becomes the default the off-session balance
	// charge will use
	if err := s.cards.SetDefault(ctx, customerID, c.ID); err != nil {
		return nil, err
	}
	c.IsDefault = true
	return c, nil
}

func (s *ReconcileService) advanceInvoice(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) error {
	target := invoice.StatusAdvancePaid
	if p.Type == payment.TypeRemaining {
		target = invoice.StatusFullyPaid
	}

	if !inv.CanTransitionTo(target) {
		// duplicate application or out-of-order event; the payment is
		// recorded either way
		s.logger.Warn().
			Str("invoice_number", inv.InvoiceNumber).
			Str("status", string(inv.Status)).
			Str("target", string(target)).
			Msg("invoice transition skipped")
		return nil
	}

	var err error
	if target == invoice.StatusFullyPaid {
		err = inv.MarkFullyPaid()
	} else {
		err = inv.MarkAdvancePaid()
	}
	if err != nil {
		return err
	}
	return s.invoices.Update(ctx, inv)
}

func (s *ReconcileService) buildReceipt(cust *customer.Customer, inv *invoice.Invoice, p *payment.Payment, maskedCard string) *notification.Receipt {
	items := make([]notification.ReceiptItem, 0, len(inv.Items))
	for _, item := range inv.Items {
		items = append(items, notification.ReceiptItem{
			Description: item.Description,
			Quantity:    item.Quantity,
			AmountCents: item.AmountCents,
		})
	}
	return &notification.Receipt{
		To:             cust.Email,
		CustomerName:   cust.Name,
		InvoiceNumber:  inv.InvoiceNumber,
		PaymentType:    string(p.Type),
		AmountCents:    p.AmountCents,
		TotalCents:     inv.TotalCents,
		RemainingCents: inv.RemainingCents,
		DueDate:        inv.DueDate,
		MaskedCard:     maskedCard,
		InvoiceStatus:  string(inv.Status),
		Items:          items,
	}
}

// parkOnce stores an event that could not be applied. Replayed events are
// already parked, so they only report the error. The insert bypasses any
// open transaction, so parked events survive the rollback that parked them.
func (s *ReconcileService) parkOnce(ctx context.Context, ev OutcomeEvent, reason string) error {
	if ev.Source == "replay" {
		return errors.NewDomainError("event_still_unreconcilable", reason, errors.ErrUnreconcilable)
	}
	payload := ev.Raw
	if len(payload) == 0 {
		payload, _ = json.Marshal(ev)
	}

	u := event.NewUnreconciled(ev.ProcessorRef, string(ev.Outcome), payload, reason)
	if err := s.events.Insert(ctx, u); err != nil {
		if stderrors.Is(err, errors.ErrEventAlreadyParked) {
			s.logger.Debug().Str("processor_ref", ev.ProcessorRef).
				Msg("redelivered event already parked")
			return errors.NewDomainError("event_parked", reason, errors.ErrUnreconcilable)
		}
		s.logger.Error().Err(err).Str("processor_ref", ev.ProcessorRef).
			Msg("failed to park unreconciled event")
		return err
	}

	s.metrics.UnreconciledParked.Inc()
	s.logger.Warn().
		Str("processor_ref", ev.ProcessorRef).
		Str("event_id", u.ID.String()).
		Str("reason", reason).
		Msg("event parked as unreconciled")
	return errors.NewDomainError("event_parked", reason, errors.ErrUnreconcilable)
}

// VerifyAndReconcile handles the client-confirmation path. The client's
// claim is never trusted; the intent is re-fetched from the processor and
// only its answer is applied. A non-nil invoiceID must agree with the
// intent's metadata, and stands in for it when the processor dropped it.
func (s *ReconcileService) VerifyAndReconcile(ctx context.Context, processorRef string, invoiceID uuid.UUID) (*ReconcileResult, error) {
	intent, err := s.processor.RetrieveIntent(ctx, processorRef)
	if err != nil {
		return nil, err
	}
	if invoiceID != uuid.Nil && intent.Metadata.InvoiceID != uuid.Nil && invoiceID != intent.Metadata.InvoiceID {
		return nil, errors.NewValidationError("invoice_id", "does not match the charge being confirmed")
	}

	ev := OutcomeEvent{
		ProcessorRef: intent.Ref,
		AmountCents:  intent.AmountCents,
		MethodRef:    intent.MethodRef,
		DeclineCode:  intent.DeclineCode,
		InvoiceID:    intent.Metadata.InvoiceID,
		CustomerID:   intent.Metadata.CustomerID,
		PaymentType:  payment.Type(intent.Metadata.PaymentType),
		Source:       "confirm",
	}
	if ev.InvoiceID == uuid.Nil {
		ev.InvoiceID = invoiceID
	}

	switch intent.Status {
	case processor.IntentSucceeded:
		ev.Outcome = OutcomeSucceeded
		return s.ApplyPaymentOutcome(ctx, ev)
	case processor.IntentRequiresPaymentMethod, processor.IntentCanceled:
		ev.Outcome = OutcomeFailed
		return s.ApplyPaymentOutcome(ctx, ev)
	default:
		// not settled yet; report current state without applying anything
		p, err := s.payments.GetByProcessorRef(ctx, processorRef)
		if err != nil {
			return nil, err
		}
		inv, err := s.invoices.GetByID(ctx, p.InvoiceID)
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{
			PaymentID:     p.ID,
			PaymentStatus: p.Status,
			InvoiceID:     inv.ID,
			InvoiceStatus: inv.Status,
		}, nil
	}
}

// GetPayment returns a payment by ID
func (s *ReconcileService) GetPayment(ctx context.Context, id uuid.UUID) (*payment.Payment, error) {
	return s.payments.GetByID(ctx, id)
}

// ListPayments returns payments matching the filter
func (s *ReconcileService) ListPayments(ctx context.Context, filter payment.ListFilter) ([]*payment.Payment, error) {
	return s.payments.List(ctx, filter)
}

// RetryUnreconciled replays parked events, operator driven. Returns how
// many resolved and how many failed again.
func (s *ReconcileService) RetryUnreconciled(ctx context.Context) (resolved, failed int, err error) {
	pending, err := s.events.ListPending(ctx, s.replayBatchSize)
	if err != nil {
		return 0, 0, err
	}

	for _, u := range pending {
		var ev OutcomeEvent
		if jsonErr := json.Unmarshal(u.Payload, &ev); jsonErr != nil || ev.ProcessorRef == "" {
			ev = OutcomeEvent{ProcessorRef: u.ProcessorRef, Outcome: Outcome(u.EventType)}
		}
		ev.Source = "replay"
		ev.Raw = u.Payload

		if _, applyErr := s.ApplyPaymentOutcome(ctx, ev); applyErr != nil {
			u.RecordFailure(applyErr.Error(), event.MaxReplayAttempts)
			failed++
		} else {
			u.MarkResolved()
			resolved++
		}
		if updErr := s.events.Update(ctx, u); updErr != nil {
			s.logger.Error().Err(updErr).Str("event_id", u.ID.String()).
				Msg("failed to update parked event after replay")
		}
	}
	return resolved, failed, nil
}
