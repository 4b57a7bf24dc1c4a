package controller

import (
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
	"github.com/cassiomorais/invoicing/internal/processor"
	"github.com/cassiomorais/invoicing/internal/service"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// WebhookController ingests processor outcome events.
type WebhookController struct {
	reconciler *service.ReconcileService
	secret     string
	tolerance  time.Duration
	logger     zerolog.Logger
}

// NewWebhookController creates a webhook controller
func NewWebhookController(reconciler *service.ReconcileService, secret string, tolerance time.Duration, logger zerolog.Logger) *WebhookController {
	if tolerance <= 0 {
		tolerance = processor.DefaultTolerance
	}
	return &WebhookController{
		reconciler: reconciler,
		secret:     secret,
		tolerance:  tolerance,
		logger:     logger,
	}
}

// Handle verifies and applies one webhook delivery. Verified events are
// always acknowledged with 200, even when reconciliation parks them; a
// non-2xx answer would only make the processor redeliver an event we have
// already captured.
func (c *WebhookController) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, errors.NewDomainError("bad_body", "could not read request body", errors.ErrInvalidInput))
		return
	}

	ev, err := processor.VerifyEvent(body, r.Header.Get("X-Processor-Signature"), c.secret, c.tolerance, time.Now())
	if err != nil {
		c.logger.Warn().Err(err).Msg("rejected webhook delivery")
		writeError(w, err)
		return
	}

	var outcome service.Outcome
	switch ev.Type {
	case processor.EventPaymentSucceeded:
		outcome = service.OutcomeSucceeded
	case processor.EventPaymentFailed:
		outcome = service.OutcomeFailed
	default:
		// not an outcome event; acknowledge and move on
		c.logger.Debug().Str("type", ev.Type).Msg("ignoring webhook event type")
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	outcomeEvent := service.OutcomeEvent{
		ProcessorRef: ev.IntentRef,
		Outcome:      outcome,
		AmountCents:  ev.AmountCents,
		MethodRef:    ev.MethodRef,
		DeclineCode:  ev.DeclineCode,
		Source:       "webhook",
		Raw:          ev.Raw,
	}
	if id, err := uuid.Parse(ev.Metadata.InvoiceID); err == nil {
		outcomeEvent.InvoiceID = id
	}
	if id, err := uuid.Parse(ev.Metadata.CustomerID); err == nil {
		outcomeEvent.CustomerID = id
	}
	if ev.Metadata.PaymentType != "" {
		outcomeEvent.PaymentType = payment.Type(ev.Metadata.PaymentType)
	}

	res, err := c.reconciler.ApplyPaymentOutcome(r.Context(), outcomeEvent)
	if err != nil {
		if stderrors.Is(err, errors.ErrUnreconcilable) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "parked"})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcileResponse(res))
}
