package controller

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
	"github.com/cassiomorais/invoicing/internal/service"
)

// PaymentController serves the public charge endpoints and the admin
// payment endpoints.
type PaymentController struct {
	reconciler *service.ReconcileService
}

// NewPaymentController creates a payment controller
func NewPaymentController(reconciler *service.ReconcileService) *PaymentController {
	return &PaymentController{reconciler: reconciler}
}

// InitiateAdvance is the public endpoint the payment page calls to start
// the advance charge.
func (c *PaymentController) InitiateAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceChargeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := c.reconciler.InitiateAdvanceCharge(r.Context(), req.InvoiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, advanceChargeResponse{
		PaymentID:    res.PaymentID,
		ProcessorRef: res.ProcessorRef,
		ClientSecret: res.ClientSecret,
		AmountCents:  res.AmountCents,
	})
}

// Confirm is the public endpoint the payment page calls after on-session
// confirmation. The claimed result is verified against the processor.
func (c *PaymentController) Confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmPaymentRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := c.reconciler.VerifyAndReconcile(r.Context(), req.ProcessorRef, req.InvoiceID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReconcileResponse(res))
}

// InitiateRemaining is the admin endpoint that charges the remaining
// balance off-session.
func (c *PaymentController) InitiateRemaining(w http.ResponseWriter, r *http.Request) {
	var req remainingChargeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := c.reconciler.InitiateRemainingCharge(r.Context(), req.InvoiceID, req.CardID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := remainingChargeResponse{
		PaymentID:      res.PaymentID,
		ProcessorRef:   res.ProcessorRef,
		ClientSecret:   res.ClientSecret,
		RequiresAction: res.RequiresAction,
	}
	if res.Reconciled != nil {
		rr := toReconcileResponse(res.Reconciled)
		resp.Reconciled = &rr
	}
	writeJSON(w, http.StatusOK, resp)
}

func (c *PaymentController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, errors.NewValidationError("id", "must be a valid UUID"))
		return
	}

	p, err := c.reconciler.GetPayment(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

func (c *PaymentController) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := payment.ListFilter{
		Status: payment.Status(q.Get("status")),
		Type:   payment.Type(q.Get("type")),
		Limit:  50,
	}
	if raw := q.Get("invoice_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, errors.NewValidationError("invoice_id", "must be a valid UUID"))
			return
		}
		filter.InvoiceID = id
	}

	payments, err := c.reconciler.ListPayments(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		resp = append(resp, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": resp})
}

// RetryReconciliation is the admin endpoint that replays parked events.
func (c *PaymentController) RetryReconciliation(w http.ResponseWriter, r *http.Request) {
	resolved, failed, err := c.reconciler.RetryUnreconciled(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, replayResponse{Resolved: resolved, Failed: failed})
}
