package controller

import (
	"time"

	"github.com/google/uuid"

	"github.com/cassiomorais/invoicing/internal/domain/invoice"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
	"github.com/cassiomorais/invoicing/internal/service"
)

type itemRequest struct {
	Description string `json:"description" validate:"required"`
	Quantity    int    `json:"quantity" validate:"required,gt=0"`
	RateCents   int64  `json:"rate_cents" validate:"required,gt=0"`
}

type createInvoiceRequest struct {
	InvoiceNumber   string        `json:"invoice_number" validate:"required"`
	CustomerName    string        `json:"customer_name" validate:"required"`
	CustomerEmail   string        `json:"customer_email" validate:"required,email"`
	CustomerAddress string        `json:"customer_address"`
	DueDate         time.Time     `json:"due_date" validate:"required"`
	Notes           string        `json:"notes"`
	Items           []itemRequest `json:"items" validate:"required,min=1,dive"`
}

type advanceChargeRequest struct {
	InvoiceID uuid.UUID `json:"invoice_id" validate:"required"`
}

type confirmPaymentRequest struct {
	ProcessorRef string    `json:"processor_ref" validate:"required"`
	InvoiceID    uuid.UUID `json:"invoice_id,omitempty"`
}

type remainingChargeRequest struct {
	InvoiceID uuid.UUID  `json:"invoice_id" validate:"required"`
	CardID    *uuid.UUID `json:"card_id,omitempty"`
}

type itemResponse struct {
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	RateCents   int64  `json:"rate_cents"`
	AmountCents int64  `json:"amount_cents"`
}

type invoiceResponse struct {
	ID             uuid.UUID      `json:"id"`
	InvoiceNumber  string         `json:"invoice_number"`
	CustomerID     uuid.UUID      `json:"customer_id"`
	TotalCents     int64          `json:"total_cents"`
	AdvanceCents   int64          `json:"advance_cents"`
	RemainingCents int64          `json:"remaining_cents"`
	Status         string         `json:"status"`
	DueDate        time.Time      `json:"due_date"`
	Notes          string         `json:"notes,omitempty"`
	Items          []itemResponse `json:"items"`
	CreatedAt      time.Time      `json:"created_at"`
}

func toInvoiceResponse(inv *invoice.Invoice) invoiceResponse {
	items := make([]itemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		items = append(items, itemResponse{
			Description: it.Description,
			Quantity:    it.Quantity,
			RateCents:   it.RateCents,
			AmountCents: it.AmountCents,
		})
	}
	return invoiceResponse{
		ID:             inv.ID,
		InvoiceNumber:  inv.InvoiceNumber,
		CustomerID:     inv.CustomerID,
		TotalCents:     inv.TotalCents,
		AdvanceCents:   inv.AdvanceCents,
		RemainingCents: inv.RemainingCents,
		Status:         string(inv.Status),
		DueDate:        inv.DueDate,
		Notes:          inv.Notes,
		Items:          items,
		CreatedAt:      inv.CreatedAt,
	}
}

type invoiceListResponse struct {
	Invoices []invoiceResponse `json:"invoices"`
	Total    int64             `json:"total"`
}

type paymentResponse struct {
	ID            uuid.UUID  `json:"id"`
	InvoiceID     uuid.UUID  `json:"invoice_id"`
	AmountCents   int64      `json:"amount_cents"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	ProcessorRef  *string    `json:"processor_ref,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toPaymentResponse(p *payment.Payment) paymentResponse {
	return paymentResponse{
		ID:            p.ID,
		InvoiceID:     p.InvoiceID,
		AmountCents:   p.AmountCents,
		Type:          string(p.Type),
		Status:        string(p.Status),
		ProcessorRef:  p.ProcessorRef,
		FailureReason: p.FailureReason,
		CreatedAt:     p.CreatedAt,
		CompletedAt:   p.CompletedAt,
	}
}

type advanceChargeResponse struct {
	PaymentID    uuid.UUID `json:"payment_id"`
	ProcessorRef string    `json:"processor_ref"`
	ClientSecret string    `json:"client_secret"`
	AmountCents  int64     `json:"amount_cents"`
}

type reconcileResponse struct {
	Applied       bool      `json:"applied"`
	Duplicate     bool      `json:"duplicate"`
	Conflict      bool      `json:"conflict"`
	PaymentID     uuid.UUID `json:"payment_id"`
	PaymentStatus string    `json:"payment_status"`
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceStatus string    `json:"invoice_status"`
}

func toReconcileResponse(r *service.ReconcileResult) reconcileResponse {
	return reconcileResponse{
		Applied:       r.Applied,
		Duplicate:     r.Duplicate,
		Conflict:      r.Conflict,
		PaymentID:     r.PaymentID,
		PaymentStatus: string(r.PaymentStatus),
		InvoiceID:     r.InvoiceID,
		InvoiceStatus: string(r.InvoiceStatus),
	}
}

type remainingChargeResponse struct {
	PaymentID      uuid.UUID          `json:"payment_id"`
	ProcessorRef   string             `json:"processor_ref"`
	ClientSecret   string             `json:"client_secret,omitempty"`
	RequiresAction bool               `json:"requires_action"`
	Reconciled     *reconcileResponse `json:"reconciled,omitempty"`
}

type statsResponse struct {
	TotalInvoices    int64            `json:"total_invoices"`
	CountsByStatus   map[string]int64 `json:"counts_by_status"`
	CollectedCents   int64            `json:"collected_cents"`
	OutstandingCents int64            `json:"outstanding_cents"`
}

type replayResponse struct {
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
}
