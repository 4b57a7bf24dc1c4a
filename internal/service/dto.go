package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/cassiomorais/invoicing/internal/domain/invoice"
	"github.com/cassiomorais/invoicing/internal/domain/payment"
)

// Outcome is the terminal answer a processor event carries.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// OutcomeEvent is a normalized processor outcome, built either from a
// verified webhook or from re-fetching an intent after client confirmation.
type OutcomeEvent struct {
	ProcessorRef string
	Outcome      Outcome
	AmountCents  int64 // 0 when the event did not carry an amount
	MethodRef    string
	DeclineCode  string

	// metadata echoed from intent creation, zero when the processor
	// dropped it
	InvoiceID   uuid.UUID
	CustomerID  uuid.UUID
	PaymentType payment.Type

	Source string // "webhook" or "confirm" or "replay"
	Raw    []byte
}

// ReconcileResult reports what applying an outcome event did. Exactly one
// of Applied, Duplicate, Conflict is set on success.
type ReconcileResult struct {
	Applied   bool
	Duplicate bool
	Conflict  bool

	PaymentID     uuid.UUID
	PaymentStatus payment.Status
	InvoiceID     uuid.UUID
	InvoiceStatus invoice.Status
}

// CreateInvoiceInput is the request to create an invoice, with its customer
// resolved or created by email.
type CreateInvoiceInput struct {
	InvoiceNumber   string
	CustomerName    string
	CustomerEmail   string
	CustomerAddress string
	DueDate         time.Time
	Notes           string
	Items           []invoice.ItemInput
}

// AdvanceChargeResult is returned to the browser to drive on-session
// confirmation.
type AdvanceChargeResult struct {
	PaymentID    uuid.UUID
	ProcessorRef string
	ClientSecret string
	AmountCents  int64
}

// RemainingChargeResult reports the immediate outcome of an off-session
// charge. RequiresAction means the processor demanded customer presence;
// the payment stays PROCESSING until an outcome event arrives.
type RemainingChargeResult struct {
	PaymentID      uuid.UUID
	ProcessorRef   string
	ClientSecret   string
	RequiresAction bool
	Reconciled     *ReconcileResult
}

// InvoiceStats is the admin dashboard summary.
type InvoiceStats struct {
	TotalInvoices    int64
	CountsByStatus   map[invoice.Status]int64
	CollectedCents   int64
	OutstandingCents int64
}
