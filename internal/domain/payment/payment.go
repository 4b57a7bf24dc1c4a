package payment

import (
	"time"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
	"github.com/google/uuid"
)

// Type distinguishes the two halves of the invoice split.
type Type string

const (
	TypeAdvance   Type = "ADVANCE"
	TypeRemaining Type = "REMAINING"
)

// Status represents the payment status in the state machine
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Payment is one charge attempt against an invoice half. A payment is keyed
// to the processor by ProcessorRef, which is the join point for reconciling
// asynchronous outcome events.
type Payment struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	CustomerID      uuid.UUID
	PaymentMethodID *uuid.UUID
	AmountCents     int64
	Type            Type
	Status          Status
	ProcessorRef    *string
	ClientSecret    *string
	FailureReason   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	CompletedAt     *time.Time
}

// New creates a new payment in PENDING status
func New(invoiceID, customerID uuid.UUID, amountCents int64, paymentType Type) (*Payment, error) {
	if amountCents <= 0 {
		return nil, errors.NewValidationError("amount", "must be greater than 0")
	}
	if paymentType != TypeAdvance && paymentType != TypeRemaining {
		return nil, errors.NewValidationError("type", "must be ADVANCE or REMAINING")
	}

	now := time.Now()
	return &Payment{
		ID:          uuid.New(),
		InvoiceID:   invoiceID,
		CustomerID:  customerID,
		AmountCents: amountCents,
		Type:        paymentType,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// CanTransitionTo checks if the payment can transition to the given status.
// FAILED to COMPLETED is allowed: a late success event wins over an earlier
// failure because money moved.
func (p *Payment) CanTransitionTo(newStatus Status) bool {
	transitions := map[Status][]Status{
		StatusPending:    {StatusProcessing, StatusCompleted, StatusFailed},
		StatusProcessing: {StatusCompleted, StatusFailed},
		StatusFailed:     {StatusCompleted},
		StatusCompleted:  {}, // Terminal state
	}

	allowed, exists := transitions[p.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// TransitionTo transitions the payment to a new status
func (p *Payment) TransitionTo(newStatus Status) error {
	if !p.CanTransitionTo(newStatus) {
		return errors.NewDomainError(
			"invalid_transition",
			"cannot transition payment from "+string(p.Status)+" to "+string(newStatus),
			errors.ErrInvalidStateTransition,
		)
	}
	p.Status = newStatus
	p.UpdatedAt = time.Now()
	return nil
}

// MarkProcessing transitions the payment to PROCESSING
func (p *Payment) MarkProcessing() error {
	return p.TransitionTo(StatusProcessing)
}

// MarkCompleted transitions the payment to COMPLETED and clears any failure
// reason left over from an earlier attempt.
func (p *Payment) MarkCompleted() error {
	if err := p.TransitionTo(StatusCompleted); err != nil {
		return err
	}
	now := time.Now()
	p.CompletedAt = &now
	p.FailureReason = nil
	return nil
}

// MarkFailed transitions the payment to FAILED with a reason
func (p *Payment) MarkFailed(reason string) error {
	if err := p.TransitionTo(StatusFailed); err != nil {
		return err
	}
	p.FailureReason = &reason
	return nil
}

// AttachProcessorRef records the processor-side intent reference and client
// secret once the intent is created.
func (p *Payment) AttachProcessorRef(ref, clientSecret string) {
	p.ProcessorRef = &ref
	if clientSecret != "" {
		p.ClientSecret = &clientSecret
	}
	p.UpdatedAt = time.Now()
}

// IsTerminal reports whether no further outcome can change this payment.
func (p *Payment) IsTerminal() bool {
	return p.Status == StatusCompleted
}
