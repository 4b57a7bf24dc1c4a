package errors

import (
	"errors"
	"fmt"
)

var (
	// Entity lookup errors
	ErrCustomerNotFound      = errors.New("customer not found")
	ErrInvoiceNotFound       = errors.New("invoice not found")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrPaymentMethodNotFound = errors.New("payment method not found")

	// State machine errors
	ErrInvalidState           = errors.New("operation not valid in current status")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrConflictingOutcome     = errors.New("conflicting outcome for completed payment")

	// Charge errors
	ErrPaymentMethodChanged = errors.New("stored payment method no longer matches processor")
	ErrProcessorDeclined    = errors.New("charge declined by processor")
	ErrProcessorUnavailable = errors.New("payment processor unavailable")

	// Ingress errors
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrUnreconcilable   = errors.New("event cannot be matched or synthesized into a payment")

	// Uniqueness violations
	ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")
	ErrDuplicateEmail         = errors.New("customer email already exists")
	ErrDuplicateProcessorRef  = errors.New("processor reference already exists")
	ErrEventAlreadyParked     = errors.New("a pending unreconciled event already exists for this reference")

	// Notification errors (non-fatal, logged after retries exhausted)
	ErrNotificationFailed = errors.New("receipt notification failed after retries")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// DeclineReason is the stable, user-facing set of decline reasons. Raw
// processor codes are mapped once at the adapter boundary and never leak
// further up.
type DeclineReason string

const (
	DeclineGeneric           DeclineReason = "declined"
	DeclineInsufficientFunds DeclineReason = "insufficient_funds"
	DeclineExpiredCard       DeclineReason = "expired_card"
	DeclineIncorrectCVC      DeclineReason = "incorrect_cvc"
	DeclineFraud             DeclineReason = "fraud_flagged"
	DeclineUnsupportedCard   DeclineReason = "unsupported_card"
)

// DeclineError carries the mapped decline reason alongside the raw processor
// code for logging.
type DeclineError struct {
	Reason        DeclineReason
	ProcessorCode string
}

func (e *DeclineError) Error() string {
	return fmt.Sprintf("charge declined (%s): processor code %q", e.Reason, e.ProcessorCode)
}

func (e *DeclineError) Unwrap() error {
	return ErrProcessorDeclined
}

// MapDeclineCode maps a raw processor decline code to a stable reason.
func MapDeclineCode(code string) *DeclineError {
	reason := DeclineGeneric
	switch code {
	case "insufficient_funds":
		reason = DeclineInsufficientFunds
	case "expired_card":
		reason = DeclineExpiredCard
	case "incorrect_cvc", "invalid_cvc":
		reason = DeclineIncorrectCVC
	case "fraudulent", "stolen_card", "lost_card":
		reason = DeclineFraud
	case "card_not_supported", "currency_not_supported":
		reason = DeclineUnsupportedCard
	}
	return &DeclineError{Reason: reason, ProcessorCode: code}
}
