package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Unwrap(t *testing.T) {
	inner := ErrInvalidStateTransition
	err := NewDomainError("invalid_transition", "cannot complete a completed payment", inner)

	assert.True(t, stderrors.Is(err, ErrInvalidStateTransition))
	assert.Contains(t, err.Error(), "cannot complete a completed payment")
}

func TestDomainError_NoInner(t *testing.T) {
	err := NewDomainError("whatever", "plain message", nil)
	assert.Equal(t, "plain message", err.Error())
	assert.Nil(t, stderrors.Unwrap(err))
}

func TestValidationError_Message(t *testing.T) {
	err := NewValidationError("invoice_number", "cannot be empty")
	assert.Contains(t, err.Error(), "invoice_number")
	assert.Contains(t, err.Error(), "cannot be empty")
}

func TestMapDeclineCode(t *testing.T) {
	tests := []struct {
		code   string
		reason DeclineReason
	}{
		{"insufficient_funds", DeclineInsufficientFunds},
		{"expired_card", DeclineExpiredCard},
		{"incorrect_cvc", DeclineIncorrectCVC},
		{"invalid_cvc", DeclineIncorrectCVC},
		{"fraudulent", DeclineFraud},
		{"stolen_card", DeclineFraud},
		{"card_not_supported", DeclineUnsupportedCard},
		{"generic_decline", DeclineGeneric},
		{"", DeclineGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := MapDeclineCode(tt.code)
			assert.Equal(t, tt.reason, err.Reason)
			assert.Equal(t, tt.code, err.ProcessorCode)
			assert.True(t, stderrors.Is(err, ErrProcessorDeclined))
		})
	}
}
