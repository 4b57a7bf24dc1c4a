package payment

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

func newTestPayment(t *testing.T) *Payment {
	t.Helper()
	p, err := New(uuid.New(), uuid.New(), 50000, TypeAdvance)
	require.NoError(t, err)
	return p
}

func TestNew_Validation(t *testing.T) {
	_, err := New(uuid.New(), uuid.New(), 0, TypeAdvance)
	assert.Error(t, err)

	_, err = New(uuid.New(), uuid.New(), -100, TypeRemaining)
	assert.Error(t, err)

	_, err = New(uuid.New(), uuid.New(), 100, Type("REFUND"))
	assert.Error(t, err)

	p, err := New(uuid.New(), uuid.New(), 100, TypeRemaining)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, p.Status)
	assert.Nil(t, p.ProcessorRef)
}

func TestTransitions_PendingToCompleted(t *testing.T) {
	p := newTestPayment(t)

	require.NoError(t, p.MarkCompleted())
	assert.Equal(t, StatusCompleted, p.Status)
	require.NotNil(t, p.CompletedAt)
}

func TestTransitions_ProcessingPath(t *testing.T) {
	p := newTestPayment(t)

	require.NoError(t, p.MarkProcessing())
	require.NoError(t, p.MarkFailed("insufficient_funds"))
	assert.Equal(t, StatusFailed, p.Status)
	require.NotNil(t, p.FailureReason)
	assert.Equal(t, "insufficient_funds", *p.FailureReason)
}

func TestTransitions_FailedRecoversToCompleted(t *testing.T) {
	p := newTestPayment(t)
	require.NoError(t, p.MarkFailed("declined"))

	require.NoError(t, p.MarkCompleted())
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Nil(t, p.FailureReason, "recovery clears the stale failure reason")
}

func TestTransitions_CompletedIsTerminal(t *testing.T) {
	p := newTestPayment(t)
	require.NoError(t, p.MarkCompleted())

	err := p.MarkFailed("late failure event")
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.True(t, p.IsTerminal())

	err = p.MarkProcessing()
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
}

func TestTransitions_FailedCannotReenterProcessing(t *testing.T) {
	p := newTestPayment(t)
	require.NoError(t, p.MarkFailed("declined"))

	err := p.MarkProcessing()
	assert.ErrorIs(t, err, errors.ErrInvalidStateTransition)
}

func TestAttachProcessorRef(t *testing.T) {
	p := newTestPayment(t)
	p.AttachProcessorRef("pi_123", "pi_123_secret_abc")

	require.NotNil(t, p.ProcessorRef)
	assert.Equal(t, "pi_123", *p.ProcessorRef)
	require.NotNil(t, p.ClientSecret)
	assert.Equal(t, "pi_123_secret_abc", *p.ClientSecret)

	p2 := newTestPayment(t)
	p2.AttachProcessorRef("pi_456", "")
	assert.Nil(t, p2.ClientSecret)
}
