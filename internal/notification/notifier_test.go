package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cassiomorais/invoicing/pkg/retry"
)

type stubSender struct {
	mu       sync.Mutex
	calls    int
	failNext int
	lastSent Receipt
}

func (s *stubSender) SendReceipt(ctx context.Context, r Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failNext > 0 {
		s.failNext--
		return errors.New("smtp timeout")
	}
	s.lastSent = r
	return nil
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastRetry() retry.Config {
	return retry.Config{Attempts: 3, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestNotifier_RetriesThenDelivers(t *testing.T) {
	sender := &stubSender{failNext: 2}
	var sent int
	n := NewNotifier(sender, zerolog.Nop(),
		WithRetryConfig(fastRetry()),
		WithCounters(func() { sent++ }, nil),
	)

	err := n.Send(context.Background(), Receipt{To: "a@b.c", InvoiceNumber: "INV-1", PaymentType: "ADVANCE"})
	require.NoError(t, err)
	assert.Equal(t, 3, sender.callCount())
	assert.Equal(t, 1, sent)
	assert.Equal(t, "INV-1", sender.lastSent.InvoiceNumber)
}

func TestNotifier_ExhaustedRetriesReported(t *testing.T) {
	sender := &stubSender{failNext: 10}
	var failed int
	n := NewNotifier(sender, zerolog.Nop(),
		WithRetryConfig(fastRetry()),
		WithCounters(nil, func() { failed++ }),
	)

	err := n.Send(context.Background(), Receipt{To: "a@b.c", InvoiceNumber: "INV-1"})
	require.Error(t, err)
	assert.Equal(t, 3, sender.callCount())
	assert.Equal(t, 1, failed)
}

func TestNotifier_SendAsyncCompletes(t *testing.T) {
	sender := &stubSender{}
	done := make(chan struct{})
	n := NewNotifier(sender, zerolog.Nop(),
		WithRetryConfig(fastRetry()),
		WithCounters(func() { close(done) }, nil),
	)

	n.SendAsync(Receipt{To: "a@b.c", InvoiceNumber: "INV-2"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("async receipt never delivered")
	}
	assert.Equal(t, 1, sender.callCount())
}
