package notification

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/cassiomorais/invoicing/pkg/retry"
)

// Notifier wraps a Sender with bounded retries. Delivery is best effort: an
// exhausted retry budget is logged and counted, never propagated into the
// payment flow.
type Notifier struct {
	sender   Sender
	retry    retry.Config
	timeout  time.Duration
	logger   zerolog.Logger
	onSent   func()
	onFailed func()
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(cfg retry.Config) NotifierOption {
	return func(n *Notifier) { n.retry = cfg }
}

// WithTimeout bounds the total time spent on one receipt, retries included.
func WithTimeout(d time.Duration) NotifierOption {
	return func(n *Notifier) { n.timeout = d }
}

// WithCounters registers hooks fired on delivery success and on final
// failure, used to feed metrics.
func WithCounters(onSent, onFailed func()) NotifierOption {
	return func(n *Notifier) {
		n.onSent = onSent
		n.onFailed = onFailed
	}
}

// NewNotifier creates a notifier
func NewNotifier(sender Sender, logger zerolog.Logger, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		sender:  sender,
		retry:   retry.DefaultConfig(),
		timeout: 30 * time.Second,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Send delivers a receipt synchronously with retries.
func (n *Notifier) Send(ctx context.Context, r Receipt) error {
	cfg := n.retry
	cfg.OnRetry = func(attempt uint, err error) {
		n.logger.Warn().
			Err(err).
			Uint("attempt", attempt).
			Str("invoice_number", r.InvoiceNumber).
			Msg("receipt delivery failed, retrying")
	}

	err := retry.Do(ctx, cfg, func() error {
		return n.sender.SendReceipt(ctx, r)
	})
	if err != nil {
		if n.onFailed != nil {
			n.onFailed()
		}
		n.logger.Error().
			Err(err).
			Str("invoice_number", r.InvoiceNumber).
			Str("to", r.To).
			Msg("receipt delivery abandoned after retries")
		return err
	}
	if n.onSent != nil {
		n.onSent()
	}
	n.logger.Info().
		Str("invoice_number", r.InvoiceNumber).
		Str("payment_type", r.PaymentType).
		Msg("receipt delivered")
	return nil
}

// SendAsync delivers a receipt on its own goroutine, detached from the
// caller's context so an HTTP response can return immediately. Errors are
// swallowed after logging.
func (n *Notifier) SendAsync(r Receipt) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		_ = n.Send(ctx, r)
	}()
}
