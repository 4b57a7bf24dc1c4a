package processor

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"github.com/cassiomorais/invoicing/internal/domain/errors"
)

// BreakerSettings tunes the circuit breaker around the processor client.
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	MinRequests  uint32
	FailureRatio float64
}

// BreakerClient wraps a Client with a circuit breaker. Declines count as
// successful round trips; only transport and server errors trip the breaker.
type BreakerClient struct {
	inner   Client
	intents *gobreaker.CircuitBreaker[*Intent]
	refs    *gobreaker.CircuitBreaker[string]
	methods *gobreaker.CircuitBreaker[*PaymentMethod]
}

// NewBreakerClient wraps the given client
func NewBreakerClient(inner Client, s BreakerSettings) *BreakerClient {
	settings := gobreaker.Settings{
		Name:        "payment-processor",
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= s.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			// a decline is a definitive answer from a healthy processor
			return err == nil || stderrors.Is(err, errors.ErrProcessorDeclined)
		},
	}

	return &BreakerClient{
		inner:   inner,
		intents: gobreaker.NewCircuitBreaker[*Intent](settings),
		refs:    gobreaker.NewCircuitBreaker[string](settings),
		methods: gobreaker.NewCircuitBreaker[*PaymentMethod](settings),
	}
}

func mapBreakerErr[T any](result T, err error) (T, error) {
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, errors.NewDomainError("processor_circuit_open", "payment processor circuit open", errors.ErrProcessorUnavailable)
	}
	return result, err
}

func (b *BreakerClient) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	return mapBreakerErr(b.refs.Execute(func() (string, error) {
		return b.inner.CreateCustomer(ctx, name, email)
	}))
}

func (b *BreakerClient) CreateIntent(ctx context.Context, params CreateIntentParams) (*Intent, error) {
	return mapBreakerErr(b.intents.Execute(func() (*Intent, error) {
		return b.inner.CreateIntent(ctx, params)
	}))
}

func (b *BreakerClient) ConfirmOffSession(ctx context.Context, intentRef string) (*Intent, error) {
	return mapBreakerErr(b.intents.Execute(func() (*Intent, error) {
		return b.inner.ConfirmOffSession(ctx, intentRef)
	}))
}

func (b *BreakerClient) RetrieveIntent(ctx context.Context, intentRef string) (*Intent, error) {
	return mapBreakerErr(b.intents.Execute(func() (*Intent, error) {
		return b.inner.RetrieveIntent(ctx, intentRef)
	}))
}

func (b *BreakerClient) RetrievePaymentMethod(ctx context.Context, methodRef string) (*PaymentMethod, error) {
	return mapBreakerErr(b.methods.Execute(func() (*PaymentMethod, error) {
		return b.inner.RetrievePaymentMethod(ctx, methodRef)
	}))
}
