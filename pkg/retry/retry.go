package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

// Config controls retry behavior
type Config struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
	OnRetry  func(attempt uint, err error)
}

// DefaultConfig returns sensible defaults for outbound calls
func DefaultConfig() Config {
	return Config{
		Attempts: 3,
		Delay:    500 * time.Millisecond,
		MaxDelay: 5 * time.Second,
	}
}

// Do runs fn with exponential backoff until it succeeds, the attempts are
// exhausted, or the context ends.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
	if cfg.OnRetry != nil {
		opts = append(opts, retry.OnRetry(cfg.OnRetry))
	}
	return retry.Do(fn, opts...)
}

// DoUnless behaves like Do but stops immediately when stop reports the
// error as permanent.
func DoUnless(ctx context.Context, cfg Config, stop func(error) bool, fn func() error) error {
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(cfg.Attempts),
		retry.Delay(cfg.Delay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return !stop(err) }),
	}
	if cfg.OnRetry != nil {
		opts = append(opts, retry.OnRetry(cfg.OnRetry))
	}
	return retry.Do(fn, opts...)
}
