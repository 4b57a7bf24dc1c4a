package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fastConfig(attempts uint) Config {
	return Config{Attempts: attempts, Delay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Do(context.Background(), fastConfig(3), func() error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestDo_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastConfig(5), func() error {
		calls++
		return errors.New("transient")
	})

	assert.Error(t, err)
	assert.LessOrEqual(t, calls, 1)
}

func TestDoUnless_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("permanent")
	calls := 0
	err := DoUnless(context.Background(), fastConfig(5), func(err error) bool {
		return errors.Is(err, permanent)
	}, func() error {
		calls++
		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_OnRetryHook(t *testing.T) {
	var attempts []uint
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt uint, err error) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), cfg, func() error { return errors.New("x") })
	assert.Len(t, attempts, 3, "hook fires after every failed attempt")
	assert.Equal(t, []uint{0, 1, 2}, attempts)
}
