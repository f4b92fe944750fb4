// Package retry wraps unreliable remote calls with a bounded, fixed-delay retry.
//
// Exhausting every attempt is not an error for the caller: Do reports "no
// result" and logs the last fault. Callers must read that as "source
// temporarily unavailable", never as "no records exist".
package retry

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/cenkalti/backoff/v5"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 5 * time.Second
)

// Config sets how many attempts a remote call gets and the wait between them
type Config struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultConfig returns 3 attempts 5 seconds apart
func DefaultConfig() Config {
	return Config{
		MaxAttempts: DefaultMaxAttempts,
		Delay:       DefaultDelay,
	}
}

// Caller retries remote calls
type Caller struct {
	cfg    Config
	logger ectologger.Logger
}

// NewCaller creates a new retrying caller
func NewCaller(cfg Config, logger ectologger.Logger) *Caller {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return &Caller{
		cfg:    cfg,
		logger: logger,
	}
}

// Config returns the retry settings in use
func (c *Caller) Config() Config {
	return c.cfg
}

// Do runs call until it succeeds or MaxAttempts calls have faulted, waiting
// Delay between attempts. The wait ends early when ctx is done. ok is false
// when no attempt succeeded.
func Do[T any](ctx context.Context, c *Caller, name string, call func() (T, error)) (result T, ok bool) {
	ctx, span := tracing.StartSpan(ctx, "retry.Do")
	defer span.End()

	logger := c.logger.WithContext(ctx).WithFields(map[string]any{
		"call":         name,
		"max_attempts": c.cfg.MaxAttempts,
	})

	attempt := 0
	operation := func() (T, error) {
		attempt++
		res, err := call()
		if err != nil {
			metrics.RecordAttempt(name, "failed")
			logger.WithError(err).WithField("attempt", attempt).Warnf("Remote call %s failed on attempt %d of %d", name, attempt, c.cfg.MaxAttempts)
			return res, err
		}
		metrics.RecordAttempt(name, "succeeded")
		return res, nil
	}

	res, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.cfg.Delay)),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
		backoff.WithMaxElapsedTime(0),
	)
	if err != nil {
		metrics.RecordAttempt(name, "exhausted")
		logger.WithError(err).WithField("attempts", attempt).Errorf("Remote call %s gave no result after %d attempts", name, attempt)
		var zero T
		return zero, false
	}
	return res, true
}
