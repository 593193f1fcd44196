package sinks

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/onix/pkg/config"
	"github.com/ajitpratap0/onix/pkg/errors"
	"github.com/ajitpratap0/onix/pkg/record"
)

// RetryPolicy defines retry behavior
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// NewRetryPolicy builds a policy from sink configuration, filling unset
// values from config.DefaultRetry.
func NewRetryPolicy(cfg config.RetryConfig) *RetryPolicy {
	def := config.DefaultRetry()
	rp := &RetryPolicy{
		MaxAttempts:     cfg.Attempts,
		InitialDelay:    cfg.Delay,
		MaxDelay:        cfg.MaxDelay,
		Multiplier:      cfg.Multiplier,
		RandomizeFactor: 0.25,
	}
	if rp.MaxAttempts <= 0 {
		rp.MaxAttempts = def.Attempts
	}
	if rp.InitialDelay <= 0 {
		rp.InitialDelay = def.Delay
	}
	if rp.MaxDelay <= 0 {
		rp.MaxDelay = def.MaxDelay
	}
	if rp.Multiplier <= 0 {
		rp.Multiplier = def.Multiplier
	}
	return rp
}

// Execute runs fn until it succeeds, returns a non-retryable error or the
// attempts are exhausted.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			return err
		}
		if attempt == rp.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(rp.calculateDelay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", rp.MaxAttempts, lastErr)
}

// calculateDelay calculates the delay for a given attempt
func (rp *RetryPolicy) calculateDelay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))
	if delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}

	if rp.RandomizeFactor > 0 {
		delta := delay * rp.RandomizeFactor
		delay = delay - delta + rand.Float64()*2*delta //nolint:gosec // jitter only
	}
	return time.Duration(delay)
}

// retrySink retries Import on retryable errors.
type retrySink struct {
	record.Sink
	policy *RetryPolicy
	logger *zap.Logger
}

// WithRetry decorates sink with policy. Only errors for which
// errors.IsRetryable reports true are retried.
func WithRetry(sink record.Sink, policy *RetryPolicy, logger *zap.Logger) record.Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &retrySink{Sink: sink, policy: policy, logger: logger}
}

func (s *retrySink) Import(ctx context.Context, r *record.Record) error {
	attempt := 0
	return s.policy.Execute(ctx, func() error {
		attempt++
		err := s.Sink.Import(ctx, r)
		if err != nil && attempt < s.policy.MaxAttempts && errors.IsRetryable(err) {
			s.logger.Warn("sink import failed, retrying",
				zap.String("sink", s.Name()),
				zap.Int("sequence", r.Sequence),
				zap.Int("attempt", attempt),
				zap.Error(err))
		}
		return err
	})
}

func (s *retrySink) Close(ctx context.Context) error {
	if c, ok := s.Sink.(record.Closer); ok {
		return c.Close(ctx)
	}
	return nil
}
