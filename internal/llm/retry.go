package llm

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryProvider retries transient provider failures with jittered
// exponential backoff. It never sleeps past the caller's deadline: when
// the next wait would overrun it, the last error is returned at once so a
// turn can fall back instead of timing out.
//
// Malformed structured output is not retried here; each pipeline stage
// owns its corrective re-prompt.
type RetryProvider struct {
	inner Provider
	cfg   RetryConfig
	log   *zap.Logger
}

// WithRetry wraps p. log may be nil.
func WithRetry(p Provider, cfg RetryConfig, log *zap.Logger) Provider {
	if log == nil {
		log = zap.NewNop()
	}
	return &RetryProvider{inner: p, cfg: cfg, log: log.Named("retry")}
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	attempts := max(r.cfg.MaxAttempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		var resp *Response
		resp, err = r.inner.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if attempt >= attempts || !retryable(err) {
			return nil, err
		}

		wait := r.wait(attempt, err)
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			r.log.Debug("not retrying past deadline",
				zap.String("purpose", PurposeFrom(ctx)),
				zap.Duration("wait", wait))
			return nil, err
		}
		r.log.Warn("retrying llm call",
			zap.String("purpose", PurposeFrom(ctx)),
			zap.String("user_id", LearnerFrom(ctx)),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}
}

// retryable reports whether err is worth another attempt. Cancellation,
// rejection, token exhaustion and invalid output are final; rate limits,
// outages and unclassified transport errors are not.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var maxTok *ErrMaxTokensExceeded
	var invalid *ErrInvalidResponse
	var rejected *ErrRejected
	return !errors.As(err, &maxTok) && !errors.As(err, &invalid) && !errors.As(err, &rejected)
}

// wait returns the pause before the next attempt. A provider's Retry-After
// wins over the computed backoff.
func (r *RetryProvider) wait(attempt int, err error) time.Duration {
	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		return rl.RetryAfter
	}

	mult := r.cfg.Multiplier
	if mult < 1 {
		mult = 1
	}
	d := float64(r.cfg.InitialWait) * math.Pow(mult, float64(attempt-1))
	if r.cfg.MaxWait > 0 {
		d = math.Min(d, float64(r.cfg.MaxWait))
	}
	// ±20% jitter
	d *= 0.8 + 0.4*rand.Float64()
	return time.Duration(d)
}
