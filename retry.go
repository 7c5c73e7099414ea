package pitfeat

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"
)

// RetryConfig configures retry behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the first).
	// Default: 3
	MaxAttempts int `yaml:"max_attempts"`

	// InitialBackoff is the initial delay before the first retry.
	// Default: 100ms
	InitialBackoff time.Duration `yaml:"initial_backoff"`

	// MaxBackoff caps the delay between retries.
	// Default: 10s
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// BackoffMultiplier grows the backoff after each retry.
	// Default: 2.0
	BackoffMultiplier float64 `yaml:"backoff_multiplier"`

	// Jitter spreads each delay by up to ±Jitter of its length.
	// Default: 0.1
	Jitter float64 `yaml:"jitter"`

	// RetryIf reports whether an error is worth another attempt.
	// If nil, all errors are retried.
	RetryIf func(error) bool `yaml:"-"`
}

// DefaultRetryConfig returns the retry settings used by remote storage.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       3,
		InitialBackoff:    100 * time.Millisecond,
		MaxBackoff:        10 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            0.1,
		RetryIf:           IsRetryable,
	}
}

// Retryer performs operations with exponential backoff.
type Retryer struct {
	config RetryConfig
}

// NewRetryer creates a retryer, replacing unset fields with defaults.
func NewRetryer(config RetryConfig) *Retryer {
	def := DefaultRetryConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = def.MaxAttempts
	}
	if config.InitialBackoff <= 0 {
		config.InitialBackoff = def.InitialBackoff
	}
	if config.MaxBackoff <= 0 {
		config.MaxBackoff = def.MaxBackoff
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = def.BackoffMultiplier
	}
	if config.Jitter < 0 || config.Jitter > 1 {
		config.Jitter = def.Jitter
	}
	return &Retryer{config: config}
}

// RetryResult describes a finished retry loop.
type RetryResult struct {
	Attempts int
	LastErr  error
}

// Do runs op until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done.
func (r *Retryer) Do(ctx context.Context, op func(ctx context.Context) error) RetryResult {
	backoff := r.config.InitialBackoff
	var lastErr error
	for attempt := 1; ; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return RetryResult{Attempts: attempt}
		}
		if r.config.RetryIf != nil && !r.config.RetryIf(lastErr) {
			return RetryResult{Attempts: attempt, LastErr: lastErr}
		}
		if attempt == r.config.MaxAttempts {
			return RetryResult{Attempts: attempt, LastErr: lastErr}
		}

		timer := time.NewTimer(r.jitter(backoff))
		select {
		case <-ctx.Done():
			timer.Stop()
			return RetryResult{Attempts: attempt, LastErr: ctx.Err()}
		case <-timer.C:
		}
		backoff = min(time.Duration(float64(backoff)*r.config.BackoffMultiplier), r.config.MaxBackoff)
	}
}

// retryValue runs op under r and returns its last value.
func retryValue[T any](ctx context.Context, r *Retryer, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	res := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, res.LastErr
}

func (r *Retryer) jitter(d time.Duration) time.Duration {
	if r.config.Jitter == 0 {
		return d
	}
	spread := float64(d) * r.config.Jitter
	return time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
}

var retryablePatterns = []string{
	"connection refused",
	"connection reset",
	"timeout",
	"temporary failure",
	"service unavailable",
	"slow down",
	"too many requests",
	"rate limit",
	"503",
	"502",
	"504",
	"429",
}

// IsRetryable reports whether err looks transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range retryablePatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
