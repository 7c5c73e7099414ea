package pitfeat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestRetryerDo(t *testing.T) {
	transient := errors.New("connection reset by peer")
	fatal := errors.New("access denied")

	tests := []struct {
		name         string
		failures     int
		err          error
		retryIf      func(error) bool
		wantAttempts int
		wantErr      error
	}{
		{"first try", 0, nil, nil, 1, nil},
		{"recovers", 2, transient, IsRetryable, 3, nil},
		{"gives up", 10, transient, IsRetryable, 4, transient},
		{"not retryable", 10, fatal, IsRetryable, 1, fatal},
		{"retries everything without a predicate", 10, fatal, nil, 4, fatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fastRetry()
			cfg.RetryIf = tt.retryIf
			calls := 0
			res := NewRetryer(cfg).Do(context.Background(), func(context.Context) error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			assert.Equal(t, tt.wantAttempts, res.Attempts)
			assert.Equal(t, tt.wantAttempts, calls)
			if tt.wantErr == nil {
				assert.NoError(t, res.LastErr)
			} else {
				assert.ErrorIs(t, res.LastErr, tt.wantErr)
			}
		})
	}
}

func TestRetryerStopsOnCancel(t *testing.T) {
	cfg := fastRetry()
	cfg.InitialBackoff = time.Hour
	cfg.MaxBackoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	res := NewRetryer(cfg).Do(ctx, func(context.Context) error {
		cancel()
		return errors.New("timeout")
	})
	assert.Equal(t, 1, res.Attempts)
	assert.ErrorIs(t, res.LastErr, context.Canceled)
}

func TestRetryValue(t *testing.T) {
	calls := 0
	v, err := retryValue(context.Background(), NewRetryer(fastRetry()), func(context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errors.New("service unavailable")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestNewRetryerDefaults(t *testing.T) {
	r := NewRetryer(RetryConfig{})
	def := DefaultRetryConfig()
	assert.Equal(t, def.MaxAttempts, r.config.MaxAttempts)
	assert.Equal(t, def.InitialBackoff, r.config.InitialBackoff)
	assert.Equal(t, def.BackoffMultiplier, r.config.BackoffMultiplier)
	assert.Nil(t, r.config.RetryIf)
}
