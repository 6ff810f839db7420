package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryPolicyNextDelay(t *testing.T) {
	p := RetryPolicy{InitialDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, BackoffFactor: 2}

	assert.Equal(t, 10*time.Millisecond, p.NextDelay(0))
	assert.Equal(t, 10*time.Millisecond, p.NextDelay(1))
	assert.Equal(t, 20*time.Millisecond, p.NextDelay(2))
	assert.Equal(t, 40*time.Millisecond, p.NextDelay(3))
	assert.Equal(t, 50*time.Millisecond, p.NextDelay(4))

	assert.Equal(t, DefaultRetryDelay, RetryPolicy{}.NextDelay(1))
	assert.Equal(t, 2*DefaultRetryDelay, RetryPolicy{}.NextDelay(2))
}

var errBusy = errors.New("busy")

func isBusy(err error) bool { return errors.Is(err, errBusy) }

func TestRetryPolicyDo(t *testing.T) {
	p := RetryPolicy{MaxRetries: 3, InitialDelay: time.Millisecond}
	ctx := context.Background()

	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, isBusy, func(int) error {
			calls++
			if calls < 3 {
				return errBusy
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("GivesUp", func(t *testing.T) {
		calls := 0
		err := p.Do(ctx, isBusy, func(int) error {
			calls++
			return errBusy
		})
		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, 3, calls)
	})

	t.Run("NonRetryableStops", func(t *testing.T) {
		calls := 0
		fatal := errors.New("conflict")
		err := p.Do(ctx, isBusy, func(int) error {
			calls++
			return fatal
		})
		assert.ErrorIs(t, err, fatal)
		assert.Equal(t, 1, calls)
	})

	t.Run("ContextCancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		calls := 0
		err := RetryPolicy{MaxRetries: 5, InitialDelay: time.Hour}.Do(cctx, isBusy, func(int) error {
			calls++
			return errBusy
		})
		assert.ErrorIs(t, err, errBusy)
		assert.Equal(t, 1, calls)
	})

	t.Run("ZeroRetriesRunsOnce", func(t *testing.T) {
		calls := 0
		_ = RetryPolicy{}.Do(ctx, isBusy, func(int) error { calls++; return errBusy })
		assert.Equal(t, 1, calls)
	})
}
