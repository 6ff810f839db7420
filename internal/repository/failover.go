package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"courtbook/internal/domain"

	"github.com/rs/zerolog"
)

// FailoverLocker uses primary while it is healthy and switches to fallback
// when primary fails with anything other than contention. Primary is retried
// after recoverAfter.
type FailoverLocker struct {
	primary      domain.Locker
	fallback     domain.Locker
	logger       *zerolog.Logger
	recoverAfter time.Duration
	isDown       atomic.Bool
	downSince    atomic.Int64
	now          func() time.Time
}

func NewFailoverLocker(primary, fallback domain.Locker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:      primary,
		fallback:     fallback,
		logger:       logger,
		recoverAfter: time.Minute,
		now:          time.Now,
	}
}

func (l *FailoverLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if l.isDown.Load() && l.now().Sub(time.Unix(0, l.downSince.Load())) < l.recoverAfter {
		return l.fallback.Acquire(ctx, key)
	}

	release, err := l.primary.Acquire(ctx, key)
	if err == nil {
		if l.isDown.Swap(false) {
			l.logger.Info().Msg("Primary locker recovered")
		}
		return release, nil
	}
	if errors.Is(err, domain.ErrRetryable) {
		return nil, err
	}

	if !l.isDown.Swap(true) {
		l.logger.Error().Err(err).Msg("Primary locker failed, falling back to memory")
	}
	l.downSince.Store(l.now().UnixNano())
	return l.fallback.Acquire(ctx, key)
}

// Degraded reports whether the fallback is currently in use.
func (l *FailoverLocker) Degraded() bool {
	return l.isDown.Load()
}
