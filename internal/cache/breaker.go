package cache

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Breaker guards a remote cache. While the breaker is open, reads report a
// miss and writes are dropped so callers fall through to the database.
type Breaker struct {
	next   Cache
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreaker wraps next with a circuit breaker named name.
func NewBreaker(name string, next Cache, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("cache breaker state changed",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	return &Breaker{next: next, cb: cb, logger: logger}
}

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

func (b *Breaker) Get(ctx context.Context, key string, dst any) (bool, error) {
	res, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Get(ctx, key, dst)
	})
	if err != nil {
		b.logger.Debug("cache get degraded to miss", zap.String("key", key), zap.Error(err))
		return false, nil
	}
	return res.(bool), nil
}

func (b *Breaker) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Set(ctx, key, v, ttl)
	})
	if err != nil {
		b.logger.Debug("cache set dropped", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (b *Breaker) Delete(ctx context.Context, key string) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Delete(ctx, key)
	})
	if err != nil {
		b.logger.Debug("cache delete dropped", zap.String("key", key), zap.Error(err))
	}
	return nil
}

// FromURL builds the cache the server uses: a breaker-guarded Redis cache
// when url is set, otherwise an in-process one.
func FromURL(url, prefix string, logger *zap.Logger) (Cache, error) {
	if url == "" {
		return NewMemoryCache(), nil
	}
	rc, err := NewRedisCache(url, prefix)
	if err != nil {
		return nil, err
	}
	return NewBreaker("redis-cache", rc, logger), nil
}
