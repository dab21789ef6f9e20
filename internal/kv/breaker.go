package kv

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fjod/gomarketplace/pkg/circuitbreaker"
	"github.com/sony/gobreaker/v2"
)

type BreakerSettings struct {
	Name        string
	MaxFailures uint32
	OpenTimeout time.Duration
}

// Breaker wraps a Store so that a backend which keeps failing is short
// circuited instead of being hit on every cart mutation.
type Breaker struct {
	next  Store
	bytes *gobreaker.CircuitBreaker[[]byte]
	ops   *gobreaker.CircuitBreaker[struct{}]
}

func NewBreaker(next Store, settings BreakerSettings, logger *slog.Logger) *Breaker {
	s := circuitbreaker.Settings{
		MaxFailures: settings.MaxFailures,
		OpenTimeout: settings.OpenTimeout,
		IsSuccessful: func(err error) bool {
			return errors.Is(err, ErrNotFound)
		},
	}
	read, write := s, s
	read.Name = settings.Name + "-read"
	write.Name = settings.Name + "-write"

	return &Breaker{
		next:  next,
		bytes: circuitbreaker.New[[]byte](read, logger),
		ops:   circuitbreaker.New[struct{}](write, logger),
	}
}

func (b *Breaker) Get(ctx context.Context, key string) ([]byte, error) {
	return b.bytes.Execute(func() ([]byte, error) {
		return b.next.Get(ctx, key)
	})
}

func (b *Breaker) Set(ctx context.Context, key string, value []byte) error {
	_, err := b.ops.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Set(ctx, key, value)
	})
	return err
}

func (b *Breaker) Delete(ctx context.Context, key string) error {
	_, err := b.ops.Execute(func() (struct{}, error) {
		return struct{}{}, b.next.Delete(ctx, key)
	})
	return err
}

// Ping bypasses the breaker so health checks see the real backend state.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}

func (b *Breaker) Close() error {
	return b.next.Close()
}

// State reports the write-path breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.ops.State()
}
