// Package network guards outbound telemetry traffic with a circuit breaker so
// an unreachable broker costs one fast failure per frame instead of a stalled
// simulation loop.
package network

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/opd-ai/go-dronesim/pkg/config"
	"github.com/opd-ai/go-dronesim/pkg/logging"
)

// ErrOpen is returned when the breaker rejects an operation without running it.
var ErrOpen = errors.New("circuit open")

// Operation is a single outbound call.
type Operation func() error

// Breaker wraps outbound operations with a gobreaker.CircuitBreaker.
type Breaker struct {
	breaker *gobreaker.CircuitBreaker
	logger  *logging.Logger

	// Retries and Backoff drive ExecuteWithRetry. The nth retry waits
	// n*Backoff.
	Retries int
	Backoff time.Duration
}

// NewBreaker builds a breaker named name from cfg. A nil logger discards.
func NewBreaker(name string, cfg config.BreakerConfig, logger *logging.Logger) *Breaker {
	if logger == nil {
		logger = logging.Discard()
	}
	maxFails := cfg.MaxConsecutiveFails
	if maxFails == 0 {
		maxFails = 1
	}

	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.IntervalMS) * time.Millisecond,
		Timeout:     time.Duration(cfg.TimeoutMS) * time.Millisecond,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info(context.Background(), "circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &Breaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		logger:  logger,
		Retries: 3,
		Backoff: time.Second,
	}
}

// Execute runs op through the breaker. When the circuit is open op is not
// called and the returned error wraps ErrOpen.
func (b *Breaker) Execute(ctx context.Context, op Operation) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, op()
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w: %w", b.breaker.Name(), ErrOpen, err)
	}
	b.logger.LogWithContext(ctx, slog.LevelDebug, "guarded operation failed",
		"name", b.breaker.Name(),
		"error", err,
		"state", b.breaker.State().String(),
	)
	return fmt.Errorf("%s: %w", b.breaker.Name(), err)
}

// ExecuteWithRetry retries op with linear backoff. It gives up early when the
// circuit opens or ctx is done.
func (b *Breaker) ExecuteWithRetry(ctx context.Context, op Operation) error {
	attempts := b.Retries
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = b.Execute(ctx, op); err == nil {
			return nil
		}
		if b.breaker.State() == gobreaker.StateOpen {
			b.logger.Warn(ctx, "circuit breaker is open, skipping retries",
				"name", b.breaker.Name(),
				"attempt", attempt+1,
			)
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := time.Duration(attempt+1) * b.Backoff
		b.logger.Warn(ctx, "operation failed, retrying",
			"name", b.breaker.Name(),
			"attempt", attempt+1,
			"delay", delay,
			"error", err,
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		}
	}
	return fmt.Errorf("max retries (%d) exceeded: %w", attempts, err)
}

// State returns the current circuit state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

// Counts returns the breaker's request counters for the current interval.
func (b *Breaker) Counts() gobreaker.Counts {
	return b.breaker.Counts()
}

// Name returns the breaker name.
func (b *Breaker) Name() string {
	return b.breaker.Name()
}
