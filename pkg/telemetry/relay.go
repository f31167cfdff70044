package telemetry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/opd-ai/go-dronesim/pkg/logging"
)

const instrumentationName = "github.com/opd-ai/go-dronesim/pkg/telemetry"

type sink struct {
	name string
	pub  Publisher
}

// Relay forwards samples to every registered sink, at most once per
// interval. A failing sink is logged and counted; it never blocks the others.
type Relay struct {
	interval time.Duration
	logger   *logging.Logger

	published metric.Int64Counter
	failures  metric.Int64Counter

	mu    sync.Mutex
	sinks []sink
	last  time.Time
	sent  bool
}

// NewRelay returns a relay that publishes no more often than interval. A nil
// meter uses the global provider.
func NewRelay(interval time.Duration, logger *logging.Logger, m metric.Meter) (*Relay, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if m == nil {
		m = otel.Meter(instrumentationName)
	}

	r := &Relay{interval: interval, logger: logger}
	var err error
	r.published, err = m.Int64Counter(
		"dronesim.telemetry.published",
		metric.WithDescription("Samples delivered per sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating published counter: %w", err)
	}
	r.failures, err = m.Int64Counter(
		"dronesim.telemetry.failures",
		metric.WithDescription("Failed sample deliveries per sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failure counter: %w", err)
	}
	return r, nil
}

// Add registers a sink under name.
func (r *Relay) Add(name string, p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sinks = append(r.sinks, sink{name: name, pub: p})
}

// Sinks returns the registered sink names in order.
func (r *Relay) Sinks() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.sinks))
	for i, s := range r.sinks {
		names[i] = s.name
	}
	return names
}

// Offer publishes s if at least one interval has passed since the last
// publish at now. It reports whether s was sent.
func (r *Relay) Offer(ctx context.Context, s Sample, now time.Time) bool {
	r.mu.Lock()
	if r.sent && now.Sub(r.last) < r.interval {
		r.mu.Unlock()
		return false
	}
	r.sent = true
	r.last = now
	r.mu.Unlock()

	_ = r.Publish(ctx, s)
	return true
}

// Publish sends s to every sink regardless of the interval and joins the
// errors.
func (r *Relay) Publish(ctx context.Context, s Sample) error {
	r.mu.Lock()
	sinks := append([]sink(nil), r.sinks...)
	r.mu.Unlock()

	var errs []error
	for _, sk := range sinks {
		attrs := metric.WithAttributes(attribute.String("sink", sk.name))
		if err := sk.pub.Publish(ctx, s); err != nil {
			r.failures.Add(ctx, 1, attrs)
			r.logger.Debug(ctx, "telemetry publish failed", "sink", sk.name, "frame", s.Frame, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sk.name, err))
			continue
		}
		r.published.Add(ctx, 1, attrs)
	}
	return errors.Join(errs...)
}

// Close closes every sink and joins the errors.
func (r *Relay) Close() error {
	r.mu.Lock()
	sinks := r.sinks
	r.sinks = nil
	r.mu.Unlock()

	var errs []error
	for _, sk := range sinks {
		if err := sk.pub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sk.name, err))
		}
	}
	return errors.Join(errs...)
}
