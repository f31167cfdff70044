package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/opd-ai/go-dronesim/pkg/engine"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// metrics holds the simulator's instruments. With no provider installed the
// global meter is a no-op.
type metrics struct {
	frames  metric.Int64Counter
	delta   metric.Float64Histogram
	clamps  metric.Int64Counter
	gimbal  metric.Int64Counter
	regimes metric.Int64Counter
}

func newMetrics(m metric.Meter) (*metrics, error) {
	var (
		mt  metrics
		err error
	)

	mt.frames, err = m.Int64Counter(
		"dronesim.frames",
		metric.WithDescription("Simulation steps executed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}

	mt.delta, err = m.Float64Histogram(
		"dronesim.frame.delta",
		metric.WithDescription("Frame delta after clamping"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delta histogram: %w", err)
	}

	mt.clamps, err = m.Int64Counter(
		"dronesim.frame.clamped",
		metric.WithDescription("Frames whose delta exceeded the clamp"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating clamp counter: %w", err)
	}

	mt.gimbal, err = m.Int64Counter(
		"dronesim.attitude.gimbal_lock",
		metric.WithDescription("Attitude extractions that hit a pole"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating gimbal counter: %w", err)
	}

	mt.regimes, err = m.Int64Counter(
		"dronesim.axis.regime_changes",
		metric.WithDescription("Throttle regime transitions per axis"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating regime counter: %w", err)
	}

	return &mt, nil
}

func (m *metrics) recordFrame(ctx context.Context, dt float64, clamped bool, res StepResult) {
	m.frames.Add(ctx, 1)
	m.delta.Record(ctx, dt)
	if clamped {
		m.clamps.Add(ctx, 1)
	}
	if res.GimbalLock {
		m.gimbal.Add(ctx, 1)
	}
	for i, changed := range res.Changed {
		if changed {
			m.regimes.Add(ctx, 1, metric.WithAttributes(
				attribute.String("axis", axisNames[i]),
				attribute.String("regime", res.Regimes[i].String()),
			))
		}
	}
}

var axisNames = [3]string{"x", "y", "z"}
