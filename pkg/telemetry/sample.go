// Package telemetry publishes the body pose to external consumers: an MQTT
// broker and browser clients over WebSocket.
package telemetry

import (
	"context"
	"errors"

	"github.com/opd-ai/go-dronesim/pkg/engine"
	"github.com/opd-ai/go-dronesim/pkg/physics"
)

// ErrClosed is returned by publishers after Close.
var ErrClosed = errors.New("telemetry: publisher closed")

// Sample is one pose report. Vectors are [x, y, z].
type Sample struct {
	SessionID    string              `json:"sessionId,omitempty"`
	Frame        uint64              `json:"frame"`
	Time         float64             `json:"time"`
	Position     [3]float64          `json:"position"`
	Heading      float64             `json:"heading"`
	Attitude     physics.EulerAngles `json:"attitude"`
	Velocity     [3]float64          `json:"velocity"`
	Acceleration [3]float64          `json:"acceleration"`
	Regimes      [3]string           `json:"regimes"`
	Camera       [3]float64          `json:"camera"`
}

// FromSnapshot converts an engine snapshot into a Sample.
func FromSnapshot(sessionID string, s engine.Snapshot) Sample {
	out := Sample{
		SessionID:    sessionID,
		Frame:        s.Frame,
		Time:         s.Time,
		Position:     s.Position,
		Heading:      s.Heading,
		Attitude:     s.Attitude,
		Velocity:     s.Velocity,
		Acceleration: s.Acceleration,
		Camera:       s.Camera,
	}
	for i, r := range s.Regimes {
		out.Regimes[i] = r.String()
	}
	return out
}

// Publisher delivers samples to one sink.
type Publisher interface {
	Publish(ctx context.Context, s Sample) error
	Close() error
}
