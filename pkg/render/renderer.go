// pkg/render/renderer.go
package render

import (
	"context"

	"github.com/opd-ai/go-dronesim/pkg/logging"
)

// Renderer consumes assembled scenes. Hosts call Clear, Render and Present
// once per frame in that order.
type Renderer interface {
	Clear()
	Render(scene Scene)
	Present()
}

// NullRenderer is a Renderer that only logs at debug level.
type NullRenderer struct {
	logger *logging.Logger
}

// NewNullRenderer creates a new NullRenderer with structured logging.
// A nil logger uses the default stdout logger.
func NewNullRenderer(logger *logging.Logger) *NullRenderer {
	if logger == nil {
		logger = logging.NewLogger()
	}
	return &NullRenderer{logger: logger}
}

// Clear implements Renderer.
func (d *NullRenderer) Clear() {
	d.logger.Debug(context.Background(), "Clear called")
}

// Render implements Renderer.
func (d *NullRenderer) Render(scene Scene) {
	d.logger.Debug(context.Background(), "Render called",
		"frame", scene.Frame,
		"drawables", len(scene.Drawables),
		"x", scene.Position.X(),
		"y", scene.Position.Y(),
		"z", scene.Position.Z(),
		"heading", scene.Heading,
	)
}

// Present implements Renderer.
func (d *NullRenderer) Present() {
	d.logger.Debug(context.Background(), "Present called")
}
