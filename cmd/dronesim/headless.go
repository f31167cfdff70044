// cmd/dronesim/headless.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/go-dronesim/pkg/input"
	"github.com/opd-ai/go-dronesim/pkg/render"
)

func headlessCommand() error {
	opts := CLI.Headless
	if opts.Step <= 0 {
		return fmt.Errorf("step must be positive, got %v", opts.Step)
	}

	script := input.NewScript()
	if opts.Script != "" {
		var err error
		if script, err = input.ParseScript(opts.Script); err != nil {
			return err
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.close()

	var r render.Renderer = render.NewNullRenderer(s.logger)
	if opts.Map > 0 {
		tr := render.NewTerminalRenderer(os.Stdout, 60, 24, opts.MapScale)
		tr.SetClearScreen(true)
		r = tr
	}

	s.sim.Start()
	defer s.sim.Stop()

	step := time.Duration(opts.Step * float64(time.Second))
	var ticker *time.Ticker
	if opts.Realtime {
		ticker = time.NewTicker(step)
		defer ticker.Stop()
	}

	var elapsed time.Duration
	for frame := 1; opts.Frames == 0 || frame <= opts.Frames; frame++ {
		if opts.Frames == 0 && opts.Script != "" && script.Done() && elapsed > script.End() {
			break
		}
		for _, tr := range script.Due(elapsed) {
			s.sim.HandleKey(tr.Code, tr.Pressed)
		}

		scene, err := s.sim.Advance(opts.Step)
		if err != nil {
			return err
		}
		if opts.Map == 0 || frame%opts.Map == 0 {
			r.Clear()
			r.Render(scene)
			r.Present()
		}
		s.onFrame(scene)
		elapsed += step

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		} else if ctx.Err() != nil {
			return nil
		}
	}

	snap := s.sim.Snapshot()
	s.logger.Info(s.ctx, "flight finished",
		"frames", snap.Frame,
		"x", snap.Position.X(),
		"y", snap.Position.Y(),
		"z", snap.Position.Z(),
		"heading", snap.Heading,
	)
	return nil
}
