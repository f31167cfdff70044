// cmd/dronesim/fly.go
package main

import (
	"context"

	"github.com/EngoEngine/engo"

	engorender "github.com/opd-ai/go-dronesim/pkg/render/engo"
)

func flyCommand() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer s.close()

	width, height := cfg.Viewport.Width, cfg.Viewport.Height
	if CLI.Fly.Width > 0 {
		width = CLI.Fly.Width
	}
	if CLI.Fly.Height > 0 {
		height = CLI.Fly.Height
	}
	s.sim.Resize(width, height)

	opts := engo.RunOptions{
		Title:      "Drone Sim",
		Width:      width,
		Height:     height,
		Fullscreen: CLI.Fly.Fullscreen,
		VSync:      true,
	}
	engo.Run(opts, engorender.NewFlightScene(s.sim, s.logger, s.onFrame))
	return nil
}
