// cmd/dronesim/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/opd-ai/go-dronesim/pkg/config"
	"github.com/opd-ai/go-dronesim/pkg/logging"
)

var CLI struct {
	Config string `help:"JSON configuration file layered over the preset." type:"path" short:"c"`
	Preset string `help:"Preset to start from (${presets})." short:"p"`
	Debug  bool   `help:"Enable debug logging."`

	Fly struct {
		Width      int  `help:"Window width; defaults to the configured viewport."`
		Height     int  `help:"Window height; defaults to the configured viewport."`
		Fullscreen bool `help:"Run fullscreen."`
	} `cmd:"" default:"1" help:"Open a window and fly with the keyboard."`

	Headless struct {
		Script   string  `help:"Key script, e.g. 'ArrowUp@0s+2s,W@0.5s+1s'." short:"s"`
		Frames   int     `help:"Frames to simulate; 0 runs until the script ends or until interrupted." default:"600"`
		Step     float64 `help:"Fixed frame delta in seconds." default:"0.016666667"`
		Realtime bool    `help:"Sleep between frames so the run takes wall-clock time."`
		Map      int     `help:"Draw a top-down map every N frames; 0 disables." default:"0"`
		MapScale float64 `help:"World units per map cell." default:"2"`
	} `cmd:"" help:"Run without a window, driven by a key script."`

	Show struct {
		List bool `help:"List preset names instead."`
	} `cmd:"" name:"config" help:"Print the effective configuration as JSON."`
}

func writeError(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("dronesim"),
		kong.Description("keyboard-driven drone flight simulator"),
		kong.UsageOnError(),
		kong.Vars{"presets": strings.Join(config.PresetNames(), ", ")},
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	if CLI.Debug {
		os.Setenv(logging.LevelEnv, "debug")
	}

	switch ctx.Command() {
	case "config":
		if err := showConfig(); err != nil {
			writeError(err)
		}
	case "headless":
		if err := headlessCommand(); err != nil {
			writeError(err)
		}
	default:
		if err := flyCommand(); err != nil {
			writeError(err)
		}
	}
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfigPreset(CLI.Config, CLI.Preset)
}

func showConfig() error {
	if CLI.Show.List {
		for _, name := range config.PresetNames() {
			fmt.Println(name)
		}
		return nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}
