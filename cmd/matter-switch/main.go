// matter-switch is a light switch that drives bound lights, together with
// the simulated light it drives.
//
// Usage:
//
//	matter-switch [--config FILE] [--log-level LEVEL] switch [--exec LINE]...
//	matter-switch [--config FILE] [--log-level LEVEL] light [--listen ADDR]
//
// Example:
//
//	matter-switch light --listen :5540
//	matter-switch switch
//	switch> switch binding unicast 1 0x1001 1 onoff
//	switch> switch onoff toggle
//
// When stdin is not a terminal the switch runs the piped lines like --exec.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

var flagConfig = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to the YAML configuration",
	EnvVars: []string{"MATTER_SWITCH_CONFIG"},
}

var flagLogLevel = &cli.StringFlag{
	Name:  "log-level",
	Usage: "Log level (disabled, error, warn, info, debug, trace); overrides the config",
}

var flagExec = &cli.StringSliceFlag{
	Name:  "exec",
	Usage: "Run a shell line, wait for its results and exit (repeatable)",
}

var flagListen = &cli.StringFlag{
	Name:  "listen",
	Usage: "TCP address the light accepts sessions on; overrides the config",
}

var flagNoAdvertise = &cli.BoolFlag{
	Name:  "no-advertise",
	Usage: "Do not publish the light over mDNS",
}

func main() {
	app := &cli.App{
		Name:  "matter-switch",
		Usage: "Binding-driven light switch and simulated light",
		Flags: []cli.Flag{flagConfig, flagLogLevel},
		Commands: []*cli.Command{
			{
				Name:   "switch",
				Usage:  "Run the interactive switch console",
				Flags:  []cli.Flag{flagExec},
				Action: func(cCtx *cli.Context) error { return withConfig(cCtx, runSwitch) },
			},
			{
				Name:   "light",
				Usage:  "Run the simulated light",
				Flags:  []cli.Flag{flagListen, flagNoAdvertise},
				Action: func(cCtx *cli.Context) error { return withConfig(cCtx, runLight) },
			},
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func withConfig(cCtx *cli.Context, run func(*cli.Context, Config) error) error {
	cfg, err := LoadConfig(cCtx.String(flagConfig.Name))
	if err != nil {
		return err
	}
	if lvl := cCtx.String(flagLogLevel.Name); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	return run(cCtx, cfg)
}
