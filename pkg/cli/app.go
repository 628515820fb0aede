// Package cli provides the relay's command-line interface.
package cli

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"
)

// Version information - will be set during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// NewApp creates and configures the CLI application.
func NewApp() *cli.App {
	return &cli.App{
		Name:    "a2a-relay",
		Usage:   "Relay that tracks remote agent tasks via push callbacks",
		Version: Version,
		Commands: []*cli.Command{
			serveCommand(),
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose logging",
			},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool("verbose") {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
			return nil
		},
	}
}
