// Package cmd provides CLI commands for the slate binary.
package cmd

import "github.com/urfave/cli/v2"

// Shared flags across commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// ConfigFlag points at a slate.yaml config file.
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to slate.yaml (default: ./slate.yaml if present)",
	}

	// ModeFlag overrides the configured executor mode.
	ModeFlag = &cli.StringFlag{
		Name:  "mode",
		Usage: "Executor mode: isolated, stateful",
	}

	// TimeoutFlag overrides the configured per-cell evaluation timeout.
	TimeoutFlag = &cli.DurationFlag{
		Name:  "timeout",
		Usage: "Per-cell evaluation timeout (e.g. 30s)",
	}
)

// ReadOnlyFlags returns the shared flags for read-only commands.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		ConfigFlag,
	}
}

// ExecFlags returns the shared flags for commands that execute code.
func ExecFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		ConfigFlag,
		ModeFlag,
		TimeoutFlag,
	}
}
