// Package main provides the slate-host entrypoint: the isolated
// runtime side of the process boundary.
//
// The host speaks framed messages on stdin/stdout, so all logging goes
// to stderr. It serves exactly one engine and exits when the stream
// closes or a destroy request is served.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/xid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/slate/host"
	"github.com/justapithecus/slate/log"
	"github.com/justapithecus/slate/types"
)

func main() {
	app := &cli.App{
		Name:    "slate-host",
		Usage:   "Isolated runtime host (speaks frames on stdin/stdout)",
		Version: types.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Minimum log level: debug, info, warn, error",
				Value: "info",
			},
		},
		Action: serve,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "slate-host: %v\n", err)
		os.Exit(1)
	}
}

func serve(c *cli.Context) error {
	logger := log.NewLeveledLogger(xid.New().String(), "", c.String("log-level"))
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := host.New(host.WithLogger(logger))
	return h.Serve(ctx, os.Stdin, os.Stdout)
}
