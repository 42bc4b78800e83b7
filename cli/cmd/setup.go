package cmd

import (
	"context"
	"os"
	"time"

	"github.com/rs/xid"
	"github.com/urfave/cli/v2"

	"github.com/justapithecus/slate/cli/config"
	"github.com/justapithecus/slate/engine"
	"github.com/justapithecus/slate/log"
	"github.com/justapithecus/slate/metrics"
	"github.com/justapithecus/slate/types"
)

// Exit codes for executing commands.
const (
	// ExitOK: all cells evaluated, none failed.
	ExitOK = 0
	// ExitCellError: the run completed but at least one cell failed.
	ExitCellError = 1
	// ExitHostFault: the host crashed or the run could not proceed.
	ExitHostFault = 2
)

// loadConfig resolves the effective configuration: --config if given,
// ./slate.yaml if present, built-in defaults otherwise.
func loadConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	if _, err := os.Stat("slate.yaml"); err == nil {
		return config.Load("slate.yaml")
	}
	return config.Default(), nil
}

// resolveMode applies the --mode override on top of the config.
func resolveMode(c *cli.Context, cfg *config.Config) (types.ExecutorMode, error) {
	mode := types.ExecutorMode(cfg.Mode)
	if s := c.String("mode"); s != "" {
		mode = types.ExecutorMode(s)
	}
	if !mode.IsValid() {
		return "", cli.Exit("invalid mode: expected isolated or stateful", ExitHostFault)
	}
	return mode, nil
}

// buildEngine constructs an engine per config: in-process by default,
// subprocess when the config selects the process boundary.
func buildEngine(cfg *config.Config, mode types.ExecutorMode, logger *log.Logger) (*engine.Engine, *metrics.Collector) {
	collector := metrics.NewCollector(xid.New().String(), string(mode), cfg.Boundary)

	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithCollector(collector),
	}
	if cfg.Boundary == config.BoundaryProcess {
		opts = append(opts, engine.WithBoundaryFactory(func() engine.Boundary {
			return engine.NewProcessBoundary(cfg.HostBinary, []string{"--log-level", "warn"}, logger)
		}))
	}

	return engine.New(mode, opts...), collector
}

// metricsFields flattens a snapshot into structured log fields.
func metricsFields(snap metrics.Snapshot) map[string]any {
	return map[string]any{
		"executions_started":       snap.ExecutionsStarted,
		"executions_succeeded":     snap.ExecutionsSucceeded,
		"executions_failed":        snap.ExecutionsFailed,
		"host_launch_success":      snap.HostLaunchSuccess,
		"host_launch_failure":      snap.HostLaunchFailure,
		"host_faults":              snap.HostFaults,
		"decode_errors":            snap.DecodeErrors,
		"context_values_persisted": snap.ContextValuesPersisted,
		"context_values_dropped":   snap.ContextValuesDropped,
	}
}

// logMetrics emits the final engine counters once a command is done
// with its engine.
func logMetrics(logger *log.Logger, collector *metrics.Collector) {
	logger.Info("engine metrics", metricsFields(collector.Snapshot()))
}

// timeoutRunner bounds each cell evaluation with the configured
// timeout while sharing one engine across the run.
type timeoutRunner struct {
	eng     *engine.Engine
	timeout time.Duration
}

func (r *timeoutRunner) Execute(ctx context.Context, code string) (*types.ExecutionResult, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.eng.Execute(ctx, code)
}
