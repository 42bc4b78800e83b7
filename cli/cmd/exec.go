package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/slate/cli/render"
	"github.com/justapithecus/slate/log"
	"github.com/justapithecus/slate/types"
)

// ExecResultView is the rendered outcome of a one-shot execution.
type ExecResultView struct {
	Success bool   `json:"success" yaml:"success"`
	Stream  string `json:"stream,omitempty" yaml:"stream,omitempty"`
	Output  string `json:"output,omitempty" yaml:"output,omitempty"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func newExecResultView(result *types.ExecutionResult) ExecResultView {
	view := ExecResultView{Success: result.Success}
	if result.Output != nil {
		view.Stream = string(result.Output.Stream)
		view.Output = result.Output.Data
	}
	if result.Error != nil {
		view.Error = result.Error.Error()
	}
	return view
}

// ExecCommand returns the exec command: evaluate one code string or
// stdin and print the result.
func ExecCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Execute a single code snippet",
		ArgsUsage: "[code]",
		Description: "Evaluates the given code string, or stdin when no " +
			"argument is provided.",
		Flags:  ExecFlags(),
		Action: execAction,
	}
}

func execAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
	}

	code, err := readCode(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
	}
	mode, err := resolveMode(c, cfg)
	if err != nil {
		return err
	}

	logger := log.NewLogger("cli", mode)
	defer logger.Sync()

	eng, collector := buildEngine(cfg, mode, logger)
	ctx := c.Context
	defer logMetrics(logger, collector)
	defer eng.Destroy(context.WithoutCancel(ctx))

	timeout := cfg.EvalTimeout.Duration
	if t := c.Duration("timeout"); t > 0 {
		timeout = t
	}

	result, execErr := (&timeoutRunner{eng: eng, timeout: timeout}).Execute(ctx, code)
	if execErr != nil {
		return cli.Exit(fmt.Sprintf("execution aborted: %v", execErr), ExitHostFault)
	}

	if err := r.Render(newExecResultView(result)); err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
	}

	if !result.Success {
		return cli.Exit("", ExitCellError)
	}
	return nil
}

func readCode(c *cli.Context) (string, error) {
	if c.NArg() >= 1 {
		return c.Args().First(), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read code from stdin: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no code given: pass an argument or pipe to stdin")
	}
	return string(data), nil
}
