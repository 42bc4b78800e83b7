package cmd

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/slate/cli/config"
	"github.com/justapithecus/slate/cli/render"
	"github.com/justapithecus/slate/iox"
	"github.com/justapithecus/slate/log"
	"github.com/justapithecus/slate/notebook"
	"github.com/justapithecus/slate/store"
)

// RunReportView is the rendered summary of a notebook run.
type RunReportView struct {
	Notebook  string           `json:"notebook" yaml:"notebook"`
	Total     int              `json:"total" yaml:"total"`
	Succeeded int              `json:"succeeded" yaml:"succeeded"`
	Failed    int              `json:"failed" yaml:"failed"`
	Cells     []CellStatusView `json:"cells" yaml:"cells"`
}

// CellStatusView is one cell's outcome in the run summary.
type CellStatusView struct {
	CellID string `json:"cell_id" yaml:"cell_id"`
	Status string `json:"status" yaml:"status"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

func (v RunReportView) TableHeaders() []string {
	return []string{"CELL", "STATUS", "ERROR"}
}

func (v RunReportView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Cells))
	for _, c := range v.Cells {
		rows = append(rows, []string{c.CellID, c.Status, c.Error})
	}
	return rows
}

func newRunReportView(nb *notebook.Notebook, report *notebook.RunReport) RunReportView {
	view := RunReportView{
		Notebook:  nb.Path,
		Total:     report.Total,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
	}
	for _, c := range report.Cells {
		status := CellStatusView{CellID: c.CellID, Status: "ok"}
		if !c.Success {
			status.Status = "failed"
			if c.Error != nil {
				status.Error = c.Error.Error()
			}
		}
		view.Cells = append(view.Cells, status)
	}
	return view
}

// RunCommand returns the run command: execute a notebook's code cells
// in document order.
func RunCommand() *cli.Command {
	flags := append(ExecFlags(),
		&cli.BoolFlag{
			Name:  "save",
			Usage: "Write merged outputs back to the notebook file and record it in the store",
		},
	)

	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a notebook",
		ArgsUsage: "<notebook.json>",
		Flags:     flags,
		Action:    runAction,
	}
}

func runAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("usage: slate run <notebook.json>", ExitHostFault)
	}

	r, err := render.NewRenderer(c)
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

	nb, err := notebook.Load(c.Args().First())
	if err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
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

	report, runErr := notebook.Run(ctx, &timeoutRunner{eng: eng, timeout: timeout}, nb)
	if runErr != nil {
		return cli.Exit(fmt.Sprintf("run aborted: %v", runErr), ExitHostFault)
	}

	if c.Bool("save") {
		if err := nb.Write(); err != nil {
			return cli.Exit(err.Error(), ExitHostFault)
		}
		if err := saveToStore(ctx, cfg, nb); err != nil {
			return cli.Exit(err.Error(), ExitHostFault)
		}
	}

	if err := r.Render(newRunReportView(nb, report)); err != nil {
		return cli.Exit(err.Error(), ExitHostFault)
	}

	if report.HasFailures() {
		return cli.Exit("", ExitCellError)
	}
	return nil
}

func saveToStore(ctx context.Context, cfg *config.Config, nb *notebook.Notebook) error {
	s, err := store.Open(cfg.Store)
	if err != nil {
		return err
	}
	defer iox.DiscardClose(s)
	return s.Save(ctx, nb)
}
