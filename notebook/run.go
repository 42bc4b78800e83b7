package notebook

import (
	"context"
	"fmt"

	"github.com/justapithecus/slate/types"
)

// CodeRunner executes one cell's source. Satisfied by engine.Engine.
type CodeRunner interface {
	Execute(ctx context.Context, code string) (*types.ExecutionResult, error)
}

// CellStatus records how one code cell fared during a run.
type CellStatus struct {
	CellID  string
	Success bool
	Error   *types.ExecutionError
}

// RunReport summarizes a notebook run.
type RunReport struct {
	Total     int
	Succeeded int
	Failed    int
	Cells     []CellStatus
}

// HasFailures reports whether any cell evaluation failed.
func (r *RunReport) HasFailures() bool {
	return r.Failed > 0
}

// Run executes the notebook's code cells in document order, merging
// each result into its cell. Evaluation failures do not stop the run;
// later cells still execute. A non-nil error means the run itself
// could not proceed (host fault, cancellation) and the report covers
// only the cells reached before the failure.
func Run(ctx context.Context, runner CodeRunner, nb *Notebook) (*RunReport, error) {
	cells := nb.CodeCells()
	report := &RunReport{Total: len(cells)}

	for _, cell := range cells {
		result, err := runner.Execute(ctx, cell.Source)
		if err != nil {
			return report, fmt.Errorf("cell %s: %w", cell.ID, err)
		}
		if err := nb.ApplyResult(cell.ID, result); err != nil {
			return report, err
		}

		status := CellStatus{CellID: cell.ID, Success: result.Success}
		if result.Success {
			report.Succeeded++
		} else {
			report.Failed++
			status.Error = result.Error
		}
		report.Cells = append(report.Cells, status)
	}

	return report, nil
}
