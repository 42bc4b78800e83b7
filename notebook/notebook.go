// Package notebook implements the document model: an ordered list of
// cells loaded from and saved to JSON.
package notebook

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/justapithecus/slate/types"
)

// Notebook is an ordered cell document. Path identifies it on disk and
// in the store; it is not serialized into the document itself.
type Notebook struct {
	Path  string       `json:"-"`
	Name  string       `json:"name"`
	Cells []types.Cell `json:"cells"`
}

// Load reads and validates a notebook document.
func Load(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook: %w", err)
	}
	nb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid notebook %s: %w", path, err)
	}
	nb.Path = path
	return nb, nil
}

// Parse decodes and validates a notebook document.
func Parse(data []byte) (*Notebook, error) {
	var nb Notebook
	if err := json.Unmarshal(data, &nb); err != nil {
		return nil, fmt.Errorf("failed to decode notebook: %w", err)
	}
	if err := nb.Validate(); err != nil {
		return nil, err
	}
	return &nb, nil
}

// Validate checks structural invariants: every cell valid on its own,
// and cell ids unique within the document.
func (nb *Notebook) Validate() error {
	seen := make(map[string]struct{}, len(nb.Cells))
	for i := range nb.Cells {
		cell := &nb.Cells[i]
		if err := cell.Validate(); err != nil {
			return fmt.Errorf("cell %d: %w", i, err)
		}
		if _, dup := seen[cell.ID]; dup {
			return fmt.Errorf("duplicate cell id: %s", cell.ID)
		}
		seen[cell.ID] = struct{}{}
	}
	return nil
}

// Encode serializes the notebook document.
func (nb *Notebook) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(nb, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode notebook: %w", err)
	}
	return append(data, '\n'), nil
}

// Write saves the notebook back to its path.
func (nb *Notebook) Write() error {
	if nb.Path == "" {
		return fmt.Errorf("notebook has no path")
	}
	data, err := nb.Encode()
	if err != nil {
		return err
	}
	if err := os.WriteFile(nb.Path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write notebook: %w", err)
	}
	return nil
}

// Cell returns the cell with the given id, or nil.
func (nb *Notebook) Cell(id string) *types.Cell {
	for i := range nb.Cells {
		if nb.Cells[i].ID == id {
			return &nb.Cells[i]
		}
	}
	return nil
}

// CodeCells returns the code cells in document order.
func (nb *Notebook) CodeCells() []*types.Cell {
	var cells []*types.Cell
	for i := range nb.Cells {
		if nb.Cells[i].Kind == types.CellKindCode {
			cells = append(cells, &nb.Cells[i])
		}
	}
	return cells
}

// ApplyResult merges an execution result into the identified cell.
// A successful result with no output clears any stale output. A failed
// result records the error message and stack on the stderr stream so
// the document keeps a uniform output shape.
func (nb *Notebook) ApplyResult(cellID string, result *types.ExecutionResult) error {
	cell := nb.Cell(cellID)
	if cell == nil {
		return fmt.Errorf("no such cell: %s", cellID)
	}
	if result == nil {
		return fmt.Errorf("nil result for cell %s", cellID)
	}

	if result.Success {
		cell.Output = result.Output
		return nil
	}

	data := result.Error.Error()
	if stack := result.Error.Stack; stack != "" {
		// V8 stack traces open with the "Kind: message" line already.
		if strings.HasPrefix(stack, data) {
			data = stack
		} else {
			data = data + "\n" + stack
		}
	}
	if result.Output != nil && result.Output.Data != "" {
		// Keep console output emitted before the failure.
		data = result.Output.Data + "\n" + data
	}
	cell.Output = &types.CellOutput{
		Stream: types.StreamStderr,
		Data:   data,
	}
	return nil
}
