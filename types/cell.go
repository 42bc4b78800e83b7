// Package types defines core domain types for the Slate engine.
//
//nolint:revive // types is a common Go package naming convention
package types

import "fmt"

// CellKind discriminates notebook cell content.
type CellKind string

const (
	// CellKindMarkdown is prose content, never executed.
	CellKindMarkdown CellKind = "markdown"
	// CellKindCode is script content executable by the engine.
	CellKindCode CellKind = "code"
)

// IsValid returns true for a known cell kind.
func (k CellKind) IsValid() bool {
	return k == CellKindMarkdown || k == CellKindCode
}

// Stream identifies the output channel of a captured console record.
type Stream string

const (
	// StreamStdout carries info-level and generic console output.
	StreamStdout Stream = "stdout"
	// StreamStderr carries warn-level and error-level console output.
	StreamStderr Stream = "stderr"
)

// Cell is one unit of notebook content.
// The engine reads Source and writes Output; everything else belongs
// to the editing surface.
type Cell struct {
	// ID is an opaque identifier, unique within a notebook.
	ID string `msgpack:"id" json:"id"`
	// Kind discriminates markdown from code.
	Kind CellKind `msgpack:"kind" json:"kind"`
	// Source is the cell's text content.
	Source string `msgpack:"source" json:"source"`
	// Output is the combined console record from the last execution, if any.
	Output *CellOutput `msgpack:"output,omitempty" json:"output,omitempty"`
}

// Validate checks structural invariants of a cell.
func (c *Cell) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("cell id must not be empty")
	}
	if !c.Kind.IsValid() {
		return fmt.Errorf("invalid cell kind: %q", c.Kind)
	}
	return nil
}

// CellOutput is a single combined console record for one execution.
// Console calls within one execution are coalesced: lines are joined
// with newlines, and the stream is stderr if any line was stderr.
type CellOutput struct {
	// Stream is the channel the combined record belongs to.
	Stream Stream `msgpack:"stream" json:"stream"`
	// Data is the newline-joined captured output.
	Data string `msgpack:"data" json:"data"`
}
