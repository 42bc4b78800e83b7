package types

import "fmt"

// ExecutionError describes a failure raised by evaluated code.
type ExecutionError struct {
	// Message is the error message, without the constructor prefix.
	Message string `msgpack:"message" json:"message"`
	// Stack is the stack trace, when the interpreter provided one.
	Stack string `msgpack:"stack,omitempty" json:"stack,omitempty"`
	// Kind is the error constructor name (e.g. "Error", "TypeError").
	Kind string `msgpack:"kind,omitempty" json:"kind,omitempty"`
}

func (e *ExecutionError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Message
}

// ExecutionResult is the structured outcome of one execute call.
//
// Invariants:
//   - Success == true implies Error is nil
//   - Success == false implies Error is non-nil
//   - Output may be present in either case; partial output captured
//     before a failure is preserved
type ExecutionResult struct {
	// Success reports whether evaluation completed without throwing.
	Success bool `msgpack:"success" json:"success"`
	// Output is the combined console record, nil when nothing was logged.
	Output *CellOutput `msgpack:"output,omitempty" json:"output,omitempty"`
	// Error describes the evaluation failure when Success is false.
	Error *ExecutionError `msgpack:"error,omitempty" json:"error,omitempty"`
}

// Validate checks the success/error pairing invariant.
func (r *ExecutionResult) Validate() error {
	if r.Success && r.Error != nil {
		return fmt.Errorf("successful result must not carry an error")
	}
	if !r.Success && r.Error == nil {
		return fmt.Errorf("failed result must carry an error")
	}
	return nil
}
