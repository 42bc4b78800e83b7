package executor

import "sort"

// ValueKind classifies how a persisted variable is encoded.
type ValueKind string

const (
	// KindJSON is a value round-tripped through structural JSON encoding.
	// Primitives survive exactly; objects and arrays survive structurally,
	// silently dropping non-JSON-representable members.
	KindJSON ValueKind = "json"
	// KindFunction is a function re-encoded from its textual source form.
	// Best effort: closures are not preserved.
	KindFunction ValueKind = "function"
	// KindEmpty is the placeholder for a value that failed to serialize
	// (circular references, unsupported types). Data loss is preferred
	// over failing the execution.
	KindEmpty ValueKind = "empty"
)

// ContextValue is one persisted variable in encoded form.
type ContextValue struct {
	Kind ValueKind
	Data string
}

// ExecutionContext is the persisted variable bag of the stateful
// executor: variable name to last-known encoded value. It is owned
// exclusively by the runtime side; no other component touches it.
type ExecutionContext map[string]ContextValue

// Names returns the variable names in sorted order, for deterministic
// re-materialization and logging.
func (c ExecutionContext) Names() []string {
	names := make([]string, 0, len(c))
	for name := range c {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
