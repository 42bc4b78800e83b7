// Package executor evaluates user script text in an embedded V8 isolate
// and captures console output into structured results.
//
// An Executor is single-owner: exactly one goroutine (the runtime host)
// calls it, and that goroutine should be locked to its OS thread for the
// lifetime of the isolate. Evaluation failures never escape Execute as
// Go errors; they are converted into the result's error field. The only
// errors Execute returns are misuse conditions such as calling it before
// Initialize.
package executor

import (
	"errors"

	"github.com/justapithecus/slate/types"
)

// ErrNotInitialized is returned by Execute and Reset when the executor
// has been destroyed (or never initialized).
var ErrNotInitialized = errors.New("executor not initialized")

// Executor is the polymorphic execution capability.
//
// Lifecycle: Initialize -> Execute* -> (Reset)* -> Destroy. Initialize
// is idempotent and may be called again after Destroy to obtain a fresh
// environment.
type Executor interface {
	// Initialize prepares an empty evaluation environment. It fails only
	// on host-environment errors, never on empty input.
	Initialize() error

	// Execute evaluates code as a top-level script body and returns a
	// structured result. Evaluation errors are data, not Go errors:
	// the returned error is non-nil only for misuse (ErrNotInitialized)
	// or internal faults.
	Execute(code string) (*types.ExecutionResult, error)

	// Reset discards any persisted variable context and clears the
	// output buffer. The evaluation environment itself survives.
	Reset() error

	// Destroy resets and then releases engine-internal resources.
	// Subsequent Execute calls fail with ErrNotInitialized until
	// Initialize is called again.
	Destroy() error
}
