package executor

import (
	"errors"
	"testing"

	"github.com/justapithecus/slate/metrics"
	"github.com/justapithecus/slate/types"
)

func newTestExecutor(t *testing.T, mode types.ExecutorMode, opts ...Option) *ScriptExecutor {
	t.Helper()
	e := NewScriptExecutor(mode, opts...)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Destroy() })
	return e
}

func mustExecute(t *testing.T, e *ScriptExecutor, code string) *types.ExecutionResult {
	t.Helper()
	result, err := e.Execute(code)
	if err != nil {
		t.Fatalf("Execute(%q) failed: %v", code, err)
	}
	if err := result.Validate(); err != nil {
		t.Fatalf("Execute(%q) returned inconsistent result: %v", code, err)
	}
	return result
}

func TestExecute_SuccessWithoutOutput(t *testing.T) {
	e := newTestExecutor(t, types.ModeIsolated)

	result := mustExecute(t, e, "1 + 1")
	if !result.Success {
		t.Errorf("Success = false, want true: %+v", result.Error)
	}
	if result.Output != nil {
		t.Errorf("Output = %+v, want nil for silent code", result.Output)
	}
}

func TestExecute_CapturesConsoleLog(t *testing.T) {
	e := newTestExecutor(t, types.ModeIsolated)

	result := mustExecute(t, e, `console.log("hello", "world")`)
	if !result.Success {
		t.Fatalf("Success = false: %+v", result.Error)
	}
	if result.Output == nil {
		t.Fatal("Output = nil, want captured record")
	}
	if result.Output.Stream != types.StreamStdout {
		t.Errorf("Stream = %q, want stdout", result.Output.Stream)
	}
	if result.Output.Data != "hello world" {
		t.Errorf("Data = %q, want %q", result.Output.Data, "hello world")
	}
}

func TestExecute_ConsoleCaptureSurvivesRepeatedContexts(t *testing.T) {
	e := newTestExecutor(t, types.ModeIsolated)

	// Console bindings are instantiated per evaluation context. Every
	// call must capture, not just the first.
	for i := 0; i < 20; i++ {
		result := mustExecute(t, e, `console.log("tick")`)
		if result.Output == nil {
			t.Fatalf("call %d: Output = nil, want captured record", i)
		}
		if result.Output.Data != "tick" {
			t.Fatalf("call %d: Data = %q, want %q", i, result.Output.Data, "tick")
		}
	}
}

func TestExecute_Stateful_ConsoleNotCapturedAsVariable(t *testing.T) {
	e := newTestExecutor(t, types.ModeStateful)

	mustExecute(t, e, `console.log("hi")`)
	if _, ok := e.Context()["console"]; ok {
		t.Error("console binding leaked into the persisted context")
	}
}

func TestExecute_ConsoleChannelMapping(t *testing.T) {
	tests := []struct {
		name       string
		code       string
		wantStream types.Stream
	}{
		{"log is stdout", `console.log("a")`, types.StreamStdout},
		{"info is stdout", `console.info("a")`, types.StreamStdout},
		{"warn is stderr", `console.warn("a")`, types.StreamStderr},
		{"error is stderr", `console.error("a")`, types.StreamStderr},
		{"mixed goes stderr", `console.log("a"); console.warn("b")`, types.StreamStderr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestExecutor(t, types.ModeIsolated)
			result := mustExecute(t, e, tt.code)
			if result.Output == nil {
				t.Fatal("Output = nil, want captured record")
			}
			if result.Output.Stream != tt.wantStream {
				t.Errorf("Stream = %q, want %q", result.Output.Stream, tt.wantStream)
			}
		})
	}
}

func TestExecute_FormatsNonStringArgs(t *testing.T) {
	e := newTestExecutor(t, types.ModeIsolated)

	result := mustExecute(t, e, `console.log(1.5, true, {a: 1})`)
	if result.Output == nil {
		t.Fatal("Output = nil, want captured record")
	}
	if result.Output.Data != `1.5 true {"a":1}` {
		t.Errorf("Data = %q, want %q", result.Output.Data, `1.5 true {"a":1}`)
	}
}

func TestExecute_EvaluationErrorBecomesData(t *testing.T) {
	e := newTestExecutor(t, types.ModeIsolated)

	result := mustExecute(t, e, `throw new Error("boom")`)
	if result.Success {
		t.Fatal("Success = true, want false")
	}
	if result.Error == nil {
		t.Fatal("Error = nil, want evaluation error")
	}
	if result.Error.Message != "boom" {
		t.Errorf("Message = %q, want %q", result.Error.Message, "boom")
	}
	if result.Error.Kind != "Error" {
		t.Errorf("Kind = %q, want %q", result.Error.Kind, "Error")
	}
}

func TestExecute_TypedErrorKind(t *testing.T) {
	e := newTestExecutor(t, types.ModeIsolated)

	result := mustExecute(t, e, `undefinedFn()`)
	if result.Success {
		t.Fatal("Success = true, want false")
	}
	if result.Error.Kind != "ReferenceError" {
		t.Errorf("Kind = %q, want ReferenceError", result.Error.Kind)
	}
}

func TestExecute_PartialOutputPreservedOnFailure(t *testing.T) {
	e := newTestExecutor(t, types.ModeIsolated)

	result := mustExecute(t, e, `console.log("before"); throw new Error("boom")`)
	if result.Success {
		t.Fatal("Success = true, want false")
	}
	if result.Output == nil || result.Output.Data != "before" {
		t.Errorf("Output = %+v, want partial output %q", result.Output, "before")
	}
}

func TestExecute_Isolated_NoStateLeaks(t *testing.T) {
	e := newTestExecutor(t, types.ModeIsolated)

	mustExecute(t, e, "x = 5")
	result := mustExecute(t, e, `console.log(typeof x)`)
	if result.Output == nil || result.Output.Data != "undefined" {
		t.Errorf("typeof x = %+v, want undefined in isolated mode", result.Output)
	}
}

func TestExecute_Stateful_VariableRoundTrip(t *testing.T) {
	e := newTestExecutor(t, types.ModeStateful)

	mustExecute(t, e, "x = 5")
	result := mustExecute(t, e, `console.log(x)`)
	if result.Output == nil || result.Output.Data != "5" {
		t.Errorf("x = %+v, want 5 persisted across calls", result.Output)
	}
}

func TestExecute_Stateful_ObjectRoundTrip(t *testing.T) {
	e := newTestExecutor(t, types.ModeStateful)

	mustExecute(t, e, `user = {name: "ada", tags: ["a", "b"]}`)
	result := mustExecute(t, e, `console.log(user.name, user.tags.length)`)
	if result.Output == nil || result.Output.Data != "ada 2" {
		t.Errorf("user = %+v, want structural round-trip", result.Output)
	}
}

func TestExecute_Stateful_FunctionRoundTrip(t *testing.T) {
	e := newTestExecutor(t, types.ModeStateful)

	mustExecute(t, e, `function add(a, b) { return a + b }`)
	result := mustExecute(t, e, `console.log(add(2, 3))`)
	if result.Output == nil || result.Output.Data != "5" {
		t.Errorf("add(2, 3) = %+v, want 5 via re-compiled function", result.Output)
	}
}

func TestExecute_Stateful_UpdatedValueWins(t *testing.T) {
	e := newTestExecutor(t, types.ModeStateful)

	mustExecute(t, e, "counter = 1")
	mustExecute(t, e, "counter = counter + 1")
	result := mustExecute(t, e, `console.log(counter)`)
	if result.Output == nil || result.Output.Data != "2" {
		t.Errorf("counter = %+v, want 2", result.Output)
	}
}

func TestExecute_Stateful_FailedExecutionKeepsPriorContext(t *testing.T) {
	e := newTestExecutor(t, types.ModeStateful)

	mustExecute(t, e, "x = 5")
	mustExecute(t, e, `x = 99; throw new Error("boom")`)

	// The bag only updates after a successful evaluation.
	result := mustExecute(t, e, `console.log(x)`)
	if result.Output == nil || result.Output.Data != "5" {
		t.Errorf("x = %+v, want prior value 5 after failed execution", result.Output)
	}
}

func TestExecute_Stateful_CircularDegradesToPlaceholder(t *testing.T) {
	collector := metrics.NewCollector("eng-test", "stateful", "none")
	e := newTestExecutor(t, types.ModeStateful, WithCollector(collector))

	result := mustExecute(t, e, `loop = {}; loop.self = loop`)
	if !result.Success {
		t.Fatalf("circular value must not fail the execution: %+v", result.Error)
	}

	bag := e.Context()
	cv, ok := bag["loop"]
	if !ok {
		t.Fatal("loop missing from context, want empty placeholder")
	}
	if cv.Kind != KindEmpty {
		t.Errorf("Kind = %q, want KindEmpty", cv.Kind)
	}

	if got := collector.Snapshot().ContextValuesDropped; got != 1 {
		t.Errorf("ContextValuesDropped = %d, want 1", got)
	}

	next := mustExecute(t, e, `console.log(typeof loop)`)
	if next.Output == nil || next.Output.Data != "undefined" {
		t.Errorf("typeof loop = %+v, want undefined placeholder", next.Output)
	}
}

func TestReset_DiscardsContext(t *testing.T) {
	e := newTestExecutor(t, types.ModeStateful)

	mustExecute(t, e, "x = 5")
	if err := e.Reset(); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	result := mustExecute(t, e, `console.log(typeof x)`)
	if result.Output == nil || result.Output.Data != "undefined" {
		t.Errorf("typeof x after reset = %+v, want undefined", result.Output)
	}
}

func TestDestroy_ExecuteFailsUntilReinitialized(t *testing.T) {
	e := NewScriptExecutor(types.ModeIsolated)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := e.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}

	if _, err := e.Execute("1 + 1"); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Execute after Destroy = %v, want ErrNotInitialized", err)
	}

	// Initialize is callable again after Destroy.
	if err := e.Initialize(); err != nil {
		t.Fatalf("re-Initialize failed: %v", err)
	}
	defer func() { _ = e.Destroy() }()

	result, err := e.Execute(`console.log("back")`)
	if err != nil {
		t.Fatalf("Execute after re-Initialize failed: %v", err)
	}
	if result.Output == nil || result.Output.Data != "back" {
		t.Errorf("Output = %+v, want %q", result.Output, "back")
	}
}

func TestDestroy_Idempotent(t *testing.T) {
	e := NewScriptExecutor(types.ModeIsolated)
	if err := e.Initialize(); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := e.Destroy(); err != nil {
		t.Fatalf("first Destroy failed: %v", err)
	}
	if err := e.Destroy(); err != nil {
		t.Fatalf("second Destroy failed: %v", err)
	}
}

func TestInitialize_Idempotent(t *testing.T) {
	e := newTestExecutor(t, types.ModeStateful)

	mustExecute(t, e, "x = 5")
	if err := e.Initialize(); err != nil {
		t.Fatalf("repeated Initialize failed: %v", err)
	}

	// A repeated Initialize while alive is a no-op, context survives.
	result := mustExecute(t, e, `console.log(x)`)
	if result.Output == nil || result.Output.Data != "5" {
		t.Errorf("x = %+v, want 5 after no-op Initialize", result.Output)
	}
}

func TestSplitErrorKind(t *testing.T) {
	tests := []struct {
		msg         string
		wantKind    string
		wantMessage string
	}{
		{"Error: boom", "Error", "boom"},
		{"TypeError: x is not a function", "TypeError", "x is not a function"},
		{"ReferenceError: x is not defined", "ReferenceError", "x is not defined"},
		{"just a string throw", "Error", "just a string throw"},
		{"weird prefix: rest", "Error", "weird prefix: rest"},
	}

	for _, tt := range tests {
		kind, message := splitErrorKind(tt.msg)
		if kind != tt.wantKind || message != tt.wantMessage {
			t.Errorf("splitErrorKind(%q) = (%q, %q), want (%q, %q)",
				tt.msg, kind, message, tt.wantKind, tt.wantMessage)
		}
	}
}
