package executor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"rogchap.com/v8go"

	"github.com/justapithecus/slate/log"
	"github.com/justapithecus/slate/metrics"
	"github.com/justapithecus/slate/types"
)

// Option configures a ScriptExecutor.
type Option func(*ScriptExecutor)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(e *ScriptExecutor) { e.logger = l }
}

// WithCollector sets the metrics collector. Nil is fine; all collector
// methods are nil-safe.
func WithCollector(c *metrics.Collector) Option {
	return func(e *ScriptExecutor) { e.collector = c }
}

// ScriptExecutor evaluates JavaScript text in a V8 isolate.
//
// In isolated mode every Execute call gets a fresh context and nothing
// survives the call. In stateful mode a variable bag is threaded across
// calls: recorded variables are re-materialized before evaluation and
// captured back after a successful one.
type ScriptExecutor struct {
	mode      types.ExecutorMode
	logger    *log.Logger
	collector *metrics.Collector

	iso          *v8go.Isolate
	consoleTmpls []consoleChannel
	// baseline is the set of global names present in a pristine context.
	// Anything beyond it after evaluation is a binding the cell introduced.
	baseline map[string]struct{}
	bag      ExecutionContext
	sink     *consoleSink

	initialized bool
}

// NewScriptExecutor creates an executor in the given mode.
// An empty mode defaults to isolated, the recommended variant.
func NewScriptExecutor(mode types.ExecutorMode, opts ...Option) *ScriptExecutor {
	if mode == "" {
		mode = types.ModeIsolated
	}
	e := &ScriptExecutor{
		mode:   mode,
		logger: log.Nop(),
		sink:   &consoleSink{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Mode returns the executor variant.
func (e *ScriptExecutor) Mode() types.ExecutorMode {
	return e.mode
}

// Initialize prepares a fresh isolate, console bindings, and (in
// stateful mode) an empty variable bag. Idempotent while initialized;
// callable again after Destroy.
func (e *ScriptExecutor) Initialize() error {
	if e.initialized {
		return nil
	}

	e.iso = v8go.NewIsolate()
	e.buildConsoleTemplates()

	baseline, err := e.snapshotBaseline()
	if err != nil {
		e.iso.Dispose()
		e.iso = nil
		e.consoleTmpls = nil
		return fmt.Errorf("probing pristine globals: %w", err)
	}
	e.baseline = baseline

	if e.mode == types.ModeStateful {
		e.bag = ExecutionContext{}
	}
	e.sink.reset()
	e.initialized = true
	return nil
}

// Execute evaluates code as a top-level script body.
// Evaluation errors become result data; partial console output captured
// before a failure is preserved on the result.
func (e *ScriptExecutor) Execute(code string) (*types.ExecutionResult, error) {
	if !e.initialized {
		return nil, ErrNotInitialized
	}

	e.sink.reset()
	ctx, err := e.newCellContext()
	if err != nil {
		return nil, err
	}
	defer ctx.Close()

	if e.mode == types.ModeStateful {
		e.materialize(ctx)
	}

	_, err = ctx.RunScript(code, "cell.js")
	output := e.sink.output()

	if err != nil {
		return &types.ExecutionResult{
			Success: false,
			Output:  output,
			Error:   toExecutionError(err),
		}, nil
	}

	if e.mode == types.ModeStateful {
		e.capture(ctx)
	}

	return &types.ExecutionResult{Success: true, Output: output}, nil
}

// Reset discards the persisted variable bag and clears the output
// buffer. The isolate survives.
func (e *ScriptExecutor) Reset() error {
	if !e.initialized {
		return ErrNotInitialized
	}
	if e.mode == types.ModeStateful {
		e.bag = ExecutionContext{}
	}
	e.sink.reset()
	return nil
}

// Destroy resets and disposes the isolate. Safe to call repeatedly.
func (e *ScriptExecutor) Destroy() error {
	if !e.initialized {
		return nil
	}
	_ = e.Reset()
	e.iso.Dispose()
	e.iso = nil
	e.consoleTmpls = nil
	e.baseline = nil
	e.bag = nil
	e.initialized = false
	return nil
}

// Context returns a copy of the persisted variable bag. Stateful mode
// only; isolated executors always return an empty map.
func (e *ScriptExecutor) Context() ExecutionContext {
	snapshot := make(ExecutionContext, len(e.bag))
	for name, cv := range e.bag {
		snapshot[name] = cv
	}
	return snapshot
}

// consoleChannel pairs a console method name with the stream its lines
// land on and the function template that feeds the sink.
type consoleChannel struct {
	name   string
	stream types.Stream
	tmpl   *v8go.FunctionTemplate
}

// buildConsoleTemplates prepares one function template per console
// channel. The sink is injected, not patched over an ambient console,
// so there is nothing to restore after evaluation ends, however it
// ends. Templates are isolate-scoped; each context gets its own
// instances via installConsole.
func (e *ScriptExecutor) buildConsoleTemplates() {
	channels := []struct {
		name   string
		stream types.Stream
	}{
		{"log", types.StreamStdout},
		{"info", types.StreamStdout},
		{"warn", types.StreamStderr},
		{"error", types.StreamStderr},
	}
	e.consoleTmpls = make([]consoleChannel, 0, len(channels))
	for _, ch := range channels {
		stream := ch.stream
		tmpl := v8go.NewFunctionTemplate(e.iso, func(info *v8go.FunctionCallbackInfo) *v8go.Value {
			e.sink.write(stream, formatConsoleArgs(info.Context(), info.Args()))
			return nil
		})
		e.consoleTmpls = append(e.consoleTmpls, consoleChannel{name: ch.name, stream: stream, tmpl: tmpl})
	}
}

// newCellContext creates an evaluation context with the console
// capability attached to its global. Function templates nested inside
// an object template never dispatch their Go callbacks, so the console
// object and its methods are instantiated per context and bound
// through the live global instead.
func (e *ScriptExecutor) newCellContext() (*v8go.Context, error) {
	ctx := v8go.NewContext(e.iso)
	if err := e.installConsole(ctx); err != nil {
		ctx.Close()
		return nil, err
	}
	return ctx, nil
}

func (e *ScriptExecutor) installConsole(ctx *v8go.Context) error {
	console, err := v8go.NewObjectTemplate(e.iso).NewInstance(ctx)
	if err != nil {
		return fmt.Errorf("creating console object: %w", err)
	}
	for _, ch := range e.consoleTmpls {
		fn := ch.tmpl.GetFunction(ctx)
		if err := console.Set(ch.name, fn.Value); err != nil {
			return fmt.Errorf("binding console.%s: %w", ch.name, err)
		}
	}
	if err := ctx.Global().Set("console", console.Value); err != nil {
		return fmt.Errorf("binding console: %w", err)
	}
	return nil
}

// snapshotBaseline records the global names of a pristine context,
// console included, so capture never mistakes the console binding for
// a cell-introduced variable.
func (e *ScriptExecutor) snapshotBaseline() (map[string]struct{}, error) {
	ctx, err := e.newCellContext()
	if err != nil {
		return nil, err
	}
	defer ctx.Close()

	names, err := globalNames(ctx)
	if err != nil {
		return nil, err
	}
	baseline := make(map[string]struct{}, len(names))
	for _, name := range names {
		baseline[name] = struct{}{}
	}
	return baseline, nil
}

// materialize re-creates every recorded variable as a binding visible
// to the new code. JSON values arrive as typed data via JSONParse;
// functions are re-compiled from their source text (best effort, no
// closures); empty placeholders arrive as undefined.
func (e *ScriptExecutor) materialize(ctx *v8go.Context) {
	global := ctx.Global()
	for _, name := range e.bag.Names() {
		cv := e.bag[name]

		var val *v8go.Value
		switch cv.Kind {
		case KindJSON:
			parsed, err := v8go.JSONParse(ctx, cv.Data)
			if err != nil {
				e.logger.Warn("failed to re-materialize variable", map[string]any{
					"name":  name,
					"error": err.Error(),
				})
				val = v8go.Undefined(e.iso)
			} else {
				val = parsed
			}
		case KindFunction:
			compiled, err := ctx.RunScript("("+cv.Data+")", "context.js")
			if err != nil {
				e.logger.Warn("failed to re-compile function variable", map[string]any{
					"name":  name,
					"error": err.Error(),
				})
				val = v8go.Undefined(e.iso)
			} else {
				val = compiled
			}
		case KindEmpty:
			val = v8go.Undefined(e.iso)
		default:
			continue
		}

		if err := global.Set(name, val); err != nil {
			e.logger.Warn("failed to bind variable", map[string]any{
				"name":  name,
				"error": err.Error(),
			})
		}
	}
}

// capture persists the variable bag after a successful evaluation: every
// previously known name plus every new top-level binding is probed, and
// still-defined names are copied back in encoded form. Serialization
// failures degrade to an empty placeholder rather than failing the
// execution; each degradation is logged and counted.
func (e *ScriptExecutor) capture(ctx *v8go.Context) {
	names, err := globalNames(ctx)
	if err != nil {
		e.logger.Warn("global probe failed, keeping prior context", map[string]any{
			"error": err.Error(),
		})
		return
	}

	probe := make(map[string]struct{}, len(e.bag))
	for name := range e.bag {
		probe[name] = struct{}{}
	}
	for _, name := range names {
		if _, inBaseline := e.baseline[name]; !inBaseline {
			probe[name] = struct{}{}
		}
	}

	global := ctx.Global()
	newBag := make(ExecutionContext, len(probe))
	var persisted int64
	for name := range probe {
		val, err := global.Get(name)
		if err != nil || val.IsUndefined() {
			// No longer defined in the evaluated scope.
			continue
		}

		cv, ok := encodeValue(ctx, val)
		if !ok {
			newBag[name] = ContextValue{Kind: KindEmpty}
			e.collector.IncContextValueDropped()
			e.logger.Warn("variable failed to serialize, storing empty placeholder", map[string]any{
				"name": name,
			})
			continue
		}
		newBag[name] = cv
		persisted++
	}

	e.bag = newBag
	e.collector.AddContextValuesPersisted(persisted)
}

// encodeValue encodes a V8 value for the variable bag.
// Returns false when the value cannot be serialized.
func encodeValue(ctx *v8go.Context, val *v8go.Value) (ContextValue, bool) {
	if val.IsFunction() {
		return ContextValue{Kind: KindFunction, Data: val.String()}, true
	}

	data, err := v8go.JSONStringify(ctx, val)
	if err != nil || data == "" || data == "undefined" {
		return ContextValue{}, false
	}
	return ContextValue{Kind: KindJSON, Data: data}, true
}

// globalNames lists the own property names of globalThis.
func globalNames(ctx *v8go.Context) ([]string, error) {
	val, err := ctx.RunScript("Object.getOwnPropertyNames(globalThis)", "probe.js")
	if err != nil {
		return nil, fmt.Errorf("probing globals: %w", err)
	}
	raw, err := v8go.JSONStringify(ctx, val)
	if err != nil {
		return nil, fmt.Errorf("encoding global names: %w", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(raw), &names); err != nil {
		return nil, fmt.Errorf("decoding global names: %w", err)
	}
	return names, nil
}

// formatConsoleArgs renders console call arguments the way the combined
// record expects: space-joined, strings verbatim, objects structurally.
func formatConsoleArgs(ctx *v8go.Context, args []*v8go.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = formatConsoleArg(ctx, arg)
	}
	return strings.Join(parts, " ")
}

func formatConsoleArg(ctx *v8go.Context, arg *v8go.Value) string {
	if arg.IsString() {
		return arg.String()
	}
	if arg.IsObject() && !arg.IsFunction() {
		if data, err := v8go.JSONStringify(ctx, arg); err == nil && data != "" && data != "undefined" {
			return data
		}
	}
	return arg.String()
}

// toExecutionError converts an evaluation error into result data.
func toExecutionError(err error) *types.ExecutionError {
	var jsErr *v8go.JSError
	if errors.As(err, &jsErr) {
		kind, message := splitErrorKind(jsErr.Message)
		return &types.ExecutionError{
			Message: message,
			Stack:   jsErr.StackTrace,
			Kind:    kind,
		}
	}
	return &types.ExecutionError{Message: err.Error(), Kind: "Error"}
}

// splitErrorKind splits a V8 exception string like
// "TypeError: x is not a function" into constructor name and message.
func splitErrorKind(msg string) (kind, message string) {
	if idx := strings.Index(msg, ": "); idx > 0 {
		prefix := msg[:idx]
		if isErrorConstructor(prefix) {
			return prefix, msg[idx+2:]
		}
	}
	return "Error", msg
}

func isErrorConstructor(s string) bool {
	if !strings.HasSuffix(s, "Error") {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}
