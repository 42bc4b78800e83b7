// Package host implements the isolated runtime side of the boundary.
//
// A Host owns at most one Executor and is a pure message translator:
// it reads framed requests in FIFO order, dispatches each to the
// executor, and writes exactly one framed response per request. It
// performs no queueing of its own; ordering is whatever the transport
// guarantees (strict FIFO, no reordering, no duplication).
package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/justapithecus/slate/executor"
	"github.com/justapithecus/slate/ipc"
	"github.com/justapithecus/slate/log"
	"github.com/justapithecus/slate/metrics"
	"github.com/justapithecus/slate/types"
)

// ExecutorFactory creates an Executor for an init request.
// Used for test injection; the default builds a ScriptExecutor.
type ExecutorFactory func(mode types.ExecutorMode) executor.Executor

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithExecutorFactory overrides executor construction (for testing).
func WithExecutorFactory(f ExecutorFactory) Option {
	return func(h *Host) { h.factory = f }
}

// WithCollector sets the metrics collector handed to the default
// executor factory. Nil is fine; all collector methods are nil-safe.
func WithCollector(c *metrics.Collector) Option {
	return func(h *Host) { h.collector = c }
}

// Host serves one engine over a framed request/response stream.
type Host struct {
	logger    *log.Logger
	collector *metrics.Collector
	factory   ExecutorFactory
	exec      executor.Executor
}

// New creates a Host.
func New(opts ...Option) *Host {
	h := &Host{logger: log.Nop()}
	for _, opt := range opts {
		opt(h)
	}
	if h.factory == nil {
		h.factory = func(mode types.ExecutorMode) executor.Executor {
			return executor.NewScriptExecutor(mode,
				executor.WithLogger(h.logger),
				executor.WithCollector(h.collector),
			)
		}
	}
	return h
}

// Serve runs the dispatch loop until the stream ends, the context is
// canceled, or a fatal protocol error occurs.
//
// The serving goroutine is locked to its OS thread for the duration:
// the V8 isolate living behind the executor has thread affinity.
//
// Returns:
//   - nil: stream ended cleanly (EOF) or a destroy request was served
//   - context error: ctx canceled
//   - *ipc.FrameError or version mismatch: fatal, no resync
func (h *Host) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	defer h.teardown()

	dec := ipc.NewFrameDecoder(r)
	enc := ipc.NewFrameEncoder(w)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payload, err := dec.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				// Engine dropped the boundary; normal teardown.
				return nil
			}
			h.logger.Error("frame error", map[string]any{
				"error": err.Error(),
			})
			return fmt.Errorf("frame error: %w", err)
		}

		req, err := ipc.DecodeRequest(payload)
		if err != nil {
			// Invalid framing is fatal; the engine treats the resulting
			// stream closure as a host fault.
			h.logger.Error("request decode error", map[string]any{
				"error": err.Error(),
			})
			return fmt.Errorf("request decode error: %w", err)
		}

		if req.ProtocolVersion != types.ProtocolVersion {
			h.logger.Error("protocol version mismatch", map[string]any{
				"expected": types.ProtocolVersion,
				"got":      req.ProtocolVersion,
			})
			return fmt.Errorf("protocol version mismatch: expected %s, got %s",
				types.ProtocolVersion, req.ProtocolVersion)
		}

		resp := h.dispatch(req)
		if err := enc.WriteResponse(resp); err != nil {
			h.logger.Error("response write error", map[string]any{
				"error": err.Error(),
			})
			return fmt.Errorf("response write error: %w", err)
		}

		if req.Type == types.MessageDestroy {
			return nil
		}
	}
}

// dispatch translates one request into exactly one response.
// Panics from the executor are recovered into failure responses so a
// misbehaving evaluation cannot take down the serve loop silently.
func (h *Host) dispatch(req *types.Request) (resp *types.Response) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("panic during dispatch", map[string]any{
				"type":  req.Type,
				"panic": fmt.Sprint(r),
			})
			resp = failureResponse(req, fmt.Sprintf("panic: %v", r))
		}
	}()

	switch req.Type {
	case types.MessageInit:
		return h.handleInit(req)
	case types.MessageExecute:
		return h.handleExecute(req)
	case types.MessageReset:
		return h.handleReset()
	case types.MessageDestroy:
		return h.handleDestroy()
	default:
		// Unreachable: DecodeRequest validated the type.
		return failureResponse(req, fmt.Sprintf("unsupported request type: %s", req.Type))
	}
}

// handleInit constructs and initializes a fresh executor, destroying
// any prior instance first.
func (h *Host) handleInit(req *types.Request) *types.Response {
	if h.exec != nil {
		if err := h.exec.Destroy(); err != nil {
			h.logger.Warn("failed to destroy prior executor", map[string]any{
				"error": err.Error(),
			})
		}
		h.exec = nil
	}

	exec := h.factory(req.Mode)
	if err := exec.Initialize(); err != nil {
		h.logger.Error("executor initialization failed", map[string]any{
			"error": err.Error(),
		})
		return &types.Response{
			ProtocolVersion: types.ProtocolVersion,
			Type:            types.MessageInitFail,
			Reason:          err.Error(),
		}
	}

	h.exec = exec
	h.logger.Debug("executor initialized", map[string]any{
		"mode": req.Mode,
	})
	return &types.Response{
		ProtocolVersion: types.ProtocolVersion,
		Type:            types.MessageInitOK,
	}
}

// handleExecute delegates to the executor and echoes the request id.
func (h *Host) handleExecute(req *types.Request) *types.Response {
	if h.exec == nil {
		return &types.Response{
			ProtocolVersion: types.ProtocolVersion,
			Type:            types.MessageExecFail,
			RequestID:       req.RequestID,
			Reason:          executor.ErrNotInitialized.Error(),
		}
	}

	result, err := h.exec.Execute(req.Code)
	if err != nil {
		return &types.Response{
			ProtocolVersion: types.ProtocolVersion,
			Type:            types.MessageExecFail,
			RequestID:       req.RequestID,
			Reason:          err.Error(),
		}
	}

	return &types.Response{
		ProtocolVersion: types.ProtocolVersion,
		Type:            types.MessageExecOK,
		RequestID:       req.RequestID,
		Result:          result,
	}
}

func (h *Host) handleReset() *types.Response {
	if h.exec == nil {
		// Nothing to reset; trivially successful.
		return &types.Response{
			ProtocolVersion: types.ProtocolVersion,
			Type:            types.MessageResetOK,
		}
	}
	if err := h.exec.Reset(); err != nil {
		return &types.Response{
			ProtocolVersion: types.ProtocolVersion,
			Type:            types.MessageResetFail,
			Reason:          err.Error(),
		}
	}
	return &types.Response{
		ProtocolVersion: types.ProtocolVersion,
		Type:            types.MessageResetOK,
	}
}

func (h *Host) handleDestroy() *types.Response {
	if h.exec == nil {
		return &types.Response{
			ProtocolVersion: types.ProtocolVersion,
			Type:            types.MessageDestroyOK,
		}
	}
	if err := h.exec.Destroy(); err != nil {
		h.exec = nil
		return &types.Response{
			ProtocolVersion: types.ProtocolVersion,
			Type:            types.MessageDestroyFail,
			Reason:          err.Error(),
		}
	}
	h.exec = nil
	return &types.Response{
		ProtocolVersion: types.ProtocolVersion,
		Type:            types.MessageDestroyOK,
	}
}

// teardown releases the executor when the serve loop exits for any reason.
func (h *Host) teardown() {
	if h.exec == nil {
		return
	}
	if err := h.exec.Destroy(); err != nil {
		h.logger.Warn("failed to destroy executor on teardown", map[string]any{
			"error": err.Error(),
		})
	}
	h.exec = nil
}

// failureResponse builds the failure response matching a request type.
func failureResponse(req *types.Request, reason string) *types.Response {
	resp := &types.Response{
		ProtocolVersion: types.ProtocolVersion,
		Reason:          reason,
	}
	switch req.Type {
	case types.MessageInit:
		resp.Type = types.MessageInitFail
	case types.MessageExecute:
		resp.Type = types.MessageExecFail
		resp.RequestID = req.RequestID
	case types.MessageReset:
		resp.Type = types.MessageResetFail
	case types.MessageDestroy:
		resp.Type = types.MessageDestroyFail
	default:
		resp.Type = types.MessageExecFail
	}
	return resp
}
