// Package engine implements the execution orchestrator.
//
// An Engine is the synchronous-looking façade over an asynchronous
// boundary: callers hand it source code, it correlates each request
// with its response by id, and the caller blocks only on its own
// outcome. One Engine owns at most one live host at a time.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/justapithecus/slate/host"
	"github.com/justapithecus/slate/ipc"
	"github.com/justapithecus/slate/log"
	"github.com/justapithecus/slate/metrics"
	"github.com/justapithecus/slate/types"
)

var (
	// ErrNotInitialized reports an operation against an engine with no
	// live host.
	ErrNotInitialized = errors.New("engine not initialized")

	// ErrEngineDestroyed rejects work that was in flight when the
	// engine was destroyed.
	ErrEngineDestroyed = errors.New("engine destroyed")

	// ErrHostFault reports that the host side failed out from under
	// the engine (crash, closed stream, undecodable frame).
	ErrHostFault = errors.New("host fault")
)

// destroyAckTimeout bounds how long Destroy waits for the host to
// acknowledge before tearing the boundary down anyway.
const destroyAckTimeout = 3 * time.Second

// BoundaryFactory builds a fresh transport for each host session.
type BoundaryFactory func() Boundary

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithCollector sets the metrics collector. Nil is fine.
func WithCollector(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithBoundaryFactory overrides transport construction. The default
// runs the host in-process on a dedicated goroutine.
func WithBoundaryFactory(f BoundaryFactory) Option {
	return func(e *Engine) { e.newBoundary = f }
}

// Engine orchestrates execution against a single isolated runtime host.
type Engine struct {
	mode      types.ExecutorMode
	logger    *log.Logger
	collector *metrics.Collector

	newBoundary BoundaryFactory

	// controlMu serializes lifecycle transitions (initialize, reset,
	// destroy). Execute does not take it.
	controlMu sync.Mutex

	mu   sync.Mutex
	sess *session
}

// New creates an Engine for the given executor mode.
func New(mode types.ExecutorMode, opts ...Option) *Engine {
	e := &Engine{
		mode:   mode,
		logger: log.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.newBoundary == nil {
		e.newBoundary = func() Boundary {
			return NewGoroutineBoundary(host.New(
				host.WithLogger(e.logger),
				host.WithCollector(e.collector),
			))
		}
	}
	return e
}

// execOutcome is what a pending execution resolves to.
type execOutcome struct {
	result *types.ExecutionResult
	err    error
}

// session is one live host connection: a started boundary, its frame
// encoder, the response pump, and the pending-completion table.
type session struct {
	boundary Boundary
	enc      *ipc.FrameEncoder

	// writeMu serializes request frames onto the boundary.
	writeMu sync.Mutex

	// ctrl carries lifecycle responses (init/reset/destroy). Only one
	// control operation is in flight at a time, serialized by the
	// engine's controlMu.
	ctrl chan *types.Response

	mu      sync.Mutex
	pending map[string]chan execOutcome
	err     error
	fault   chan struct{}

	// closing is set by Destroy before the destroy frame goes out, so
	// the pump can tell an orderly stream end from a host fault.
	closing atomic.Bool

	downOnce sync.Once
}

func newSession(b Boundary) *session {
	return &session{
		boundary: b,
		enc:      ipc.NewFrameEncoder(b.Writer()),
		ctrl:     make(chan *types.Response, 1),
		pending:  make(map[string]chan execOutcome),
		fault:    make(chan struct{}),
	}
}

// pump reads response frames and routes them until the stream dies.
func (s *session) pump(logger *log.Logger, collector *metrics.Collector) {
	dec := ipc.NewFrameDecoder(s.boundary.Reader())
	for {
		payload, err := dec.ReadFrame()
		if err != nil {
			if s.closing.Load() {
				// The stream ending after a destroy frame is the
				// orderly shutdown, not a fault.
				s.fail(ErrEngineDestroyed)
				return
			}
			if s.fail(fmt.Errorf("%w: %v", ErrHostFault, err)) {
				// A fresh fault, not the tail end of a deliberate
				// teardown.
				collector.IncHostFault()
				if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrClosedPipe) {
					logger.Error("response stream failed", map[string]any{
						"error": err.Error(),
					})
				}
			}
			return
		}

		resp, err := ipc.DecodeResponse(payload)
		if err != nil {
			collector.IncDecodeError()
			logger.Error("response decode failed", map[string]any{
				"error": err.Error(),
			})
			s.fail(fmt.Errorf("%w: %v", ErrHostFault, err))
			return
		}

		s.route(resp, logger)
	}
}

func (s *session) route(resp *types.Response, logger *log.Logger) {
	switch resp.Type {
	case types.MessageExecOK, types.MessageExecFail:
		s.mu.Lock()
		ch, ok := s.pending[resp.RequestID]
		if ok {
			delete(s.pending, resp.RequestID)
		}
		s.mu.Unlock()
		if !ok {
			// Caller gave up (context canceled) before the response
			// arrived, or the host echoed an unknown id.
			logger.Debug("dropping unmatched response", map[string]any{
				"request_id": resp.RequestID,
				"type":       resp.Type,
			})
			return
		}
		if resp.Type == types.MessageExecFail {
			// The host stayed up but could not serve the request.
			ch <- execOutcome{err: fmt.Errorf("execution request failed: %s", resp.Reason)}
			return
		}
		ch <- execOutcome{result: resp.Result}
	default:
		select {
		case s.ctrl <- resp:
		default:
			logger.Warn("dropping unexpected control response", map[string]any{
				"type": resp.Type,
			})
		}
	}
}

// fail marks the session dead and rejects every pending execution.
// First failure wins; later calls are no-ops and report false.
func (s *session) fail(err error) bool {
	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return false
	}
	s.err = err
	close(s.fault)
	rejected := s.pending
	s.pending = make(map[string]chan execOutcome)
	s.mu.Unlock()

	for _, ch := range rejected {
		ch <- execOutcome{err: err}
	}
	return true
}

func (s *session) failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// register adds a pending execution. Fails if the session is dead.
func (s *session) register(id string, ch chan execOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.pending[id] = ch
	return nil
}

// rejectPending resolves every in-flight execution with err without
// marking the session dead. Responses that arrive afterwards are
// dropped as unmatched.
func (s *session) rejectPending(err error) {
	s.mu.Lock()
	rejected := s.pending
	s.pending = make(map[string]chan execOutcome)
	s.mu.Unlock()

	for _, ch := range rejected {
		ch <- execOutcome{err: err}
	}
}

func (s *session) deregister(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// send writes one request frame. Serialized so concurrent callers
// cannot interleave frames.
func (s *session) send(req *types.Request) error {
	if err := s.failure(); err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.enc.WriteRequest(req)
}

// awaitControl blocks for the next lifecycle response.
func (s *session) awaitControl(ctx context.Context) (*types.Response, error) {
	select {
	case resp := <-s.ctrl:
		return resp, nil
	case <-s.fault:
		return nil, s.failure()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// teardown kills the boundary and reaps the host side. Idempotent.
func (s *session) teardown() {
	s.downOnce.Do(func() {
		_ = s.boundary.Kill()
		_ = s.boundary.Wait()
	})
}

// session returns the live session, or nil.
func (e *Engine) session() *session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess
}

// clearSession drops the session if it is still the current one.
func (e *Engine) clearSession(s *session) {
	e.mu.Lock()
	if e.sess == s {
		e.sess = nil
	}
	e.mu.Unlock()
}

// Initialize launches a host and initializes its executor. It is
// idempotent: if a healthy session exists the call is a no-op, and
// concurrent callers share one launch attempt.
func (e *Engine) Initialize(ctx context.Context) error {
	e.controlMu.Lock()
	defer e.controlMu.Unlock()
	return e.initializeLocked(ctx)
}

func (e *Engine) initializeLocked(ctx context.Context) error {
	if s := e.session(); s != nil {
		if s.failure() == nil {
			return nil
		}
		// Previous host faulted; tear down and relaunch.
		s.teardown()
		e.clearSession(s)
	}

	b := e.newBoundary()
	if err := b.Start(ctx); err != nil {
		e.collector.IncHostLaunchFailure()
		return fmt.Errorf("failed to launch host: %w", err)
	}
	e.collector.IncHostLaunchSuccess()

	s := newSession(b)
	go s.pump(e.logger, e.collector)

	req := &types.Request{
		ProtocolVersion: types.ProtocolVersion,
		Type:            types.MessageInit,
		Mode:            e.mode,
	}
	if err := s.send(req); err != nil {
		s.teardown()
		return fmt.Errorf("failed to send init: %w", err)
	}

	resp, err := s.awaitControl(ctx)
	if err != nil {
		s.teardown()
		return err
	}
	if resp.Type != types.MessageInitOK {
		s.teardown()
		return fmt.Errorf("initialization failed: %s", resp.Reason)
	}

	e.mu.Lock()
	e.sess = s
	e.mu.Unlock()

	e.logger.Info("engine initialized", map[string]any{
		"mode": e.mode,
	})
	return nil
}

// Execute runs one cell's source and blocks until its outcome arrives.
// The engine initializes itself on first use.
//
// Evaluation failures are data: they come back inside the
// ExecutionResult with Success false. A non-nil error means the
// request itself could not be served (host fault, cancellation,
// destroyed engine).
func (e *Engine) Execute(ctx context.Context, code string) (*types.ExecutionResult, error) {
	s := e.session()
	if s == nil || s.failure() != nil {
		if err := e.Initialize(ctx); err != nil {
			return nil, err
		}
		s = e.session()
		if s == nil {
			return nil, ErrNotInitialized
		}
	}

	e.collector.IncExecutionStarted()

	// Fresh id per request; a retry never collides with the attempt it
	// replaces.
	id := xid.New().String()
	ch := make(chan execOutcome, 1)
	if err := s.register(id, ch); err != nil {
		e.collector.IncExecutionFailed()
		e.clearSession(s)
		s.teardown()
		return nil, err
	}

	req := &types.Request{
		ProtocolVersion: types.ProtocolVersion,
		Type:            types.MessageExecute,
		RequestID:       id,
		Code:            code,
	}
	if err := s.send(req); err != nil {
		s.deregister(id)
		e.collector.IncExecutionFailed()
		return nil, fmt.Errorf("failed to send execute: %w", err)
	}

	select {
	case out := <-ch:
		if out.err != nil {
			e.collector.IncExecutionFailed()
			if errors.Is(out.err, ErrHostFault) || errors.Is(out.err, ErrEngineDestroyed) {
				// Session is dead; reap the boundary.
				e.clearSession(s)
				s.teardown()
			}
			return nil, out.err
		}
		if out.result.Success {
			e.collector.IncExecutionSucceeded()
		} else {
			e.collector.IncExecutionFailed()
		}
		return out.result, nil
	case <-ctx.Done():
		s.deregister(id)
		e.collector.IncExecutionFailed()
		return nil, ctx.Err()
	}
}

// Reset clears accumulated executor state. A reset on an engine with
// no live host is a no-op.
func (e *Engine) Reset(ctx context.Context) error {
	e.controlMu.Lock()
	defer e.controlMu.Unlock()

	s := e.session()
	if s == nil {
		return nil
	}
	if err := s.failure(); err != nil {
		return err
	}

	req := &types.Request{
		ProtocolVersion: types.ProtocolVersion,
		Type:            types.MessageReset,
	}
	if err := s.send(req); err != nil {
		return fmt.Errorf("failed to send reset: %w", err)
	}

	resp, err := s.awaitControl(ctx)
	if err != nil {
		return err
	}
	if resp.Type != types.MessageResetOK {
		return fmt.Errorf("reset failed: %s", resp.Reason)
	}
	return nil
}

// destroyAck carries the outcome of the destroy send-and-await.
type destroyAck struct {
	resp *types.Response
	err  error
}

// Destroy tears down the host. Pending executions are rejected with
// ErrEngineDestroyed. The boundary is torn down whether or not the
// host acknowledges in time, and the engine may be initialized again
// afterwards.
func (e *Engine) Destroy(ctx context.Context) error {
	e.controlMu.Lock()
	defer e.controlMu.Unlock()

	s := e.session()
	if s == nil {
		return nil
	}
	e.clearSession(s)

	// Resolve in-flight work first so callers observe the destroy, not
	// whatever the dying stream produces afterwards.
	s.rejectPending(ErrEngineDestroyed)

	var ackErr error
	if s.failure() == nil {
		s.closing.Store(true)
		req := &types.Request{
			ProtocolVersion: types.ProtocolVersion,
			Type:            types.MessageDestroy,
		}
		// A wedged host stops reading its request stream, so the send
		// itself can block. It shares the ack window with the wait;
		// teardown below unblocks it either way.
		ackCtx, cancel := context.WithTimeout(ctx, destroyAckTimeout)
		acked := make(chan destroyAck, 1)
		go func() {
			if err := s.send(req); err != nil {
				acked <- destroyAck{err: err}
				return
			}
			resp, err := s.awaitControl(ackCtx)
			acked <- destroyAck{resp: resp, err: err}
		}()
		select {
		case ack := <-acked:
			switch {
			case ack.err != nil:
				e.logger.Warn("destroy not acknowledged", map[string]any{
					"error": ack.err.Error(),
				})
			case ack.resp.Type != types.MessageDestroyOK:
				ackErr = fmt.Errorf("destroy failed: %s", ack.resp.Reason)
			}
		case <-ackCtx.Done():
			e.logger.Warn("destroy not acknowledged", map[string]any{
				"error": ackCtx.Err().Error(),
			})
		}
		cancel()
	}

	// Late registrants and the pump's eventual stream error all land
	// on the destroyed sentinel.
	s.fail(ErrEngineDestroyed)
	s.teardown()

	e.logger.Info("engine destroyed", map[string]any{
		"mode": e.mode,
	})
	return ackErr
}
