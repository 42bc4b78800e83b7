package engine

import (
	"context"
	"io"

	"github.com/justapithecus/slate/host"
)

// Boundary is a framed request/response transport to an isolated
// runtime host. Requests cross the boundary by copy; nothing is
// shared by reference with the host side.
//
// A Boundary is single-use: Start once, then Kill and Wait exactly
// once during teardown.
type Boundary interface {
	// Start launches the host side. The context bounds the host's
	// lifetime; canceling it stops the host.
	Start(ctx context.Context) error

	// Reader carries framed responses from the host.
	Reader() io.Reader

	// Writer carries framed requests to the host.
	Writer() io.Writer

	// Wait blocks until the host side has exited and reports how.
	Wait() error

	// Kill forcibly stops the host side.
	Kill() error
}

// GoroutineBoundary runs the host in-process on a dedicated goroutine,
// connected through synchronous pipes. Every message still crosses as
// encoded bytes, so isolation semantics match the subprocess transport
// apart from the address space.
type GoroutineBoundary struct {
	host *host.Host

	reqR  *io.PipeReader
	reqW  *io.PipeWriter
	respR *io.PipeReader
	respW *io.PipeWriter

	cancel context.CancelFunc
	done   chan error
}

// NewGoroutineBoundary creates a boundary backed by the given host.
func NewGoroutineBoundary(h *host.Host) *GoroutineBoundary {
	return &GoroutineBoundary{host: h}
}

func (b *GoroutineBoundary) Start(ctx context.Context) error {
	b.reqR, b.reqW = io.Pipe()
	b.respR, b.respW = io.Pipe()

	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan error, 1)

	go func() {
		err := b.host.Serve(ctx, b.reqR, b.respW)
		// Unblock any reader waiting for the next response frame.
		b.respW.CloseWithError(io.EOF)
		b.done <- err
	}()
	return nil
}

func (b *GoroutineBoundary) Reader() io.Reader { return b.respR }

func (b *GoroutineBoundary) Writer() io.Writer { return b.reqW }

func (b *GoroutineBoundary) Wait() error {
	return <-b.done
}

func (b *GoroutineBoundary) Kill() error {
	b.cancel()
	b.reqW.CloseWithError(io.ErrClosedPipe)
	b.respR.CloseWithError(io.ErrClosedPipe)
	return nil
}
