package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"

	"github.com/justapithecus/slate/log"
)

// ProcessBoundary runs the host as a child process.
// Stdin carries framed requests, stdout carries framed responses, and
// stderr is captured for diagnostics.
type ProcessBoundary struct {
	binary string
	args   []string
	logger *log.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// NewProcessBoundary creates a boundary that launches the given host
// binary. Extra args are passed through verbatim.
func NewProcessBoundary(binary string, args []string, logger *log.Logger) *ProcessBoundary {
	if logger == nil {
		logger = log.Nop()
	}
	return &ProcessBoundary{
		binary: binary,
		args:   args,
		logger: logger,
	}
}

// Start launches the host process and wires its pipes.
func (b *ProcessBoundary) Start(ctx context.Context) error {
	b.cmd = exec.CommandContext(ctx, b.binary, b.args...)

	stdin, err := b.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	b.stdin = stdin

	stdout, err := b.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	b.stdout = stdout

	stderr, err := b.cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}
	b.stderr = stderr

	if err := b.cmd.Start(); err != nil {
		return fmt.Errorf("failed to start host: %w", err)
	}

	return nil
}

func (b *ProcessBoundary) Reader() io.Reader { return b.stdout }

func (b *ProcessBoundary) Writer() io.Writer { return b.stdin }

// Wait drains stderr and waits for the host process to exit.
// A nonzero exit reports the status and any captured diagnostics.
func (b *ProcessBoundary) Wait() error {
	if b.cmd == nil {
		return errors.New("host not started")
	}

	stderrBytes, _ := io.ReadAll(b.stderr)
	err := b.cmd.Wait()
	if err == nil {
		return nil
	}

	exitCode := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			exitCode = status.ExitStatus()
		}
	} else {
		return fmt.Errorf("host wait failed: %w", err)
	}

	diag := string(bytes.TrimSpace(stderrBytes))
	if diag != "" {
		b.logger.Warn("host stderr", map[string]any{
			"exit_code": exitCode,
			"stderr":    diag,
		})
		return fmt.Errorf("host exited with code %d: %s", exitCode, diag)
	}
	return fmt.Errorf("host exited with code %d", exitCode)
}

// Kill terminates the host process.
func (b *ProcessBoundary) Kill() error {
	// Closing stdin first gives the host a chance to exit on EOF.
	if b.stdin != nil {
		_ = b.stdin.Close()
	}
	if b.cmd != nil && b.cmd.Process != nil {
		return b.cmd.Process.Kill()
	}
	return nil
}
