package executor

import (
	"testing"

	"github.com/justapithecus/slate/types"
)

func TestConsoleSink_EmptyProducesNil(t *testing.T) {
	s := &consoleSink{}
	if out := s.output(); out != nil {
		t.Errorf("output() = %+v, want nil", out)
	}
}

func TestConsoleSink_CoalescesInCallOrder(t *testing.T) {
	s := &consoleSink{}
	s.write(types.StreamStdout, "first")
	s.write(types.StreamStdout, "second")
	s.write(types.StreamStdout, "third")

	out := s.output()
	if out == nil {
		t.Fatal("output() = nil, want record")
	}
	if out.Stream != types.StreamStdout {
		t.Errorf("Stream = %q, want stdout", out.Stream)
	}
	if out.Data != "first\nsecond\nthird" {
		t.Errorf("Data = %q, want newline-joined lines", out.Data)
	}
}

func TestConsoleSink_AnyStderrLineWins(t *testing.T) {
	s := &consoleSink{}
	s.write(types.StreamStdout, "info line")
	s.write(types.StreamStderr, "warn line")
	s.write(types.StreamStdout, "more info")

	out := s.output()
	if out == nil {
		t.Fatal("output() = nil, want record")
	}
	if out.Stream != types.StreamStderr {
		t.Errorf("Stream = %q, want stderr when any line was stderr", out.Stream)
	}
	if out.Data != "info line\nwarn line\nmore info" {
		t.Errorf("Data = %q, call order not preserved", out.Data)
	}
}

func TestConsoleSink_Reset(t *testing.T) {
	s := &consoleSink{}
	s.write(types.StreamStderr, "stale")
	s.reset()

	if out := s.output(); out != nil {
		t.Errorf("output() after reset = %+v, want nil", out)
	}
}
