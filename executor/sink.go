package executor

import (
	"strings"

	"github.com/justapithecus/slate/types"
)

// sinkLine is one captured console call.
type sinkLine struct {
	stream types.Stream
	text   string
}

// consoleSink collects console output for the duration of one Execute
// call. It is an injected capability, not a global interception: the
// console bindings of the evaluation context write here and nowhere
// else, so there is nothing to restore when evaluation throws.
type consoleSink struct {
	lines []sinkLine
}

// write appends one captured line in call order.
func (s *consoleSink) write(stream types.Stream, text string) {
	s.lines = append(s.lines, sinkLine{stream: stream, text: text})
}

// reset clears the buffer for the next execution.
func (s *consoleSink) reset() {
	s.lines = nil
}

// output coalesces captured lines into a single combined record.
// Lines are joined with newlines; the record's stream is stderr if any
// line was stderr, else stdout. Returns nil when nothing was captured.
func (s *consoleSink) output() *types.CellOutput {
	if len(s.lines) == 0 {
		return nil
	}

	stream := types.StreamStdout
	texts := make([]string, len(s.lines))
	for i, line := range s.lines {
		texts[i] = line.text
		if line.stream == types.StreamStderr {
			stream = types.StreamStderr
		}
	}

	return &types.CellOutput{
		Stream: stream,
		Data:   strings.Join(texts, "\n"),
	}
}
