package types

import "fmt"

// ExecutorMode selects how the executor treats variable state across calls.
type ExecutorMode string

const (
	// ModeIsolated evaluates every cell with a fresh context and persists
	// nothing. This is the default mode.
	ModeIsolated ExecutorMode = "isolated"
	// ModeStateful threads a persisted variable context across calls
	// belonging to the same notebook.
	ModeStateful ExecutorMode = "stateful"
)

// IsValid returns true for a known executor mode.
func (m ExecutorMode) IsValid() bool {
	return m == ModeIsolated || m == ModeStateful
}

// MessageType discriminates engine/host protocol messages.
type MessageType string

// Request message types, sent engine -> host.
const (
	MessageInit    MessageType = "init"
	MessageExecute MessageType = "execute"
	MessageReset   MessageType = "reset"
	MessageDestroy MessageType = "destroy"
)

// Response message types, sent host -> engine.
const (
	MessageInitOK      MessageType = "init_ok"
	MessageInitFail    MessageType = "init_fail"
	MessageExecOK      MessageType = "exec_ok"
	MessageExecFail    MessageType = "exec_fail"
	MessageResetOK     MessageType = "reset_ok"
	MessageResetFail   MessageType = "reset_fail"
	MessageDestroyOK   MessageType = "destroy_ok"
	MessageDestroyFail MessageType = "destroy_fail"
)

// IsRequest returns true for engine->host message types.
func (t MessageType) IsRequest() bool {
	switch t {
	case MessageInit, MessageExecute, MessageReset, MessageDestroy:
		return true
	}
	return false
}

// IsResponse returns true for host->engine message types.
func (t MessageType) IsResponse() bool {
	switch t {
	case MessageInitOK, MessageInitFail, MessageExecOK, MessageExecFail,
		MessageResetOK, MessageResetFail, MessageDestroyOK, MessageDestroyFail:
		return true
	}
	return false
}

// Request is an engine->host protocol message.
//
// Every execute request eventually produces exactly one exec_ok or
// exec_fail response carrying the same request id. Init, reset, and
// destroy are singleton in-flight operations: at most one outstanding
// of each kind per engine instance.
type Request struct {
	// ProtocolVersion is validated by the host on every message.
	ProtocolVersion string `msgpack:"protocol_version"`
	// Type is the message discriminator.
	Type MessageType `msgpack:"type"`
	// Code is the script body to evaluate (execute only).
	Code string `msgpack:"code,omitempty"`
	// RequestID correlates an execute request with its response.
	RequestID string `msgpack:"request_id,omitempty"`
	// Mode selects the executor variant (init only).
	Mode ExecutorMode `msgpack:"mode,omitempty"`
}

// Validate checks the per-type required fields of a request.
func (r *Request) Validate() error {
	if !r.Type.IsRequest() {
		return fmt.Errorf("not a request type: %q", r.Type)
	}
	switch r.Type {
	case MessageExecute:
		if r.RequestID == "" {
			return fmt.Errorf("execute request missing request_id")
		}
	case MessageInit:
		if r.Mode != "" && !r.Mode.IsValid() {
			return fmt.Errorf("invalid executor mode: %q", r.Mode)
		}
	}
	return nil
}

// Response is a host->engine protocol message.
type Response struct {
	// ProtocolVersion is validated by the engine on every message.
	ProtocolVersion string `msgpack:"protocol_version"`
	// Type is the message discriminator.
	Type MessageType `msgpack:"type"`
	// RequestID echoes the execute request being answered
	// (exec_ok and exec_fail only).
	RequestID string `msgpack:"request_id,omitempty"`
	// Result is the execution result (exec_ok only).
	Result *ExecutionResult `msgpack:"result,omitempty"`
	// Reason describes the failure for *_fail responses.
	Reason string `msgpack:"reason,omitempty"`
}

// Validate checks the per-type required fields of a response.
func (r *Response) Validate() error {
	if !r.Type.IsResponse() {
		return fmt.Errorf("not a response type: %q", r.Type)
	}
	switch r.Type {
	case MessageExecOK:
		if r.RequestID == "" {
			return fmt.Errorf("exec_ok response missing request_id")
		}
		if r.Result == nil {
			return fmt.Errorf("exec_ok response missing result")
		}
		if err := r.Result.Validate(); err != nil {
			return fmt.Errorf("exec_ok result invalid: %w", err)
		}
	case MessageExecFail:
		if r.RequestID == "" {
			return fmt.Errorf("exec_fail response missing request_id")
		}
	}
	return nil
}
