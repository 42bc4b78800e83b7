package types

import "testing"

func TestMessageType_RequestResponsePartition(t *testing.T) {
	requests := []MessageType{MessageInit, MessageExecute, MessageReset, MessageDestroy}
	responses := []MessageType{
		MessageInitOK, MessageInitFail, MessageExecOK, MessageExecFail,
		MessageResetOK, MessageResetFail, MessageDestroyOK, MessageDestroyFail,
	}

	for _, mt := range requests {
		if !mt.IsRequest() {
			t.Errorf("%q should be a request type", mt)
		}
		if mt.IsResponse() {
			t.Errorf("%q should not be a response type", mt)
		}
	}
	for _, mt := range responses {
		if !mt.IsResponse() {
			t.Errorf("%q should be a response type", mt)
		}
		if mt.IsRequest() {
			t.Errorf("%q should not be a request type", mt)
		}
	}

	if MessageType("bogus").IsRequest() || MessageType("bogus").IsResponse() {
		t.Error("unknown type should be neither request nor response")
	}
}

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{
			name: "valid execute",
			req:  Request{Type: MessageExecute, Code: "1 + 1", RequestID: "req-1"},
		},
		{
			name:    "execute without request id",
			req:     Request{Type: MessageExecute, Code: "1 + 1"},
			wantErr: true,
		},
		{
			name: "valid init with mode",
			req:  Request{Type: MessageInit, Mode: ModeStateful},
		},
		{
			name: "init without mode",
			req:  Request{Type: MessageInit},
		},
		{
			name:    "init with bogus mode",
			req:     Request{Type: MessageInit, Mode: ExecutorMode("sandboxed")},
			wantErr: true,
		},
		{
			name:    "response type rejected",
			req:     Request{Type: MessageExecOK},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResponse_Validate(t *testing.T) {
	okResult := &ExecutionResult{Success: true}

	tests := []struct {
		name    string
		resp    Response
		wantErr bool
	}{
		{
			name: "valid exec_ok",
			resp: Response{Type: MessageExecOK, RequestID: "req-1", Result: okResult},
		},
		{
			name:    "exec_ok without result",
			resp:    Response{Type: MessageExecOK, RequestID: "req-1"},
			wantErr: true,
		},
		{
			name:    "exec_ok without request id",
			resp:    Response{Type: MessageExecOK, Result: okResult},
			wantErr: true,
		},
		{
			name: "valid exec_fail",
			resp: Response{Type: MessageExecFail, RequestID: "req-1", Reason: "not initialized"},
		},
		{
			name:    "exec_fail without request id",
			resp:    Response{Type: MessageExecFail, Reason: "not initialized"},
			wantErr: true,
		},
		{
			name: "valid init_ok",
			resp: Response{Type: MessageInitOK},
		},
		{
			name:    "request type rejected",
			resp:    Response{Type: MessageExecute},
			wantErr: true,
		},
		{
			name: "exec_ok with inconsistent result",
			resp: Response{
				Type:      MessageExecOK,
				RequestID: "req-1",
				Result:    &ExecutionResult{Success: false},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.resp.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
