package ws

import (
	"encoding/json"

	"chat-core/internal/models"
)

// Frame types, numbered as in the SignalR JSON hub protocol.
const (
	FrameInvocation = 1
	FrameCompletion = 3
)

// Frame is any JSON frame as read off the wire.
type Frame struct {
	Type         int               `json:"type"`
	InvocationID string            `json:"invocationId,omitempty"`
	Target       string            `json:"target,omitempty"`
	Arguments    []json.RawMessage `json:"arguments,omitempty"`
	Result       json.RawMessage   `json:"result,omitempty"`
	Error        string            `json:"error,omitempty"`
}

type eventFrame struct {
	Type      int    `json:"type"`
	Target    string `json:"target"`
	Arguments []any  `json:"arguments"`
}

type completionFrame struct {
	Type         int    `json:"type"`
	InvocationID string `json:"invocationId"`
	Result       any    `json:"result,omitempty"`
	Error        string `json:"error,omitempty"`
}

func encodeEvent(event models.Event) ([]byte, error) {
	args := event.Arguments
	if args == nil {
		args = []any{}
	}
	return json.Marshal(eventFrame{Type: FrameInvocation, Target: event.Target, Arguments: args})
}

func encodeCompletion(invocationID string, result any, errText string) ([]byte, error) {
	return json.Marshal(completionFrame{Type: FrameCompletion, InvocationID: invocationID, Result: result, Error: errText})
}

// EncodeInvocation builds a client invocation frame.
func EncodeInvocation(invocationID, target string, args ...any) ([]byte, error) {
	return json.Marshal(struct {
		Type         int    `json:"type"`
		InvocationID string `json:"invocationId,omitempty"`
		Target       string `json:"target"`
		Arguments    []any  `json:"arguments"`
	}{FrameInvocation, invocationID, target, append([]any{}, args...)})
}
