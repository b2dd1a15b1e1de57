package protocol

import (
	"encoding/json"
)

// ChatEvent is the payload of the "chat" push event. The gateway reports the
// full text of the current content block on every delta, so consumers must
// diff against what they already hold (see pkg/stream).
type ChatEvent struct {
	SessionKey string          `json:"sessionKey,omitempty"`
	RunID      string          `json:"runId,omitempty"`
	State      string          `json:"state,omitempty"`
	Message    json.RawMessage `json:"message,omitempty"`
}

// AgentEvent is the payload of the "agent" push event, a second channel that
// reports the same generation as ChatEvent but with incremental text.
type AgentEvent struct {
	SessionKey string          `json:"sessionKey,omitempty"`
	RunID      string          `json:"runId,omitempty"`
	Stream     string          `json:"stream,omitempty"`
	TS         int64           `json:"ts,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// AssistantData is the data of an agent/assistant event.
type AssistantData struct {
	Text string `json:"text,omitempty"`
}

// ToolData is the data of an agent/tool event.
type ToolData struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Phase  string `json:"phase,omitempty"`
	Result string `json:"result,omitempty"`
}

// LifecycleData is the data of an agent/lifecycle event.
type LifecycleData struct {
	Phase string `json:"phase,omitempty"`
	State string `json:"state,omitempty"`
	Error string `json:"error,omitempty"`
}

// Terminal reports whether this lifecycle event ends the run, either by
// completing or by erroring.
func (d LifecycleData) Terminal() bool {
	if d.Phase == LifecycleEnd || d.Phase == LifecycleError {
		return true
	}
	return d.State == LifecycleEnd || d.State == LifecycleError
}

// messageShape covers the observed encodings of a chat message body: either
// a bare string content, or a list of typed content blocks.
type messageShape struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

type contentBlock struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// MessageText extracts the concatenated text of a chat message body,
// tolerating both the string and block-list content encodings. Returns ""
// for anything unrecognized.
func MessageText(message json.RawMessage) string {
	if len(message) == 0 {
		return ""
	}
	var m messageShape
	if err := json.Unmarshal(message, &m); err != nil {
		return ""
	}
	if len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var blocks []contentBlock
	if err := json.Unmarshal(m.Content, &blocks); err != nil {
		return ""
	}
	var out string
	for _, b := range blocks {
		if b.Type == "" || b.Type == "text" {
			out += b.Text
		}
	}
	return out
}

// MessageID extracts the canonical message identifier from a chat message
// body, or "" when absent.
func MessageID(message json.RawMessage) string {
	if len(message) == 0 {
		return ""
	}
	var m messageShape
	if err := json.Unmarshal(message, &m); err != nil {
		return ""
	}
	return m.ID
}

// ToolInvocation is the normalized view of a tool-stream event pair. A
// "start" phase creates the record, a matching "result" phase fills in
// Result by invocation identifier.
type ToolInvocation struct {
	InvocationID string `json:"invocationId"`
	Name         string `json:"name"`
	Phase        string `json:"phase"`
	Result       string `json:"result,omitempty"`
	SessionKey   string `json:"sessionKey,omitempty"`
}
