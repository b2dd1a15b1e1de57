package stream

import "talon/pkg/protocol"

// Signal names used when reconciler output is published on an event bus.
const (
	SignalStart             = "stream.start"
	SignalChunk             = "stream.chunk"
	SignalReplace           = "stream.replace"
	SignalEnd               = "stream.end"
	SignalMessage           = "stream.message"
	SignalTool              = "stream.tool"
	SignalSessionKeyChanged = "stream.sessionKeyChanged"
	SignalSubagent          = "stream.subagent"
)

// Start marks the beginning of a reconciled response stream.
type Start struct {
	SessionKey string
	RunID      string
	Source     string
}

// Chunk is one de-duplicated span of new response text, append-only.
type Chunk struct {
	SessionKey string
	RunID      string
	Text       string
}

// Replace tells subscribers the reconciled text regressed and the full text
// must be substituted for whatever was rendered so far.
type Replace struct {
	SessionKey string
	RunID      string
	Text       string
}

// End marks the completion of a response stream. Err is non-empty when the
// run terminated with an error.
type End struct {
	SessionKey string
	RunID      string
	Text       string
	Err        string
}

// Message carries a canonical final message body when one is available.
type Message struct {
	SessionKey string
	RunID      string
	MessageID  string
	Text       string
}

// SessionKeyChanged reports that the server's authoritative session key for
// the active run differs from the one previously observed. Fired once per
// change so callers can rewrite placeholder keys.
type SessionKeyChanged struct {
	RunID string
	Old   string
	New   string
}

// SubagentDetected reports that a pinned filter saw traffic for a foreign
// session key, meaning a nested child session is active.
type SubagentDetected struct {
	SessionKey string
}

// Tool wraps a normalized tool invocation record.
type Tool struct {
	Invocation protocol.ToolInvocation
}
