package protocol

// ProtocolVersion is the gateway protocol version this client speaks.
// Both minProtocol and maxProtocol in the connect request are pinned to it.
const ProtocolVersion = 3

// Frame type discriminators.
const (
	FrameRequest  = "req"
	FrameResponse = "res"
	FrameEvent    = "event"
)

// Event names pushed from the gateway.
const (
	EventConnectChallenge = "connect.challenge"
	EventChat             = "chat"
	EventAgent            = "agent"
	EventPresence         = "presence"
	EventHealth           = "health"
	EventTick             = "tick"
	EventShutdown         = "shutdown"
)

// Chat event states (payload.state).
const (
	ChatStateDelta = "delta"
	ChatStateFinal = "final"
)

// Agent event streams (payload.stream).
const (
	AgentStreamAssistant = "assistant"
	AgentStreamTool      = "tool"
	AgentStreamLifecycle = "lifecycle"
)

// Agent lifecycle phases (payload.data.phase).
const (
	LifecycleStart = "start"
	LifecycleEnd   = "end"
	LifecycleError = "error"
)

// Tool invocation phases.
const (
	ToolPhaseStart  = "start"
	ToolPhaseResult = "result"
)

// Request method names.
const (
	MethodConnect        = "connect"
	MethodChatSend       = "chat.send"
	MethodChatHistory    = "chat.history"
	MethodChatAbort      = "chat.abort"
	MethodSessionsList   = "sessions.list"
	MethodSessionsPatch  = "sessions.patch"
	MethodSessionsReset  = "sessions.reset"
	MethodSessionsDelete = "sessions.delete"
	MethodAgentsList     = "agents.list"
	MethodAgentIdentity  = "agent.identity.get"
	MethodSkillsStatus   = "skills.status"
	MethodSkillsInstall  = "skills.install"
	MethodSkillsRemove   = "skills.uninstall"
	MethodCronList       = "cron.list"
	MethodCronAdd        = "cron.add"
	MethodCronUpdate     = "cron.update"
	MethodCronRemove     = "cron.remove"
	MethodCronRun        = "cron.run"
	MethodCronRuns       = "cron.runs"
	MethodLastHeartbeat  = "last-heartbeat"
)

// Error codes carried in response frames.
const (
	ErrCodeUnknown          = "UNKNOWN"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeMethodNotFound   = "METHOD_NOT_FOUND"
	ErrCodeNotAuthorized    = "NOT_AUTHORIZED"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeInternal         = "INTERNAL"
	ErrCodeProtocolMismatch = "PROTOCOL_MISMATCH"
)

// HeartbeatMarker tags assistant output produced by the gateway's internal
// heartbeat prompt. Any reconciled text block containing it is suppressed
// before reaching subscribers.
const HeartbeatMarker = "HEARTBEAT_OK"

// HelloOKType is the payload type that marks a successful connect handshake.
const HelloOKType = "hello-ok"
