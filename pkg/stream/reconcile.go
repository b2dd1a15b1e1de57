// Package stream merges the gateway's two overlapping streaming channels
// into one canonical, de-duplicated response stream. The chat channel
// reports cumulative text per content block; the agent channel reports
// incremental deltas. Either may describe the same generation, so the first
// channel to produce a qualifying event claims the stream and the other is
// ignored until the response ends.
package stream

import (
	"encoding/json"
	"log/slog"
	"strings"

	"talon/pkg/protocol"
)

// blockSeparator joins content blocks in the reconciled text.
const blockSeparator = "\n\n"

// Emit receives each signal the reconciler produces, in order, on the
// dispatch goroutine.
type Emit func(name string, payload any)

// Reconciler holds the single live stream state for one connection. It is
// not safe for concurrent use; the client feeds it from one goroutine.
type Reconciler struct {
	emit Emit
	log  *slog.Logger

	source     string // "" until claimed, then "chat" or "agent"
	text       string // accumulated canonical text
	blockStart int    // offset of the current content block in text
	emitted    int    // length of text already delivered to subscribers
	runID      string
	sessionKey string
	started    bool
	suppressed bool // current block contains the heartbeat marker

	// doneRunID remembers the run the agent channel already completed, so a
	// trailing chat final for it stays informational.
	doneRunID string

	tools map[string]*protocol.ToolInvocation
}

// NewReconciler creates an idle reconciler emitting through emit.
func NewReconciler(emit Emit, log *slog.Logger) *Reconciler {
	if log == nil {
		log = slog.Default()
	}
	return &Reconciler{
		emit:  emit,
		log:   log,
		tools: make(map[string]*protocol.ToolInvocation),
	}
}

// Text returns the accumulated canonical text of the current stream.
func (r *Reconciler) Text() string { return r.text }

// Active reports whether a stream is currently claimed.
func (r *Reconciler) Active() bool { return r.source != "" }

// Reset drops all per-response state. Called on stream end and on explicit
// teardown.
func (r *Reconciler) Reset() {
	r.source = ""
	r.text = ""
	r.blockStart = 0
	r.emitted = 0
	r.runID = ""
	r.sessionKey = ""
	r.started = false
	r.suppressed = false
	r.tools = make(map[string]*protocol.ToolInvocation)
}

// HandleChat processes one chat event (cumulative convention).
func (r *Reconciler) HandleChat(ev *protocol.ChatEvent) {
	switch ev.State {
	case protocol.ChatStateFinal:
		r.chatFinal(ev)
	case protocol.ChatStateDelta:
		r.chatDelta(ev)
	default:
		r.log.Debug("unknown chat state", "state", ev.State)
	}
}

func (r *Reconciler) chatDelta(ev *protocol.ChatEvent) {
	if !r.claim("chat", ev.RunID, ev.SessionKey) {
		return
	}
	text := protocol.MessageText(ev.Message)
	if text == "" {
		return
	}
	r.ensureStarted()
	r.applyCumulative(text)
}

func (r *Reconciler) chatFinal(ev *protocol.ChatEvent) {
	text := protocol.MessageText(ev.Message)

	// A final trailing an agent-side completion of the same run carries the
	// canonical message but must not re-fire stream end.
	if r.source == "" && ev.RunID != "" && ev.RunID == r.doneRunID {
		r.publishMessage(ev, text)
		return
	}

	if r.source == "agent" {
		// Agent holds the claim; recover the canonical message id only.
		r.publishMessage(ev, text)
		return
	}

	if r.source == "" {
		// Final with no preceding deltas: a complete single-shot message.
		if r.heartbeat(text) {
			return
		}
		r.claim("chat", ev.RunID, ev.SessionKey)
		r.ensureStarted()
	}

	if r.heartbeat(text) {
		r.endStream("")
		return
	}
	if text != "" {
		r.adoptFinal(text)
	}
	r.publishMessage(ev, text)
	r.endStream("")
}

// HandleAgent processes one agent event (delta convention plus tool and
// lifecycle streams).
func (r *Reconciler) HandleAgent(ev *protocol.AgentEvent) {
	switch ev.Stream {
	case protocol.AgentStreamAssistant:
		r.agentAssistant(ev)
	case protocol.AgentStreamTool:
		r.agentTool(ev)
	case protocol.AgentStreamLifecycle:
		r.agentLifecycle(ev)
	default:
		r.log.Debug("unknown agent stream", "stream", ev.Stream)
	}
}

func (r *Reconciler) agentAssistant(ev *protocol.AgentEvent) {
	if !r.claim("agent", ev.RunID, ev.SessionKey) {
		return
	}
	var data protocol.AssistantData
	if err := json.Unmarshal(ev.Data, &data); err != nil || data.Text == "" {
		return
	}
	if strings.Contains(data.Text, protocol.HeartbeatMarker) {
		r.suppressed = true
		return
	}
	r.ensureStarted()
	r.applyDelta(data.Text)
}

func (r *Reconciler) agentTool(ev *protocol.AgentEvent) {
	var data protocol.ToolData
	if err := json.Unmarshal(ev.Data, &data); err != nil || data.ID == "" {
		return
	}

	// A tool event may arrive before any text and still opens the stream.
	if r.source == "" {
		r.claim("agent", ev.RunID, ev.SessionKey)
	}
	r.ensureStarted()

	inv, ok := r.tools[data.ID]
	if !ok {
		inv = &protocol.ToolInvocation{
			InvocationID: data.ID,
			Name:         data.Name,
			SessionKey:   ev.SessionKey,
		}
		r.tools[data.ID] = inv
	}
	inv.Phase = data.Phase
	if data.Name != "" {
		inv.Name = data.Name
	}
	if data.Phase == protocol.ToolPhaseResult {
		inv.Result = data.Result
	}
	r.emit(SignalTool, Tool{Invocation: *inv})
}

func (r *Reconciler) agentLifecycle(ev *protocol.AgentEvent) {
	var data protocol.LifecycleData
	if err := json.Unmarshal(ev.Data, &data); err != nil {
		return
	}
	if data.Phase == protocol.LifecycleStart || data.State == protocol.LifecycleStart {
		if r.source == "" {
			r.claim("agent", ev.RunID, ev.SessionKey)
		}
		return
	}
	if !data.Terminal() {
		return
	}
	if r.source != "agent" {
		// End of a stream the agent channel never claimed: not ours.
		return
	}
	r.doneRunID = r.runID
	r.endStream(data.Error)
}

// claim establishes or checks source ownership for the current response.
// It returns false when a competing source already holds the claim. It also
// tracks run identity and session-key authority.
func (r *Reconciler) claim(source, runID, sessionKey string) bool {
	if r.source != "" && r.source != source {
		return false
	}

	if r.source == "" {
		// New response. A fresh run id invalidates any stale leftovers.
		r.Reset()
		r.source = source
		r.runID = runID
		r.sessionKey = sessionKey
		if runID != "" && runID != r.doneRunID {
			r.doneRunID = ""
		}
		return true
	}

	// Mid-stream run change: drop context and start over for the new run.
	if runID != "" && r.runID != "" && runID != r.runID {
		r.log.Debug("run changed mid-stream, resetting", "old", r.runID, "new", runID)
		r.Reset()
		r.source = source
		r.runID = runID
		r.sessionKey = sessionKey
		return true
	}
	if r.runID == "" {
		r.runID = runID
	}

	if sessionKey != "" && r.sessionKey != "" && sessionKey != r.sessionKey {
		old := r.sessionKey
		r.sessionKey = sessionKey
		r.emit(SignalSessionKeyChanged, SessionKeyChanged{RunID: r.runID, Old: old, New: sessionKey})
	} else if r.sessionKey == "" {
		r.sessionKey = sessionKey
	}
	return true
}

func (r *Reconciler) ensureStarted() {
	if r.started {
		return
	}
	r.started = true
	r.emit(SignalStart, Start{SessionKey: r.sessionKey, RunID: r.runID, Source: r.source})
}

// applyDelta merges incrementally reported text, repairing duplicated or
// reordered delivery.
func (r *Reconciler) applyDelta(delta string) {
	held := r.text
	var add string
	switch {
	case strings.HasPrefix(delta, held):
		// Cumulative-looking resend: emit only the extension.
		add = delta[len(held):]
	case strings.HasSuffix(held, delta):
		// Already fully applied.
		return
	default:
		add = delta[overlap(held, delta):]
	}
	if add == "" {
		return
	}
	r.text += add
	r.flush()
}

// applyCumulative merges full-block text reports, detecting block
// boundaries where the cumulative counter reset.
func (r *Reconciler) applyCumulative(full string) {
	block := r.text[r.blockStart:]
	switch {
	case strings.HasPrefix(full, block):
		r.text = r.text[:r.blockStart] + full
	case strings.HasPrefix(full, r.text):
		r.text = full
	default:
		// Counter reset: a new content block begins here.
		if r.heartbeat(full) {
			return
		}
		sep := ""
		if r.text != "" {
			sep = blockSeparator
		}
		r.text += sep
		r.blockStart = len(r.text)
		r.text += full
		r.suppressed = false
	}
	r.flush()
}

// adoptFinal applies the authoritative final message body. A final that no
// longer extends the accumulated text replaces it wholesale for subscribers.
func (r *Reconciler) adoptFinal(full string) {
	if strings.HasPrefix(full, r.text) || strings.HasPrefix(full, r.text[r.blockStart:]) {
		r.applyCumulative(full)
		return
	}
	r.text = full
	r.blockStart = 0
	r.suppressed = false
	r.emitted = len(full)
	r.emit(SignalReplace, Replace{SessionKey: r.sessionKey, RunID: r.runID, Text: full})
}

// flush delivers the not-yet-emitted tail of the reconciled text, or a
// replace signal when the text regressed below what subscribers have seen.
func (r *Reconciler) flush() {
	if r.suppressed || r.heartbeatBlock() {
		// Retract any part of the suppressed block already delivered, then
		// skip the block outwardly so later text emits cleanly.
		if r.emitted > r.blockStart {
			kept := strings.TrimSuffix(r.text[:r.blockStart], blockSeparator)
			r.emit(SignalReplace, Replace{SessionKey: r.sessionKey, RunID: r.runID, Text: kept})
		}
		r.emitted = len(r.text)
		return
	}
	if len(r.text) < r.emitted {
		r.emitted = len(r.text)
		r.emit(SignalReplace, Replace{SessionKey: r.sessionKey, RunID: r.runID, Text: r.text})
		return
	}
	if len(r.text) == r.emitted {
		return
	}
	chunk := r.text[r.emitted:]
	r.emitted = len(r.text)
	r.emit(SignalChunk, Chunk{SessionKey: r.sessionKey, RunID: r.runID, Text: chunk})
}

// heartbeatBlock reports whether the current block carries the heartbeat
// marker and flags it suppressed.
func (r *Reconciler) heartbeatBlock() bool {
	if strings.Contains(r.text[r.blockStart:], protocol.HeartbeatMarker) {
		r.suppressed = true
		return true
	}
	return false
}

func (r *Reconciler) heartbeat(text string) bool {
	return strings.Contains(text, protocol.HeartbeatMarker)
}

func (r *Reconciler) publishMessage(ev *protocol.ChatEvent, text string) {
	if text == "" || r.heartbeat(text) {
		return
	}
	key := ev.SessionKey
	if key == "" {
		key = r.sessionKey
	}
	r.emit(SignalMessage, Message{
		SessionKey: key,
		RunID:      ev.RunID,
		MessageID:  protocol.MessageID(ev.Message),
		Text:       text,
	})
}

func (r *Reconciler) endStream(errText string) {
	if r.started {
		r.emit(SignalEnd, End{
			SessionKey: r.sessionKey,
			RunID:      r.runID,
			Text:       r.text,
			Err:        errText,
		})
	}
	done := r.doneRunID
	r.Reset()
	r.doneRunID = done
}

// overlap returns the length of the longest suffix of held that is also a
// prefix of next.
func overlap(held, next string) int {
	max := len(next)
	if len(held) < max {
		max = len(held)
	}
	for n := max; n > 0; n-- {
		if strings.HasSuffix(held, next[:n]) {
			return n
		}
	}
	return 0
}
