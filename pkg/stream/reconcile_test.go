package stream_test

import (
	"encoding/json"
	"fmt"
	"testing"

	"talon/pkg/protocol"
	"talon/pkg/stream"
)

// recorder captures emitted signals in order.
type recorder struct {
	names    []string
	payloads []any
}

func (r *recorder) emit(name string, payload any) {
	r.names = append(r.names, name)
	r.payloads = append(r.payloads, payload)
}

func (r *recorder) chunks() []string {
	var out []string
	for i, n := range r.names {
		if n == stream.SignalChunk {
			out = append(out, r.payloads[i].(stream.Chunk).Text)
		}
	}
	return out
}

func (r *recorder) replaces() []string {
	var out []string
	for i, n := range r.names {
		if n == stream.SignalReplace {
			out = append(out, r.payloads[i].(stream.Replace).Text)
		}
	}
	return out
}

func (r *recorder) count(name string) int {
	c := 0
	for _, n := range r.names {
		if n == name {
			c++
		}
	}
	return c
}

func assistantEvent(sessionKey, runID, text string) *protocol.AgentEvent {
	data, _ := json.Marshal(protocol.AssistantData{Text: text})
	return &protocol.AgentEvent{
		SessionKey: sessionKey,
		RunID:      runID,
		Stream:     protocol.AgentStreamAssistant,
		Data:       data,
	}
}

func lifecycleEvent(runID, phase string) *protocol.AgentEvent {
	data, _ := json.Marshal(protocol.LifecycleData{Phase: phase})
	return &protocol.AgentEvent{
		RunID:  runID,
		Stream: protocol.AgentStreamLifecycle,
		Data:   data,
	}
}

func toolEvent(runID, id, name, phase, result string) *protocol.AgentEvent {
	data, _ := json.Marshal(protocol.ToolData{ID: id, Name: name, Phase: phase, Result: result})
	return &protocol.AgentEvent{
		RunID:  runID,
		Stream: protocol.AgentStreamTool,
		Data:   data,
	}
}

func chatEvent(sessionKey, runID, state, text string) *protocol.ChatEvent {
	msg, _ := json.Marshal(map[string]any{"id": "m-" + runID, "content": text})
	return &protocol.ChatEvent{
		SessionKey: sessionKey,
		RunID:      runID,
		State:      state,
		Message:    msg,
	}
}

func TestDeltaOverlapRepair(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleAgent(assistantEvent("main", "r1", "No"))
	r.HandleAgent(assistantEvent("main", "r1", "No, I do not"))
	r.HandleAgent(assistantEvent("main", "r1", "No, I do not"))
	r.HandleAgent(assistantEvent("main", "r1", "No, I do not see it"))

	want := []string{"No", ", I do not", " see it"}
	got := rec.chunks()
	if len(got) != len(want) {
		t.Fatalf("chunks = %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if r.Text() != "No, I do not see it" {
		t.Errorf("Text() = %q", r.Text())
	}
}

func TestAdditiveDeltasConcatenateExactly(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	parts := []string{"The ", "quick ", "brown ", "fox"}
	for _, p := range parts {
		r.HandleAgent(assistantEvent("", "r1", p))
	}

	var joined string
	for _, c := range rec.chunks() {
		joined += c
	}
	if joined != "The quick brown fox" {
		t.Errorf("concatenated chunks = %q", joined)
	}
	if joined != r.Text() {
		t.Errorf("chunks %q != accumulated %q", joined, r.Text())
	}
}

func TestDuplicateDeltaEmitsNothing(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleAgent(assistantEvent("", "r1", "hello"))
	before := len(rec.chunks())
	r.HandleAgent(assistantEvent("", "r1", "hello"))
	if got := len(rec.chunks()); got != before {
		t.Errorf("duplicate delta emitted a chunk: %q", rec.chunks())
	}
}

func TestStreamStartFiresOnce(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleAgent(assistantEvent("main", "r1", "a"))
	r.HandleAgent(assistantEvent("main", "r1", "ab"))
	if got := rec.count(stream.SignalStart); got != 1 {
		t.Errorf("start signals = %d, want 1", got)
	}
}

func TestCumulativeBlockBoundary(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, "First block"))
	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, "First block done."))
	// Cumulative counter resets: a new block begins.
	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, "Second block"))

	chunks := rec.chunks()
	if len(chunks) != 3 {
		t.Fatalf("chunks = %q", chunks)
	}
	if chunks[0] != "First block" || chunks[1] != " done." {
		t.Errorf("extension chunks = %q", chunks[:2])
	}
	if chunks[2] != "\n\nSecond block" {
		t.Errorf("boundary chunk = %q, want separator prefix", chunks[2])
	}
	if r.Text() != "First block done.\n\nSecond block" {
		t.Errorf("accumulated = %q", r.Text())
	}
}

func TestSourceClaimBlocksCompetitor(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	// Agent claims first; chat deltas for the same run must be ignored.
	r.HandleAgent(assistantEvent("main", "r1", "from agent"))
	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, "from chat"))

	chunks := rec.chunks()
	if len(chunks) != 1 || chunks[0] != "from agent" {
		t.Fatalf("chunks = %q", chunks)
	}

	// End via agent lifecycle; now a new chat stream may claim.
	r.HandleAgent(lifecycleEvent("r1", protocol.LifecycleEnd))
	r.HandleChat(chatEvent("main", "r2", protocol.ChatStateDelta, "next response"))
	chunks = rec.chunks()
	if len(chunks) != 2 || chunks[1] != "next response" {
		t.Errorf("post-end chunks = %q", chunks)
	}
}

func TestChatFinalAfterAgentCompletionIsInformational(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleAgent(assistantEvent("main", "r1", "answer"))
	r.HandleAgent(lifecycleEvent("r1", protocol.LifecycleEnd))
	if got := rec.count(stream.SignalEnd); got != 1 {
		t.Fatalf("end signals after lifecycle = %d", got)
	}

	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateFinal, "answer"))
	if got := rec.count(stream.SignalEnd); got != 1 {
		t.Errorf("trailing final re-fired end: %d signals", got)
	}
	if got := rec.count(stream.SignalMessage); got != 1 {
		t.Errorf("canonical message signals = %d, want 1", got)
	}
}

func TestChatFinalEndsOwnStream(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, "partial"))
	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateFinal, "partial answer"))

	if got := rec.count(stream.SignalEnd); got != 1 {
		t.Fatalf("end signals = %d, want 1", got)
	}
	var joined string
	for _, c := range rec.chunks() {
		joined += c
	}
	if joined != "partial answer" {
		t.Errorf("emitted = %q", joined)
	}
	if r.Active() {
		t.Error("reconciler still active after final")
	}
}

func TestLifecycleErrorCarriesMessage(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleAgent(assistantEvent("main", "r1", "partial"))
	data, _ := json.Marshal(protocol.LifecycleData{Phase: protocol.LifecycleError, Error: "model overloaded"})
	r.HandleAgent(&protocol.AgentEvent{RunID: "r1", Stream: protocol.AgentStreamLifecycle, Data: data})

	for i, n := range rec.names {
		if n == stream.SignalEnd {
			end := rec.payloads[i].(stream.End)
			if end.Err != "model overloaded" {
				t.Errorf("End.Err = %q", end.Err)
			}
			return
		}
	}
	t.Fatal("no end signal emitted")
}

func TestHeartbeatSuppressed(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleChat(chatEvent("", "hb1", protocol.ChatStateFinal, "HEARTBEAT_OK nothing to report"))

	if got := len(rec.chunks()); got != 0 {
		t.Errorf("heartbeat emitted chunks: %q", rec.chunks())
	}
	if got := rec.count(stream.SignalMessage); got != 0 {
		t.Errorf("heartbeat emitted a message signal")
	}
	if r.Active() {
		t.Error("reconciler claimed by a heartbeat")
	}
}

func TestHeartbeatDeltaSuppressed(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleAgent(assistantEvent("", "hb1", "HEARTBEAT_OK"))
	r.HandleAgent(lifecycleEvent("hb1", protocol.LifecycleEnd))

	if len(rec.chunks()) != 0 {
		t.Errorf("heartbeat delta emitted chunks: %q", rec.chunks())
	}
	if got := rec.count(stream.SignalEnd); got != 0 {
		t.Errorf("heartbeat-only stream fired end signal")
	}
}

func TestToolInvocationLifecycle(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleAgent(toolEvent("r1", "t1", "read_file", protocol.ToolPhaseStart, ""))
	r.HandleAgent(toolEvent("r1", "t1", "", protocol.ToolPhaseResult, "42 lines"))

	// A tool event alone opens the stream.
	if got := rec.count(stream.SignalStart); got != 1 {
		t.Errorf("start signals = %d, want 1", got)
	}

	var tools []stream.Tool
	for i, n := range rec.names {
		if n == stream.SignalTool {
			tools = append(tools, rec.payloads[i].(stream.Tool))
		}
	}
	if len(tools) != 2 {
		t.Fatalf("tool signals = %d", len(tools))
	}
	if tools[0].Invocation.Phase != protocol.ToolPhaseStart || tools[0].Invocation.Name != "read_file" {
		t.Errorf("start invocation = %+v", tools[0].Invocation)
	}
	last := tools[1].Invocation
	if last.Phase != protocol.ToolPhaseResult || last.Result != "42 lines" || last.Name != "read_file" {
		t.Errorf("result invocation = %+v", last)
	}
	if last.InvocationID != "t1" {
		t.Errorf("InvocationID = %q", last.InvocationID)
	}
}

func TestRunChangeMidStreamResets(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleAgent(assistantEvent("main", "r1", "first response"))
	r.HandleAgent(assistantEvent("main", "r2", "second response"))

	if r.Text() != "second response" {
		t.Errorf("Text() = %q, want context dropped", r.Text())
	}
}

func TestSessionKeyChangedFiresOncePerChange(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleAgent(assistantEvent("local-placeholder", "r1", "a"))
	r.HandleAgent(assistantEvent("agent:main:abc", "r1", "ab"))
	r.HandleAgent(assistantEvent("agent:main:abc", "r1", "abc"))

	if got := rec.count(stream.SignalSessionKeyChanged); got != 1 {
		t.Fatalf("sessionKeyChanged signals = %d, want 1", got)
	}
	for i, n := range rec.names {
		if n == stream.SignalSessionKeyChanged {
			ch := rec.payloads[i].(stream.SessionKeyChanged)
			if ch.Old != "local-placeholder" || ch.New != "agent:main:abc" {
				t.Errorf("change = %+v", ch)
			}
		}
	}
}

func TestChatFinalDivergenceReplacesEmittedText(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, "Hello world, this is a long dra"))
	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateFinal, "Hello world."))

	if got := rec.replaces(); len(got) != 1 || got[0] != "Hello world." {
		t.Fatalf("replaces = %q, want [\"Hello world.\"]", got)
	}
	if got := rec.chunks(); len(got) != 1 {
		t.Errorf("chunks = %q, want only the initial delta", got)
	}
	end := rec.payloads[len(rec.payloads)-1].(stream.End)
	if end.Text != "Hello world." {
		t.Errorf("end text = %q", end.Text)
	}
}

func TestHeartbeatSplitAcrossUpdatesIsRetracted(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, "Greetings"))
	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, "HEART"))
	r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, "HEARTBEAT_OK agent alive"))

	// The partially delivered heartbeat block is withdrawn, leaving only the
	// real text visible.
	if got := rec.replaces(); len(got) != 1 || got[0] != "Greetings" {
		t.Fatalf("replaces = %q, want [\"Greetings\"]", got)
	}
	for _, c := range rec.chunks()[2:] {
		t.Errorf("chunk after suppression: %q", c)
	}
}

func TestManyBlocksAccumulate(t *testing.T) {
	rec := &recorder{}
	r := stream.NewReconciler(rec.emit, nil)

	for i := 1; i <= 3; i++ {
		r.HandleChat(chatEvent("main", "r1", protocol.ChatStateDelta, fmt.Sprintf("block %d", i)))
	}
	want := "block 1\n\nblock 2\n\nblock 3"
	if r.Text() != want {
		t.Errorf("accumulated = %q, want %q", r.Text(), want)
	}
}
