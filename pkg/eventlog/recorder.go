package eventlog

import (
	"context"
	"encoding/json"
	"log/slog"

	"talon/pkg/gateway"
	"talon/pkg/stream"
)

// Source is the subscription surface the recorder attaches to.
type Source interface {
	On(event string, fn gateway.Handler) int
	Off(event string, id int)
}

// Recorder persists stream lifecycle, tool, and subagent signals from a
// gateway client. Chunks and message bodies are deliberately not recorded.
type Recorder struct {
	writer *Writer
	source Source
	log    *slog.Logger
	subs   map[string]int
}

// Attach subscribes the recorder to src. Detach to stop.
func Attach(src Source, writer *Writer, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	r := &Recorder{writer: writer, source: src, log: log, subs: make(map[string]int)}

	r.subs[stream.SignalStart] = src.On(stream.SignalStart, func(p any) {
		if s, ok := p.(stream.Start); ok {
			r.append(stream.SignalStart, s.SessionKey, s.RunID, map[string]string{"source": s.Source})
		}
	})
	r.subs[stream.SignalEnd] = src.On(stream.SignalEnd, func(p any) {
		if e, ok := p.(stream.End); ok {
			r.append(stream.SignalEnd, e.SessionKey, e.RunID, map[string]string{"error": e.Err})
		}
	})
	r.subs[stream.SignalTool] = src.On(stream.SignalTool, func(p any) {
		if tl, ok := p.(stream.Tool); ok {
			r.append(stream.SignalTool, tl.Invocation.SessionKey, "", tl.Invocation)
		}
	})
	r.subs[stream.SignalSubagent] = src.On(stream.SignalSubagent, func(p any) {
		if d, ok := p.(stream.SubagentDetected); ok {
			r.append(stream.SignalSubagent, d.SessionKey, "", nil)
		}
	})
	return r
}

// Detach removes all subscriptions. The writer stays open for its owner to
// close.
func (r *Recorder) Detach() {
	for event, id := range r.subs {
		r.source.Off(event, id)
	}
	r.subs = make(map[string]int)
}

func (r *Recorder) append(typ, sessionKey, runID string, payload any) {
	var body string
	if payload != nil {
		data, err := json.Marshal(payload)
		if err == nil {
			body = string(data)
		}
	}
	if err := r.writer.Append(context.Background(), typ, sessionKey, runID, body); err != nil {
		r.log.Warn("event log append failed", "type", typ, "err", err)
	}
}
