package eventlog_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"talon/pkg/eventlog"
	"talon/pkg/gateway"
	"talon/pkg/stream"
)

func openLog(t *testing.T) (*eventlog.Writer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	w, err := eventlog.NewWriter(path)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, path
}

func TestAppendAndQuery(t *testing.T) {
	w, path := openLog(t)
	ctx := context.Background()

	events := []struct{ typ, session, run string }{
		{stream.SignalStart, "main", "r1"},
		{stream.SignalEnd, "main", "r1"},
		{stream.SignalStart, "agent:sub:1", "r2"},
	}
	for _, e := range events {
		if err := w.Append(ctx, e.typ, e.session, e.run, ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	r, err := eventlog.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	all, err := r.Query(ctx, eventlog.QueryOpts{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("events = %d, want 3", len(all))
	}
	// Newest first.
	if all[0].SessionKey != "agent:sub:1" {
		t.Errorf("first event = %+v", all[0])
	}

	bySession, err := r.Query(ctx, eventlog.QueryOpts{SessionKey: "main"})
	if err != nil {
		t.Fatalf("Query by session: %v", err)
	}
	if len(bySession) != 2 {
		t.Errorf("main events = %d, want 2", len(bySession))
	}

	byType, err := r.Query(ctx, eventlog.QueryOpts{Type: stream.SignalEnd, Limit: 1})
	if err != nil {
		t.Fatalf("Query by type: %v", err)
	}
	if len(byType) != 1 || byType[0].RunID != "r1" {
		t.Errorf("end events = %+v", byType)
	}
}

func TestQueryTimestampsParse(t *testing.T) {
	w, path := openLog(t)
	if err := w.Append(context.Background(), stream.SignalStart, "main", "r1", ""); err != nil {
		t.Fatal(err)
	}

	r, err := eventlog.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	events, err := r.Query(context.Background(), eventlog.QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if events[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}
	if events[0].CreatedAt.After(time.Now().Add(time.Hour)) {
		t.Errorf("CreatedAt in the future: %v", events[0].CreatedAt)
	}
}

func TestReaderRequiresExistingDatabase(t *testing.T) {
	_, err := eventlog.NewReader(filepath.Join(t.TempDir(), "missing.db"))
	if err == nil {
		t.Error("NewReader succeeded on missing file")
	}
}

func TestRecorderPersistsBusSignals(t *testing.T) {
	w, path := openLog(t)
	bus := gateway.NewBus()

	rec := eventlog.Attach(busSource{bus}, w, nil)
	defer rec.Detach()

	bus.Publish(stream.SignalStart, stream.Start{SessionKey: "main", RunID: "r1", Source: "agent"})
	bus.Publish(stream.SignalChunk, stream.Chunk{SessionKey: "main", Text: "not recorded"})
	bus.Publish(stream.SignalEnd, stream.End{SessionKey: "main", RunID: "r1"})
	bus.Publish(stream.SignalSubagent, stream.SubagentDetected{SessionKey: "agent:sub:1"})

	r, err := eventlog.NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	events, err := r.Query(context.Background(), eventlog.QueryOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 3 {
		t.Fatalf("recorded %d events, want 3 (chunks excluded)", len(events))
	}
	for _, e := range events {
		if strings.Contains(e.Payload, "not recorded") {
			t.Errorf("chunk text leaked into log: %+v", e)
		}
	}

	// Detach stops recording.
	rec.Detach()
	bus.Publish(stream.SignalStart, stream.Start{SessionKey: "main", RunID: "r2"})
	events, _ = r.Query(context.Background(), eventlog.QueryOpts{})
	if len(events) != 3 {
		t.Errorf("events after detach = %d, want 3", len(events))
	}
}

// busSource adapts a bare Bus to the recorder's Source interface.
type busSource struct{ *gateway.Bus }

func (b busSource) On(event string, fn gateway.Handler) int { return b.Subscribe(event, fn) }
func (b busSource) Off(event string, id int)                { b.Unsubscribe(event, id) }
