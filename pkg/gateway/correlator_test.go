//nolint:testpackage // white-box tests
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"talon/pkg/protocol"
)

// fakeSender records sent frames and lets tests control connectivity.
type fakeSender struct {
	mu        sync.Mutex
	sent      [][]byte
	connected bool
	sendErr   error
}

func (f *fakeSender) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeSender) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSender) lastFrame(t *testing.T) *protocol.Frame {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatal("nothing sent")
	}
	frame, err := protocol.DecodeFrame(f.sent[len(f.sent)-1])
	if err != nil {
		t.Fatalf("decode sent frame: %v", err)
	}
	return frame
}

func okResponse(id string, payload any) *protocol.Frame {
	data, _ := json.Marshal(payload)
	ok := true
	return &protocol.Frame{Type: protocol.FrameResponse, ID: id, OK: &ok, Payload: data}
}

func TestCallResolvesWithPayload(t *testing.T) {
	s := &fakeSender{connected: true}
	c := NewCorrelator(s)

	done := make(chan json.RawMessage, 1)
	go func() {
		payload, err := c.Call(context.Background(), protocol.MethodSessionsList, nil)
		if err != nil {
			t.Errorf("Call: %v", err)
		}
		done <- payload
	}()

	// Wait for the request to hit the wire, then answer it.
	var req *protocol.Frame
	for range 100 {
		s.mu.Lock()
		n := len(s.sent)
		s.mu.Unlock()
		if n > 0 {
			req = s.lastFrame(t)
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if req == nil {
		t.Fatal("request never sent")
	}
	c.Resolve(okResponse(req.ID, map[string]string{"status": "ok"}))

	select {
	case payload := <-done:
		if !strings.Contains(string(payload), "ok") {
			t.Errorf("payload = %s", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("call did not resolve")
	}
}

func TestCallRejectsWithServerError(t *testing.T) {
	s := &fakeSender{connected: true}
	c := NewCorrelator(s)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), protocol.MethodSessionsDelete, nil)
		errCh <- err
	}()

	var req *protocol.Frame
	for range 100 {
		s.mu.Lock()
		n := len(s.sent)
		s.mu.Unlock()
		if n > 0 {
			req = s.lastFrame(t)
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if req == nil {
		t.Fatal("request never sent")
	}
	notOk := false
	c.Resolve(&protocol.Frame{
		Type:  protocol.FrameResponse,
		ID:    req.ID,
		OK:    &notOk,
		Error: &protocol.ErrorShape{Code: "NOT_FOUND", Message: "no such session"},
	})

	err := <-errCh
	if err == nil || !strings.Contains(err.Error(), "no such session") {
		t.Errorf("err = %v", err)
	}
}

func TestCallTimesOutAndLateResponseIsNoop(t *testing.T) {
	s := &fakeSender{connected: true}
	c := NewCorrelator(s)
	c.SetTimeout(20 * time.Millisecond)

	_, err := c.Call(context.Background(), protocol.MethodChatSend, nil)
	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("err = %v, want ErrCallTimeout", err)
	}

	// The pending entry is gone; a late response must not panic or block.
	req := s.lastFrame(t)
	c.Resolve(okResponse(req.ID, nil))
}

func TestCallFailsFastWhenNotConnected(t *testing.T) {
	s := &fakeSender{connected: false}
	c := NewCorrelator(s)

	start := time.Now()
	_, err := c.Call(context.Background(), protocol.MethodAgentsList, nil)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
	if time.Since(start) > time.Second {
		t.Error("not-connected failure was not immediate")
	}
}

func TestCallCancelledByContext(t *testing.T) {
	s := &fakeSender{connected: true}
	c := NewCorrelator(s)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Call(ctx, protocol.MethodChatHistory, nil)
		errCh <- err
	}()
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("cancelled call did not return")
	}
}

func TestIDsStrictlyIncrease(t *testing.T) {
	c := NewCorrelator(&fakeSender{})
	prev := 0
	for range 10 {
		id := c.NextID()
		n := 0
		for _, r := range id {
			n = n*10 + int(r-'0')
		}
		if n <= prev {
			t.Fatalf("id %d not greater than %d", n, prev)
		}
		prev = n
	}
}

func TestFailAllRejectsInFlight(t *testing.T) {
	s := &fakeSender{connected: true}
	c := NewCorrelator(s)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Call(context.Background(), protocol.MethodCronList, nil)
		errCh <- err
	}()

	for range 100 {
		s.mu.Lock()
		n := len(s.sent)
		s.mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.FailAll(ErrClosed)

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("err = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatal("in-flight call not failed")
	}
}
