package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"talon/pkg/protocol"
)

// CallTimeout bounds how long a request waits for its response frame.
const CallTimeout = 30 * time.Second

var (
	// ErrNotConnected is returned by Call when the transport is not open.
	ErrNotConnected = errors.New("not connected")
	// ErrCallTimeout is returned when no response arrives within CallTimeout.
	ErrCallTimeout = errors.New("request timed out")
	// ErrClosed is returned when the client is shut down with calls in flight.
	ErrClosed = errors.New("client closed")
)

// callResult is what a resolved pending entry delivers.
type callResult struct {
	payload json.RawMessage
	err     error
}

// sender is the slice of the transport the correlator needs.
type sender interface {
	Send(data []byte) error
	Connected() bool
}

// Correlator matches response frames to in-flight requests by id. Ids are
// strictly increasing decimal strings from an atomic counter.
type Correlator struct {
	conn    sender
	seq     atomic.Int64
	mu      sync.Mutex
	pending map[string]chan callResult
	timeout time.Duration
}

// NewCorrelator creates a correlator sending over conn.
func NewCorrelator(conn sender) *Correlator {
	return &Correlator{
		conn:    conn,
		pending: make(map[string]chan callResult),
		timeout: CallTimeout,
	}
}

// SetTimeout overrides the per-call timeout (for testing).
func (c *Correlator) SetTimeout(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = d
}

// NextID returns the next request id.
func (c *Correlator) NextID() string {
	return strconv.FormatInt(c.seq.Add(1), 10)
}

// Call sends a request and waits for the matching response. It fails fast
// with ErrNotConnected when the transport is down, and with ErrCallTimeout
// after the timeout elapses; a response arriving after timeout is dropped.
func (c *Correlator) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if !c.conn.Connected() {
		return nil, fmt.Errorf("%s: %w", method, ErrNotConnected)
	}

	id := c.NextID()
	data, err := protocol.EncodeRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	ch := make(chan callResult, 1)
	c.mu.Lock()
	timeout := c.timeout
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.conn.Send(data); err != nil {
		c.remove(id)
		return nil, fmt.Errorf("send %s: %w", method, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, fmt.Errorf("%s: %w", method, res.err)
		}
		return res.payload, nil
	case <-timer.C:
		c.remove(id)
		return nil, fmt.Errorf("%s: %w", method, ErrCallTimeout)
	case <-ctx.Done():
		c.remove(id)
		return nil, fmt.Errorf("%s: %w", method, ctx.Err())
	}
}

// Resolve routes a response frame to its pending call. Unknown ids are a
// silent no-op so late responses never error.
func (c *Correlator) Resolve(f *protocol.Frame) {
	c.mu.Lock()
	ch, ok := c.pending[f.ID]
	if ok {
		delete(c.pending, f.ID)
	}
	c.mu.Unlock()
	if !ok {
		return
	}

	if f.Ok() {
		ch <- callResult{payload: f.Payload}
		return
	}
	msg := f.Error.Text()
	if msg == "" {
		msg = "request failed"
	}
	ch <- callResult{err: errors.New(msg)}
}

// FailAll rejects every in-flight call with err. Used on shutdown and on
// transport loss.
func (c *Correlator) FailAll(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]chan callResult)
	c.mu.Unlock()
	for _, ch := range pending {
		ch <- callResult{err: err}
	}
}

func (c *Correlator) remove(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
