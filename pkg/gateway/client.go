package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"talon/pkg/protocol"
	"talon/pkg/stream"
)

// defaultQueueSize bounds the internal frame queue between the read pump
// and the dispatch goroutine.
const defaultQueueSize = 256

// Bus event names for connection-level signals. Stream signals use the
// stream.Signal* names.
const (
	EventConnected    = "gateway.connected"
	EventDisconnected = "gateway.disconnected"
	EventCertError    = "gateway.certError"
	EventAbandoned    = "gateway.abandoned"
)

// Config describes one gateway connection.
type Config struct {
	URL         string
	Identity    Identity
	Credentials Credentials
	QueueSize   int
	Logger      *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Client is the composition root of the protocol stack: transport,
// correlator, handshake, stream reconciler, session scope filter, and the
// event bus. Decoded frames flow through a bounded queue into a single
// dispatch goroutine, so all engine state transitions happen in strict
// arrival order. Callers hold exactly one Client at a time and Close it
// before creating another.
type Client struct {
	cfg   Config
	log   *slog.Logger
	bus   *Bus
	conn  *Conn
	corr  *Correlator
	hs    *handshake
	rec   *stream.Reconciler
	scope *stream.ScopeFilter

	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

// NewClient builds a client for the configured gateway. Nothing connects
// until Connect.
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	c := &Client{
		cfg:   cfg,
		log:   cfg.Logger,
		bus:   NewBus(),
		queue: make(chan []byte, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	c.rec = stream.NewReconciler(c.bus.Publish, cfg.Logger)
	c.scope = stream.NewScopeFilter(c.bus.Publish)
	c.conn = NewConn(cfg.URL, ConnHooks{
		Frame: c.enqueue,
		State: c.onState,
		Cert:  c.onCert,
	}, cfg.Logger)
	c.corr = NewCorrelator(c.conn)
	c.hs = newHandshake(cfg.Identity, cfg.Credentials, c.conn.Send, cfg.Logger)
	go c.dispatch()
	return c
}

// Connect opens the socket and resolves once the challenge handshake
// completes. Transport or handshake failure rejects it.
func (c *Client) Connect(ctx context.Context) error {
	authed := c.hs.reset()
	if err := c.conn.Open(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	select {
	case err := <-authed:
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connect: %w", ctx.Err())
	case <-c.done:
		return fmt.Errorf("connect: %w", ErrClosed)
	}
}

// Close tears the connection down permanently and fails all in-flight
// calls. No event reaches a subscriber after Close returns.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		err = c.conn.Close()
		c.corr.FailAll(ErrClosed)
		close(c.done)
	})
	return err
}

// Call issues one request and waits for its response.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	return c.corr.Call(ctx, method, params)
}

// On subscribes a handler to a bus event and returns its token.
func (c *Client) On(event string, fn Handler) int {
	return c.bus.Subscribe(event, fn)
}

// Off removes a subscription.
func (c *Client) Off(event string, id int) {
	c.bus.Unsubscribe(event, id)
}

// SetPin restricts stream processing to one session key.
func (c *Client) SetPin(sessionKey string) { c.scope.SetPin(sessionKey) }

// ClearPin removes the session restriction.
func (c *Client) ClearPin() { c.scope.ClearPin() }

// Authenticated reports whether the handshake has completed.
func (c *Client) Authenticated() bool { return c.hs.isAuthenticated() }

func (c *Client) enqueue(data []byte) {
	select {
	case c.queue <- data:
	case <-c.done:
	}
}

// dispatch is the single goroutine that consumes the frame queue. All
// reconciler and scope state is touched only here.
func (c *Client) dispatch() {
	for {
		select {
		case data := <-c.queue:
			c.handleFrame(data)
		case <-c.done:
			return
		}
	}
}

func (c *Client) handleFrame(data []byte) {
	f, err := protocol.DecodeFrame(data)
	if err != nil {
		c.log.Debug("dropping malformed frame", "err", err)
		return
	}
	switch f.Type {
	case protocol.FrameEvent:
		c.handleEvent(f)
	case protocol.FrameResponse:
		if !c.hs.isAuthenticated() && c.hs.onResponse(f) {
			return
		}
		c.corr.Resolve(f)
	case protocol.FrameRequest:
		// Server-initiated requests are not part of this protocol.
		c.log.Debug("ignoring server request frame", "method", f.Method)
	}
}

func (c *Client) handleEvent(f *protocol.Frame) {
	switch f.Event {
	case protocol.EventConnectChallenge:
		c.hs.onChallenge(c.corr.NextID())
	case protocol.EventChat:
		var ev protocol.ChatEvent
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			return
		}
		if !c.scope.Admit(ev.SessionKey) {
			return
		}
		c.rec.HandleChat(&ev)
	case protocol.EventAgent:
		var ev protocol.AgentEvent
		if err := json.Unmarshal(f.Payload, &ev); err != nil {
			return
		}
		if !c.scope.Admit(ev.SessionKey) {
			return
		}
		c.rec.HandleAgent(&ev)
	default:
		c.bus.Publish(f.Event, f.Payload)
	}
}

func (c *Client) onState(s ConnState, err error) {
	switch s {
	case StateConnected:
		c.bus.Publish(EventConnected, nil)
	case StateDisconnected:
		c.corr.FailAll(ErrNotConnected)
		c.hs.rearm()
		c.bus.Publish(EventDisconnected, err)
	case StateAbandoned:
		c.corr.FailAll(ErrNotConnected)
		c.bus.Publish(EventAbandoned, err)
	}
}

func (c *Client) onCert(ce *CertError) {
	c.log.Warn("gateway certificate not trusted", "probe", ce.Probe)
	c.bus.Publish(EventCertError, ce)
}
