// Package gateway implements the persistent connection to an agent gateway:
// a WebSocket transport with reconnection, a request/response correlator,
// the challenge handshake, and a client facade that feeds decoded frames to
// a single dispatch goroutine.
package gateway

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// reconnectBase is the first retry delay; it doubles per attempt.
const reconnectBase = 2 * time.Second

// reconnectJitter is the maximum jitter added to each retry delay.
const reconnectJitter = 500 * time.Millisecond

// maxReconnectAttempts caps the retry schedule before the connection is
// abandoned for good.
const maxReconnectAttempts = 8

// ConnState describes a transport transition reported to the state callback.
type ConnState int

const (
	// StateConnected fires after each successful dial.
	StateConnected ConnState = iota
	// StateDisconnected fires on any socket loss, before reconnection starts.
	StateDisconnected
	// StateAbandoned fires when reconnection gives up permanently.
	StateAbandoned
)

// CertError reports a TLS trust failure against a wss:// endpoint. Probe is
// the https:// form of the gateway URL, suitable for opening in a browser
// to establish trust out of band.
type CertError struct {
	URL   string
	Probe string
	Err   error
}

func (e *CertError) Error() string {
	return fmt.Sprintf("tls trust failure dialing %s: %v", e.URL, e.Err)
}

func (e *CertError) Unwrap() error { return e.Err }

// ConnHooks are the callbacks a Conn reports into. Frame is invoked from the
// read pump for every text message; State on transitions; Cert once per TLS
// trust failure.
type ConnHooks struct {
	Frame func(data []byte)
	State func(s ConnState, err error)
	Cert  func(ce *CertError)
}

// Conn owns one WebSocket to the gateway and keeps it alive. All sends are
// serialized; reads run on an internal pump. Close abandons the connection
// permanently and guarantees no frame callback runs after it returns.
type Conn struct {
	url    string
	dialer *websocket.Dialer
	hooks  ConnHooks
	log    *slog.Logger

	mu     sync.Mutex
	ws     *websocket.Conn
	closed bool
	gen    int
}

// NewConn creates a transport for the given ws:// or wss:// URL. Nothing is
// dialed until Open.
func NewConn(gatewayURL string, hooks ConnHooks, log *slog.Logger) *Conn {
	if log == nil {
		log = slog.Default()
	}
	return &Conn{
		url:    gatewayURL,
		dialer: websocket.DefaultDialer,
		hooks:  hooks,
		log:    log,
	}
}

// Open dials the gateway and starts the read pump. On later socket loss it
// reconnects with exponential backoff until the attempt cap, then reports
// StateAbandoned. Open itself retries the initial dial on the same schedule.
func (c *Conn) Open(ctx context.Context) error {
	if err := c.dialOnce(ctx, 0); err != nil {
		return err
	}
	return nil
}

// Connected reports whether a socket is currently established.
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil && !c.closed
}

// Send writes one text frame. Concurrent callers are serialized.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Close tears down the socket and suppresses all future reconnection. The
// read pump is detached before the socket closes, so no frame callback runs
// after Close returns.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.gen++ // orphan the running pump
	ws := c.ws
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

// dialOnce establishes the socket, retrying with backoff starting from the
// given attempt number.
func (c *Conn) dialOnce(ctx context.Context, attempt int) error {
	for ; attempt < maxReconnectAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			c.log.Debug("reconnecting to gateway", "attempt", attempt, "delay", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return ErrClosed
		}
		c.mu.Unlock()

		ws, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ce := c.certError(err); ce != nil {
				if c.hooks.Cert != nil {
					c.hooks.Cert(ce)
				}
			}
			c.log.Warn("gateway dial failed", "url", c.url, "err", err)
			continue
		}

		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			ws.Close()
			return ErrClosed
		}
		c.ws = ws
		c.gen++
		gen := c.gen
		c.mu.Unlock()

		if c.hooks.State != nil {
			c.hooks.State(StateConnected, nil)
		}
		go c.readPump(ctx, ws, gen)
		return nil
	}

	if c.hooks.State != nil {
		c.hooks.State(StateAbandoned, errors.New("reconnect attempts exhausted"))
	}
	return fmt.Errorf("dial %s: reconnect attempts exhausted", c.url)
}

// readPump delivers frames until the socket dies, then kicks off
// reconnection unless this pump has been orphaned by Close or a newer dial.
func (c *Conn) readPump(ctx context.Context, ws *websocket.Conn, gen int) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.gen != gen || c.closed
			if !stale {
				c.ws = nil
			}
			c.mu.Unlock()
			if stale {
				return
			}
			c.log.Warn("gateway connection lost", "err", err)
			if c.hooks.State != nil {
				c.hooks.State(StateDisconnected, err)
			}
			go c.dialOnce(ctx, 1) // abandon is reported via the state hook
			return
		}

		c.mu.Lock()
		stale := c.gen != gen || c.closed
		c.mu.Unlock()
		if stale {
			return
		}
		if c.hooks.Frame != nil {
			c.hooks.Frame(data)
		}
	}
}

// certError classifies a dial failure as a TLS trust problem and derives
// the https:// probe URL. Only wss:// endpoints qualify.
func (c *Conn) certError(err error) *CertError {
	if !strings.HasPrefix(c.url, "wss://") {
		return nil
	}
	var unknownAuthority x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var certInvalid x509.CertificateInvalidError
	var recordErr tls.RecordHeaderError
	isTLS := errors.As(err, &unknownAuthority) ||
		errors.As(err, &hostnameErr) ||
		errors.As(err, &certInvalid) ||
		errors.As(err, &recordErr) ||
		strings.Contains(err.Error(), "certificate")
	if !isTLS {
		return nil
	}
	probe := c.url
	if u, perr := url.Parse(c.url); perr == nil {
		u.Scheme = "https"
		probe = u.String()
	}
	return &CertError{URL: c.url, Probe: probe, Err: err}
}

func backoffDelay(attempt int) time.Duration {
	d := reconnectBase << (attempt - 1)
	return d + time.Duration(rand.Int64N(int64(reconnectJitter)))
}
