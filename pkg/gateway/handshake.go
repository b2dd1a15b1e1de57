package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"talon/pkg/protocol"
)

// AuthMode selects which credential the connect request carries.
type AuthMode string

const (
	AuthToken    AuthMode = "token"
	AuthPassword AuthMode = "password"
)

// Identity is the client identity presented during the handshake.
type Identity struct {
	ID         string
	Version    string
	Mode       string
	InstanceID string
	Role       string
	Scopes     []string
}

// Credentials hold the secret for the configured auth mode.
type Credentials struct {
	Mode     AuthMode
	Token    string
	Password string
}

// handshake drives the challenge/connect exchange. It owns no transport; the
// client feeds it challenge events and response frames and it reports the
// outcome through done.
type handshake struct {
	identity Identity
	creds    Credentials
	send     func(data []byte) error
	log      *slog.Logger

	mu            sync.Mutex
	authenticated bool
	challenged    bool
	done          chan error
}

func newHandshake(identity Identity, creds Credentials, send func([]byte) error, log *slog.Logger) *handshake {
	return &handshake{
		identity: identity,
		creds:    creds,
		send:     send,
		log:      log,
		done:     make(chan error, 1),
	}
}

// reset returns the handshake to the unauthenticated state, arming a fresh
// done channel. Called before each (re)connect.
func (h *handshake) reset() <-chan error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authenticated = false
	h.challenged = false
	h.done = make(chan error, 1)
	return h.done
}

// rearm clears the authenticated state after a socket loss while keeping
// the done channel, so a pending Connect still resolves when the replacement
// socket completes its handshake.
func (h *handshake) rearm() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authenticated = false
	h.challenged = false
}

// isAuthenticated reports whether the hello exchange completed.
func (h *handshake) isAuthenticated() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.authenticated
}

// onChallenge answers the connect.challenge event with a single connect
// request. A repeated challenge on the same socket is ignored.
func (h *handshake) onChallenge(id string) {
	h.mu.Lock()
	if h.challenged || h.authenticated {
		h.mu.Unlock()
		return
	}
	h.challenged = true
	h.mu.Unlock()

	params := protocol.ConnectParams{
		MinProtocol: protocol.ProtocolVersion,
		MaxProtocol: protocol.ProtocolVersion,
		Client: protocol.ClientInfo{
			ID:         h.identity.ID,
			Version:    h.identity.Version,
			Platform:   runtime.GOOS,
			Mode:       h.identity.Mode,
			InstanceID: h.identity.InstanceID,
		},
		Role:   h.identity.Role,
		Scopes: h.identity.Scopes,
	}
	switch h.creds.Mode {
	case AuthPassword:
		params.Auth = &protocol.AuthInfo{Password: h.creds.Password}
	default:
		params.Auth = &protocol.AuthInfo{Token: h.creds.Token}
	}

	data, err := protocol.EncodeRequest(id, protocol.MethodConnect, params)
	if err != nil {
		h.fail(fmt.Errorf("encode connect: %w", err))
		return
	}
	h.log.Debug("answering gateway challenge", "client", h.identity.ID)
	if err := h.send(data); err != nil {
		h.fail(fmt.Errorf("send connect: %w", err))
	}
}

// onResponse inspects a response frame while unauthenticated. A hello-ok
// payload authenticates no matter which id it carries; anything non-ok
// rejects the pending connect. It reports whether the frame was consumed.
func (h *handshake) onResponse(f *protocol.Frame) bool {
	h.mu.Lock()
	if h.authenticated {
		h.mu.Unlock()
		return false
	}
	h.mu.Unlock()

	if f.Ok() {
		var hello protocol.HelloOK
		if err := json.Unmarshal(f.Payload, &hello); err == nil && hello.Type == protocol.HelloOKType {
			h.mu.Lock()
			h.authenticated = true
			h.mu.Unlock()
			h.log.Info("gateway handshake complete",
				"protocol", hello.Protocol, "server", hello.Server.Version)
			select {
			case h.done <- nil:
			default:
			}
			return true
		}
		return false
	}

	msg := f.Error.Text()
	if msg == "" {
		msg = "gateway rejected connect"
	}
	h.fail(errors.New(msg))
	return true
}

func (h *handshake) fail(err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.authenticated {
		return
	}
	select {
	case h.done <- err:
	default:
	}
}
