// Package protocol defines the gateway wire protocol: the three frame kinds
// exchanged over the persistent WebSocket connection (req, res, event), the
// event and method vocabulary, and the typed payloads the client consumes.
// It performs no interpretation beyond tag dispatch — protocol semantics
// live in pkg/gateway and pkg/stream.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Frame is one discrete JSON message on the wire. Exactly one of the three
// shapes is populated depending on Type: requests carry ID/Method/Params,
// responses carry ID/OK/Payload/Error, events carry Event/Payload.
type Frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Event   string          `json:"event,omitempty"`
	Seq     int64           `json:"seq,omitempty"`
	Error   *ErrorShape     `json:"error,omitempty"`
}

// ErrorShape is the structured error carried by failed responses.
type ErrorShape struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Text returns the error message, falling back to the code when the server
// supplied no message.
func (e *ErrorShape) Text() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

// Ok reports whether a response frame was marked successful.
func (f *Frame) Ok() bool {
	return f.OK != nil && *f.OK
}

// DecodeFrame parses one wire message. Callers on the receive path drop the
// error silently — a malformed frame must never take down the read loop.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	switch f.Type {
	case FrameRequest, FrameResponse, FrameEvent:
		return &f, nil
	default:
		return nil, fmt.Errorf("decode frame: unknown type %q", f.Type)
	}
}

// EncodeRequest builds the wire bytes for a request frame.
func EncodeRequest(id, method string, params any) ([]byte, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal %s params: %w", method, err)
		}
		raw = data
	}
	data, err := json.Marshal(Frame{
		Type:   FrameRequest,
		ID:     id,
		Method: method,
		Params: raw,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", method, err)
	}
	return data, nil
}

// ConnectParams is the body of the connect request sent in answer to the
// connect.challenge event.
type ConnectParams struct {
	MinProtocol int        `json:"minProtocol"`
	MaxProtocol int        `json:"maxProtocol"`
	Client      ClientInfo `json:"client"`
	Role        string     `json:"role,omitempty"`
	Scopes      []string   `json:"scopes,omitempty"`
	Auth        *AuthInfo  `json:"auth,omitempty"`
}

// ClientInfo identifies this client to the gateway.
type ClientInfo struct {
	ID         string `json:"id"`
	Version    string `json:"version"`
	Platform   string `json:"platform"`
	Mode       string `json:"mode"`
	InstanceID string `json:"instanceId,omitempty"`
}

// AuthInfo carries exactly one credential, shaped by the configured mode.
type AuthInfo struct {
	Token    string `json:"token,omitempty"`
	Password string `json:"password,omitempty"`
}

// HelloOK is the successful connect response payload. Only Type is load
// bearing for the handshake; the rest is informational.
type HelloOK struct {
	Type     string     `json:"type"`
	Protocol int        `json:"protocol,omitempty"`
	Server   ServerInfo `json:"server,omitempty"`
}

// ServerInfo describes the gateway that accepted the connection.
type ServerInfo struct {
	Version string `json:"version,omitempty"`
	Host    string `json:"host,omitempty"`
	ConnID  string `json:"connId,omitempty"`
}
