package calls

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"talon/pkg/protocol"
)

// ChatMessage is one transcript entry returned by chat.history.
type ChatMessage struct {
	ID      string          `json:"id,omitempty"`
	Role    string          `json:"role,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	TS      int64           `json:"ts,omitempty"`
}

// Text returns the message body as plain text.
func (m ChatMessage) Text() string {
	raw, _ := json.Marshal(m)
	return protocol.MessageText(raw)
}

// Chat wraps the chat.* methods.
type Chat struct {
	caller Caller
}

// NewChat creates the chat call module.
func NewChat(caller Caller) *Chat {
	return &Chat{caller: caller}
}

// SendOptions tune one chat.send call.
type SendOptions struct {
	// IdempotencyKey de-duplicates retried sends. A fresh UUID is assigned
	// when empty.
	IdempotencyKey string
	Agent          string
}

// Send submits a user message to a session. The reply arrives as streamed
// chat/agent events, not in the response payload.
func (c *Chat) Send(ctx context.Context, sessionKey, text string, opts SendOptions) error {
	if opts.IdempotencyKey == "" {
		opts.IdempotencyKey = uuid.NewString()
	}
	params := struct {
		SessionKey     string `json:"sessionKey"`
		Text           string `json:"text"`
		IdempotencyKey string `json:"idempotencyKey"`
		Agent          string `json:"agent,omitempty"`
	}{sessionKey, text, opts.IdempotencyKey, opts.Agent}
	_, err := c.caller.Call(ctx, protocol.MethodChatSend, params)
	return err
}

// History returns the transcript of a session, newest last.
func (c *Chat) History(ctx context.Context, sessionKey string, limit int) ([]ChatMessage, error) {
	params := struct {
		SessionKey string `json:"sessionKey"`
		Limit      int    `json:"limit,omitempty"`
	}{sessionKey, limit}
	payload, err := c.caller.Call(ctx, protocol.MethodChatHistory, params)
	if err != nil {
		return nil, err
	}
	return decodeList[ChatMessage](payload, "messages", "history", "items")
}

// Abort stops the in-flight generation for a session.
func (c *Chat) Abort(ctx context.Context, sessionKey, runID string) error {
	params := struct {
		SessionKey string `json:"sessionKey"`
		RunID      string `json:"runId,omitempty"`
	}{sessionKey, runID}
	_, err := c.caller.Call(ctx, protocol.MethodChatAbort, params)
	return err
}
