package calls

import (
	"context"

	"talon/pkg/protocol"
)

// Session is one conversation context known to the gateway.
type Session struct {
	Key       string `json:"key"`
	Label     string `json:"label,omitempty"`
	Agent     string `json:"agent,omitempty"`
	Pinned    bool   `json:"pinned,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// Sessions wraps the sessions.* methods.
type Sessions struct {
	caller Caller
}

// NewSessions creates the sessions call module.
func NewSessions(caller Caller) *Sessions {
	return &Sessions{caller: caller}
}

// List returns all sessions.
func (s *Sessions) List(ctx context.Context) ([]Session, error) {
	payload, err := s.caller.Call(ctx, protocol.MethodSessionsList, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Session](payload, "sessions", "items", "list")
}

// PatchOptions selects which session fields to update. Nil fields are left
// untouched.
type PatchOptions struct {
	Label  *string `json:"label,omitempty"`
	Pinned *bool   `json:"pinned,omitempty"`
}

// Patch updates mutable fields of one session.
func (s *Sessions) Patch(ctx context.Context, key string, opts PatchOptions) error {
	params := struct {
		Key string `json:"key"`
		PatchOptions
	}{Key: key, PatchOptions: opts}
	_, err := s.caller.Call(ctx, protocol.MethodSessionsPatch, params)
	return err
}

// Reset clears a session's history while keeping the session itself.
func (s *Sessions) Reset(ctx context.Context, key string) error {
	_, err := s.caller.Call(ctx, protocol.MethodSessionsReset, map[string]string{"key": key})
	return err
}

// Delete removes a session.
func (s *Sessions) Delete(ctx context.Context, key string) error {
	_, err := s.caller.Call(ctx, protocol.MethodSessionsDelete, map[string]string{"key": key})
	return err
}
