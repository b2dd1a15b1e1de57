package calls

import (
	"context"
	"time"

	"talon/pkg/protocol"
)

// Heartbeat is the gateway's last recorded liveness probe.
type Heartbeat struct {
	TS     int64  `json:"ts,omitempty"`
	Status string `json:"status,omitempty"`
}

// Time returns the heartbeat timestamp, zero when unknown.
func (h Heartbeat) Time() time.Time {
	if h.TS == 0 {
		return time.Time{}
	}
	return time.UnixMilli(h.TS)
}

// Health wraps the liveness probe method.
type Health struct {
	caller Caller
}

// NewHealth creates the health call module.
func NewHealth(caller Caller) *Health {
	return &Health{caller: caller}
}

// LastHeartbeat returns the most recent heartbeat the gateway recorded.
func (h *Health) LastHeartbeat(ctx context.Context) (Heartbeat, error) {
	payload, err := h.caller.Call(ctx, protocol.MethodLastHeartbeat, nil)
	if err != nil {
		return Heartbeat{}, err
	}
	var hb Heartbeat
	if err := decodeObject(payload, &hb); err != nil {
		return Heartbeat{}, err
	}
	return hb, nil
}
