// Package calls provides typed wrappers over the gateway's request surface.
// The server returns heterogeneous body shapes for list endpoints (bare
// arrays, or objects wrapping the array under assorted field names); every
// wrapper normalizes once at this boundary so nothing above it sniffs
// shapes.
package calls

import (
	"context"
	"encoding/json"
	"fmt"
)

// Caller is the slice of the gateway client the wrappers need.
type Caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// decodeList accepts either a bare JSON array or an object wrapping one
// under any of the given field names.
func decodeList[T any](payload json.RawMessage, keys ...string) ([]T, error) {
	if len(payload) == 0 {
		return nil, nil
	}
	var direct []T
	if err := json.Unmarshal(payload, &direct); err == nil {
		return direct, nil
	}
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(payload, &wrapped); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	for _, key := range keys {
		raw, ok := wrapped[key]
		if !ok {
			continue
		}
		var list []T
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode list %q: %w", key, err)
		}
		return list, nil
	}
	// Fall back to the first array-valued field.
	for _, raw := range wrapped {
		if len(raw) > 0 && raw[0] == '[' {
			var list []T
			if err := json.Unmarshal(raw, &list); err == nil {
				return list, nil
			}
		}
	}
	return nil, nil
}

// decodeObject unmarshals a payload into out, tolerating an empty body.
func decodeObject(payload json.RawMessage, out any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
