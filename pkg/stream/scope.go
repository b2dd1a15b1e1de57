package stream

import "sync"

// ScopeFilter restricts event processing to a single pinned session key,
// used for isolated subagent transcript views. Events with no session key
// always pass: they belong to the ambient context.
type ScopeFilter struct {
	mu     sync.Mutex
	pinned bool
	pin    string
	seen   map[string]bool
	emit   Emit
}

// NewScopeFilter creates an unpinned filter reporting through emit.
func NewScopeFilter(emit Emit) *ScopeFilter {
	return &ScopeFilter{emit: emit, seen: make(map[string]bool)}
}

// SetPin restricts processing to sessionKey. Foreign-key detection state
// starts fresh with each pin.
func (s *ScopeFilter) SetPin(sessionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = true
	s.pin = sessionKey
	s.seen = make(map[string]bool)
}

// ClearPin removes the restriction.
func (s *ScopeFilter) ClearPin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = false
	s.pin = ""
	s.seen = make(map[string]bool)
}

// Pin returns the active pin and whether one is set.
func (s *ScopeFilter) Pin() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pin, s.pinned
}

// Admit reports whether an event with the given session key may reach the
// reconciler. A foreign key raises a subagent-detected signal once per key
// per pin.
func (s *ScopeFilter) Admit(sessionKey string) bool {
	s.mu.Lock()
	if !s.pinned || sessionKey == "" || sessionKey == s.pin {
		s.mu.Unlock()
		return true
	}
	first := !s.seen[sessionKey]
	s.seen[sessionKey] = true
	s.mu.Unlock()

	if first {
		s.emit(SignalSubagent, SubagentDetected{SessionKey: sessionKey})
	}
	return false
}
