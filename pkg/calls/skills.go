package calls

import (
	"context"

	"talon/pkg/protocol"
)

// Skill is one installable capability reported by skills.status.
type Skill struct {
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Description string `json:"description,omitempty"`
	Installed   bool   `json:"installed,omitempty"`
	Enabled     bool   `json:"enabled,omitempty"`
}

// Skills wraps the skills.* methods.
type Skills struct {
	caller Caller
}

// NewSkills creates the skills call module.
func NewSkills(caller Caller) *Skills {
	return &Skills{caller: caller}
}

// Status returns all known skills and their install state.
func (s *Skills) Status(ctx context.Context) ([]Skill, error) {
	payload, err := s.caller.Call(ctx, protocol.MethodSkillsStatus, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Skill](payload, "skills", "items", "list")
}

// Install installs a skill by name.
func (s *Skills) Install(ctx context.Context, name string) error {
	_, err := s.caller.Call(ctx, protocol.MethodSkillsInstall, map[string]string{"name": name})
	return err
}

// Uninstall removes an installed skill.
func (s *Skills) Uninstall(ctx context.Context, name string) error {
	_, err := s.caller.Call(ctx, protocol.MethodSkillsRemove, map[string]string{"name": name})
	return err
}
