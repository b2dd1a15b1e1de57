package calls

import (
	"context"

	"talon/pkg/protocol"
)

// Agent is one assistant configuration the gateway can route chat to.
type Agent struct {
	ID      string `json:"id"`
	Name    string `json:"name,omitempty"`
	Model   string `json:"model,omitempty"`
	Default bool   `json:"default,omitempty"`
}

// AgentIdentity is the presented persona of an agent.
type AgentIdentity struct {
	AgentID string `json:"agentId,omitempty"`
	Name    string `json:"name,omitempty"`
	Emoji   string `json:"emoji,omitempty"`
	Avatar  string `json:"avatar,omitempty"`
}

// Agents wraps the agents.* methods.
type Agents struct {
	caller Caller
}

// NewAgents creates the agents call module.
func NewAgents(caller Caller) *Agents {
	return &Agents{caller: caller}
}

// List returns the configured agents.
func (a *Agents) List(ctx context.Context) ([]Agent, error) {
	payload, err := a.caller.Call(ctx, protocol.MethodAgentsList, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Agent](payload, "agents", "items", "list")
}

// Identity returns the persona of one agent, or of the default agent when
// agentID is empty.
func (a *Agents) Identity(ctx context.Context, agentID string) (AgentIdentity, error) {
	var params any
	if agentID != "" {
		params = map[string]string{"agentId": agentID}
	}
	payload, err := a.caller.Call(ctx, protocol.MethodAgentIdentity, params)
	if err != nil {
		return AgentIdentity{}, err
	}
	var id AgentIdentity
	if err := decodeObject(payload, &id); err != nil {
		return AgentIdentity{}, err
	}
	return id, nil
}
