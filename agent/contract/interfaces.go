package contract

import (
	"context"

	statex "github.com/bancoagil/assistant/agent/state"
)

// Responder is the opaque language-model call: prompt plus conversation
// history in, natural-language reply and/or structured intent and tool
// requests out. Handlers never see transport or provider detail.
type Responder interface {
	Respond(ctx context.Context, req ChatRequest) (ChatResult, error)
}

// Registry hands out the per-agent responders.
type Registry interface {
	Triage() Responder
	Credit() Responder
	Interview() Responder
	Exchange() Responder
}

// Handler is one of the four specialized conversation processors. Handle
// consumes the shared conversation state plus the newest user message (already
// appended to state), mutates the state, and returns the outgoing assistant
// message. An empty message means the handler redirected without speaking.
type Handler interface {
	Type() AgentType
	Handle(ctx context.Context, conv *statex.Conversation) (string, error)
}

// ToolGateway executes tool operations on behalf of an agent.
type ToolGateway interface {
	Execute(ctx context.Context, agent AgentType, reqs []ToolRequest) ([]ToolResult, error)
}
