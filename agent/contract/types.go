package contract

import statex "github.com/bancoagil/assistant/agent/state"

// AgentType aliases the state-level agent name so that conversation state and
// the handler contract agree on routing values without an import cycle.
type AgentType = statex.AgentType

const (
	AgentTypeTriage    = statex.AgentTriage
	AgentTypeCredit    = statex.AgentCredit
	AgentTypeInterview = statex.AgentInterview
	AgentTypeExchange  = statex.AgentExchange
)

// Intent is the structured routing signal extracted by the model. It replaces
// free-text redirect markers embedded in assistant messages: the display text
// and the control signal are independent values.
type Intent string

const (
	IntentNone       Intent = ""
	IntentCredit     Intent = "credit"
	IntentExchange   Intent = "exchange"
	IntentInterview  Intent = "interview"
	IntentEndSession Intent = "end_session"
)

// ChatRequest is what a handler hands to the opaque model call: the
// conversation so far plus the authenticated customer snapshot, if any.
type ChatRequest struct {
	Agent        AgentType        `json:"agent"`
	Messages     []statex.Message `json:"messages"`
	CustomerName string           `json:"customer_name,omitempty"`
	CPF          string           `json:"cpf,omitempty"`
}

// ChatResult is the model's structured answer: a natural-language message,
// a routing intent, zero or more tool requests, or a combination.
type ChatResult struct {
	Message      string        `json:"message,omitempty"`
	Intent       Intent        `json:"intent,omitempty"`
	ToolRequests []ToolRequest `json:"tool_requests,omitempty"`
}

type ToolRequest struct {
	Operation string         `json:"operation"`
	Args      map[string]any `json:"args,omitempty"`
}

type ToolResult struct {
	Operation string `json:"operation"`
	Result    any    `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}
