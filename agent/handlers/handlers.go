// Package handlers holds the four specialized conversation processors the
// orchestrator routes between. Each handler talks to the opaque model through
// contract.Responder and mutates durable state only through the tool gateway.
package handlers

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/bancoagil/assistant/agent/contract"
	statex "github.com/bancoagil/assistant/agent/state"
	toolx "github.com/bancoagil/assistant/agent/tool"
)

// MsgDataUnavailable is the support-contact message for a missing backing
// store. Raising it ends the session; the condition is a configuration
// fault, not something the customer can retry through.
const MsgDataUnavailable = "Nossos dados estão temporariamente indisponíveis. Por favor, entre em contato com nossa central de atendimento."

var (
	_ contractx.Handler = (*Triage)(nil)
	_ contractx.Handler = (*Credit)(nil)
	_ contractx.Handler = (*Interview)(nil)
	_ contractx.Handler = (*Exchange)(nil)
)

func chatRequest(agent contractx.AgentType, conv *statex.Conversation) contractx.ChatRequest {
	return contractx.ChatRequest{
		Agent:        agent,
		Messages:     conv.Messages,
		CustomerName: conv.CustomerName,
		CPF:          conv.CPF,
	}
}

// endSession runs the end_session operation and marks the conversation over.
func endSession(ctx context.Context, tools contractx.ToolGateway, agent contractx.AgentType, conv *statex.Conversation) (string, error) {
	results, err := tools.Execute(ctx, agent, []contractx.ToolRequest{{Operation: toolx.OpEndSession}})
	if err != nil {
		return "", err
	}
	out, err := resultAs[toolx.EndSessionOutput](results, toolx.OpEndSession)
	if err != nil {
		return "", err
	}
	conv.ShouldEnd = true
	return out.Message, nil
}

// handleDataLoss converts a missing-backing-store failure into the fatal
// support-contact reply. Reports whether it consumed the error.
func handleDataLoss(conv *statex.Conversation, err error) (string, bool) {
	if errors.Is(err, contractx.ErrDataNotFound) {
		conv.ShouldEnd = true
		return MsgDataUnavailable, true
	}
	return "", false
}

func resultAs[T any](results []contractx.ToolResult, op string) (T, error) {
	var zero T
	for _, res := range results {
		if res.Operation != op {
			continue
		}
		out, ok := res.Result.(T)
		if !ok {
			return zero, fmt.Errorf("%w: unexpected result type %T for operation=%s",
				contractx.ErrSchemaViolation, res.Result, op)
		}
		return out, nil
	}
	return zero, fmt.Errorf("%w: missing result for operation=%s", contractx.ErrSchemaViolation, op)
}
