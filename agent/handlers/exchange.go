package handlers

import (
	"context"

	contractx "github.com/bancoagil/assistant/agent/contract"
	statex "github.com/bancoagil/assistant/agent/state"
	toolx "github.com/bancoagil/assistant/agent/tool"
)

// Exchange answers currency-rate questions and nothing else: out-of-scope
// intents are declined with a scope statement.
type Exchange struct {
	responder contractx.Responder
	tools     contractx.ToolGateway
}

func NewExchange(responder contractx.Responder, tools contractx.ToolGateway) *Exchange {
	return &Exchange{responder: responder, tools: tools}
}

func (h *Exchange) Type() contractx.AgentType {
	return contractx.AgentTypeExchange
}

func (h *Exchange) Handle(ctx context.Context, conv *statex.Conversation) (string, error) {
	conv.CurrentAgent = statex.AgentExchange

	res, err := h.responder.Respond(ctx, chatRequest(h.Type(), conv))
	if err != nil {
		return "", err
	}

	if res.Intent == contractx.IntentEndSession {
		return endSession(ctx, h.tools, h.Type(), conv)
	}

	for _, req := range res.ToolRequests {
		if req.Operation != toolx.OpLookupRate {
			continue
		}
		results, err := h.tools.Execute(ctx, h.Type(), []contractx.ToolRequest{req})
		if err != nil {
			return "", err
		}
		out, err := resultAs[toolx.LookupRateOutput](results, toolx.OpLookupRate)
		if err != nil {
			return "", err
		}
		if !out.OK {
			return out.Message, nil
		}
		return out.Message + "\n\nDeseja consultar outra moeda ou posso ajudar com algo mais?", nil
	}

	if res.Message != "" {
		return res.Message, nil
	}
	return "Eu atendo apenas consultas de câmbio. Qual moeda deseja consultar?", nil
}
