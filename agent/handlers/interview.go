package handlers

import (
	"context"

	contractx "github.com/bancoagil/assistant/agent/contract"
	statex "github.com/bancoagil/assistant/agent/state"
	toolx "github.com/bancoagil/assistant/agent/tool"
)

// Interview conducts the slot-filling credit interview: one question per
// turn, five fields, then a score recalculation and a redirect back to
// credit. The collected slots live implicitly in conversation history; the
// model calls recompute_score once all five are known.
type Interview struct {
	responder contractx.Responder
	tools     contractx.ToolGateway
}

func NewInterview(responder contractx.Responder, tools contractx.ToolGateway) *Interview {
	return &Interview{responder: responder, tools: tools}
}

func (h *Interview) Type() contractx.AgentType {
	return contractx.AgentTypeInterview
}

func (h *Interview) Handle(ctx context.Context, conv *statex.Conversation) (string, error) {
	// Owning the turn keeps the next user message inside the interview.
	conv.CurrentAgent = statex.AgentInterview

	res, err := h.responder.Respond(ctx, chatRequest(h.Type(), conv))
	if err != nil {
		return "", err
	}

	if res.Intent == contractx.IntentEndSession {
		return endSession(ctx, h.tools, h.Type(), conv)
	}

	for _, req := range res.ToolRequests {
		if req.Operation != toolx.OpRecomputeScore {
			continue
		}
		if req.Args == nil {
			req.Args = make(map[string]any, 6)
		}
		req.Args["cpf"] = conv.CPF
		return h.recompute(ctx, conv, req)
	}

	if res.Message != "" {
		return res.Message, nil
	}
	return "Vamos continuar a entrevista. Qual é a sua renda mensal?", nil
}

func (h *Interview) recompute(ctx context.Context, conv *statex.Conversation, req contractx.ToolRequest) (string, error) {
	results, err := h.tools.Execute(ctx, h.Type(), []contractx.ToolRequest{req})
	if err != nil {
		if msg, ok := handleDataLoss(conv, err); ok {
			return msg, nil
		}
		return "", err
	}
	out, err := resultAs[toolx.RecomputeScoreOutput](results, toolx.OpRecomputeScore)
	if err != nil {
		return "", err
	}
	if !out.OK {
		return out.Message, nil
	}

	conv.Score = out.NewScore
	conv.PendingRedirect = statex.AgentCredit
	return out.Message + "\n\nVou redirecioná-lo de volta ao atendimento de crédito para reanalisar sua solicitação.", nil
}
