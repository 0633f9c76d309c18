package handlers

import (
	"context"

	contractx "github.com/bancoagil/assistant/agent/contract"
	statex "github.com/bancoagil/assistant/agent/state"
	toolx "github.com/bancoagil/assistant/agent/tool"
)

const msgOfferInterview = "Posso encaminhá-lo para uma entrevista de crédito que pode melhorar seu score. Deseja fazer a entrevista?"

// Credit answers limit queries and runs the increase workflow. A rejected
// increase offers the interview; the redirect happens only after the customer
// confirms interest on a later turn.
type Credit struct {
	responder contractx.Responder
	tools     contractx.ToolGateway
}

func NewCredit(responder contractx.Responder, tools contractx.ToolGateway) *Credit {
	return &Credit{responder: responder, tools: tools}
}

func (h *Credit) Type() contractx.AgentType {
	return contractx.AgentTypeCredit
}

func (h *Credit) Handle(ctx context.Context, conv *statex.Conversation) (string, error) {
	conv.CurrentAgent = statex.AgentCredit

	res, err := h.responder.Respond(ctx, chatRequest(h.Type(), conv))
	if err != nil {
		return "", err
	}

	switch res.Intent {
	case contractx.IntentEndSession:
		return endSession(ctx, h.tools, h.Type(), conv)
	case contractx.IntentInterview:
		// Confirmed interest in the interview, detected on this turn.
		conv.PendingRedirect = statex.AgentInterview
		return res.Message, nil
	}

	if reqs := prepareCreditRequests(res.ToolRequests, conv.CPF); len(reqs) > 0 {
		return h.execute(ctx, conv, reqs)
	}

	if res.Message != "" {
		return res.Message, nil
	}
	return "Processando sua solicitação...", nil
}

func (h *Credit) execute(ctx context.Context, conv *statex.Conversation, reqs []contractx.ToolRequest) (string, error) {
	results, err := h.tools.Execute(ctx, h.Type(), reqs)
	if err != nil {
		if msg, ok := handleDataLoss(conv, err); ok {
			return msg, nil
		}
		return "", err
	}

	for _, res := range results {
		switch out := res.Result.(type) {
		case toolx.QueryLimitOutput:
			return out.Message, nil
		case toolx.RequestIncreaseOutput:
			if out.Approved {
				conv.CreditLimit = out.NewLimit
				return out.Message, nil
			}
			if out.OK {
				// Rejected by the score tier: offer the interview.
				return out.Message + "\n\n" + msgOfferInterview, nil
			}
			// Validation failure; session continues.
			return out.Message, nil
		case toolx.EndSessionOutput:
			conv.ShouldEnd = true
			return out.Message, nil
		}
	}
	return "Processando sua solicitação...", nil
}

// prepareCreditRequests injects the authenticated CPF and enforces the
// increase-over-query rule: when the model planned an increase, a limit query
// in the same batch is discarded.
func prepareCreditRequests(reqs []contractx.ToolRequest, cpf string) []contractx.ToolRequest {
	hasIncrease := false
	for _, req := range reqs {
		if req.Operation == toolx.OpRequestIncrease {
			hasIncrease = true
			break
		}
	}

	prepared := make([]contractx.ToolRequest, 0, len(reqs))
	for _, req := range reqs {
		if hasIncrease && req.Operation == toolx.OpQueryLimit {
			continue
		}
		if req.Operation == toolx.OpQueryLimit || req.Operation == toolx.OpRequestIncrease {
			if req.Args == nil {
				req.Args = make(map[string]any, 2)
			}
			req.Args["cpf"] = cpf
		}
		prepared = append(prepared, req)
	}
	return prepared
}
