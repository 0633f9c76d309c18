package handlers

import (
	"context"
	"fmt"
	"regexp"

	contractx "github.com/bancoagil/assistant/agent/contract"
	statex "github.com/bancoagil/assistant/agent/state"
	toolx "github.com/bancoagil/assistant/agent/tool"
)

var (
	cpfPattern       = regexp.MustCompile(`\b\d{11}\b`)
	birthdatePattern = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
)

// Triage gatekeeps the session: it authenticates the caller with bounded
// retry and, once authenticated, only classifies intent and redirects. It
// never answers a domain question itself.
type Triage struct {
	responder contractx.Responder
	tools     contractx.ToolGateway
}

func NewTriage(responder contractx.Responder, tools contractx.ToolGateway) *Triage {
	return &Triage{responder: responder, tools: tools}
}

func (h *Triage) Type() contractx.AgentType {
	return contractx.AgentTypeTriage
}

func (h *Triage) Handle(ctx context.Context, conv *statex.Conversation) (string, error) {
	conv.CurrentAgent = statex.AgentTriage
	if conv.Authenticated {
		return h.route(ctx, conv)
	}
	return h.authenticate(ctx, conv)
}

// authenticate drives the credential sub-flow. Only the newest user message
// is scanned for tokens; captured values persist in the temp fields until
// success or failure.
func (h *Triage) authenticate(ctx context.Context, conv *statex.Conversation) (string, error) {
	last := conv.LastUserMessage()
	if conv.TempCPF == "" {
		conv.TempCPF = cpfPattern.FindString(last)
	}
	if m := birthdatePattern.FindString(last); m != "" {
		conv.TempBirthdate = m
	}

	switch {
	case conv.TempCPF != "" && conv.TempBirthdate != "":
		return h.checkCredentials(ctx, conv)
	case conv.TempCPF != "":
		return h.askOrEnd(ctx, conv,
			"Obrigado! Agora preciso da sua data de nascimento no formato AAAA-MM-DD (exemplo: 1990-05-15).")
	default:
		return h.askOrEnd(ctx, conv,
			"Olá! Bem-vindo(a) ao Banco Ágil. Para começar, informe por favor o seu CPF (11 dígitos).")
	}
}

func (h *Triage) checkCredentials(ctx context.Context, conv *statex.Conversation) (string, error) {
	results, err := h.tools.Execute(ctx, h.Type(), []contractx.ToolRequest{{
		Operation: toolx.OpAuthenticate,
		Args: map[string]any{
			"cpf":       conv.TempCPF,
			"birthdate": conv.TempBirthdate,
		},
	}})
	if err != nil {
		if msg, ok := handleDataLoss(conv, err); ok {
			return msg, nil
		}
		return "", err
	}
	out, err := resultAs[toolx.AuthenticateOutput](results, toolx.OpAuthenticate)
	if err != nil {
		return "", err
	}

	if out.OK && out.Customer != nil {
		conv.SetAuthenticated(out.Customer.CPF, out.Customer.Name, out.Customer.CreditLimit, out.Customer.Score)
		return out.Message + "\n\nComo posso ajudá-lo hoje?", nil
	}

	attempts, exhausted := conv.RecordFailedAuthentication()
	if exhausted {
		return "Lamento, mas não foi possível autenticar seus dados após 3 tentativas. " +
			"Por favor, entre em contato com nossa central de atendimento. Até logo!", nil
	}
	remaining := statex.MaxAuthenticationAttempts - attempts
	return fmt.Sprintf("%s Você tem mais %d tentativa(s). Por favor, informe seu CPF novamente.",
		out.Message, remaining), nil
}

// askOrEnd lets the model phrase the next credential request; an explicit
// cancellation intent ends the session instead.
func (h *Triage) askOrEnd(ctx context.Context, conv *statex.Conversation, fallback string) (string, error) {
	res, err := h.responder.Respond(ctx, chatRequest(h.Type(), conv))
	if err != nil {
		// The credential prompt does not depend on the model; keep asking.
		return fallback, nil
	}
	if res.Intent == contractx.IntentEndSession {
		return endSession(ctx, h.tools, h.Type(), conv)
	}
	if res.Message != "" {
		return res.Message, nil
	}
	return fallback, nil
}

// route classifies the authenticated caller's need and redirects. A request
// for the interview is silently rewritten to credit: the interview is only
// reachable through the credit workflow.
func (h *Triage) route(ctx context.Context, conv *statex.Conversation) (string, error) {
	res, err := h.responder.Respond(ctx, chatRequest(h.Type(), conv))
	if err != nil {
		return "", err
	}

	intent := res.Intent
	if intent == contractx.IntentNone {
		intent = intentFromToolRequests(res.ToolRequests)
	}

	switch intent {
	case contractx.IntentCredit, contractx.IntentInterview:
		conv.PendingRedirect = statex.AgentCredit
		return "", nil
	case contractx.IntentExchange:
		conv.PendingRedirect = statex.AgentExchange
		return "", nil
	case contractx.IntentEndSession:
		return endSession(ctx, h.tools, h.Type(), conv)
	}

	if res.Message != "" {
		return res.Message, nil
	}
	return "Posso ajudar com consultas de limite de crédito, aumento de limite e cotações de moedas. O que deseja?", nil
}

// intentFromToolRequests rescues a model that planned a domain operation from
// the triage seat: the operation names which handler should own the turn.
func intentFromToolRequests(reqs []contractx.ToolRequest) contractx.Intent {
	for _, req := range reqs {
		switch req.Operation {
		case toolx.OpQueryLimit, toolx.OpRequestIncrease, toolx.OpRecomputeScore:
			return contractx.IntentCredit
		case toolx.OpLookupRate:
			return contractx.IntentExchange
		case toolx.OpEndSession:
			return contractx.IntentEndSession
		}
	}
	return contractx.IntentNone
}
