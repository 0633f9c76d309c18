// Package responder wraps the chat model behind the contract.Responder
// interface. Each agent gets its own instance: its own system prompt, its own
// tool bindings, and its own routing pseudo-tools. Routing always travels as a
// structured intent, never as marker text inside the assistant message.
package responder

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/bancoagil/assistant/agent/contract"
	toolx "github.com/bancoagil/assistant/agent/tool"
)

// Routing pseudo-tools. The model calls them like any other tool; they never
// reach the tool gateway and are converted into ChatResult.Intent instead.
const (
	routeCredit    = "route_credit"
	routeInterview = "route_interview"
	routeExchange  = "route_exchange"
)

type responderImpl struct {
	agentType        contractx.AgentType
	structuredRunner compose.Runnable[map[string]any, structuredLLMOutput]
	planningRunner   compose.Runnable[map[string]any, *schema.Message]
	allowedOps       map[string]struct{}
}

type structuredLLMOutput struct {
	Message string `json:"message"`
	Intent  string `json:"intent,omitempty"`
}

var _ contractx.Responder = (*responderImpl)(nil)

func newResponder(
	ctx context.Context,
	agentType contractx.AgentType,
	chatModel einomodel.ToolCallingChatModel,
	systemPrompt string,
) (*responderImpl, error) {
	structuredRunner, err := compileStructuredChatGraph(ctx, chatModel, systemPrompt,
		fmt.Sprintf("responder.%s.structured_graph", agentType))
	if err != nil {
		return nil, fmt.Errorf("%w: compile structured graph for agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}

	tools := append(toolx.InfosForAgent(agentType), routingToolsFor(agentType)...)
	toolModel, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}
	planningRunner, err := compileToolPlanningGraph(ctx, toolModel, systemPrompt,
		fmt.Sprintf("responder.%s.planning_graph", agentType))
	if err != nil {
		return nil, fmt.Errorf("%w: compile planning graph for agent=%s: %v", contractx.ErrModelInvoke, agentType, err)
	}

	allowedOps := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		if t == nil || strings.TrimSpace(t.Name) == "" {
			continue
		}
		allowedOps[t.Name] = struct{}{}
	}

	return &responderImpl{
		agentType:        agentType,
		structuredRunner: structuredRunner,
		planningRunner:   planningRunner,
		allowedOps:       allowedOps,
	}, nil
}

// Respond runs the tool-planning graph and translates the raw model message
// into a ChatResult. A reply with neither tool calls nor content falls back to
// the structured graph so the caller always gets a usable result.
func (r *responderImpl) Respond(ctx context.Context, req contractx.ChatRequest) (contractx.ChatResult, error) {
	input, err := marshalPayload(req)
	if err != nil {
		return contractx.ChatResult{}, err
	}

	msg, err := r.planningRunner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return contractx.ChatResult{}, fmt.Errorf("%w: planning invoke for agent=%s: %v", contractx.ErrModelInvoke, r.agentType, err)
	}
	if msg == nil {
		return contractx.ChatResult{}, fmt.Errorf("%w: empty planning response", contractx.ErrSchemaViolation)
	}

	result, err := r.translate(msg)
	if err != nil {
		return contractx.ChatResult{}, err
	}
	if result.Message != "" || result.Intent != contractx.IntentNone || len(result.ToolRequests) > 0 {
		return result, nil
	}

	return r.respondStructured(ctx, input)
}

func (r *responderImpl) respondStructured(ctx context.Context, input string) (contractx.ChatResult, error) {
	out, err := r.structuredRunner.Invoke(ctx, map[string]any{"input": input})
	if err != nil {
		return contractx.ChatResult{}, fmt.Errorf("%w: structured invoke for agent=%s: %v", contractx.ErrModelInvoke, r.agentType, err)
	}

	message := strings.TrimSpace(out.Message)
	if message == "" {
		return contractx.ChatResult{}, fmt.Errorf("%w: structured message is empty", contractx.ErrSchemaViolation)
	}

	intent, err := parseIntent(out.Intent)
	if err != nil {
		return contractx.ChatResult{}, err
	}
	return contractx.ChatResult{Message: message, Intent: intent}, nil
}

// translate splits the model's tool calls into routing intent and executable
// requests. Routing calls and end_session become the intent; everything else
// must be a catalogued operation bound to this agent.
func (r *responderImpl) translate(msg *schema.Message) (contractx.ChatResult, error) {
	result := contractx.ChatResult{
		Message: strings.TrimSpace(msg.Content),
	}

	for _, call := range msg.ToolCalls {
		name := strings.TrimSpace(call.Function.Name)
		if name == "" {
			return contractx.ChatResult{}, fmt.Errorf("%w: tool call name is empty", contractx.ErrSchemaViolation)
		}

		if intent, ok := intentForCall(name); ok {
			if result.Intent != contractx.IntentNone && result.Intent != intent {
				return contractx.ChatResult{}, fmt.Errorf("%w: conflicting intents %s and %s",
					contractx.ErrSchemaViolation, result.Intent, intent)
			}
			result.Intent = intent
			continue
		}

		if _, ok := r.allowedOps[name]; !ok {
			return contractx.ChatResult{}, fmt.Errorf("%w: operation=%s is not bound to agent=%s",
				contractx.ErrSchemaViolation, name, r.agentType)
		}

		args := map[string]any{}
		rawArgs := strings.TrimSpace(call.Function.Arguments)
		if rawArgs != "" {
			if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
				return contractx.ChatResult{}, fmt.Errorf("%w: invalid args for operation=%s: %v",
					contractx.ErrSchemaViolation, name, err)
			}
		}
		result.ToolRequests = append(result.ToolRequests, contractx.ToolRequest{
			Operation: name,
			Args:      args,
		})
	}

	return result, nil
}

func marshalPayload(req contractx.ChatRequest) (string, error) {
	transcript := make([]map[string]string, 0, len(req.Messages))
	for _, m := range req.Messages {
		transcript = append(transcript, map[string]string{
			"role":    string(m.Role),
			"content": m.Content,
		})
	}

	payload := map[string]any{
		"agent":    string(req.Agent),
		"messages": transcript,
	}
	if req.CustomerName != "" {
		payload["customer_name"] = req.CustomerName
	}
	if req.CPF != "" {
		payload["cpf"] = req.CPF
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal chat payload: %v", contractx.ErrValidation, err)
	}
	return string(raw), nil
}

func intentForCall(name string) (contractx.Intent, bool) {
	switch name {
	case routeCredit:
		return contractx.IntentCredit, true
	case routeInterview:
		return contractx.IntentInterview, true
	case routeExchange:
		return contractx.IntentExchange, true
	case toolx.OpEndSession:
		return contractx.IntentEndSession, true
	default:
		return contractx.IntentNone, false
	}
}

func parseIntent(raw string) (contractx.Intent, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return contractx.IntentNone, nil
	case string(contractx.IntentCredit):
		return contractx.IntentCredit, nil
	case string(contractx.IntentInterview):
		return contractx.IntentInterview, nil
	case string(contractx.IntentExchange):
		return contractx.IntentExchange, nil
	case string(contractx.IntentEndSession):
		return contractx.IntentEndSession, nil
	default:
		return contractx.IntentNone, fmt.Errorf("%w: unknown intent=%q", contractx.ErrSchemaViolation, raw)
	}
}

// routingToolsFor exposes only the redirects each agent is allowed to issue.
func routingToolsFor(agent contractx.AgentType) []*schema.ToolInfo {
	switch agent {
	case contractx.AgentTypeTriage:
		return []*schema.ToolInfo{
			{
				Name: routeCredit,
				Desc: "Encaminha o cliente autenticado para o atendimento de crédito (limite, aumento, score).",
			},
			{
				Name: routeExchange,
				Desc: "Encaminha o cliente autenticado para o atendimento de câmbio (cotação de moedas).",
			},
			{
				Name: routeInterview,
				Desc: "Encaminha o cliente autenticado para a entrevista de crédito.",
			},
		}
	case contractx.AgentTypeCredit:
		return []*schema.ToolInfo{
			{
				Name: routeInterview,
				Desc: "Encaminha o cliente para a entrevista de crédito quando ele aceita refazer o score.",
			},
		}
	default:
		return nil
	}
}
