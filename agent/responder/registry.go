package responder

import (
	"context"
	"fmt"

	contractx "github.com/bancoagil/assistant/agent/contract"
	llmx "github.com/bancoagil/assistant/agent/llm"
	promptx "github.com/bancoagil/assistant/agent/prompt"
)

type registryImpl struct {
	triage    contractx.Responder
	credit    contractx.Responder
	interview contractx.Responder
	exchange  contractx.Responder
}

func (r *registryImpl) Triage() contractx.Responder    { return r.triage }
func (r *registryImpl) Credit() contractx.Responder    { return r.credit }
func (r *registryImpl) Interview() contractx.Responder { return r.interview }
func (r *registryImpl) Exchange() contractx.Responder  { return r.exchange }

// NewRegistry compiles one responder per agent, each with its own prompt and
// model configuration.
func NewRegistry(ctx context.Context, cfg llmx.Config) (contractx.Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	prompts := promptx.LoadPromptSet()

	build := func(agent contractx.AgentType, systemPrompt string) (contractx.Responder, error) {
		if systemPrompt == "" {
			return nil, fmt.Errorf("%w: agent=%s", contractx.ErrPromptMissing, agent)
		}
		modelCfg := cfg.OpenRouterFor(agent)
		chatModel, err := modelCfg.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: create model for agent=%s: %v", contractx.ErrModelInvoke, agent, err)
		}
		return newResponder(ctx, agent, chatModel, systemPrompt)
	}

	triage, err := build(contractx.AgentTypeTriage, prompts.Triage)
	if err != nil {
		return nil, err
	}
	credit, err := build(contractx.AgentTypeCredit, prompts.Credit)
	if err != nil {
		return nil, err
	}
	interview, err := build(contractx.AgentTypeInterview, prompts.Interview)
	if err != nil {
		return nil, err
	}
	exchange, err := build(contractx.AgentTypeExchange, prompts.Exchange)
	if err != nil {
		return nil, err
	}

	return &registryImpl{
		triage:    triage,
		credit:    credit,
		interview: interview,
		exchange:  exchange,
	}, nil
}
