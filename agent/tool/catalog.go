package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	contractx "github.com/bancoagil/assistant/agent/contract"
	"github.com/bancoagil/assistant/bank"
	"github.com/bancoagil/assistant/pkg/exchangerate"
)

// Closed enumeration of tool operations. Dispatch is an explicit switch over
// these names; an unknown name is a hard error, never a silent no-op.
const (
	OpAuthenticate    = "authenticate"
	OpQueryLimit      = "query_limit"
	OpRequestIncrease = "request_increase"
	OpRecomputeScore  = "recompute_score"
	OpLookupRate      = "lookup_rate"
	OpEndSession      = "end_session"
)

// RateLookup is the slice of the exchange-rate client the executor needs.
type RateLookup interface {
	Lookup(ctx context.Context, currency string) (exchangerate.Quote, error)
}

// Executor runs tool operations against the record store and the rate
// client. It is the only place handlers mutate durable state through.
type Executor struct {
	store bank.Store
	rates RateLookup
	now   func() time.Time
}

var _ contractx.ToolGateway = (*Executor)(nil)

func NewExecutor(store bank.Store, rates RateLookup, opts ...ExecutorOption) (*Executor, error) {
	if store == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if rates == nil {
		return nil, fmt.Errorf("rate lookup client is required")
	}
	e := &Executor{
		store: store,
		rates: rates,
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e, nil
}

type ExecutorOption func(*Executor)

func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// Execute dispatches the requests for one agent in order. An operation the
// agent is not allowed to call, or one outside the catalog, fails the whole
// call.
func (e *Executor) Execute(ctx context.Context, agent contractx.AgentType, reqs []contractx.ToolRequest) ([]contractx.ToolResult, error) {
	allowed := allowedOps(agent)
	results := make([]contractx.ToolResult, 0, len(reqs))
	for _, req := range reqs {
		if _, ok := allowed[req.Operation]; !ok {
			return nil, fmt.Errorf("%w: operation=%s is not available for agent=%s",
				contractx.ErrSchemaViolation, req.Operation, agent)
		}
		out, err := e.dispatch(ctx, req)
		if err != nil {
			return nil, err
		}
		results = append(results, contractx.ToolResult{
			Operation: req.Operation,
			Result:    out,
		})
	}
	return results, nil
}

func (e *Executor) dispatch(ctx context.Context, req contractx.ToolRequest) (any, error) {
	switch req.Operation {
	case OpAuthenticate:
		return e.authenticate(ctx, req.Args)
	case OpQueryLimit:
		return e.queryLimit(ctx, req.Args)
	case OpRequestIncrease:
		return e.requestIncrease(ctx, req.Args)
	case OpRecomputeScore:
		return e.recomputeScore(ctx, req.Args)
	case OpLookupRate:
		return e.lookupRate(ctx, req.Args)
	case OpEndSession:
		return e.endSession(), nil
	default:
		return nil, fmt.Errorf("%w: unknown operation=%q", contractx.ErrSchemaViolation, req.Operation)
	}
}

func allowedOps(agent contractx.AgentType) map[string]struct{} {
	switch agent {
	case contractx.AgentTypeTriage:
		return map[string]struct{}{OpAuthenticate: {}, OpEndSession: {}}
	case contractx.AgentTypeCredit:
		return map[string]struct{}{OpQueryLimit: {}, OpRequestIncrease: {}, OpEndSession: {}}
	case contractx.AgentTypeInterview:
		return map[string]struct{}{OpRecomputeScore: {}, OpEndSession: {}}
	case contractx.AgentTypeExchange:
		return map[string]struct{}{OpLookupRate: {}, OpEndSession: {}}
	default:
		return map[string]struct{}{}
	}
}

// InfosForAgent declares the operations exposed to each agent's model.
func InfosForAgent(agent contractx.AgentType) []*schema.ToolInfo {
	switch agent {
	case contractx.AgentTypeCredit:
		return []*schema.ToolInfo{
			{
				Name: OpQueryLimit,
				Desc: "Consulta o limite de crédito atual e o score do cliente. Use APENAS para perguntas de consulta, nunca para pedidos de aumento.",
			},
			{
				Name: OpRequestIncrease,
				Desc: "Solicita um aumento do limite de crédito. Use sempre que o cliente expressar desejo de aumentar o limite, mesmo em forma de pergunta.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"requested_limit": {Type: schema.Number, Desc: "Novo limite solicitado em reais", Required: true},
				}),
			},
			endSessionInfo(),
		}
	case contractx.AgentTypeInterview:
		return []*schema.ToolInfo{
			{
				Name: OpRecomputeScore,
				Desc: "Recalcula o score de crédito. Chame somente quando as cinco informações da entrevista estiverem coletadas.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"monthly_income": {Type: schema.Number, Desc: "Renda mensal em reais", Required: true},
					"employment":     {Type: schema.String, Desc: "Tipo de emprego: formal, autonomo ou desempregado", Required: true},
					"fixed_expenses": {Type: schema.Number, Desc: "Despesas fixas mensais em reais", Required: true},
					"dependents":     {Type: schema.Integer, Desc: "Número de dependentes (0, 1, 2 ou 3 para '3 ou mais')", Required: true},
					"has_debt":       {Type: schema.Boolean, Desc: "Se possui dívidas ativas", Required: true},
				}),
			},
			endSessionInfo(),
		}
	case contractx.AgentTypeExchange:
		return []*schema.ToolInfo{
			{
				Name: OpLookupRate,
				Desc: "Consulta a cotação de uma moeda em relação ao real.",
				ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
					"currency": {Type: schema.String, Desc: "Código da moeda (USD, EUR, GBP...); vazio usa USD"},
				}),
			},
			endSessionInfo(),
		}
	case contractx.AgentTypeTriage:
		return []*schema.ToolInfo{endSessionInfo()}
	default:
		return nil
	}
}

func endSessionInfo() *schema.ToolInfo {
	return &schema.ToolInfo{
		Name: OpEndSession,
		Desc: "Encerra o atendimento quando o cliente deseja sair ou cancelar.",
	}
}
