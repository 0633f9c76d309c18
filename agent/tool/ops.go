package tool

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/bancoagil/assistant/agent/contract"
	"github.com/bancoagil/assistant/bank"
	"github.com/bancoagil/assistant/pkg/exchangerate"
)

// Every output carries a pre-composed, domain-appropriate message; raw
// technical detail never reaches the end user.

type CustomerInfo struct {
	CPF         string  `json:"cpf"`
	Name        string  `json:"name"`
	CreditLimit float64 `json:"credit_limit"`
	Score       int     `json:"score"`
}

type AuthenticateOutput struct {
	OK       bool          `json:"ok"`
	Message  string        `json:"message"`
	Customer *CustomerInfo `json:"customer,omitempty"`
}

type QueryLimitOutput struct {
	OK          bool    `json:"ok"`
	CreditLimit float64 `json:"credit_limit,omitempty"`
	Score       int     `json:"score,omitempty"`
	Message     string  `json:"message"`
}

type RequestIncreaseOutput struct {
	OK       bool    `json:"ok"`
	Approved bool    `json:"approved"`
	NewLimit float64 `json:"new_limit,omitempty"`
	Message  string  `json:"message"`
}

type RecomputeScoreOutput struct {
	OK       bool   `json:"ok"`
	NewScore int    `json:"new_score,omitempty"`
	Message  string `json:"message"`
}

type LookupRateOutput struct {
	OK       bool    `json:"ok"`
	Currency string  `json:"currency,omitempty"`
	Rate     float64 `json:"rate,omitempty"`
	Message  string  `json:"message"`
}

type EndSessionOutput struct {
	Message string `json:"message"`
}

func (e *Executor) authenticate(ctx context.Context, args map[string]any) (AuthenticateOutput, error) {
	cpf, err := argString(args, "cpf")
	if err != nil {
		return AuthenticateOutput{}, err
	}
	birthdate, err := argString(args, "birthdate")
	if err != nil {
		return AuthenticateOutput{}, err
	}

	customer, err := e.store.Authenticate(ctx, cpf, birthdate)
	if errors.Is(err, bank.ErrCustomerNotFound) {
		return AuthenticateOutput{
			OK:      false,
			Message: "CPF ou data de nascimento incorretos.",
		}, nil
	}
	if errors.Is(err, bank.ErrDataNotFound) {
		return AuthenticateOutput{}, fmt.Errorf("%w: %v", contractx.ErrDataNotFound, err)
	}
	if err != nil {
		return AuthenticateOutput{}, fmt.Errorf("authenticate: %w", err)
	}

	return AuthenticateOutput{
		OK:      true,
		Message: fmt.Sprintf("Cliente autenticado com sucesso. Bem-vindo(a), %s!", customer.Name),
		Customer: &CustomerInfo{
			CPF:         customer.CPF,
			Name:        customer.Name,
			CreditLimit: customer.CreditLimit,
			Score:       customer.Score,
		},
	}, nil
}

func (e *Executor) queryLimit(ctx context.Context, args map[string]any) (QueryLimitOutput, error) {
	cpf, err := argString(args, "cpf")
	if err != nil {
		return QueryLimitOutput{}, err
	}

	customer, err := e.store.Customer(ctx, cpf)
	if errors.Is(err, bank.ErrCustomerNotFound) {
		return QueryLimitOutput{OK: false, Message: "Cliente não encontrado."}, nil
	}
	if errors.Is(err, bank.ErrDataNotFound) {
		return QueryLimitOutput{}, fmt.Errorf("%w: %v", contractx.ErrDataNotFound, err)
	}
	if err != nil {
		return QueryLimitOutput{}, fmt.Errorf("query limit: %w", err)
	}

	return QueryLimitOutput{
		OK:          true,
		CreditLimit: customer.CreditLimit,
		Score:       customer.Score,
		Message:     fmt.Sprintf("Seu limite de crédito atual é R$ %.2f.", customer.CreditLimit),
	}, nil
}

// requestIncrease runs the increase workflow: validate, record a pending
// request, check the score tier, then approve (updating the customer limit)
// or reject. The request row transitions exactly once.
func (e *Executor) requestIncrease(ctx context.Context, args map[string]any) (RequestIncreaseOutput, error) {
	cpf, err := argString(args, "cpf")
	if err != nil {
		return RequestIncreaseOutput{}, err
	}
	requested, err := argAmount(args, "requested_limit")
	if err != nil {
		return RequestIncreaseOutput{}, err
	}

	customer, err := e.store.Customer(ctx, cpf)
	if errors.Is(err, bank.ErrCustomerNotFound) {
		return RequestIncreaseOutput{OK: false, Message: "Cliente não encontrado."}, nil
	}
	if errors.Is(err, bank.ErrDataNotFound) {
		return RequestIncreaseOutput{}, fmt.Errorf("%w: %v", contractx.ErrDataNotFound, err)
	}
	if err != nil {
		return RequestIncreaseOutput{}, fmt.Errorf("request increase: %w", err)
	}

	if requested <= customer.CreditLimit {
		return RequestIncreaseOutput{
			OK:      false,
			Message: fmt.Sprintf("O novo limite deve ser maior que o atual (R$ %.2f).", customer.CreditLimit),
		}, nil
	}

	requestedAt, err := e.store.CreateIncreaseRequest(ctx, cpf, customer.CreditLimit, requested, e.now())
	if err != nil {
		return RequestIncreaseOutput{}, fmt.Errorf("create increase request: %w", err)
	}

	tier, err := e.store.TierFor(ctx, customer.Score)
	permitted := false
	switch {
	case err == nil:
		permitted = requested <= tier.LimitMax
	case errors.Is(err, bank.ErrTierNotFound):
		// No matching band means the increase is not permitted.
	default:
		return RequestIncreaseOutput{}, fmt.Errorf("tier lookup: %w", err)
	}

	if permitted {
		if err := e.store.ApproveIncreaseRequest(ctx, cpf, requestedAt, requested); err != nil {
			return RequestIncreaseOutput{}, fmt.Errorf("approve increase request: %w", err)
		}
		return RequestIncreaseOutput{
			OK:       true,
			Approved: true,
			NewLimit: requested,
			Message:  fmt.Sprintf("Solicitação aprovada! Seu novo limite é R$ %.2f.", requested),
		}, nil
	}

	if err := e.store.RejectIncreaseRequest(ctx, cpf, requestedAt); err != nil {
		return RequestIncreaseOutput{}, fmt.Errorf("reject increase request: %w", err)
	}
	return RequestIncreaseOutput{
		OK:       true,
		Approved: false,
		Message:  fmt.Sprintf("Solicitação rejeitada. Seu score atual (%d) não permite este limite.", customer.Score),
	}, nil
}

func (e *Executor) recomputeScore(ctx context.Context, args map[string]any) (RecomputeScoreOutput, error) {
	cpf, err := argString(args, "cpf")
	if err != nil {
		return RecomputeScoreOutput{}, err
	}
	income, err := argAmount(args, "monthly_income")
	if err != nil {
		return RecomputeScoreOutput{}, err
	}
	expenses, err := argAmount(args, "fixed_expenses")
	if err != nil {
		return RecomputeScoreOutput{}, err
	}
	employment := NormalizeEmployment(fmt.Sprint(args["employment"]))
	dependents := NormalizeDependents(args["dependents"])
	hasDebt, err := ParseBoolish(args["has_debt"])
	if err != nil {
		return RecomputeScoreOutput{}, fmt.Errorf("%w: has_debt: %v", contractx.ErrValidation, err)
	}

	score := ComputeScore(income, employment, expenses, dependents, hasDebt)

	if err := e.store.UpdateScore(ctx, cpf, score); err != nil {
		if errors.Is(err, bank.ErrDataNotFound) {
			return RecomputeScoreOutput{}, fmt.Errorf("%w: %v", contractx.ErrDataNotFound, err)
		}
		return RecomputeScoreOutput{}, fmt.Errorf("persist score: %w", err)
	}

	return RecomputeScoreOutput{
		OK:       true,
		NewScore: score,
		Message:  fmt.Sprintf("Score atualizado com sucesso! Seu novo score é %d.", score),
	}, nil
}

func (e *Executor) lookupRate(ctx context.Context, args map[string]any) (LookupRateOutput, error) {
	currency, _ := args["currency"].(string)

	quote, err := e.rates.Lookup(ctx, currency)
	if err != nil {
		log.Warn().Err(err).Str("currency", currency).Msg("rate lookup exhausted retries")
		return LookupRateOutput{OK: false, Message: rateFailureMessage(err)}, nil
	}

	return LookupRateOutput{
		OK:       true,
		Currency: quote.Currency,
		Rate:     quote.Rate,
		Message:  fmt.Sprintf("1 %s = R$ %.2f", quote.Currency, quote.Rate),
	}, nil
}

func (e *Executor) endSession() EndSessionOutput {
	return EndSessionOutput{
		Message: "Atendimento encerrado. Obrigado por utilizar o Banco Ágil!",
	}
}

func rateFailureMessage(err error) string {
	switch {
	case errors.Is(err, exchangerate.ErrTimeout):
		return "O serviço de cotação está demorando para responder. Por favor, tente novamente em alguns instantes."
	case errors.Is(err, exchangerate.ErrConnection):
		return "Não foi possível conectar ao serviço de cotação. Tente novamente mais tarde."
	default:
		return "Não foi possível obter a cotação no momento. Por favor, tente novamente mais tarde."
	}
}

func argString(args map[string]any, key string) (string, error) {
	raw, ok := args[key]
	if !ok {
		return "", fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", contractx.ErrValidation, key)
	}
	return s, nil
}

func argAmount(args map[string]any, key string) (float64, error) {
	raw, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", contractx.ErrValidation, key)
	}
	v, err := ParseAmount(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", contractx.ErrValidation, key, err)
	}
	return v, nil
}
