package tool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/bancoagil/assistant/agent/contract"
	"github.com/bancoagil/assistant/bank"
	"github.com/bancoagil/assistant/pkg/exchangerate"
)

type fakeStore struct {
	customers map[string]*bank.Customer
	tiers     []bank.ScoreTier
	requests  []bank.IncreaseRequest

	storeGone bool
	approved  int
	rejected  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		customers: map[string]*bank.Customer{
			"12345678901": {CPF: "12345678901", Name: "João Silva", Birthdate: "1990-05-15", CreditLimit: 5000, Score: 650},
		},
		tiers: []bank.ScoreTier{
			{ScoreMin: 0, ScoreMax: 499, LimitMax: 5000},
			{ScoreMin: 500, ScoreMax: 699, LimitMax: 10000},
			{ScoreMin: 700, ScoreMax: 849, LimitMax: 20000},
			{ScoreMin: 850, ScoreMax: 1000, LimitMax: 50000},
		},
	}
}

func (f *fakeStore) Authenticate(ctx context.Context, cpf, birthdate string) (*bank.Customer, error) {
	if f.storeGone {
		return nil, bank.ErrDataNotFound
	}
	c, ok := f.customers[cpf]
	if !ok || c.Birthdate != birthdate {
		return nil, bank.ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}

func (f *fakeStore) Customer(ctx context.Context, cpf string) (*bank.Customer, error) {
	if f.storeGone {
		return nil, bank.ErrDataNotFound
	}
	c, ok := f.customers[cpf]
	if !ok {
		return nil, bank.ErrCustomerNotFound
	}
	clone := *c
	return &clone, nil
}

func (f *fakeStore) UpdateScore(ctx context.Context, cpf string, score int) error {
	if f.storeGone {
		return bank.ErrDataNotFound
	}
	c, ok := f.customers[cpf]
	if !ok {
		return bank.ErrCustomerNotFound
	}
	c.Score = score
	return nil
}

func (f *fakeStore) TierFor(ctx context.Context, score int) (*bank.ScoreTier, error) {
	for _, tier := range f.tiers {
		if tier.Contains(score) {
			t := tier
			return &t, nil
		}
	}
	return nil, bank.ErrTierNotFound
}

func (f *fakeStore) CreateIncreaseRequest(ctx context.Context, cpf string, limitBefore, limitRequested float64, now time.Time) (string, error) {
	ts := now.UTC().Format(time.RFC3339)
	f.requests = append(f.requests, bank.IncreaseRequest{
		CPF:            cpf,
		RequestedAt:    ts,
		LimitBefore:    limitBefore,
		LimitRequested: limitRequested,
		Status:         bank.StatusPending,
	})
	return ts, nil
}

func (f *fakeStore) ApproveIncreaseRequest(ctx context.Context, cpf, requestedAt string, newLimit float64) error {
	for i := range f.requests {
		if f.requests[i].CPF == cpf && f.requests[i].RequestedAt == requestedAt && f.requests[i].Status == bank.StatusPending {
			f.requests[i].Status = bank.StatusApproved
			f.customers[cpf].CreditLimit = newLimit
			f.approved++
			return nil
		}
	}
	return bank.ErrRequestNotFound
}

func (f *fakeStore) RejectIncreaseRequest(ctx context.Context, cpf, requestedAt string) error {
	for i := range f.requests {
		if f.requests[i].CPF == cpf && f.requests[i].RequestedAt == requestedAt && f.requests[i].Status == bank.StatusPending {
			f.requests[i].Status = bank.StatusRejected
			f.rejected++
			return nil
		}
	}
	return bank.ErrRequestNotFound
}

type fakeRates struct {
	quote exchangerate.Quote
	err   error
	calls int
}

func (f *fakeRates) Lookup(ctx context.Context, currency string) (exchangerate.Quote, error) {
	f.calls++
	if f.err != nil {
		return exchangerate.Quote{}, f.err
	}
	return f.quote, nil
}

func newTestExecutor(t *testing.T, store bank.Store, rates RateLookup) *Executor {
	t.Helper()
	exec, err := NewExecutor(store, rates, WithClock(func() time.Time {
		return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	}))
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return exec
}

func TestExecuteRejectsUnknownOperation(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, newFakeStore(), &fakeRates{})
	_, err := exec.Execute(context.Background(), contractx.AgentTypeCredit, []contractx.ToolRequest{
		{Operation: "transfer_funds"},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestExecuteRejectsOperationOutsideAgentScope(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, newFakeStore(), &fakeRates{})
	// lookup_rate is a real operation but bound to the exchange agent only.
	_, err := exec.Execute(context.Background(), contractx.AgentTypeCredit, []contractx.ToolRequest{
		{Operation: OpLookupRate},
	})
	if !errors.Is(err, contractx.ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
}

func TestAuthenticateExactMatchOnly(t *testing.T) {
	t.Parallel()

	exec := newTestExecutor(t, newFakeStore(), &fakeRates{})

	results, err := exec.Execute(context.Background(), contractx.AgentTypeTriage, []contractx.ToolRequest{
		{Operation: OpAuthenticate, Args: map[string]any{"cpf": "12345678901", "birthdate": "1990-05-15"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out, ok := results[0].Result.(AuthenticateOutput)
	if !ok {
		t.Fatalf("unexpected result type: %T", results[0].Result)
	}
	if !out.OK || out.Customer == nil || out.Customer.Name != "João Silva" {
		t.Fatalf("unexpected output: %+v", out)
	}

	// Right CPF, wrong birthdate.
	results, err = exec.Execute(context.Background(), contractx.AgentTypeTriage, []contractx.ToolRequest{
		{Operation: OpAuthenticate, Args: map[string]any{"cpf": "12345678901", "birthdate": "1985-01-01"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out = results[0].Result.(AuthenticateOutput)
	if out.OK || out.Customer != nil {
		t.Fatalf("mismatched birthdate must not authenticate: %+v", out)
	}
}

func TestAuthenticateMissingTableIsFatal(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.storeGone = true
	exec := newTestExecutor(t, store, &fakeRates{})

	_, err := exec.Execute(context.Background(), contractx.AgentTypeTriage, []contractx.ToolRequest{
		{Operation: OpAuthenticate, Args: map[string]any{"cpf": "12345678901", "birthdate": "1990-05-15"}},
	})
	if !errors.Is(err, contractx.ErrDataNotFound) {
		t.Fatalf("expected ErrDataNotFound, got %v", err)
	}
}

func TestRequestIncreaseApprovedWithinTier(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	exec := newTestExecutor(t, store, &fakeRates{})

	results, err := exec.Execute(context.Background(), contractx.AgentTypeCredit, []contractx.ToolRequest{
		{Operation: OpRequestIncrease, Args: map[string]any{"cpf": "12345678901", "requested_limit": float64(8000)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := results[0].Result.(RequestIncreaseOutput)
	if !out.OK || !out.Approved || out.NewLimit != 8000 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if store.customers["12345678901"].CreditLimit != 8000 {
		t.Fatalf("approval must update the stored limit, got %v", store.customers["12345678901"].CreditLimit)
	}
	if store.approved != 1 || store.rejected != 0 {
		t.Fatalf("unexpected request transitions: approved=%d rejected=%d", store.approved, store.rejected)
	}
}

func TestRequestIncreaseRejectedAboveTier(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	exec := newTestExecutor(t, store, &fakeRates{})

	// Score 650 caps the limit at 10000.
	results, err := exec.Execute(context.Background(), contractx.AgentTypeCredit, []contractx.ToolRequest{
		{Operation: OpRequestIncrease, Args: map[string]any{"cpf": "12345678901", "requested_limit": float64(15000)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := results[0].Result.(RequestIncreaseOutput)
	if !out.OK || out.Approved {
		t.Fatalf("expected rejection: %+v", out)
	}
	if store.customers["12345678901"].CreditLimit != 5000 {
		t.Fatalf("rejection must not change the limit, got %v", store.customers["12345678901"].CreditLimit)
	}
	if store.rejected != 1 {
		t.Fatalf("expected one rejected request, got %d", store.rejected)
	}
	if !strings.Contains(out.Message, "650") {
		t.Fatalf("rejection message must mention the score: %q", out.Message)
	}
}

func TestRequestIncreaseMustExceedCurrentLimit(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	exec := newTestExecutor(t, store, &fakeRates{})

	results, err := exec.Execute(context.Background(), contractx.AgentTypeCredit, []contractx.ToolRequest{
		{Operation: OpRequestIncrease, Args: map[string]any{"cpf": "12345678901", "requested_limit": float64(4000)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := results[0].Result.(RequestIncreaseOutput)
	if out.OK {
		t.Fatalf("expected validation failure: %+v", out)
	}
	if len(store.requests) != 0 {
		t.Fatalf("invalid request must not be recorded, got %d", len(store.requests))
	}
}

func TestRequestIncreaseBoundaryEqualsTierMax(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	exec := newTestExecutor(t, store, &fakeRates{})

	results, err := exec.Execute(context.Background(), contractx.AgentTypeCredit, []contractx.ToolRequest{
		{Operation: OpRequestIncrease, Args: map[string]any{"cpf": "12345678901", "requested_limit": float64(10000)}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := results[0].Result.(RequestIncreaseOutput)
	if !out.Approved {
		t.Fatalf("requested limit equal to the tier cap must be approved: %+v", out)
	}
}

func TestRecomputeScorePersists(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	exec := newTestExecutor(t, store, &fakeRates{})

	results, err := exec.Execute(context.Background(), contractx.AgentTypeInterview, []contractx.ToolRequest{
		{Operation: OpRecomputeScore, Args: map[string]any{
			"cpf":            "12345678901",
			"monthly_income": float64(5000),
			"employment":     "formal",
			"fixed_expenses": float64(1000),
			"dependents":     float64(1),
			"has_debt":       false,
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := results[0].Result.(RecomputeScoreOutput)
	if !out.OK || out.NewScore != 630 {
		t.Fatalf("unexpected output: %+v", out)
	}
	if store.customers["12345678901"].Score != 630 {
		t.Fatalf("score must be persisted, got %d", store.customers["12345678901"].Score)
	}
}

func TestLookupRateSuccessAndFailure(t *testing.T) {
	t.Parallel()

	rates := &fakeRates{quote: exchangerate.Quote{Currency: "USD", Rate: 5.42}}
	exec := newTestExecutor(t, newFakeStore(), rates)

	results, err := exec.Execute(context.Background(), contractx.AgentTypeExchange, []contractx.ToolRequest{
		{Operation: OpLookupRate, Args: map[string]any{"currency": "usd"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := results[0].Result.(LookupRateOutput)
	if !out.OK || out.Rate != 5.42 || !strings.Contains(out.Message, "R$ 5.42") {
		t.Fatalf("unexpected output: %+v", out)
	}

	failing := &fakeRates{err: fmt.Errorf("%w: no route", exchangerate.ErrConnection)}
	exec = newTestExecutor(t, newFakeStore(), failing)
	results, err = exec.Execute(context.Background(), contractx.AgentTypeExchange, []contractx.ToolRequest{
		{Operation: OpLookupRate},
	})
	if err != nil {
		t.Fatalf("exhausted retries must not be a hard error: %v", err)
	}
	out = results[0].Result.(LookupRateOutput)
	if out.OK || out.Message == "" {
		t.Fatalf("expected failure output with message: %+v", out)
	}
}

func TestInfosForAgentDeclaresCatalog(t *testing.T) {
	t.Parallel()

	cases := []struct {
		agent contractx.AgentType
		want  []string
	}{
		{contractx.AgentTypeTriage, []string{OpEndSession}},
		{contractx.AgentTypeCredit, []string{OpQueryLimit, OpRequestIncrease, OpEndSession}},
		{contractx.AgentTypeInterview, []string{OpRecomputeScore, OpEndSession}},
		{contractx.AgentTypeExchange, []string{OpLookupRate, OpEndSession}},
	}

	for _, tc := range cases {
		infos := InfosForAgent(tc.agent)
		if len(infos) != len(tc.want) {
			t.Fatalf("agent=%s: expected %d tools, got %d", tc.agent, len(tc.want), len(infos))
		}
		for i, name := range tc.want {
			if infos[i].Name != name {
				t.Fatalf("agent=%s: expected tool %s at %d, got %s", tc.agent, name, i, infos[i].Name)
			}
		}
	}
}
