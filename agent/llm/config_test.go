package llm

import (
	"errors"
	"testing"

	contractx "github.com/bancoagil/assistant/agent/contract"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := Config{APIKey: "key", Model: "qwen/qwen3-32b"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := (Config{Model: "m"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing key, got %v", err)
	}
	if err := (Config{APIKey: "k"}).Validate(); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation for missing model, got %v", err)
	}
}

func TestOpenRouterForOverrides(t *testing.T) {
	t.Parallel()

	cfg := Config{
		APIKey:               "key",
		Model:                "qwen/qwen3-32b",
		Temperature:          0.3,
		InterviewModel:       "openai/gpt-4.1-mini",
		InterviewTemperature: 0.7,
		CreditTemperature:    -1,
	}

	interview := cfg.OpenRouterFor(contractx.AgentTypeInterview)
	if interview.Model != "openai/gpt-4.1-mini" || interview.Temperature != 0.7 {
		t.Fatalf("override not applied: %+v", interview)
	}

	credit := cfg.OpenRouterFor(contractx.AgentTypeCredit)
	if credit.Model != "qwen/qwen3-32b" || credit.Temperature != 0.3 {
		t.Fatalf("defaults must apply without override: %+v", credit)
	}
}
