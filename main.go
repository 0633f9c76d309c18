package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	handlersx "github.com/bancoagil/assistant/agent/handlers"
	llmx "github.com/bancoagil/assistant/agent/llm"
	orchestratorx "github.com/bancoagil/assistant/agent/orchestrator"
	"github.com/bancoagil/assistant/agent/responder"
	statex "github.com/bancoagil/assistant/agent/state"
	toolx "github.com/bancoagil/assistant/agent/tool"
	"github.com/bancoagil/assistant/bank"
	configx "github.com/bancoagil/assistant/pkg/config"
	"github.com/bancoagil/assistant/pkg/exchangerate"
	_ "github.com/bancoagil/assistant/pkg/logger/autoload"
	openrouterx "github.com/bancoagil/assistant/pkg/openrouter"
)

type AppConfig struct {
	StoreDriver string `envconfig:"STORE_DRIVER" split_words:"true" default:"csv"`
	Preflight   bool   `envconfig:"PREFLIGHT" split_words:"true" default:"false"`
}

const greeting = "Olá! Bem-vindo ao Banco Ágil. Para começar, informe seu CPF (11 dígitos) e sua data de nascimento (AAAA-MM-DD)."

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := configx.MustNew[AppConfig]("APP")

	store, err := newStore(*appCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize record store")
	}

	rateCfg := configx.MustNew[exchangerate.Config]("EXCHANGE")
	rates, err := exchangerate.NewClient(*rateCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize exchange rate client")
	}

	executor, err := toolx.NewExecutor(store, rates)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize tool executor")
	}

	llmCfg := configx.MustNew[llmx.Config]("OPENROUTER")
	if appCfg.Preflight {
		if err := openrouterx.Preflight(ctx, llmCfg.OpenRouterFor(statex.AgentTriage)); err != nil {
			log.Fatal().Err(err).Msg("openrouter preflight")
		}
	}

	registry, err := responder.NewRegistry(ctx, *llmCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize responder registry")
	}

	service, err := orchestratorx.New(
		handlersx.NewTriage(registry.Triage(), executor),
		handlersx.NewCredit(registry.Credit(), executor),
		handlersx.NewInterview(registry.Interview(), executor),
		handlersx.NewExchange(registry.Exchange(), executor),
	)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize orchestrator")
	}

	runChatLoop(ctx, service)
}

func newStore(cfg AppConfig) (bank.Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case "", "csv":
		csvCfg := configx.MustNew[bank.CSVConfig]("BANK")
		return bank.NewCSVStore(*csvCfg)
	case "postgres":
		pgCfg := configx.MustNew[bank.PostgresConfig]("BANK")
		return bank.NewPostgresStore(*pgCfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func runChatLoop(ctx context.Context, service *orchestratorx.Orchestrator) {
	conv := statex.New()
	fmt.Println(greeting)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		reply, err := service.ProcessTurn(ctx, conv, text)
		if err != nil {
			log.Error().Err(err).Msg("process turn")
			continue
		}
		fmt.Println(reply)

		if conv.ShouldEnd {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("read input")
	}
}
