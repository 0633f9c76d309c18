// Package orchestrator owns the per-turn control flow: it selects the active
// handler, merges its update into the conversation, and follows same-turn
// redirects until the transition table yields control back to the caller.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/bancoagil/assistant/agent/contract"
	statex "github.com/bancoagil/assistant/agent/state"
)

var (
	ErrNilConversation = errors.New("conversation is nil")
	ErrEmptyMessage    = errors.New("user message is empty")
)

// maxHandlerInvocations bounds one turn. The longest legal chain is
// triage→credit→interview→credit; anything past that is an internal error.
const maxHandlerInvocations = 4

const (
	msgSessionClosed = "Este atendimento foi encerrado. Por favor, inicie uma nova sessão para continuar."
	msgApology       = "Desculpe, ocorreu um erro inesperado. Por favor, tente novamente em alguns instantes."
	msgNoReply       = "Desculpe, não consegui processar sua mensagem. Pode reformular?"
)

type Orchestrator struct {
	handlers map[contractx.AgentType]contractx.Handler
}

func New(hs ...contractx.Handler) (*Orchestrator, error) {
	handlers := make(map[contractx.AgentType]contractx.Handler, len(hs))
	for _, h := range hs {
		if h == nil {
			return nil, errors.New("nil handler")
		}
		handlers[h.Type()] = h
	}
	for _, required := range []contractx.AgentType{
		contractx.AgentTypeTriage,
		contractx.AgentTypeCredit,
		contractx.AgentTypeInterview,
		contractx.AgentTypeExchange,
	} {
		if _, ok := handlers[required]; !ok {
			return nil, fmt.Errorf("missing handler for agent=%s", required)
		}
	}
	return &Orchestrator{handlers: handlers}, nil
}

// ProcessTurn runs one full turn: the user message plus every same-turn hop
// it triggers. The returned assistant message is never empty.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conv *statex.Conversation, userMessage string) (string, error) {
	if conv == nil {
		return "", ErrNilConversation
	}
	text := strings.TrimSpace(userMessage)
	if text == "" {
		return "", ErrEmptyMessage
	}

	// A closed session performs no handler invocation at all.
	if conv.ShouldEnd {
		return msgSessionClosed, nil
	}

	conv.AppendUser(text)

	current := contractx.AgentTypeTriage
	if conv.CurrentAgent == statex.AgentInterview {
		current = contractx.AgentTypeInterview
	}

	var replies []string
	for invocations := 0; ; invocations++ {
		if invocations >= maxHandlerInvocations {
			log.Error().
				Str("agent", string(current)).
				Int("invocations", invocations).
				Msg("turn exceeded handler invocation cap")
			replies = append(replies, msgApology)
			conv.AppendAssistant(msgApology)
			break
		}

		// A stale redirect must never re-trigger a handler.
		conv.PendingRedirect = ""

		msg, err := o.invoke(ctx, o.handlers[current], conv)
		if err != nil {
			replies = append(replies, o.absorbFailure(conv, current, err))
			break
		}
		if msg != "" {
			conv.AppendAssistant(msg)
			replies = append(replies, msg)
		}

		next, ok := nextAgent(current, conv)
		if !ok {
			break
		}
		current = next
	}

	// Consumed or discarded: never carried into the next user turn.
	conv.PendingRedirect = ""

	reply := strings.Join(replies, "\n\n")
	if reply == "" {
		reply = msgNoReply
		conv.AppendAssistant(reply)
	}
	return reply, nil
}

// invoke shields the turn from handler faults, panics included.
func (o *Orchestrator) invoke(ctx context.Context, h contractx.Handler, conv *statex.Conversation) (msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, conv)
}

// absorbFailure converts an unexpected handler error into the generic
// apology. No further hops happen this turn; a failure during authentication
// forces termination.
func (o *Orchestrator) absorbFailure(conv *statex.Conversation, agent contractx.AgentType, err error) string {
	log.Error().Err(err).Str("agent", string(agent)).Msg("handler failed")
	conv.CurrentAgent = agent
	if agent == contractx.AgentTypeTriage && !conv.Authenticated {
		conv.ShouldEnd = true
	}
	conv.AppendAssistant(msgApology)
	return msgApology
}

// nextAgent is the fixed transition table, evaluated after each handler
// returns. A false result ends the turn and yields control to the caller.
func nextAgent(from contractx.AgentType, conv *statex.Conversation) (contractx.AgentType, bool) {
	switch from {
	case contractx.AgentTypeTriage:
		if conv.ShouldEnd {
			return "", false
		}
		switch conv.PendingRedirect {
		case statex.AgentCredit:
			return contractx.AgentTypeCredit, true
		case statex.AgentExchange:
			return contractx.AgentTypeExchange, true
		}
		return "", false
	case contractx.AgentTypeCredit:
		if conv.PendingRedirect == statex.AgentInterview {
			return contractx.AgentTypeInterview, true
		}
		return "", false
	case contractx.AgentTypeInterview:
		if conv.PendingRedirect == statex.AgentCredit {
			return contractx.AgentTypeCredit, true
		}
		return "", false
	default:
		// Exchange always ends the turn.
		return "", false
	}
}
