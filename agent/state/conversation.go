package state

import (
	"errors"
	"fmt"
	"strings"
)

// AgentType names one of the four conversation handlers.
type AgentType string

const (
	AgentTriage    AgentType = "triage"
	AgentCredit    AgentType = "credit"
	AgentInterview AgentType = "interview"
	AgentExchange  AgentType = "exchange"
)

// MaxAuthenticationAttempts is the inclusive cap on failed credential checks
// before the session is force-ended.
const MaxAuthenticationAttempts = 3

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is the single mutable record threaded through every turn.
// The schema is fixed: every field is always present, optional ones are zero
// values, so no control flow depends on key presence.
type Conversation struct {
	Messages     []Message `json:"messages"`
	CurrentAgent AgentType `json:"current_agent"`

	// Customer snapshot, populated all-or-nothing on successful
	// authentication. Authenticated never resets except by Reset.
	Authenticated bool    `json:"authenticated"`
	CPF           string  `json:"cpf,omitempty"`
	CustomerName  string  `json:"customer_name,omitempty"`
	CreditLimit   float64 `json:"credit_limit,omitempty"`
	Score         int     `json:"score,omitempty"`

	AuthenticationAttempts int `json:"authentication_attempts"`

	// PendingRedirect is transient and single-turn: cleared before every
	// handler invocation, set at most once per invocation, and never carried
	// into the next user-initiated turn.
	PendingRedirect AgentType `json:"pending_redirect,omitempty"`

	// Partial authentication capture; cleared on success or failure.
	TempCPF       string `json:"temp_cpf,omitempty"`
	TempBirthdate string `json:"temp_birthdate,omitempty"`

	ShouldEnd bool `json:"should_end"`

	// InterviewData is a reserved slot for partially collected interview
	// answers. The interview handler keeps slots implicitly in conversation
	// history, so this stays nil unless a future handler fills it.
	InterviewData map[string]any `json:"interview_data,omitempty"`
}

var ErrInvalidConversation = errors.New("conversation state is invalid")

// New returns the empty session template.
func New() *Conversation {
	return &Conversation{
		CurrentAgent: AgentTriage,
	}
}

// Reset restores the empty template in place, discarding all session data.
func (c *Conversation) Reset() {
	*c = *New()
}

func (c *Conversation) AppendUser(content string) {
	c.append(RoleUser, content)
}

func (c *Conversation) AppendAssistant(content string) {
	c.append(RoleAssistant, content)
}

func (c *Conversation) AppendSystem(content string) {
	c.append(RoleSystem, content)
}

func (c *Conversation) append(role Role, content string) {
	c.Messages = append(c.Messages, Message{Role: role, Content: content})
}

// LastUserMessage returns the most recent user utterance, or "".
func (c *Conversation) LastUserMessage() string {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return c.Messages[i].Content
		}
	}
	return ""
}

// SetAuthenticated populates the customer snapshot all-or-nothing, resets the
// attempt counter, and clears the temporary capture fields.
func (c *Conversation) SetAuthenticated(cpf, name string, creditLimit float64, score int) {
	c.Authenticated = true
	c.CPF = cpf
	c.CustomerName = name
	c.CreditLimit = creditLimit
	c.Score = score
	c.AuthenticationAttempts = 0
	c.ClearTempCredentials()
}

// RecordFailedAuthentication increments the attempt counter, clears the
// temporary capture fields, and reports whether the cap was reached. Reaching
// the cap forces ShouldEnd.
func (c *Conversation) RecordFailedAuthentication() (attempts int, exhausted bool) {
	c.AuthenticationAttempts++
	c.ClearTempCredentials()
	if c.AuthenticationAttempts >= MaxAuthenticationAttempts {
		c.ShouldEnd = true
		return c.AuthenticationAttempts, true
	}
	return c.AuthenticationAttempts, false
}

func (c *Conversation) ClearTempCredentials() {
	c.TempCPF = ""
	c.TempBirthdate = ""
}

// Validate checks the cross-field invariants the orchestrator relies on.
func (c *Conversation) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil conversation", ErrInvalidConversation)
	}
	switch c.CurrentAgent {
	case AgentTriage, AgentCredit, AgentInterview, AgentExchange:
	default:
		return fmt.Errorf("%w: unknown current_agent=%q", ErrInvalidConversation, c.CurrentAgent)
	}
	if c.AuthenticationAttempts < 0 || c.AuthenticationAttempts > MaxAuthenticationAttempts {
		return fmt.Errorf("%w: authentication_attempts=%d out of range", ErrInvalidConversation, c.AuthenticationAttempts)
	}
	if c.AuthenticationAttempts == MaxAuthenticationAttempts && !c.Authenticated && !c.ShouldEnd {
		return fmt.Errorf("%w: attempt cap reached without should_end", ErrInvalidConversation)
	}
	if c.Authenticated && strings.TrimSpace(c.CPF) == "" {
		return fmt.Errorf("%w: authenticated without cpf", ErrInvalidConversation)
	}
	return nil
}
