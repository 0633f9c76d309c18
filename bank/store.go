package bank

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrDataNotFound means a backing table is missing entirely. This is a
	// fatal configuration error, never a silent empty result.
	ErrDataNotFound = errors.New("backing data not found")
	// ErrCustomerNotFound means no record exists for the CPF.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrTierNotFound means no score tier band contains the score.
	ErrTierNotFound = errors.New("no score tier matches")
	// ErrRequestNotFound means no pending increase request matches.
	ErrRequestNotFound = errors.New("increase request not found")
)

// Store is the customer-record persistence contract shared by all handlers.
// Implementations apply every mutation as a read-modify-write over the full
// table so a single row change never observes a partially written file.
type Store interface {
	// Authenticate requires an exact CPF and birthdate match; no partial or
	// fuzzy matching.
	Authenticate(ctx context.Context, cpf, birthdate string) (*Customer, error)
	Customer(ctx context.Context, cpf string) (*Customer, error)
	UpdateScore(ctx context.Context, cpf string, score int) error

	// TierFor returns the single tier whose band contains score, or
	// ErrTierNotFound.
	TierFor(ctx context.Context, score int) (*ScoreTier, error)

	// CreateIncreaseRequest appends a pending request and returns its
	// ISO-8601 timestamp key.
	CreateIncreaseRequest(ctx context.Context, cpf string, limitBefore, limitRequested float64, now time.Time) (string, error)
	// ApproveIncreaseRequest marks the request approved and updates the
	// customer's credit limit to the requested amount; the two changes always
	// travel together.
	ApproveIncreaseRequest(ctx context.Context, cpf, requestedAt string, newLimit float64) error
	RejectIncreaseRequest(ctx context.Context, cpf, requestedAt string) error
}
