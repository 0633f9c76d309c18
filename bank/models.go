package bank

import "github.com/uptrace/bun"

// Customer is one client record, keyed by CPF.
type Customer struct {
	bun.BaseModel `bun:"table:customers"`

	CPF         string  `bun:"cpf,pk" json:"cpf"`
	Name        string  `bun:"name" json:"name"`
	Birthdate   string  `bun:"birthdate" json:"birthdate"` // YYYY-MM-DD
	CreditLimit float64 `bun:"credit_limit" json:"credit_limit"`
	Score       int     `bun:"score" json:"score"`
}

// ScoreTier maps an inclusive score band to the highest credit limit a
// customer in that band may be approved for. Bands are non-overlapping and
// cover the full 0..1000 range.
type ScoreTier struct {
	bun.BaseModel `bun:"table:score_tiers"`

	ScoreMin int     `bun:"score_min" json:"score_min"`
	ScoreMax int     `bun:"score_max" json:"score_max"`
	LimitMax float64 `bun:"limit_max" json:"limit_max"`
}

// Contains reports whether score falls inside the tier's inclusive band.
func (t ScoreTier) Contains(score int) bool {
	return score >= t.ScoreMin && score <= t.ScoreMax
}

type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// IncreaseRequest is one credit-increase request. Created pending; moves
// exactly once to approved or rejected. Approval always carries the customer
// limit update with it.
type IncreaseRequest struct {
	bun.BaseModel `bun:"table:increase_requests"`

	CPF            string        `bun:"cpf" json:"cpf"`
	RequestedAt    string        `bun:"requested_at,pk" json:"timestamp"` // ISO-8601
	LimitBefore    float64       `bun:"limit_before" json:"limit_before"`
	LimitRequested float64       `bun:"limit_requested" json:"limit_requested"`
	Status         RequestStatus `bun:"status" json:"status"`
}
