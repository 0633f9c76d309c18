package bank

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

type PostgresConfig struct {
	DSN          string        `envconfig:"DSN" split_words:"true"`
	Timeout      time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"5s"`
	MaxOpenConns int           `envconfig:"MAX_OPEN_CONNS" split_words:"true" default:"4"`
}

// PostgresStore is the SQL-backed Store. The CSV store's full-table-rewrite
// contract becomes transactional read-modify-write here; callers observe the
// same consistency.
type PostgresStore struct {
	db *bun.DB
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(cfg.Timeout),
	))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping verifies the backing tables exist; a missing schema is the SQL
// equivalent of a missing CSV file.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if _, err := s.db.NewSelect().Model((*Customer)(nil)).Count(ctx); err != nil {
		return fmt.Errorf("%w: customers table unavailable: %v", ErrDataNotFound, err)
	}
	if _, err := s.db.NewSelect().Model((*ScoreTier)(nil)).Count(ctx); err != nil {
		return fmt.Errorf("%w: score_tiers table unavailable: %v", ErrDataNotFound, err)
	}
	return nil
}

func (s *PostgresStore) Authenticate(ctx context.Context, cpf, birthdate string) (*Customer, error) {
	c := new(Customer)
	err := s.db.NewSelect().Model(c).
		Where("cpf = ?", cpf).
		Where("birthdate = ?", birthdate).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("authenticate customer: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) Customer(ctx context.Context, cpf string) (*Customer, error) {
	c := new(Customer)
	err := s.db.NewSelect().Model(c).Where("cpf = ?", cpf).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load customer: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateScore(ctx context.Context, cpf string, score int) error {
	res, err := s.db.NewUpdate().Model((*Customer)(nil)).
		Set("score = ?", score).
		Where("cpf = ?", cpf).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update score: %w", err)
	}
	return requireRow(res, cpf)
}

func (s *PostgresStore) TierFor(ctx context.Context, score int) (*ScoreTier, error) {
	tier := new(ScoreTier)
	err := s.db.NewSelect().Model(tier).
		Where("score_min <= ?", score).
		Where("score_max >= ?", score).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTierNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load score tier: %w", err)
	}
	return tier, nil
}

func (s *PostgresStore) CreateIncreaseRequest(ctx context.Context, cpf string, limitBefore, limitRequested float64, now time.Time) (string, error) {
	req := &IncreaseRequest{
		CPF:            cpf,
		RequestedAt:    now.Format(time.RFC3339),
		LimitBefore:    limitBefore,
		LimitRequested: limitRequested,
		Status:         StatusPending,
	}
	if _, err := s.db.NewInsert().Model(req).Exec(ctx); err != nil {
		return "", fmt.Errorf("create increase request: %w", err)
	}
	return req.RequestedAt, nil
}

func (s *PostgresStore) ApproveIncreaseRequest(ctx context.Context, cpf, requestedAt string, newLimit float64) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().Model((*IncreaseRequest)(nil)).
			Set("status = ?", StatusApproved).
			Where("cpf = ?", cpf).
			Where("requested_at = ?", requestedAt).
			Where("status = ?", StatusPending).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("approve increase request: %w", err)
		}
		if err := requireRow(res, cpf); err != nil {
			return fmt.Errorf("%w: no pending request", ErrRequestNotFound)
		}

		res, err = tx.NewUpdate().Model((*Customer)(nil)).
			Set("credit_limit = ?", newLimit).
			Where("cpf = ?", cpf).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update credit limit: %w", err)
		}
		return requireRow(res, cpf)
	})
}

func (s *PostgresStore) RejectIncreaseRequest(ctx context.Context, cpf, requestedAt string) error {
	res, err := s.db.NewUpdate().Model((*IncreaseRequest)(nil)).
		Set("status = ?", StatusRejected).
		Where("cpf = ?", cpf).
		Where("requested_at = ?", requestedAt).
		Where("status = ?", StatusPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("reject increase request: %w", err)
	}
	if err := requireRow(res, cpf); err != nil {
		return fmt.Errorf("%w: no pending request", ErrRequestNotFound)
	}
	return nil
}

func requireRow(res sql.Result, cpf string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: cpf=%s", ErrCustomerNotFound, cpf)
	}
	return nil
}
