package bank

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	customersFile = "customers.csv"
	tiersFile     = "score_tiers.csv"
	requestsFile  = "increase_requests.csv"
)

var (
	customerHeader = []string{"cpf", "name", "birthdate", "credit_limit", "score"}
	tierHeader     = []string{"score_min", "score_max", "limit_max"}
	requestHeader  = []string{"cpf", "timestamp", "limit_before", "limit_requested", "status"}
)

type CSVConfig struct {
	Dir string `envconfig:"DIR" split_words:"true" default:"data"`
}

// CSVStore keeps the three tables as CSV files. Every write loads the full
// table, applies the single matching row change, and rewrites the whole file
// through a temp file and rename.
type CSVStore struct {
	dir string
}

var _ Store = (*CSVStore)(nil)

func NewCSVStore(cfg CSVConfig) (*CSVStore, error) {
	if cfg.Dir == "" {
		return nil, errors.New("data directory is required")
	}
	return &CSVStore{dir: cfg.Dir}, nil
}

func (s *CSVStore) Authenticate(ctx context.Context, cpf, birthdate string) (*Customer, error) {
	customers, err := s.loadCustomers()
	if err != nil {
		return nil, err
	}
	for i := range customers {
		if customers[i].CPF == cpf && customers[i].Birthdate == birthdate {
			c := customers[i]
			return &c, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (s *CSVStore) Customer(ctx context.Context, cpf string) (*Customer, error) {
	customers, err := s.loadCustomers()
	if err != nil {
		return nil, err
	}
	for i := range customers {
		if customers[i].CPF == cpf {
			c := customers[i]
			return &c, nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (s *CSVStore) UpdateScore(ctx context.Context, cpf string, score int) error {
	return s.updateCustomer(cpf, func(c *Customer) {
		c.Score = score
	})
}

func (s *CSVStore) TierFor(ctx context.Context, score int) (*ScoreTier, error) {
	rows, err := s.readAll(tiersFile)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		tier, err := parseTier(row)
		if err != nil {
			return nil, fmt.Errorf("parse score tier row: %w", err)
		}
		if tier.Contains(score) {
			return &tier, nil
		}
	}
	return nil, ErrTierNotFound
}

func (s *CSVStore) CreateIncreaseRequest(ctx context.Context, cpf string, limitBefore, limitRequested float64, now time.Time) (string, error) {
	requestedAt := now.Format(time.RFC3339)

	rows, err := s.readAll(requestsFile)
	if errors.Is(err, ErrDataNotFound) {
		// The request log starts empty on a fresh installation.
		rows = nil
	} else if err != nil {
		return "", err
	}

	rows = append(rows, []string{
		cpf,
		requestedAt,
		formatAmount(limitBefore),
		formatAmount(limitRequested),
		string(StatusPending),
	})
	if err := s.writeAll(requestsFile, requestHeader, rows); err != nil {
		return "", err
	}
	return requestedAt, nil
}

func (s *CSVStore) ApproveIncreaseRequest(ctx context.Context, cpf, requestedAt string, newLimit float64) error {
	if err := s.resolveRequest(cpf, requestedAt, StatusApproved); err != nil {
		return err
	}
	return s.updateCustomer(cpf, func(c *Customer) {
		c.CreditLimit = newLimit
	})
}

func (s *CSVStore) RejectIncreaseRequest(ctx context.Context, cpf, requestedAt string) error {
	return s.resolveRequest(cpf, requestedAt, StatusRejected)
}

func (s *CSVStore) resolveRequest(cpf, requestedAt string, status RequestStatus) error {
	rows, err := s.readAll(requestsFile)
	if err != nil {
		return err
	}
	found := false
	for _, row := range rows {
		if len(row) >= 5 && row[0] == cpf && row[1] == requestedAt {
			row[4] = string(status)
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: cpf=%s requested_at=%s", ErrRequestNotFound, cpf, requestedAt)
	}
	return s.writeAll(requestsFile, requestHeader, rows)
}

func (s *CSVStore) updateCustomer(cpf string, apply func(*Customer)) error {
	customers, err := s.loadCustomers()
	if err != nil {
		return err
	}
	found := false
	for i := range customers {
		if customers[i].CPF == cpf {
			apply(&customers[i])
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: cpf=%s", ErrCustomerNotFound, cpf)
	}

	rows := make([][]string, 0, len(customers))
	for _, c := range customers {
		rows = append(rows, []string{
			c.CPF,
			c.Name,
			c.Birthdate,
			formatAmount(c.CreditLimit),
			strconv.Itoa(c.Score),
		})
	}
	return s.writeAll(customersFile, customerHeader, rows)
}

func (s *CSVStore) loadCustomers() ([]Customer, error) {
	rows, err := s.readAll(customersFile)
	if err != nil {
		return nil, err
	}
	customers := make([]Customer, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		c, err := parseCustomer(row)
		if err != nil {
			return nil, fmt.Errorf("parse customer row: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, nil
}

// readAll returns the data rows of a table, header stripped. A missing file
// is ErrDataNotFound.
func (s *CSVStore) readAll(name string) ([][]string, error) {
	path := filepath.Join(s.dir, name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Error().Str("path", path).Msg("backing table file is missing")
			return nil, fmt.Errorf("%w: %s", ErrDataNotFound, name)
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

// writeAll rewrites the whole table atomically: temp file in the same
// directory, then rename over the original.
func (s *CSVStore) writeAll(name string, header []string, rows [][]string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("ensure data dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp table: %w", err)
	}
	tmpPath := tmp.Name()

	writer := csv.NewWriter(tmp)
	if err := writer.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s rows: %w", name, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flush %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp table: %w", err)
	}
	if err := os.Rename(tmpPath, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", name, err)
	}
	return nil
}

func parseCustomer(row []string) (Customer, error) {
	limit, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return Customer{}, fmt.Errorf("credit_limit %q: %w", row[3], err)
	}
	score, err := strconv.Atoi(row[4])
	if err != nil {
		return Customer{}, fmt.Errorf("score %q: %w", row[4], err)
	}
	return Customer{
		CPF:         row[0],
		Name:        row[1],
		Birthdate:   row[2],
		CreditLimit: limit,
		Score:       score,
	}, nil
}

func parseTier(row []string) (ScoreTier, error) {
	min, err := strconv.Atoi(row[0])
	if err != nil {
		return ScoreTier{}, fmt.Errorf("score_min %q: %w", row[0], err)
	}
	max, err := strconv.Atoi(row[1])
	if err != nil {
		return ScoreTier{}, fmt.Errorf("score_max %q: %w", row[1], err)
	}
	limit, err := strconv.ParseFloat(row[2], 64)
	if err != nil {
		return ScoreTier{}, fmt.Errorf("limit_max %q: %w", row[2], err)
	}
	return ScoreTier{ScoreMin: min, ScoreMax: max, LimitMax: limit}, nil
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
