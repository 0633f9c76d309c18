package bank

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func seedStore(t *testing.T) *CSVStore {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "customers.csv",
		"cpf,name,birthdate,credit_limit,score\n"+
			"12345678901,João Silva,1990-05-15,5000.00,650\n"+
			"98765432100,Maria Souza,1985-11-02,12000.00,720\n")
	writeFile(t, dir, "score_tiers.csv",
		"score_min,score_max,limit_max\n"+
			"0,499,5000\n"+
			"500,699,10000\n"+
			"700,849,20000\n"+
			"850,1000,50000\n")

	store, err := NewCSVStore(CSVConfig{Dir: dir})
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}
	return store
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestAuthenticateRequiresExactMatch(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()

	c, err := store.Authenticate(ctx, "12345678901", "1990-05-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Name != "João Silva" || c.CreditLimit != 5000 || c.Score != 650 {
		t.Fatalf("unexpected customer: %+v", c)
	}

	// Valid CPF paired with another customer's birthdate must fail.
	if _, err := store.Authenticate(ctx, "12345678901", "1985-11-02"); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestMissingCustomersFileIsFatal(t *testing.T) {
	t.Parallel()

	store, err := NewCSVStore(CSVConfig{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewCSVStore: %v", err)
	}

	if _, err := store.Customer(context.Background(), "12345678901"); !errors.Is(err, ErrDataNotFound) {
		t.Fatalf("expected ErrDataNotFound, got %v", err)
	}
}

func TestUpdateScoreRewritesOnlyTargetRow(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()

	if err := store.UpdateScore(ctx, "12345678901", 815); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := store.Customer(ctx, "12345678901")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Score != 815 {
		t.Fatalf("score not persisted: %d", c.Score)
	}

	other, err := store.Customer(ctx, "98765432100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.Score != 720 || other.CreditLimit != 12000 {
		t.Fatalf("unrelated row must survive the rewrite: %+v", other)
	}
}

func TestUpdateScoreUnknownCustomer(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	if err := store.UpdateScore(context.Background(), "00000000000", 500); !errors.Is(err, ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}

func TestTierForBands(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()

	cases := []struct {
		score int
		want  float64
	}{
		{0, 5000},
		{499, 5000},
		{500, 10000},
		{699, 10000},
		{700, 20000},
		{849, 20000},
		{850, 50000},
		{1000, 50000},
	}
	for _, tc := range cases {
		tier, err := store.TierFor(ctx, tc.score)
		if err != nil {
			t.Fatalf("TierFor(%d): %v", tc.score, err)
		}
		if tier.LimitMax != tc.want {
			t.Fatalf("TierFor(%d) = %v, want %v", tc.score, tier.LimitMax, tc.want)
		}
	}

	if _, err := store.TierFor(ctx, 1001); !errors.Is(err, ErrTierNotFound) {
		t.Fatalf("expected ErrTierNotFound, got %v", err)
	}
}

func TestIncreaseRequestLifecycle(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	// The request log does not exist yet; the first request creates it.
	requestedAt, err := store.CreateIncreaseRequest(ctx, "12345678901", 5000, 8000, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if requestedAt != now.Format(time.RFC3339) {
		t.Fatalf("unexpected timestamp key: %s", requestedAt)
	}

	if err := store.ApproveIncreaseRequest(ctx, "12345678901", requestedAt, 8000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := store.Customer(ctx, "12345678901")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.CreditLimit != 8000 {
		t.Fatalf("approval must carry the limit update, got %v", c.CreditLimit)
	}

	raw, err := os.ReadFile(filepath.Join(store.dir, "increase_requests.csv"))
	if err != nil {
		t.Fatalf("read request log: %v", err)
	}
	if !strings.Contains(string(raw), "approved") {
		t.Fatalf("request row must be approved:\n%s", raw)
	}
}

func TestRejectIncreaseRequestKeepsLimit(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	requestedAt, err := store.CreateIncreaseRequest(ctx, "12345678901", 5000, 15000, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.RejectIncreaseRequest(ctx, "12345678901", requestedAt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := store.Customer(ctx, "12345678901")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.CreditLimit != 5000 {
		t.Fatalf("rejection must not change the limit, got %v", c.CreditLimit)
	}

	raw, err := os.ReadFile(filepath.Join(store.dir, "increase_requests.csv"))
	if err != nil {
		t.Fatalf("read request log: %v", err)
	}
	if !strings.Contains(string(raw), "rejected") {
		t.Fatalf("request row must be rejected:\n%s", raw)
	}
}

func TestResolveUnknownRequest(t *testing.T) {
	t.Parallel()

	store := seedStore(t)
	ctx := context.Background()

	if _, err := store.CreateIncreaseRequest(ctx, "12345678901", 5000, 8000, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := store.RejectIncreaseRequest(ctx, "12345678901", "2020-01-01T00:00:00Z")
	if !errors.Is(err, ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
}
