package exchangerate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Failure taxonomy for an exhausted lookup. Callers map these to user-safe
// messages; the raw transport error never leaves this package.
var (
	ErrTimeout     = errors.New("rate service timed out")
	ErrConnection  = errors.New("rate service unreachable")
	ErrUnavailable = errors.New("rate service unavailable")
)

const (
	maxResponseSizeBytes = 1 << 20
	localCurrency        = "BRL"
)

type Config struct {
	BaseURL       string        `envconfig:"BASE_URL" split_words:"true" default:"https://api.exchangerate-api.com/v4"`
	Timeout       time.Duration `envconfig:"TIMEOUT" split_words:"true" default:"10s"`
	MaxAttempts   int           `envconfig:"MAX_ATTEMPTS" split_words:"true" default:"3"`
	RetryInterval time.Duration `envconfig:"RETRY_INTERVAL" split_words:"true" default:"1s"`
}

// Quote is one foreign-currency-to-BRL rate.
type Quote struct {
	Currency string
	Rate     float64
}

// Client fetches currency rates with a fixed retry policy: up to MaxAttempts
// fetches, fixed interval between them, no backoff or jitter.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	maxAttempts   int
	retryInterval time.Duration
	sleep         func(time.Duration)
}

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

func NewClient(cfg Config) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("exchange rate base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid exchange rate url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	interval := cfg.RetryInterval
	if interval < 0 {
		interval = 0
	}

	return &Client{
		baseURL:       baseURL,
		httpClient:    &http.Client{Timeout: timeout},
		maxAttempts:   maxAttempts,
		retryInterval: interval,
		sleep:         time.Sleep,
	}, nil
}

// Lookup fetches the BRL rate for the currency code (case-insensitive,
// empty defaults to USD). A first-attempt success performs exactly one
// request.
func (c *Client) Lookup(ctx context.Context, currency string) (Quote, error) {
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = "USD"
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		quote, err := c.fetch(ctx, code)
		if err == nil {
			return quote, nil
		}
		lastErr = err

		if attempt < c.maxAttempts {
			c.sleep(c.retryInterval)
		}
	}
	return Quote{}, lastErr
}

func (c *Client) fetch(ctx context.Context, code string) (Quote, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/latest/"+code, nil)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Quote{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Quote{}, fmt.Errorf("%w: http status=%d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSizeBytes))
	if err != nil {
		return Quote{}, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	var parsed ratesResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Quote{}, fmt.Errorf("%w: decode body: %v", ErrUnavailable, err)
	}

	rate, ok := parsed.Rates[localCurrency]
	if !ok {
		return Quote{}, fmt.Errorf("%w: response missing %s rate", ErrUnavailable, localCurrency)
	}

	return Quote{Currency: code, Rate: rate}, nil
}

func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrConnection, err)
}
