package collab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// ErrNotConfigured is returned when the records API has no base URL
var ErrNotConfigured = errors.New("records api not configured")

// Config holds records API client settings
type Config struct {
	BaseURL   string
	ProjectID string
	PublicKey string
	Timeout   time.Duration

	// RetryAttempts bounds attempts per call (default: 3)
	RetryAttempts int
	// RetryDelay is the initial backoff (default: 250ms)
	RetryDelay time.Duration

	// HTTPClient overrides the default client, mainly for tests
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// StatusError is returned for non-2xx answers from the records API
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("records api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("records api: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the remote records API. Every call goes through a circuit
// breaker wrapping a retrier.
type Client struct {
	http      *http.Client
	baseURL   string
	projectID string
	publicKey string
	breaker   circuitbreaker.CircuitBreaker[[]byte]
	retrier   retry.Retry[[]byte]
	logger    *slog.Logger
}

// NewClient creates a records API client
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 250 * time.Millisecond
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		http:      cfg.HTTPClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		projectID: cfg.ProjectID,
		publicKey: cfg.PublicKey,
		logger:    logger,
	}

	c.breaker = circuitbreaker.New[[]byte](circuitbreaker.Config{
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			logger.Warn("records api circuit breaker state change",
				"from", from.String(),
				"to", to.String())
		},
	})

	c.retrier = retry.New[[]byte](retry.Config{
		MaxAttempts:   cfg.RetryAttempts,
		InitialDelay:  cfg.RetryDelay,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   isRetryable,
	})

	return c, nil
}

// BaseURL returns the configured API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ping checks that the records API answers a minimal fetch
func (c *Client) Ping(ctx context.Context) error {
	params := FetchParams{
		Fields:     Fields("Id"),
		PagingInfo: &PagingInfo{Limit: 1},
	}
	var resp fetchResponse[json.RawMessage]
	return c.fetch(ctx, TableSteps, params, &resp)
}

func (c *Client) fetch(ctx context.Context, table string, params FetchParams, out any) error {
	body, err := c.call(ctx, http.MethodPost, "/api/records/"+table+"/fetch", params)
	if err != nil {
		return err
	}
	return decode(body, out)
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	return c.breaker.Execute(ctx, func(ctx context.Context) ([]byte, error) {
		return c.retrier.Do(ctx, func(ctx context.Context) ([]byte, error) {
			return c.do(ctx, method, path, data)
		})
	})
}

func (c *Client) do(ctx context.Context, method, path string, data []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.projectID != "" {
		req.Header.Set("X-Project-ID", c.projectID)
	}
	if c.publicKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.publicKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	c.logger.Debug("records api call",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(truncate(body, 512)))}
	}
	return body, nil
}

// isRetryable retries transport failures and 429/5xx answers
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	return true
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
