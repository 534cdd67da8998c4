// Package price fetches security and currency prices from Alpha Vantage,
// caching responses so repeated runs stay under the API's rate limits.
package price

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"time"

	"github.com/Veraticus/the-ledger-must-balance/internal/common"
	"github.com/Veraticus/the-ledger-must-balance/internal/storage"
)

// EnvAPIKey is consulted when no API key is configured.
const EnvAPIKey = "ALPHAVANTAGE_API_KEY"

// DefaultBaseURL is the Alpha Vantage query endpoint.
const DefaultBaseURL = "https://www.alphavantage.co/query"

// Cache stores raw API responses. *storage.PriceCache implements it.
type Cache interface {
	Get(ctx context.Context, function, ticker string) ([]byte, error)
	Put(ctx context.Context, function, ticker string, payload []byte, ttl time.Duration) error
}

var _ Cache = (*storage.PriceCache)(nil)

// Client queries Alpha Vantage through a response cache.
type Client struct {
	cache      Cache
	httpClient *http.Client
	apiKey     string
	baseURL    string
	retry      common.RetryOptions
	ttl        time.Duration
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithCache sets the response cache. Without one every query hits the API.
func WithCache(cache Cache) ClientOption {
	return func(c *Client) { c.cache = cache }
}

// WithTTL sets how long cached responses are used.
func WithTTL(ttl time.Duration) ClientOption {
	return func(c *Client) { c.ttl = ttl }
}

// WithRetry sets the retry policy for API requests.
func WithRetry(opts common.RetryOptions) ClientOption {
	return func(c *Client) { c.retry = opts }
}

// NewClient creates a client. An empty apiKey falls back to the
// ALPHAVANTAGE_API_KEY environment variable.
func NewClient(apiKey string, opts ...ClientOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvAPIKey)
	}
	if apiKey == "" {
		return nil, common.NewUserError(
			"An Alpha Vantage API key is required; set price.api_key or "+EnvAPIKey,
			common.ErrMissingAPIKey)
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		ttl:        storage.DefaultTTL,
		retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     time.Minute,
			Multiplier:   2,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

var invalidKeyChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// cacheKey makes a value safe to use as a cache key.
func cacheKey(s string) string {
	return invalidKeyChars.ReplaceAllString(s, "_")
}

// Query returns the response for function and ticker, from the cache when
// a fresh entry exists. params are the ticker-specific query parameters.
func (c *Client) Query(ctx context.Context, function, ticker string, params url.Values) ([]byte, error) {
	fn, key := cacheKey(function), cacheKey(ticker)

	if c.cache != nil {
		payload, err := c.cache.Get(ctx, fn, key)
		if err == nil {
			slog.Debug("Price cache hit", "function", function, "ticker", ticker)
			return payload, nil
		}
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
	}

	var payload []byte
	err := common.WithRetry(ctx, func() error {
		var fetchErr error
		payload, fetchErr = c.fetch(ctx, function, params)
		return fetchErr
	}, c.retry)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", function, ticker, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, fn, key, payload, c.ttl); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func (c *Client) fetch(ctx context.Context, function string, params url.Values) ([]byte, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to parse URL: %w", err)}
	}

	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	q.Set("apikey", c.apiKey)
	q.Set("function", function)
	q.Set("outputsize", "full")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	slog.Debug("Requesting price data", "function", function)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to fetch data: %w", err), Retryable: true}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &common.RetryableError{Err: fmt.Errorf("failed to read response: %w", err), Retryable: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: HTTP %d", common.ErrRateLimit, resp.StatusCode)
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &common.RetryableError{
			Err:       fmt.Errorf("%w: HTTP %d - %s", common.ErrPriceAPIFailed, resp.StatusCode, body),
			Retryable: true,
		}
	case resp.StatusCode != http.StatusOK:
		return nil, &common.RetryableError{
			Err: fmt.Errorf("%w: HTTP %d - %s", common.ErrPriceAPIFailed, resp.StatusCode, body),
		}
	}

	if err := checkPayload(body); err != nil {
		return nil, err
	}
	return body, nil
}

// checkPayload detects the error documents Alpha Vantage returns with a
// 200 status. Throttling notices are retried, anything else is not.
func checkPayload(body []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil {
		return &common.RetryableError{Err: fmt.Errorf("%w: invalid JSON: %w", common.ErrPriceAPIFailed, err)}
	}

	message := func(key string) string {
		var s string
		_ = json.Unmarshal(doc[key], &s)
		return s
	}

	if _, ok := doc["Error Message"]; ok {
		return &common.RetryableError{Err: fmt.Errorf("%w: %s", common.ErrPriceAPIFailed, message("Error Message"))}
	}
	for _, key := range []string{"Note", "Information"} {
		if _, ok := doc[key]; ok {
			return fmt.Errorf("%w: %s", common.ErrRateLimit, message(key))
		}
	}
	return nil
}
