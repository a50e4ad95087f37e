// Package fxrates provides a client for the Frankfurter exchange-rate API
package fxrates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/praveensg/folioagent/internal/common"
	"github.com/praveensg/folioagent/internal/interfaces"
	"github.com/praveensg/folioagent/internal/models"
)

const (
	DefaultBaseURL   = "https://api.frankfurter.dev/v1"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// Client implements the RateClient interface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new exchange-rate client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a rate provider error
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("fxrates API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// latestResponse is the provider's /latest payload.
type latestResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// get performs a rate-limited GET request
func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := fmt.Sprintf("%s%s?%s", c.baseURL, path, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("url", c.baseURL+path).Msg("FX rates request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// latest fetches rates for one base currency against the other two.
func (c *Client) latest(ctx context.Context, base string, symbols ...string) (map[string]float64, error) {
	params := url.Values{}
	params.Set("base", base)
	if len(symbols) > 0 {
		s := symbols[0]
		for _, sym := range symbols[1:] {
			s += "," + sym
		}
		params.Set("symbols", s)
	}

	var result latestResponse
	if err := c.get(ctx, "/latest", params, &result); err != nil {
		return nil, err
	}
	return result.Rates, nil
}

// GetRates fetches all six directed SGD/USD/INR rates. One request per base
// currency; inverse rates come from the provider rather than division so the
// table is exactly what the provider published.
func (c *Client) GetRates(ctx context.Context) (*models.ExchangeRates, error) {
	sgd, err := c.latest(ctx, models.CurrencySGD, models.CurrencyUSD, models.CurrencyINR)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch SGD rates: %w", err)
	}
	usd, err := c.latest(ctx, models.CurrencyUSD, models.CurrencySGD, models.CurrencyINR)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch USD rates: %w", err)
	}
	inr, err := c.latest(ctx, models.CurrencyINR, models.CurrencySGD, models.CurrencyUSD)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch INR rates: %w", err)
	}

	rates := &models.ExchangeRates{
		SGDToUSD:  sgd[models.CurrencyUSD],
		SGDToINR:  sgd[models.CurrencyINR],
		USDToSGD:  usd[models.CurrencySGD],
		USDToINR:  usd[models.CurrencyINR],
		INRToSGD:  inr[models.CurrencySGD],
		INRToUSD:  inr[models.CurrencyUSD],
		FetchedAt: time.Now(),
	}

	if rates.SGDToUSD <= 0 || rates.USDToSGD <= 0 {
		return nil, fmt.Errorf("rate provider returned incomplete table")
	}

	return rates, nil
}

// Ensure Client implements RateClient
var _ interfaces.RateClient = (*Client)(nil)
