// Package directory talks to the third-party place directory used for
// enrichment. Lookups are two-step: resolve an address to a directory
// identifier, then fetch the details held under that identifier.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

// Details is the directory data merged into a catalog record
type Details struct {
	PlaceID     string            `json:"place_id"`
	Rating      *float64          `json:"rating"`
	RatingCount *int              `json:"rating_count"`
	Photos      []string          `json:"photos"`
	Phone       string            `json:"phone"`
	Website     string            `json:"website"`
	Hours       map[string]string `json:"hours"`
}

// Client resolves addresses to directory identifiers and fetches details.
// Both operations return ErrNoMatch when the directory has no entry, a
// *TransientError for retryable failures, and a plain error otherwise.
type Client interface {
	ResolveIdentifier(ctx context.Context, query string) (string, error)
	FetchDetails(ctx context.Context, placeID string) (*Details, error)
}

// Config holds HTTP client construction options
type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	RatePerSecond  float64
	RateBurst      int
}

// HTTPClient is the REST implementation of Client. Calls are rate limited
// client-side; per-call timeouts come from the underlying http.Client.
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// NewHTTPClient creates a new directory API client
func NewHTTPClient(cfg *Config, logger *slog.Logger) *HTTPClient {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	perSecond := cfg.RatePerSecond
	if perSecond <= 0 {
		perSecond = 5
	}

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
		logger:     logger,
	}
}

type matchResponse struct {
	PlaceID string `json:"place_id"`
}

// ResolveIdentifier resolves free-text name/address into a directory
// place identifier.
func (c *HTTPClient) ResolveIdentifier(ctx context.Context, query string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", NewTransientError(fmt.Errorf("rate limiter wait: %w", err))
	}

	params := url.Values{}
	params.Set("query", query)

	reqURL := c.baseURL + "/v1/places/match?" + params.Encode()

	var matched matchResponse
	if err := c.getJSON(ctx, reqURL, &matched); err != nil {
		return "", err
	}

	if matched.PlaceID == "" {
		return "", ErrNoMatch
	}

	c.logger.Debug("Directory identifier resolved",
		slog.String("query", query),
		slog.String("place_id", matched.PlaceID),
	)

	return matched.PlaceID, nil
}

// FetchDetails fetches the directory record for a place identifier
func (c *HTTPClient) FetchDetails(ctx context.Context, placeID string) (*Details, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, NewTransientError(fmt.Errorf("rate limiter wait: %w", err))
	}

	reqURL := c.baseURL + "/v1/places/" + url.PathEscape(placeID)

	var details Details
	if err := c.getJSON(ctx, reqURL, &details); err != nil {
		return nil, err
	}

	details.PlaceID = placeID

	return &details, nil
}

// getJSON performs a GET and decodes the body, mapping HTTP status codes
// onto the lookup error taxonomy.
func (c *HTTPClient) getJSON(ctx context.Context, reqURL string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewTransientError(fmt.Errorf("directory request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return ErrNoMatch
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewTransientError(fmt.Errorf("directory rate limit hit (status %d)", resp.StatusCode))
	case resp.StatusCode >= 500:
		return NewTransientError(fmt.Errorf("directory server error (status %d)", resp.StatusCode))
	default:
		return fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return NewTransientError(fmt.Errorf("decoding directory response: %w", err))
	}

	return nil
}
