// Package provider queries a Custom Search JSON API endpoint for result pages.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hyperjump/refine/internal/config"
	"github.com/hyperjump/refine/internal/models"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Response is the subset of a Custom Search response that refine reads.
// The local search server emits the same shape.
type Response struct {
	Items []Item    `json:"items,omitempty"`
	Error *APIError `json:"error,omitempty"`
}

// Item is one search hit.
type Item struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// APIError is the error object returned by the API.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("custom search error %d: %s", e.Code, e.Message)
}

// PageSize is the number of results requested per query, the API maximum.
const PageSize = 10

// CustomSearch is a SearchProvider backed by the Custom Search JSON API.
type CustomSearch struct {
	endpoint string
	apiKey   string
	engineID string
	client   *http.Client
	limiter  *rate.Limiter
	logger   *zap.Logger
}

// Option configures a CustomSearch client.
type Option func(*CustomSearch)

// WithLogger sets a logger for request diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(c *CustomSearch) { c.logger = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *CustomSearch) { c.client = hc }
}

// NewCustomSearch creates a client from cfg. APIKey and EngineID are sent with every request.
func NewCustomSearch(cfg *config.SearchConfig, opts ...Option) *CustomSearch {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	c := &CustomSearch{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		engineID: cfg.EngineID,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(limit, 1),
		logger:   zap.NewNop(),
	}
	if c.endpoint == "" {
		c.endpoint = config.DefaultEndpoint
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns up to one page of results for query.
func (c *CustomSearch) Search(ctx context.Context, query string) ([]*models.Result, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	params := u.Query()
	params.Set("key", c.apiKey)
	params.Set("cx", c.engineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(PageSize))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("search response",
		zap.String("query", query),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	var decoded Response
	if err := json.Unmarshal(body, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if decoded.Error != nil {
		return nil, decoded.Error
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	results := make([]*models.Result, 0, len(decoded.Items))
	for _, item := range decoded.Items {
		results = append(results, &models.Result{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
		if len(results) == PageSize {
			break
		}
	}
	return results, nil
}
