// Package fetcher downloads result pages and reduces them to plain text.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hyperjump/refine/internal/config"
	"github.com/hyperjump/refine/internal/extract"
	"github.com/hyperjump/refine/internal/models"
	"github.com/hyperjump/refine/pkg/utils"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Fetch errors.
var (
	ErrNotText    = errors.New("content is not text")
	ErrDisallowed = errors.New("disallowed by robots.txt")
)

// Fetcher retrieves pages over HTTP and extracts their visible text.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	maxBodyBytes int64
	limiter      *rate.Limiter
	robots       bool
	cache        *pageCache
	logger       *zap.Logger

	mu          sync.Mutex
	robotsCache map[string]*robotstxt.Group
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithLogger sets a logger for fetch diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(f *Fetcher) { f.client = hc }
}

// NewFetcher creates a fetcher from cfg.
func NewFetcher(cfg *config.FetchConfig, opts ...Option) *Fetcher {
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	f := &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		limiter:      rate.NewLimiter(limit, 1),
		robots:       cfg.RespectRobots,
		logger:       zap.NewNop(),
		robotsCache:  make(map[string]*robotstxt.Group),
	}
	if f.maxBodyBytes <= 0 {
		f.maxBodyBytes = 2 << 20
	}
	if cfg.CacheSize > 0 {
		f.cache = newPageCache(cfg.CacheSize)
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch downloads rawURL. HTML is reduced to its visible text, text/plain is returned as is,
// and any other content type yields ErrNotText. Successful fetches are cached by URL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*models.Page, error) {
	if page, ok := f.cache.get(rawURL); ok {
		f.logger.Debug("page cache hit", zap.String("url", rawURL))
		return page, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("unsupported URL %q", rawURL)
	}
	if f.robots && !f.allowed(ctx, u) {
		return nil, ErrDisallowed
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	body := io.LimitReader(resp.Body, f.maxBodyBytes)
	page := &models.Page{URL: rawURL, ContentType: mediaType}

	switch {
	case mediaType == "" || mediaType == "text/html" || mediaType == "application/xhtml+xml":
		parsed, err := extract.ParseHTML(body)
		if err != nil {
			return nil, fmt.Errorf("parsing error: %w", err)
		}
		page.Title = parsed.Title
		page.Text = parsed.Text
	case mediaType == "text/plain":
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("failed to read body: %w", err)
		}
		page.Text = utils.CollapseSpace(strings.ToValidUTF8(string(data), " "))
	default:
		return nil, fmt.Errorf("%w: %s", ErrNotText, mediaType)
	}

	f.logger.Debug("page fetched",
		zap.String("url", rawURL),
		zap.String("content_type", mediaType),
		zap.Int("text_len", len(page.Text)))
	f.cache.put(rawURL, page)
	return page, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.1")
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	return resp, nil
}

// allowed reports whether robots.txt of u's host permits the path. Unreachable or missing
// robots.txt allows everything.
func (f *Fetcher) allowed(ctx context.Context, u *url.URL) bool {
	host := u.Scheme + "://" + u.Host
	f.mu.Lock()
	group, ok := f.robotsCache[host]
	f.mu.Unlock()

	if !ok {
		group = f.loadRobots(ctx, host)
		f.mu.Lock()
		f.robotsCache[host] = group
		f.mu.Unlock()
	}
	if group == nil {
		return true
	}
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return group.Test(path)
}

func (f *Fetcher) loadRobots(ctx context.Context, host string) *robotstxt.Group {
	resp, err := f.get(ctx, host+"/robots.txt")
	if err != nil {
		f.logger.Debug("robots.txt unavailable", zap.String("host", host), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		f.logger.Debug("robots.txt unparsable", zap.String("host", host), zap.Error(err))
		return nil
	}
	return data.FindGroup(f.userAgent)
}
