// Package upstream provides the HTTP client for the per-account upstream
// service, with optional Redis-backed payload caching.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/account-batch-fetcher/pkg/cache"
	"github.com/Sternrassler/account-batch-fetcher/pkg/logging"
	"github.com/Sternrassler/account-batch-fetcher/pkg/metrics"
)

// Prometheus metrics for upstream requests.
var (
	upstreamRequestsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "fanout_upstream_requests_total",
		Help: "Total upstream account requests by status",
	}, []string{"status"})

	upstreamRequestDuration = promauto.With(metrics.Registry).NewHistogram(prometheus.HistogramOpts{
		Name:    "fanout_upstream_request_duration_seconds",
		Help:    "Upstream account request duration in seconds",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	upstreamErrorsTotal = promauto.With(metrics.Registry).NewCounterVec(prometheus.CounterOpts{
		Name: "fanout_upstream_errors_total",
		Help: "Total upstream account fetch failures by class",
	}, []string{"class"})
)

// accountPath is the path prefix of the per-account endpoint.
const accountPath = "/api/"

// Client fetches account payloads from the upstream service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cache      *cache.Manager
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the upstream service, e.g. "http://host.docker.internal:4000"
	BaseURL string

	// UserAgent header sent with every request
	UserAgent string

	// Timeout per request; a timeout is reported as a network failure
	Timeout time.Duration

	// Cache is optional; nil disables payload caching
	Cache *cache.Manager
}

// DefaultConfig returns a default configuration for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "account-batch-fetcher/0.1.0",
		Timeout:   10 * time.Second,
	}
}

// New creates a new upstream client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("base url must include a host (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be > 0 (got %s)", cfg.Timeout)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cache:   cfg.Cache,
		config:  cfg,
		logger:  logging.NewLogger("upstream-client"),
	}, nil
}

// AccountURL returns the upstream URL for accountID.
func (c *Client) AccountURL(accountID string) string {
	return c.baseURL + accountPath + url.PathEscape(accountID)
}

// FetchAccount performs GET <BaseURL>/api/<accountID> and returns the JSON payload.
// Every failure is returned as a *FetchError; nothing is retried.
func (c *Client) FetchAccount(ctx context.Context, accountID string) (json.RawMessage, error) {
	startTime := time.Now()
	defer func() {
		upstreamRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	cacheKey := cache.Key{AccountID: accountID}
	cachedEntry := c.lookupCache(ctx, cacheKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.AccountURL(accountID), nil)
	if err != nil {
		return nil, c.fail(&FetchError{
			AccountID:  accountID,
			ErrorClass: ErrorClassNetwork,
			Message:    "create request",
			Err:        err,
		})
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	if cache.ShouldMakeConditionalRequest(cachedEntry) {
		cache.AddConditionalHeaders(req, cachedEntry)
		c.logger.Debug().
			Str("account_id", accountID).
			Str("etag", cachedEntry.ETag).
			Msg("Making conditional request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, c.fail(&FetchError{
			AccountID:  accountID,
			ErrorClass: c.classifyError(nil, err),
			Message:    "request failed",
			Err:        err,
		})
	}
	defer resp.Body.Close()

	upstreamRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && cachedEntry != nil {
		return c.serveNotModified(ctx, cacheKey, cachedEntry, resp), nil
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, c.fail(&FetchError{
			AccountID:  accountID,
			StatusCode: resp.StatusCode,
			ErrorClass: c.classifyError(resp, nil),
			Message:    resp.Status,
		})
	}

	entry, err := cache.ResponseToEntry(resp)
	if err != nil {
		return nil, c.fail(&FetchError{
			AccountID:  accountID,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassNetwork,
			Message:    "read response body",
			Err:        err,
		})
	}

	body := entry.Data
	if !json.Valid(body) {
		return nil, c.fail(&FetchError{
			AccountID:  accountID,
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassDecode,
			Message:    "response body is not JSON",
			Err:        ErrInvalidPayload,
		})
	}

	c.logger.Debug().
		Str("account_id", accountID).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(startTime)).
		Msg("Fetched account")

	if resp.StatusCode == http.StatusOK {
		c.storeCache(ctx, cacheKey, entry)
	}

	return json.RawMessage(body), nil
}

// lookupCache returns the cached entry for key, or nil when caching is
// disabled, the key is missing, or Redis fails.
func (c *Client) lookupCache(ctx context.Context, key cache.Key) *cache.Entry {
	if c.cache == nil {
		return nil
	}

	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("account_id", key.AccountID).Msg("Cache get error")
		}
		return nil
	}
	return entry
}

func (c *Client) storeCache(ctx context.Context, key cache.Key, entry *cache.Entry) {
	if c.cache == nil || entry.TTL() <= 0 {
		return
	}

	if err := c.cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("account_id", key.AccountID).Msg("Failed to cache payload")
		return
	}

	c.logger.Debug().
		Str("account_id", key.AccountID).
		Dur("ttl", entry.TTL()).
		Msg("Cached payload")
}

// serveNotModified returns the cached payload and refreshes its TTL from the new Expires header.
func (c *Client) serveNotModified(ctx context.Context, key cache.Key, entry *cache.Entry, resp *http.Response) json.RawMessage {
	c.logger.Debug().Str("account_id", key.AccountID).Msg("304 Not Modified - using cache")
	cache.NotModifiedResponses.Inc()

	if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
		if newExpires, err := http.ParseTime(expiresStr); err == nil {
			if err := c.cache.UpdateTTL(ctx, key, newExpires); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
			}
		}
	}

	return entry.Data
}

// fail records a fetch failure and returns it unchanged.
// The batch fetcher logs the drop at warn level, so this stays at debug.
func (c *Client) fail(fetchErr *FetchError) error {
	upstreamErrorsTotal.WithLabelValues(string(fetchErr.ErrorClass)).Inc()

	c.logger.Debug().
		Str("account_id", fetchErr.AccountID).
		Int("status_code", fetchErr.StatusCode).
		Str("error_class", string(fetchErr.ErrorClass)).
		Err(fetchErr).
		Msg("Upstream request error")

	return fetchErr
}

// classifyError categorizes a failure for observability.
func (c *Client) classifyError(resp *http.Response, err error) ErrorClass {
	if err != nil {
		return ErrorClassNetwork
	}

	switch {
	case resp.StatusCode >= 500:
		return ErrorClassServer
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return ErrorClassClient
	default:
		return ""
	}
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
