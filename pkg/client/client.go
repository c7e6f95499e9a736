// Package client provides the core OFS HTTP client with rate limiting,
// caching, retries, and error handling.
//
// OFS (Oracle Field Service) exposes its REST API under /rest/ofscCore/v1/
// with HTTP basic authentication (clientID@instance / secret) and offset/limit
// paginated collection endpoints.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/btoron/ofs-go/pkg/cache"
	"github.com/btoron/ofs-go/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for OFS client operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ofs_requests_total",
		Help: "Total OFS requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ofs_request_duration_seconds",
		Help:    "OFS request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ofs_errors_total",
		Help: "Total OFS errors by class",
	}, []string{"class"})
)

// ErrorClass represents a classification of HTTP errors.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassRateLimit represents 429 rate limit errors.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"
)

// Client is the main OFS client.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	gate       *ratelimit.Gate
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the OFS instance, e.g. "https://acme.fs.ocs.oraclecloud.com"
	BaseURL string

	// Instance is the OFS instance name used in the basic-auth user.
	Instance string

	// ClientID and ClientSecret are the application credentials.
	// The basic-auth user is "ClientID@Instance".
	ClientID     string
	ClientSecret string

	// Redis enables the response cache and the shared rate-limit gate.
	// Optional; without it every request goes to the network.
	Redis *redis.Client

	// CacheTTL is the lifetime of cached GET responses.
	CacheTTL time.Duration

	// MaxRetries is the number of attempts per request (including the first).
	MaxRetries int

	// RequestTimeout bounds a single HTTP request.
	RequestTimeout time.Duration

	// UserAgent identifies this client to OFS.
	UserAgent string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL, instance, clientID, clientSecret string) Config {
	return Config{
		BaseURL:        baseURL,
		Instance:       instance,
		ClientID:       clientID,
		ClientSecret:   clientSecret,
		CacheTTL:       60 * time.Second,
		MaxRetries:     3,
		RequestTimeout: 30 * time.Second,
		UserAgent:      "ofs-go/0.1.0",
	}
}

// New creates a new OFS client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Instance == "" {
		return nil, fmt.Errorf("instance is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client credentials are required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ofs-go/0.1.0"
	}

	logger := log.With().Str("component", "ofs-client").Logger()

	c := &Client{
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		config: cfg,
		logger: logger,
	}

	if cfg.Redis != nil {
		c.cache = cache.NewManager(cfg.Redis)
		c.gate = ratelimit.NewGate(cfg.Redis, logger)
	}

	return c, nil
}

// Do performs an HTTP request with rate limiting, caching, and retry logic.
// This is the core request method that orchestrates all client features.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	endpoint := req.URL.Path

	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}()

	// Step 1: check the shared rate-limit gate
	if c.gate != nil {
		allowed, err := c.gate.Allow(ctx)
		if err != nil {
			c.logger.Error().Err(err).Msg("Rate limit check failed")
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			c.logger.Warn().
				Str("endpoint", endpoint).
				Msg("Request blocked by rate-limit gate")
			requestsTotal.WithLabelValues(endpoint, "rate_limited").Inc()
			return nil, ErrRateLimited
		}
	}

	// Step 2: check cache (GET only)
	cacheKey := cache.Key{
		Endpoint:    endpoint,
		QueryParams: req.URL.Query(),
	}
	if c.cache != nil && req.Method == http.MethodGet {
		entry, err := c.cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", endpoint).Msg("Cache get error")
		}
		if entry != nil {
			c.logger.Debug().
				Str("endpoint", endpoint).
				Dur("ttl", entry.TTL()).
				Msg("Serving response from cache")
			requestsTotal.WithLabelValues(endpoint, "cache").Inc()
			return entryToResponse(entry), nil
		}
	}

	// Step 3: set authentication and standard headers
	req.SetBasicAuth(c.config.ClientID+"@"+c.config.Instance, c.config.ClientSecret)
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")

	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", req.Method).
		Msg("Executing OFS request")

	// Step 4: execute with retry logic
	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.config.MaxRetries, func() (ErrorClass, error) {
		var reqErr error
		resp, reqErr = c.httpClient.Do(req) //nolint:bodyclose // closed on retry or by caller

		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", endpoint).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(endpoint, "network_error").Inc()
			return ErrorClassNetwork, reqErr
		}

		if resp.StatusCode >= 400 {
			errClass := classifyStatus(resp.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()

			c.logger.Warn().
				Str("endpoint", endpoint).
				Int("status", resp.StatusCode).
				Str("error_class", string(errClass)).
				Msg("OFS request error")

			// Record the shared cooldown so sibling instances back off too.
			if errClass == ErrorClassRateLimit && c.gate != nil {
				cooldown := parseRetryAfter(resp.Header.Get("Retry-After"))
				if err := c.gate.Trip(ctx, cooldown); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to record cooldown")
				}
			}

			if shouldRetry(errClass) {
				apiErr := &APIError{
					StatusCode: resp.StatusCode,
					ErrorClass: errClass,
					Message:    resp.Status,
				}
				resp.Body.Close()
				return errClass, apiErr
			}

			// Don't retry client errors - let the caller handle the status.
			return "", nil
		}

		requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode)).Inc()
		return "", nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	// Step 5: cache successful GET responses
	if c.cache != nil && req.Method == http.MethodGet &&
		resp.StatusCode == http.StatusOK && c.config.CacheTTL > 0 {
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		if err := c.cache.Set(ctx, cacheKey, resp.StatusCode, body, c.config.CacheTTL); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache response")
		}
		resp.Body = io.NopCloser(bytes.NewReader(body))
	}

	return resp, nil
}

// Get performs a GET request against an OFS endpoint.
func (c *Client) Get(ctx context.Context, endpoint string, query url.Values) (*http.Response, error) {
	u := c.config.BaseURL + endpoint
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// Close releases the client's idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// classifyStatus categorizes an HTTP status for observability and handling.
func classifyStatus(status int) ErrorClass {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrorClassRateLimit
	case status >= 400 && status < 500:
		return ErrorClassClient
	case status >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// parseRetryAfter interprets a Retry-After header as seconds or an HTTP date.
// Zero is returned when the header is absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		return time.Until(at)
	}
	return 0
}

// entryToResponse converts a cache entry back to an HTTP response.
func entryToResponse(entry *cache.Entry) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: entry.StatusCode,
		Status:     http.StatusText(entry.StatusCode),
		Header:     header,
		Body:       io.NopCloser(bytes.NewReader(entry.Body)),
	}
}
