package catalog

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

	"github.com/Sternrassler/petstore-browser/pkg/cache"
	"github.com/Sternrassler/petstore-browser/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// FindByStatusPath is the catalog endpoint used for listing pets.
const FindByStatusPath = "/pet/findByStatus"

// DefaultBaseURL is the public Petstore API.
const DefaultBaseURL = "https://petstore.swagger.io/v2"

// Prometheus metrics for catalog operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petstore_requests_total",
		Help: "Total catalog requests by HTTP status",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "petstore_request_duration_seconds",
		Help:    "Catalog request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petstore_errors_total",
		Help: "Total catalog fetch failures by kind",
	}, []string{"kind"})

	recordsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "petstore_records_dropped_total",
		Help: "Total catalog records discarded by validation",
	})

	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "petstore_retries_total",
		Help: "Total catalog retry attempts by error kind",
	}, []string{"kind"})
)

// Config holds the client configuration.
type Config struct {
	// BaseURL of the catalog API, without trailing endpoint path.
	BaseURL string

	// UserAgent header sent with every request.
	UserAgent string

	// Timeout bounds a whole Fetch, retries included.
	Timeout time.Duration

	// Retry policy for 5xx and network failures.
	Retry RetryConfig

	// Cache enables conditional revalidation. Optional.
	Cache *cache.Manager
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		UserAgent: "petstore-browser/0.1.0",
		Timeout:   8 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// Client fetches pets from the catalog API.
type Client struct {
	httpClient *http.Client
	endpoint   string
	config     Config
	logger     zerolog.Logger
}

// New creates a catalog client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("timeout must be positive (got %s)", cfg.Timeout)
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("retry max attempts must be >= 1 (got %d)", cfg.Retry.MaxAttempts)
	}

	return &Client{
		httpClient: &http.Client{},
		endpoint:   strings.TrimRight(cfg.BaseURL, "/") + FindByStatusPath,
		config:     cfg,
		logger:     logging.NewLogger("catalog-client"),
	}, nil
}

// SetHTTPClient replaces the underlying HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Fetch returns the validated pets for status. It never returns a raw transport
// error: every outcome is a Result.
func (c *Client) Fetch(ctx context.Context, status Status) Result {
	if !status.Valid() {
		return Failure(&Error{Kind: KindUnknown, Message: fmt.Sprintf("invalid status %q", status)})
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		requestDuration.Observe(time.Since(start).Seconds())
	}()

	var body []byte
	fetchErr := retryWithBackoff(ctx, c.config.Retry, c.logger, func() *Error {
		var err *Error
		body, err = c.fetchOnce(ctx, status)
		return err
	})

	if fetchErr != nil {
		errorsTotal.WithLabelValues(string(fetchErr.Kind)).Inc()
		c.logger.Warn().
			Err(fetchErr).
			Str("status", string(status)).
			Str("error_kind", string(fetchErr.Kind)).
			Dur("duration", time.Since(start)).
			Msg("Catalog fetch failed")
		return Failure(fetchErr)
	}

	pets, dropped := DecodePets(body)
	if dropped > 0 {
		recordsDropped.Add(float64(dropped))
		c.logger.Warn().
			Str("status", string(status)).
			Int("dropped", dropped).
			Msg("Discarded catalog records without a valid id")
	}

	c.logger.Info().
		Str("status", string(status)).
		Int("pets", len(pets)).
		Dur("duration", time.Since(start)).
		Msg("Catalog fetch complete")

	return Success(pets)
}

// fetchOnce performs a single request and returns the response body.
func (c *Client) fetchOnce(ctx context.Context, status Status) ([]byte, *Error) {
	query := url.Values{"status": {string(status)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: "create request", Err: err}
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.config.UserAgent)

	key := cache.Key{Endpoint: FindByStatusPath, Query: query}
	stored := c.lookup(ctx, key)
	stored.ApplyConditional(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		requestsTotal.WithLabelValues("network_error").Inc()
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotModified && stored != nil {
		cache.NotModified.Inc()
		c.logger.Debug().Str("status", string(status)).Msg("304 Not Modified - using stored body")
		return stored.Body, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, NewHTTPError(resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyError(err)
	}

	c.store(ctx, key, resp, body)
	return body, nil
}

func (c *Client) lookup(ctx context.Context, key cache.Key) *cache.Entry {
	if c.config.Cache == nil {
		return nil
	}

	entry, err := c.config.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.logger.Warn().Err(err).Str("key", key.String()).Msg("Cache get error")
		}
		return nil
	}
	return entry
}

func (c *Client) store(ctx context.Context, key cache.Key, resp *http.Response, body []byte) {
	if c.config.Cache == nil {
		return
	}

	entry := cache.NewEntry(resp, body)
	if entry == nil {
		return
	}
	if err := c.config.Cache.Set(ctx, key, entry); err != nil {
		c.logger.Warn().Err(err).Str("key", key.String()).Msg("Failed to cache response")
		return
	}
	c.logger.Debug().Str("key", key.String()).Str("etag", entry.ETag).Msg("Cached response")
}
