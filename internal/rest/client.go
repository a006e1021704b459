// Package rest issues the companion HTTP calls the gateway session relies
// on, rate limited so bootstrap bursts never trip the platform's limits.
package rest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

const (
	defaultRequestTimeout = 10 * time.Second
	defaultRequestsPerSec = 5
	defaultBurst          = 10
)

// clientConfig contains runtime controls for timeouts, limits, and logging.
type clientConfig struct {
	requestTimeout time.Duration
	requestsPerSec float64
	burst          int
	logger         *slog.Logger
}

// ClientOption mutates REST client configuration.
type ClientOption func(*clientConfig)

// WithRequestTimeout configures the per-request deadline.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(cfg *clientConfig) {
		if timeout > 0 {
			cfg.requestTimeout = timeout
		}
	}
}

// WithRateLimit configures the sustained request rate and burst capacity.
func WithRateLimit(requestsPerSec float64, burst int) ClientOption {
	return func(cfg *clientConfig) {
		if requestsPerSec > 0 {
			cfg.requestsPerSec = requestsPerSec
		}
		if burst > 0 {
			cfg.burst = burst
		}
	}
}

// WithClientLogger configures structured logging for request outcomes.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(cfg *clientConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// Client performs authenticated calls against the platform HTTP API. It
// currently serves one purpose: the best-effort enrichment call issued in
// the background after session bootstrap.
type Client struct {
	cfg     clientConfig
	baseURL string
	token   string
	http    *fasthttp.Client
	limiter *rate.Limiter
}

// NewClient creates a REST client rooted at baseURL.
func NewClient(baseURL, token string, options ...ClientOption) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("new rest client: empty base url")
	}
	if token == "" {
		return nil, fmt.Errorf("new rest client: empty token")
	}

	cfg := clientConfig{
		requestTimeout: defaultRequestTimeout,
		requestsPerSec: defaultRequestsPerSec,
		burst:          defaultBurst,
		logger:         slog.Default(),
	}
	for _, option := range options {
		option(&cfg)
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &fasthttp.Client{
			Name:         "disgate",
			ReadTimeout:  cfg.requestTimeout,
			WriteTimeout: cfg.requestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.requestsPerSec), cfg.burst),
	}, nil
}

// Enrich performs the post-bootstrap settings sync. It is best effort: the
// caller downgrades failures to a warning notification.
func (c *Client) Enrich(ctx context.Context) error {
	if err := c.do(ctx, fasthttp.MethodGet, "/users/@me/settings"); err != nil {
		return fmt.Errorf("enrich session: %w", err)
	}

	return nil
}

// do executes one rate-limited call and validates the response class.
func (c *Client) do(ctx context.Context, method, path string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	request := fasthttp.AcquireRequest()
	response := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(request)
	defer fasthttp.ReleaseResponse(response)

	request.Header.SetMethod(method)
	request.SetRequestURI(c.baseURL + path)
	request.Header.Set(fasthttp.HeaderAuthorization, c.token)
	request.Header.Set(fasthttp.HeaderAccept, "application/json")

	if err := c.http.DoTimeout(request, response, c.cfg.requestTimeout); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	status := response.StatusCode()
	if status < fasthttp.StatusOK || status >= fasthttp.StatusMultipleChoices {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, status)
	}
	c.cfg.logger.Debug("rest call completed",
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
	)

	return nil
}
