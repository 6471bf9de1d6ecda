// Package openaq is a read-only client for the OpenAQ v3 measurement API.
// Every request goes through the retry state machine; transient failures
// (transport errors, per-request timeouts, 429 and 5xx) are retried with
// exponential backoff, everything else fails immediately.
package openaq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/segmentio/encoding/json"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/anicoll/airquality-integration/internal/pkg/metrics"
	"github.com/anicoll/airquality-integration/pkg/retry"
)

const maxErrorBody = 512

type Config struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration // per attempt.
	Retry     retry.Policy
	PageLimit int
	MaxPages  int
}

type client struct {
	httpClient *http.Client
	baseURL    *url.URL
	apiKey     string
	timeout    time.Duration
	policy     retry.Policy
	pageLimit  int
	maxPages   int
	logger     *zap.Logger
	metrics    *metrics.Recorder
	sleep      func(ctx context.Context, d time.Duration) error
}

type Option func(*client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *client) {
		c.logger = logger
	}
}

func WithMetrics(rec *metrics.Recorder) Option {
	return func(c *client) {
		c.metrics = rec
	}
}

// WithTransport replaces the otelhttp wrapped default transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *client) {
		c.httpClient.Transport = rt
	}
}

// WithSleep replaces the backoff sleep, mostly for tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *client) {
		c.sleep = sleep
	}
}

func New(cfg Config, opts ...Option) (*client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openaq: api key is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("openaq: invalid base url %q", cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 1000
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 50
	}

	c := &client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		baseURL:   base,
		apiKey:    cfg.APIKey,
		timeout:   cfg.Timeout,
		policy:    cfg.Retry,
		pageLimit: cfg.PageLimit,
		maxPages:  cfg.MaxPages,
		logger:    zap.L(),
		metrics:   metrics.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *client) PageLimit() int {
	return c.pageLimit
}

func (c *client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()
	return u.String()
}

func (c *client) withAPIKey(req *http.Request) {
	req.Header.Set("X-API-Key", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

// getJSON performs one logical GET and decodes a 2xx body into out.
func (c *client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := c.endpoint(path, query)
	lastStatus := 0

	opts := []retry.Option{
		retry.WithObserver(func(tr retry.Transition) {
			switch tr.State {
			case retry.Backoff:
				c.metrics.Retry()
				c.logger.Warn("transient failure, backing off",
					zap.String("path", path),
					zap.Int("attempt", tr.Attempt),
					zap.Duration("wait", tr.Wait),
					zap.Error(tr.Err))
			case retry.PermanentFailure:
				c.logger.Debug("permanent failure", zap.String("path", path), zap.Int("attempt", tr.Attempt), zap.Error(tr.Err))
			}
		}),
	}
	if c.sleep != nil {
		opts = append(opts, retry.WithSleep(c.sleep))
	}

	attempts, err := retry.New(c.policy, opts...).Do(ctx, func(ctx context.Context, attempt int) error {
		status, err := c.attempt(ctx, target, out)
		lastStatus = status
		return err
	})
	if err != nil {
		return &FetchError{Path: path, Status: lastStatus, Attempts: attempts, Err: err}
	}
	return nil
}

// attempt runs a single HTTP round trip bounded by the per-request timeout.
func (c *client) attempt(ctx context.Context, target string, out any) (int, error) {
	actx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}
	c.withAPIKey(req)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.Request(0, time.Since(start))
		if ctx.Err() != nil {
			// caller gave up, not the server.
			return 0, ctx.Err()
		}
		return 0, retry.Transient(err)
	}
	defer resp.Body.Close()

	c.logger.Debug("response received", zap.String("url", req.URL.Path), zap.Int("status", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.Request(resp.StatusCode, time.Since(start))
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		if isRetryableStatus(resp.StatusCode) {
			return resp.StatusCode, retry.Transient(statusErr)
		}
		return resp.StatusCode, statusErr
	}

	data, err := io.ReadAll(resp.Body)
	c.metrics.Request(resp.StatusCode, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return resp.StatusCode, ctx.Err()
		}
		return resp.StatusCode, retry.Transient(fmt.Errorf("read body: %w", err))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode body: %w", err)
	}
	return resp.StatusCode, nil
}

// Locations searches locations by name.
func (c *client) Locations(ctx context.Context, name string) ([]Location, error) {
	res := locationsResponse{}
	query := url.Values{"name": {name}, "limit": {"100"}}
	if err := c.getJSON(ctx, "/locations", query, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}

// LocationSensors lists the sensors of a location.
func (c *client) LocationSensors(ctx context.Context, locationID int64) ([]SensorInfo, error) {
	res := sensorsResponse{}
	if err := c.getJSON(ctx, fmt.Sprintf("/locations/%d/sensors", locationID), url.Values{}, &res); err != nil {
		return nil, err
	}
	return res.Results, nil
}
