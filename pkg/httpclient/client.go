package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize bounds every response body (10MB)
	MaxResponseSize = 10 * 1024 * 1024
)

// Client wraps the HTTP client with logging, metrics and a response size limit
type Client struct {
	client          *http.Client
	logger          ectologger.Logger
	maxResponseSize int64
}

// Config configures the HTTP client
type Config struct {
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	MaxResponseSize int64
}

// DefaultConfig returns the default HTTP client settings
func DefaultConfig() Config {
	return Config{
		Timeout:         DefaultTimeout,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
		MaxResponseSize: MaxResponseSize,
	}
}

// NewClient creates a new HTTP client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	if cfg.MaxResponseSize <= 0 {
		cfg.MaxResponseSize = MaxResponseSize
	}
	return &Client{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				MaxIdleConns:    cfg.MaxIdleConns,
				IdleConnTimeout: cfg.IdleConnTimeout,
			},
			Timeout: cfg.Timeout,
		},
		logger:          logger,
		maxResponseSize: cfg.MaxResponseSize,
	}
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Duration    time.Duration
}

// Do executes req and reads the body, failing when it exceeds the size limit
func (c *Client) Do(ctx context.Context, req *http.Request) (*Response, error) {
	ctx, span := tracing.StartSpan(ctx, "httpclient.Client.Do")
	defer span.End()

	start := time.Now()
	resp, err := c.client.Do(req.WithContext(ctx))
	if err != nil {
		metrics.RecordHTTPRequest(req.Method, "error", time.Since(start).Seconds())
		c.logger.WithContext(ctx).WithError(err).Errorf("HTTP request failed: %s %s", req.Method, req.URL.Redacted())
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.ContentLength > c.maxResponseSize {
		return nil, fmt.Errorf("response too large: %d bytes (max %d)", resp.ContentLength, c.maxResponseSize)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, fmt.Errorf("response body too large: more than %d bytes", c.maxResponseSize)
	}

	duration := time.Since(start)
	metrics.RecordHTTPRequest(req.Method, strconv.Itoa(resp.StatusCode), duration.Seconds())
	c.logger.WithContext(ctx).Debugf("HTTP %s %s -> %d (%s)", req.Method, req.URL.Redacted(), resp.StatusCode, duration)

	return &Response{
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
		Duration:    duration,
	}, nil
}

// Get performs a GET request
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return c.Do(ctx, req)
}
