// Package source fetches raw records from the upstream statistics provider.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/httpclient"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Record is one untyped object as returned by the source.
type Record = map[string]any

// Client performs a single bounded fetch. Any error is a fault of that call;
// retrying is the caller's concern.
type Client interface {
	Fetch(ctx context.Context, endpoint string, params map[string]string) ([]Record, error)
}

// CFBDConfig configures the CollegeFootballData client
type CFBDConfig struct {
	BaseURL string
	APIKey  string
}

// CFBDClient talks to the CollegeFootballData REST API.
type CFBDClient struct {
	cfg    CFBDConfig
	http   *httpclient.Client
	logger ectologger.Logger
}

// NewCFBDClient creates a new CollegeFootballData client
func NewCFBDClient(cfg CFBDConfig, httpClient *httpclient.Client, logger ectologger.Logger) *CFBDClient {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CFBDClient{
		cfg:    cfg,
		http:   httpClient,
		logger: logger,
	}
}

// Fetch GETs endpoint with params and decodes the JSON array
func (c *CFBDClient) Fetch(ctx context.Context, endpoint string, params map[string]string) ([]Record, error) {
	ctx, span := tracing.StartSpan(ctx, "source.CFBDClient.Fetch")
	defer span.End()

	u, err := url.Parse(c.cfg.BaseURL + "/" + strings.TrimLeft(endpoint, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
	}
	query := u.Query()
	for k, v := range params {
		query.Set(k, v)
	}
	u.RawQuery = query.Encode()

	headers := map[string]string{"Accept": "application/json"}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	resp, err := c.http.Get(ctx, u.String(), headers)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%s returned status %d", endpoint, resp.StatusCode)
	}

	var records []Record
	if err := json.Unmarshal(resp.Body, &records); err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("endpoint", endpoint).Error("Failed to decode source response")
		return nil, fmt.Errorf("failed to decode %s response: %w", endpoint, err)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"endpoint": endpoint,
		"params":   params,
		"records":  len(records),
	}).Debug("Fetched records from source")
	return records, nil
}

// StaticClient serves canned records per endpoint. It backs dry runs and tests.
type StaticClient struct {
	Records map[string][]Record
	Errors  map[string]error
}

// Fetch returns the canned error or records for endpoint and params, falling back to the bare endpoint
func (s *StaticClient) Fetch(_ context.Context, endpoint string, params map[string]string) ([]Record, error) {
	key := StaticKey(endpoint, params)
	if err, ok := s.Errors[key]; ok {
		return nil, err
	}
	if err, ok := s.Errors[endpoint]; ok {
		return nil, err
	}
	if records, ok := s.Records[key]; ok {
		return records, nil
	}
	return s.Records[endpoint], nil
}

// StaticKey renders endpoint and params as "endpoint?k=v&..." with sorted keys.
func StaticKey(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}
	return endpoint + "?" + values.Encode()
}
