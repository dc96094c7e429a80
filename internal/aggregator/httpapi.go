package aggregator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"drift-health-alerts/internal/engine"
)

const (
	businessesPath = "/v1/businesses"
	snapshotPath   = "/v1/businesses/%s/windows"
)

// HTTPOptions parameterise the metrics API client.
type HTTPOptions struct {
	BaseURL   string
	APIToken  string
	Timeout   time.Duration
	UserAgent string
}

// HTTPClient talks to the metrics aggregation API.
type HTTPClient struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTPClient constructs a metrics API client.
func NewHTTPClient(opts HTTPOptions, logger zerolog.Logger) *HTTPClient {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPClient{
		opts:    opts,
		logger:  logger.With().Str("component", "aggregator_http").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
	}
}

// ListBusinesses fetches the monitored businesses with their connected
// source kinds.
func (c *HTTPClient) ListBusinesses(ctx context.Context) ([]Business, error) {
	if c.baseURL == "" {
		return nil, errors.New("aggregator base url not configured")
	}

	var payload struct {
		Businesses []Business `json:"businesses"`
	}
	if err := c.getJSON(ctx, c.baseURL+businessesPath, &payload); err != nil {
		return nil, err
	}
	return payload.Businesses, nil
}

// FetchSnapshot fetches the baseline/current window pair for one
// business. Field names match the wire contract; revenue and refund
// fields stay pointers so a missing field is never read as zero.
func (c *HTTPClient) FetchSnapshot(ctx context.Context, businessID string) (engine.Snapshot, error) {
	if c.baseURL == "" {
		return engine.Snapshot{}, errors.New("aggregator base url not configured")
	}
	if businessID == "" {
		return engine.Snapshot{}, errors.New("business id required")
	}

	endpoint := c.baseURL + fmt.Sprintf(snapshotPath, url.PathEscape(businessID))
	var snap engine.Snapshot
	if err := c.getJSON(ctx, endpoint, &snap); err != nil {
		return engine.Snapshot{}, err
	}
	return snap, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "driftwatch/1.0")
	}
	if c.opts.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.opts.APIToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode aggregator response: %w", err)
	}
	return nil
}

type errorResponse struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
	Message     string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Description != "" {
			return fmt.Errorf("aggregator api error (%d): %s", status, apiErr.Description)
		}
		if apiErr.Message != "" {
			return fmt.Errorf("aggregator api error (%d): %s", status, apiErr.Message)
		}
		if apiErr.ErrorType != "" {
			return fmt.Errorf("aggregator api error (%d): %s", status, apiErr.ErrorType)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("aggregator api error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("aggregator api error (%d)", status)
}

var _ Aggregator = (*HTTPClient)(nil)
