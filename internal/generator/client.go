// Package generator calls a remote activity generator service.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/viajejapon/planner/internal/itinerary"
	"github.com/viajejapon/planner/internal/regeneration"
	"github.com/viajejapon/planner/internal/resilience"
)

// UpstreamName identifies the generator in the resilience registry.
const UpstreamName = "activity-generator"

const generatePath = "/v1/activities:generate"

var (
	// ErrUnexpectedStatus is returned for non-200 generator responses.
	ErrUnexpectedStatus = errors.New("unexpected generator status")

	// ErrNoActivities is returned when the generator answers with an empty day.
	ErrNoActivities = errors.New("generator returned no activities")
)

// ClientConfig holds configuration for the generator client.
type ClientConfig struct {
	// BaseURL of the generator service (required).
	BaseURL string

	// APIKey is sent as a bearer token when set.
	APIKey string

	// HTTPClient defaults to a resilient client named UpstreamName.
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is a regeneration.Generator backed by the remote service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a generator client.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(UpstreamName)
		rc.Logger = cfg.Logger
		httpClient = resilience.NewClient(rc)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

type generateResponse struct {
	Activities []itinerary.Activity `json:"activities"`
}

// GenerateActivitiesForDay posts gc to the generator and returns its
// activities.
func (c *Client) GenerateActivitiesForDay(ctx context.Context, gc itinerary.GenerationContext) ([]itinerary.Activity, error) {
	body, err := json.Marshal(gc)
	if err != nil {
		return nil, fmt.Errorf("encoding generation context: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(snippet)).
			Str("city", gc.City).
			Msg("generator request failed")
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	if len(out.Activities) == 0 {
		return nil, ErrNoActivities
	}

	c.logger.Debug().
		Str("city", gc.City).
		Int("day", gc.DayNumber).
		Int("activities", len(out.Activities)).
		Msg("activities generated")

	return out.Activities, nil
}

var _ regeneration.Generator = (*Client)(nil)
