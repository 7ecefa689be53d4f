package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPConfig configures a JSON-over-HTTP gateway client
type HTTPConfig struct {
	Name           string
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	MaxConnections int
}

// Validate checks required fields
func (c *HTTPConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("gateway name is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("gateway base URL is required")
	}
	return nil
}

// HTTPGateway is a generic JSON-over-HTTP provider client. Providers exposing
// a POST /payouts + GET /payouts/{ref} surface plug in through configuration
// alone; anything more exotic gets its own PayoutGateway implementation.
type HTTPGateway struct {
	config     *HTTPConfig
	httpClient *http.Client
}

// NewHTTPGateway creates a gateway client for the given provider endpoint
func NewHTTPGateway(config *HTTPConfig) (*HTTPGateway, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid gateway config: %w", err)
	}

	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxConnections == 0 {
		config.MaxConnections = 50
	}

	transport := &http.Transport{
		MaxIdleConns:        config.MaxConnections,
		MaxIdleConnsPerHost: config.MaxConnections,
		IdleConnTimeout:     90 * time.Second,
	}

	return &HTTPGateway{
		config: config,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
		},
	}, nil
}

func (g *HTTPGateway) Name() string {
	return g.config.Name
}

// InitiatePayout posts the payout instruction to the provider. The context
// deadline bounds the whole call; the client timeout is only a backstop.
func (g *HTTPGateway) InitiatePayout(ctx context.Context, req *PayoutRequest) (*PayoutResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payout request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/payouts", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build payout request: %w", err)
	}
	g.setHeaders(httpReq)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payout call to %s failed: %w", g.config.Name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read payout response: %w", err)
	}

	var payoutResp PayoutResponse
	if err := json.Unmarshal(respBody, &payoutResp); err != nil {
		return nil, fmt.Errorf("failed to decode payout response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 400 {
		payoutResp.Success = false
		if payoutResp.Message == "" {
			payoutResp.Message = fmt.Sprintf("provider returned HTTP %d", resp.StatusCode)
		}
	}

	return &payoutResp, nil
}

// CheckStatus queries the provider for the state of a previous payout
func (g *HTTPGateway) CheckStatus(ctx context.Context, externalReference string) (PayoutStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.BaseURL+"/payouts/"+externalReference, nil)
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to build status request: %w", err)
	}
	g.setHeaders(httpReq)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return StatusUnknown, fmt.Errorf("status call to %s failed: %w", g.config.Name, err)
	}
	defer resp.Body.Close()

	var statusResp struct {
		Status PayoutStatus `json:"status"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&statusResp); err != nil {
		return StatusUnknown, fmt.Errorf("failed to decode status response: %w", err)
	}

	if statusResp.Status == "" {
		return StatusUnknown, nil
	}
	return statusResp.Status, nil
}

// HealthCheck probes the provider's health endpoint
func (g *HTTPGateway) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, g.config.BaseURL+"/health", nil)
	if err != nil {
		return err
	}
	g.setHeaders(httpReq)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check for %s failed: %w", g.config.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("health check for %s returned HTTP %d", g.config.Name, resp.StatusCode)
	}
	return nil
}

func (g *HTTPGateway) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.config.APIKey)
	}
}
