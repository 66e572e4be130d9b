// Package komari provides a client for the Komari monitoring RPC API.
package komari

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"komari-bridge/internal/config"
)

// rpcPath is the Komari theme RPC endpoint. Every method is invoked by name
// through a POST to this path.
const rpcPath = "/api/rpc2"

// Client is a client for the Komari RPC API.
type Client struct {
	endpoint   string             // Komari base URL
	timeout    time.Duration      // Request timeout
	retry      config.RetryConfig // Retry configuration
	httpClient *resty.Client      // HTTP client
	logger     zerolog.Logger     // Logger
}

// NewClient creates a new Komari RPC client.
func NewClient(cfg *config.KomariConfig, retryCfg *config.RetryConfig, logger zerolog.Logger) *Client {
	// Set default timeout if not specified
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	// Set default retry config if not specified
	retry := config.RetryConfig{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
	if retryCfg != nil {
		retry = *retryCfg
	}

	httpClient := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(retry.MaxRetries).
		SetRetryWaitTime(retry.BaseDelay).
		SetRetryMaxWaitTime(retry.BaseDelay * 8). // Max wait time for exponential backoff
		AddRetryCondition(retryCondition)

	return &Client{
		endpoint:   cfg.Endpoint,
		timeout:    timeout,
		retry:      retry,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "komari-client").Logger(),
	}
}

// retryCondition determines whether a request should be retried.
// Only retry on timeout, 5xx errors, or connection failures.
// Do not retry on 4xx errors.
func retryCondition(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp != nil && resp.StatusCode() >= 500 {
		return true
	}
	return false
}

// Call invokes a named RPC method and decodes its result into out. Responses
// carrying a non-empty error field fail even on HTTP 200. A nil out discards
// the result.
func (c *Client) Call(ctx context.Context, method string, params interface{}, out interface{}) error {
	c.logger.Debug().Str("method", method).Msg("calling Komari RPC")

	var result rpcResponse

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(rpcRequest{Method: method, Params: params}).
		SetResult(&result).
		Post(rpcPath)

	if err != nil {
		c.logger.Error().Err(err).Str("method", method).Msg("RPC call failed")
		return fmt.Errorf("komari call %s: %w", method, err)
	}

	if resp.StatusCode() != http.StatusOK {
		c.logger.Error().
			Int("status_code", resp.StatusCode()).
			Str("method", method).
			Str("body", string(resp.Body())).
			Msg("Komari returned non-200 status")
		return fmt.Errorf("komari call %s: status %d: %s", method, resp.StatusCode(), string(resp.Body()))
	}

	if result.Error != "" {
		c.logger.Error().Str("method", method).Str("api_error", result.Error).Msg("Komari returned error")
		return fmt.Errorf("komari call %s: %s", method, result.Error)
	}

	if out == nil || len(result.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result.Result, out); err != nil {
		return fmt.Errorf("komari call %s: decode result: %w", method, err)
	}
	return nil
}

// GetNodes retrieves the full node roster from the directory source.
func (c *Client) GetNodes(ctx context.Context) ([]Node, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, "common:getNodes", nil, &raw); err != nil {
		return nil, err
	}

	nodes, err := decodeNodes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode node roster: %w", err)
	}

	c.logger.Info().Int("count", len(nodes)).Msg("fetched node roster")
	return nodes, nil
}

// GetNodesLatestStatus retrieves the latest status snapshot for all nodes,
// keyed by node UUID.
func (c *Client) GetNodesLatestStatus(ctx context.Context) (map[string]Status, error) {
	var status map[string]Status
	if err := c.Call(ctx, "common:getNodesLatestStatus", nil, &status); err != nil {
		return nil, err
	}

	c.logger.Debug().Int("count", len(status)).Msg("fetched latest status snapshot")
	return status, nil
}

// GetRecords retrieves historical probe samples for a single node.
func (c *Client) GetRecords(ctx context.Context, uuid, recordType string, maxCount, hours int) (*RecordSet, error) {
	params := map[string]interface{}{
		"type":     recordType,
		"uuid":     uuid,
		"maxCount": maxCount,
		"hours":    hours,
	}

	var records RecordSet
	if err := c.Call(ctx, "common:getRecords", params, &records); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("uuid", uuid).
		Int("tasks", len(records.Tasks)).
		Int("records", len(records.Records)).
		Msg("fetched probe records")
	return &records, nil
}

// GetMe retrieves the identity of the authenticated viewer.
func (c *Client) GetMe(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.Call(ctx, "common:getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetPublicInfo retrieves public site information.
func (c *Client) GetPublicInfo(ctx context.Context) (*PublicInfo, error) {
	var info PublicInfo
	if err := c.Call(ctx, "common:getPublicInfo", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetVersion retrieves the upstream version.
func (c *Client) GetVersion(ctx context.Context) (*VersionInfo, error) {
	var v VersionInfo
	if err := c.Call(ctx, "common:getVersion", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
