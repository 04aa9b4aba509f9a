package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBytes caps how much of an agent reply is read.
const maxResponseBytes = 4 << 20

// HTTPClient posts {message, agent_id} as JSON and expects a Result envelope back.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
}

func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type httpRequest struct {
	Message string `json:"message"`
	AgentID string `json:"agent_id"`
}

func (c *HTTPClient) Send(ctx context.Context, prompt, agentID string) (Result, error) {
	body, err := json.Marshal(httpRequest{Message: prompt, AgentID: agentID})
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, fmt.Errorf("read response: %w", err)
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return Result{}, fmt.Errorf("agent endpoint status %d", resp.StatusCode)
		}
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	// Error statuses with a well-formed envelope are agent failures, not
	// transport ones; make sure they never read as success.
	if resp.StatusCode >= http.StatusBadRequest && res.Success {
		res.Success = false
		if res.Error == "" {
			res.Error = fmt.Sprintf("agent endpoint status %d", resp.StatusCode)
		}
	}
	return res, nil
}
