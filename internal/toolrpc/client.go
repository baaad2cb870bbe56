package toolrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is the uniform contract for calling a tool backend. One instance
// per backend per task attempt.
type Client interface {
	// Call invokes a named method with JSON-marshalable parameters and
	// returns the raw JSON result. Errors are *Error values classified by
	// kind; transport failures map to KindUnavailable.
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)

	// Health reports whether the backend is reachable and healthy.
	Health(ctx context.Context) error

	// Tools lists the backend's advertised method names.
	Tools(ctx context.Context) ([]string, error)
}

// HTTPClient talks to a tool server over local HTTP+JSON.
type HTTPClient struct {
	tool    string
	baseURL string
	http    *http.Client
}

// NewHTTPClient creates a client for the tool server at baseURL. Call
// deadlines come from the caller's context; long-running commands are
// bounded server side, so the client itself imposes no cap.
func NewHTTPClient(tool, baseURL string) *HTTPClient {
	return &HTTPClient{
		tool:    tool,
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// Call implements Client.
func (c *HTTPClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, CallFailed(c.tool, method, fmt.Sprintf("failed to encode params: %v", err))
	}
	if params == nil {
		body = []byte("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tools/"+method, bytes.NewReader(body))
	if err != nil {
		return nil, CallFailed(c.tool, method, err.Error())
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Unavailable(c.tool, err.Error())
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, CallFailed(c.tool, method, fmt.Sprintf("failed to read response: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, NotFound(c.tool, method)
	case resp.StatusCode >= 400:
		return nil, CallFailed(c.tool, method, wireError(data, resp.StatusCode))
	}

	return json.RawMessage(data), nil
}

// Health implements Client.
func (c *HTTPClient) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return Unavailable(c.tool, err.Error())
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Unavailable(c.tool, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Unavailable(c.tool, fmt.Sprintf("health returned %d", resp.StatusCode))
	}
	return nil
}

// Tools implements Client.
func (c *HTTPClient) Tools(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tools", nil)
	if err != nil {
		return nil, Unavailable(c.tool, err.Error())
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Unavailable(c.tool, err.Error())
	}
	defer resp.Body.Close()

	var payload struct {
		Tools []string `json:"tools"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, CallFailed(c.tool, "tools", err.Error())
	}
	return payload.Tools, nil
}

// WaitHealthy polls the backend until it reports healthy or the context
// expires. Tool servers inside the container may come up after the runner.
func WaitHealthy(ctx context.Context, c Client, interval time.Duration) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := c.Health(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("tool backend never became healthy: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// wireError extracts {error} from a non-2xx response body.
func wireError(data []byte, status int) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return fmt.Sprintf("backend returned status %d", status)
}
