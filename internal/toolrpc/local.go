package toolrpc

import (
	"context"
	"encoding/json"
)

// LocalClient implements Client against a Server's handlers directly,
// without the HTTP transport. Used as the deterministic test double and
// for in-process tool servers.
type LocalClient struct {
	server *Server
}

// NewLocalClient wraps a server in an in-process client.
func NewLocalClient(server *Server) *LocalClient {
	return &LocalClient{server: server}
}

// Call implements Client.
func (c *LocalClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.server.mu.RLock()
	handler, ok := c.server.methods[method]
	c.server.mu.RUnlock()
	if !ok {
		return nil, NotFound(c.server.name, method)
	}

	body, err := json.Marshal(params)
	if err != nil {
		return nil, CallFailed(c.server.name, method, err.Error())
	}
	if params == nil {
		body = []byte("{}")
	}

	result, err := handler(ctx, body)
	if err != nil {
		if e, ok := err.(*Error); ok && e.Kind == KindBadParams {
			return nil, CallFailed(c.server.name, method, e.Message)
		}
		return nil, CallFailed(c.server.name, method, errMessage(err))
	}

	data, err := json.Marshal(result)
	if err != nil {
		return nil, CallFailed(c.server.name, method, err.Error())
	}
	return json.RawMessage(data), nil
}

// Health implements Client. A local server is always healthy.
func (c *LocalClient) Health(ctx context.Context) error { return nil }

// Tools implements Client.
func (c *LocalClient) Tools(ctx context.Context) ([]string, error) {
	return c.server.Methods(), nil
}
