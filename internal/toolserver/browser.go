package toolserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/autocodit-io/runner/internal/toolrpc"
)

// Browser fronts the Playwright sidecar. The sidecar speaks the same
// HTTP+JSON contract, so the browser server discovers its methods at
// startup and forwards calls one-to-one.
type Browser struct {
	upstream toolrpc.Client
	log      *slog.Logger
}

// NewBrowser connects to the sidecar at upstreamURL, waits for it to come
// up, and registers its advertised methods on a local tool server. An
// unreachable sidecar is an error; the caller decides whether to run the
// task without a browser tool.
func NewBrowser(ctx context.Context, upstreamURL string, readyTimeout time.Duration, logger *slog.Logger) (*Browser, *toolrpc.Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Browser{
		upstream: toolrpc.NewHTTPClient("browser", upstreamURL),
		log:      logger.With("component", "browser"),
	}

	waitCtx, cancel := context.WithTimeout(ctx, readyTimeout)
	defer cancel()
	if err := toolrpc.WaitHealthy(waitCtx, b.upstream, 2*time.Second); err != nil {
		return nil, nil, err
	}

	methods, err := b.upstream.Tools(ctx)
	if err != nil {
		return nil, nil, err
	}

	srv, err := toolrpc.NewServer("browser", 0, logger)
	if err != nil {
		return nil, nil, err
	}
	for _, method := range methods {
		srv.Register(method, b.forward(method))
	}

	b.log.Info("browser sidecar connected", "url", upstreamURL, "methods", len(methods))
	return b, srv, nil
}

func (b *Browser) forward(method string) toolrpc.Handler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		result, err := b.upstream.Call(ctx, method, params)
		if err != nil {
			return nil, err
		}
		return result, nil
	}
}
