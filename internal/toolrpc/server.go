package toolrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Handler executes one tool method. Params is the raw JSON request body;
// the returned value is marshaled as the JSON response. Returning an
// *Error with KindBadParams yields a 400, any other error a 500.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Server is a process-local tool server speaking the HTTP+JSON call
// contract. Each server is scoped to one workspace and advertises a fixed
// method set.
type Server struct {
	name string
	log  *slog.Logger

	mu      sync.RWMutex
	methods map[string]Handler

	httpSrv  *http.Server
	listener net.Listener
}

// NewServer creates a tool server listening on localhost. Port 0 picks a
// dynamic port.
func NewServer(name string, port int, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}

	s := &Server{
		name:     name,
		log:      logger.With("component", "toolserver", "tool", name),
		methods:  make(map[string]Handler),
		listener: listener,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleTools)
	mux.HandleFunc("POST /tools/", s.handleCall)

	s.httpSrv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// Name returns the tool name.
func (s *Server) Name() string { return s.name }

// Port returns the bound TCP port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// URL returns the base URL clients should dial.
func (s *Server) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.Port())
}

// Register adds a method handler. Registration after Serve is allowed but
// unusual; servers normally register their full method set up front.
func (s *Server) Register(method string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.methods[method] = h
}

// Methods returns the advertised method names, sorted.
func (s *Server) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Serve blocks serving requests until Stop is called.
func (s *Server) Serve() error {
	s.log.Info("tool server listening", "port", s.Port(), "methods", len(s.methods))
	if err := s.httpSrv.Serve(s.listener); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"server": s.name,
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"tools": s.Methods(),
	})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	method := strings.TrimPrefix(r.URL.Path, "/tools/")
	if method == "" || strings.Contains(method, "/") {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "tool not found"})
		return
	}

	s.mu.RLock()
	handler, ok := s.methods[method]
	s.mu.RUnlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": fmt.Sprintf("tool not found: %s", method),
		})
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "failed to read request body"})
		return
	}
	if len(body) == 0 {
		body = []byte("{}")
	}

	started := time.Now()
	result, err := handler(r.Context(), body)
	if err != nil {
		status := http.StatusInternalServerError
		if KindOf(err) == KindBadParams {
			status = http.StatusBadRequest
		}
		s.log.Warn("tool call failed", "method", method, "error", err, "duration", time.Since(started))
		writeJSON(w, status, map[string]any{"error": errMessage(err)})
		return
	}

	s.log.Debug("tool call completed", "method", method, "duration", time.Since(started))
	writeJSON(w, http.StatusOK, result)
}

// errMessage strips the toolrpc prefix for wire errors; clients re-wrap
// with their own tool/method context.
func errMessage(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Message
	}
	return err.Error()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
