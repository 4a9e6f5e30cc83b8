package mcp

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/matthewjberger/summoner/internal/bridge"
	"github.com/matthewjberger/summoner/internal/frontend"
	"github.com/matthewjberger/summoner/internal/logger"
	"github.com/matthewjberger/summoner/internal/metrics"
	"github.com/matthewjberger/summoner/internal/protocol"
	mcp_sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// generateRequestID creates a unique request identifier
func generateRequestID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Frontend is the slice of the dispatcher the HTTP surface needs: command
// submission and the polled event buffer.
type Frontend interface {
	SubmitCommand(cmd protocol.FrontendCommand) error
	EventsAfter(after int) ([]*frontend.BufferedEvent, int, error)
	DroppedEvents() int64
}

// ServerConfig carries tunables for the HTTP surface. A nil config uses
// the defaults.
type ServerConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server wraps the MCP server with the command bridge and frontend surface
type Server struct {
	bridge    *bridge.Bridge
	frontend  Frontend
	limiter   *RateLimiter
	mcpServer *mcp_sdk.Server // The underlying MCP server for handling requests
	registry  *Registry       // Tool registry for unified tool management
	httpSrv   *http.Server
}

// NewServer creates a new MCP server instance
func NewServer(b *bridge.Bridge, fe Frontend, cfg *ServerConfig) *Server {
	limiter := DefaultRateLimiter()
	if cfg != nil && cfg.RateLimitRPS > 0 && cfg.RateLimitBurst > 0 {
		limiter = NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	s := &Server{
		bridge:   b,
		frontend: fe,
		limiter:  limiter,
		registry: NewRegistry(),
	}

	// Register all tools with the registry
	s.registerAllTools(s.registry)

	return s
}

// GetRegistry returns the tool registry for external access
func (s *Server) GetRegistry() *Registry {
	return s.registry
}

// Close shuts down the HTTP listener
func (s *Server) Close() {
	if s.httpSrv != nil {
		_ = s.httpSrv.Close()
	}
}

// Serve starts the MCP HTTP server
func (s *Server) Serve(addr string) error {
	s.mcpServer = mcp_sdk.NewServer(&mcp_sdk.Implementation{
		Name:    "summoner",
		Version: "0.1.0",
	}, nil)

	// Register tools from registry
	s.registry.RegisterWithMCPServer(s.mcpServer)

	// Create HTTP handler with streamable transport
	// Enable EventStore for SSE stream resumption support
	mcpHandler := mcp_sdk.NewStreamableHTTPHandler(func(req *http.Request) *mcp_sdk.Server {
		return s.mcpServer
	}, &mcp_sdk.StreamableHTTPOptions{
		EventStore: mcp_sdk.NewMemoryEventStore(nil),
	})

	// Wrap with request ID and logging middleware
	loggingHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Generate or extract request ID
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}

		// Add request ID to response headers
		w.Header().Set("X-Request-ID", requestID)

		// Add to context for downstream handlers
		ctx := context.WithValue(r.Context(), logger.ContextKeyRequestID, requestID)
		r = r.WithContext(ctx)

		logger.Info("HTTP %s %s from %s [request_id=%s]", r.Method, r.URL.Path, r.RemoteAddr, requestID)
		mcpHandler.ServeHTTP(w, r)
	})

	// Wrap with rate limiting keyed by remote address
	rateLimitedHandler := RateLimitMiddleware(s.limiter)(loggingHandler)

	// Create main mux with health endpoints and MCP endpoints
	mainMux := http.NewServeMux()

	// Health endpoints
	mainMux.HandleFunc("/health", s.handleHealthCheck)
	mainMux.HandleFunc("/ready", s.handleReadinessCheck)

	// Metrics endpoint (Prometheus scraping)
	mainMux.Handle("/metrics", metrics.Handler())

	// Frontend polling surface
	mainMux.Handle("/frontend/events", metrics.Middleware(http.HandlerFunc(s.handleFrontendEvents)))
	mainMux.Handle("/frontend/command", metrics.Middleware(http.HandlerFunc(s.handleFrontendCommand)))

	// MCP endpoints, rate limited and wrapped with metrics middleware
	mainMux.Handle("/mcp", metrics.Middleware(rateLimitedHandler))
	mainMux.Handle("/mcp/", metrics.Middleware(rateLimitedHandler))

	logger.Info("Summoner MCP server listening on %s", addr)
	logger.Info("Health check: http://localhost%s/health", addr)
	logger.Info("Frontend events: http://localhost%s/frontend/events", addr)
	logger.Info("Metrics: http://localhost%s/metrics", addr)

	s.httpSrv = &http.Server{Addr: addr, Handler: mainMux}
	return s.httpSrv.ListenAndServe()
}

// handleHealthCheck is a basic liveness check
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleReadinessCheck verifies the server can serve requests
func (s *Server) handleReadinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.frontend == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"not ready","reason":"dispatcher unavailable"}`))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}

// handleFrontendEvents serves the poll endpoint for buffered backend events.
// The frontend passes the last index it has seen; -1 (the default) returns
// everything still buffered.
func (s *Server) handleFrontendEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	after := -1
	if v := r.URL.Query().Get("after"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid 'after' parameter")
			return
		}
		after = parsed
	}

	events, nextIndex, err := s.frontend.EventsAfter(after)
	if err != nil {
		// The requested index was purged from the ring buffer. The client
		// should restart from scratch with after=-1.
		writeJSONError(w, http.StatusGone, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"events":     events,
		"next_index": nextIndex,
		"dropped":    s.frontend.DroppedEvents(),
	})
}

// handleFrontendCommand accepts a frontend command and queues it for the
// dispatcher. Commands are applied asynchronously on the next tick.
func (s *Server) handleFrontendCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var cmd protocol.FrontendCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid command body: %v", err))
		return
	}

	if err := s.frontend.SubmitCommand(cmd); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_, _ = w.Write([]byte(`{"status":"accepted"}`))
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
