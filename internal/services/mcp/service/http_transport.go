package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	// defaultChannelBufferSize is the buffer size for request, response, and
	// notification channels. It allows some buffering before blocking.
	defaultChannelBufferSize = 10

	// defaultRequestTimeout is the maximum time to wait for a JSON-RPC
	// response before failing the HTTP request.
	defaultRequestTimeout = 30 * time.Second

	// defaultShutdownTimeout is the maximum time to wait for graceful HTTP
	// server shutdown. It exceeds defaultRequestTimeout so in-flight requests
	// can finish.
	defaultShutdownTimeout = 35 * time.Second

	// sessionCleanupInterval is how often the cleanup goroutine removes
	// expired sessions.
	sessionCleanupInterval = 5 * time.Minute

	// sessionExpirationTime is how long a session can be inactive before
	// being cleaned up.
	sessionExpirationTime = 1 * time.Hour

	// sseHeartbeatInterval is how often lastUsed is refreshed for active SSE
	// connections.
	sseHeartbeatInterval = 30 * time.Second

	// defaultSessionReadyTimeout bounds how long request handling waits for a
	// session connection to become ready.
	defaultSessionReadyTimeout = 100 * time.Millisecond
)

// HTTPTransport implements mcp.Transport for HTTP-based MCP communication.
// It serves JSON-RPC messages over POST requests and Server-Sent Events for
// notifications. Session lifecycle is explicit: sessions are created on
// initialize, addressed by the Mcp-Session-Id header, closed on DELETE, and
// expired after inactivity, so long-lived clients cannot leak resources.
type HTTPTransport struct {
	addr         string
	server       *mcp.Server
	store        *sessionStore
	httpServer   *http.Server
	serverCtx    context.Context
	serverCancel context.CancelFunc

	serverReadyTimeout time.Duration
	randomReader       func([]byte) (int, error)
	readyAfter         func(time.Duration) <-chan time.Time
}

// NewHTTPTransport creates a new HTTP transport that will serve MCP over
// HTTP. It defaults to localhost-only binding so the default footprint stays
// local unless an explicit address broadens it.
func NewHTTPTransport(addr string) *HTTPTransport {
	if addr == "" {
		addr = "localhost:8081"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &HTTPTransport{
		addr:               addr,
		store:              newSessionStore(),
		serverCtx:          ctx,
		serverCancel:       cancel,
		serverReadyTimeout: defaultSessionReadyTimeout,
		randomReader:       rand.Read,
		readyAfter:         time.After,
	}
}

// NewHTTPTransportWithServer creates a new HTTP transport with a reference to
// the MCP server. Callers use this to inject a preconfigured MCP runtime,
// which keeps tests and process lifecycle simpler.
func NewHTTPTransportWithServer(addr string, server *mcp.Server) *HTTPTransport {
	transport := NewHTTPTransport(addr)
	transport.server = server
	return transport
}

// Start starts the HTTP server and blocks until the context is cancelled or
// the server fails. One server instance multiplexes POST messages, SSE
// streams, and session deletion while sharing session lifecycle enforcement.
func (t *HTTPTransport) Start(ctx context.Context) error {
	t.serverCtx, t.serverCancel = context.WithCancel(ctx)

	go t.cleanupSessions(ctx)

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			t.handleSSE(w, r)
		case http.MethodPost:
			t.handleMessages(w, r)
		case http.MethodDelete:
			t.handleDelete(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/mcp/health", t.handleHealth)

	t.httpServer = &http.Server{
		Addr:    t.addr,
		Handler: mux,
	}

	log.Printf("Starting MCP HTTP server on %s", t.addr)

	errChan := make(chan error, 1)
	go func() {
		if err := t.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("Shutting down MCP HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := t.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		// Cancel server context to stop all server.Connect goroutines.
		if t.serverCancel != nil {
			t.serverCancel()
		}
		return nil
	case err := <-errChan:
		return fmt.Errorf("HTTP server error: %w", err)
	}
}

// handleHealth reports transport liveness without touching any session.
func (t *HTTPTransport) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
