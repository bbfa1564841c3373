// Package service hosts the MCP server: tool and resource registration plus
// the stdio and session-managed HTTP transports.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/louisbranch/spliit-mcp/internal/groups"
)

const (
	// serverName identifies this MCP server to clients.
	serverName = "Spliit MCP"
	// serverVersion identifies the MCP server version.
	serverVersion = "0.1.0"
)

// TransportKind identifies the MCP transport implementation.
type TransportKind string

const (
	// TransportStdio uses standard input/output for MCP.
	TransportStdio TransportKind = "stdio"
	// TransportHTTP runs MCP over HTTP/SSE for remote clients.
	TransportHTTP TransportKind = "http"
)

// Config configures the MCP server.
type Config struct {
	Transport TransportKind
	HTTPAddr  string // HTTP server address (e.g., "localhost:8081"). Defaults to localhost:8081 for HTTP transport.
}

// Server hosts the MCP server over a group backend.
type Server struct {
	mcpServer *mcp.Server
	svc       groups.Service
}

// New creates a configured MCP server with every tool and resource bound to
// the given backend.
func New(svc groups.Service) (*Server, error) {
	if svc == nil {
		return nil, fmt.Errorf("group service is not configured")
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerTools(mcpServer, svc)
	registerResources(mcpServer, svc)

	return &Server{mcpServer: mcpServer, svc: svc}, nil
}

// Run is the service entrypoint for MCP and blocks until context
// cancellation. It is transport-agnostic so startup can choose stdio for
// local tools and HTTP for remote integrations.
func Run(ctx context.Context, svc groups.Service, cfg Config) error {
	server, err := New(svc)
	if err != nil {
		return err
	}

	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}

	switch cfg.Transport {
	case TransportStdio:
		return server.serveWithTransport(ctx, &mcp.StdioTransport{})
	case TransportHTTP:
		transport := NewHTTPTransportWithServer(cfg.HTTPAddr, server.mcpServer)
		return transport.Start(ctx)
	default:
		return fmt.Errorf("transport %q is not supported", cfg.Transport)
	}
}

// Serve starts the MCP server on stdio and blocks until it stops or the
// context ends.
func (s *Server) Serve(ctx context.Context) error {
	return s.serveWithTransport(ctx, &mcp.StdioTransport{})
}

// serveWithTransport starts the MCP server using the provided transport.
// Context cancellation is the normal shutdown path, not an error.
func (s *Server) serveWithTransport(ctx context.Context, transport mcp.Transport) error {
	if s == nil || s.mcpServer == nil {
		return fmt.Errorf("MCP server is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := s.mcpServer.Run(ctx, transport)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("serve MCP: %w", err)
	}
	return nil
}
