// Package mcp parses MCP command flags, selects the group backend, and
// starts the server on stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/louisbranch/spliit-mcp/internal/groups"
	"github.com/louisbranch/spliit-mcp/internal/groups/spliit"
	"github.com/louisbranch/spliit-mcp/internal/groups/sqlite"
	"github.com/louisbranch/spliit-mcp/internal/platform/config"
	"github.com/louisbranch/spliit-mcp/internal/platform/otel"
	"github.com/louisbranch/spliit-mcp/internal/services/mcp/service"
)

// Backend names accepted by the -backend flag.
const (
	BackendSpliit = "spliit"
	BackendSQLite = "sqlite"
)

// Config holds MCP command configuration.
type Config struct {
	Backend          string `env:"SPLIIT_MCP_BACKEND"    envDefault:"spliit"`
	BaseURL          string `env:"SPLIIT_MCP_BASE_URL"`
	DBPath           string `env:"SPLIIT_MCP_DB_PATH"    envDefault:"spliit-mcp.db"`
	DefaultGroupID   string `env:"SPLIIT_MCP_GROUP_ID"`
	DefaultGroupCode string `env:"SPLIIT_MCP_GROUP_CODE"`
	HTTPAddr         string `env:"SPLIIT_MCP_HTTP_ADDR"  envDefault:"localhost:8081"`
	Transport        string `env:"SPLIIT_MCP_TRANSPORT"  envDefault:"stdio"`
}

// ParseConfig parses environment and flags into a Config. Flags override
// environment values.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "group backend: spliit or sqlite")
	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "Spliit base URL (spliit backend)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "database path (sqlite backend)")
	fs.StringVar(&cfg.DefaultGroupID, "group-id", cfg.DefaultGroupID, "default group identifier")
	fs.StringVar(&cfg.DefaultGroupCode, "group-code", cfg.DefaultGroupCode, "default group code or share URL")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP server and blocks until context cancellation.
func Run(ctx context.Context, cfg Config) error {
	shutdown, err := otel.Setup(ctx, "spliit-mcp")
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("otel shutdown: %v", err)
		}
	}()

	svc, err := newService(cfg)
	if err != nil {
		return err
	}
	if closer, ok := svc.(io.Closer); ok {
		defer closer.Close()
	}

	return service.Run(ctx, svc, service.Config{
		Transport: service.TransportKind(cfg.Transport),
		HTTPAddr:  cfg.HTTPAddr,
	})
}

// newService selects and constructs the group backend.
func newService(cfg Config) (groups.Service, error) {
	defaultGroup := groups.Selector{
		GroupID:   cfg.DefaultGroupID,
		GroupCode: cfg.DefaultGroupCode,
	}

	switch cfg.Backend {
	case BackendSpliit, "":
		return spliit.New(cfg.BaseURL, defaultGroup), nil
	case BackendSQLite:
		return sqlite.Open(cfg.DBPath, defaultGroup)
	default:
		return nil, fmt.Errorf("backend %q is not supported", cfg.Backend)
	}
}
