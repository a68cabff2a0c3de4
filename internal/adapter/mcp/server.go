// Package mcp exposes read-only trust data over the Model Context Protocol
// so AI agents can inspect registrations, escrows and reputation before
// transacting with a counterparty.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/escrow"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/staking"
)

// AgentReader serves registry lookups.
type AgentReader interface {
	Get(ctx context.Context, owner string) (*agent.Agent, error)
	List(ctx context.Context) ([]agent.Agent, error)
}

// EscrowReader serves escrow lookups.
type EscrowReader interface {
	Get(ctx context.Context, buyer, id string) (*escrow.Record, error)
	ListByParticipant(ctx context.Context, participant string) ([]escrow.Record, error)
}

// ReputationReader serves score lookups.
type ReputationReader interface {
	Get(ctx context.Context, owner string) (*reputation.Metrics, error)
}

// StakingReader serves collateral lookups.
type StakingReader interface {
	Get(ctx context.Context, owner string) (*staking.Account, error)
	GetConfig(ctx context.Context) (*staking.Config, error)
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
	APIKey  string
}

// ServerDeps are the read ports the tools pull from. Nil deps degrade the
// corresponding tools to error results rather than failing startup.
type ServerDeps struct {
	Agents     AgentReader
	Escrows    EscrowReader
	Reputation ReputationReader
	Staking    StakingReader
}

// Server wraps the MCP server with its HTTP transport.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *http.Server
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying server for testing and embedding.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves MCP over streamable HTTP in a background goroutine.
func (s *Server) Start() error {
	handler := mcpserver.NewStreamableHTTPServer(s.mcpServer)
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           AuthMiddleware(s.cfg.APIKey, handler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("mcp server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the HTTP transport down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
