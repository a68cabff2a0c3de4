package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"ghostspeak://agents",
			"Agent Registry",
			mcplib.WithResourceDescription("All registered agents and their service metadata"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleAgentsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"ghostspeak://staking/config",
			"Staking Configuration",
			mcplib.WithResourceDescription("Minimum stake, lock duration and the trust tier table"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleStakingConfigResource,
	)
}

func (s *Server) handleAgentsResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Agents == nil {
		return errorResource(req.Params.URI, "agent registry not configured"), nil
	}
	agents, err := s.deps.Agents.List(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, agents)
}

func (s *Server) handleStakingConfigResource(ctx context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Staking == nil {
		return errorResource(req.Params.URI, "staking store not configured"), nil
	}
	cfg, err := s.deps.Staking.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	return jsonResource(req.Params.URI, cfg)
}

func jsonResource(uri string, v any) ([]mcplib.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func errorResource(uri, msg string) []mcplib.ResourceContents {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}
}
