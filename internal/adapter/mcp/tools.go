package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.listAgentsTool(),
		s.getAgentTool(),
		s.getReputationTool(),
		s.getEscrowTool(),
		s.listEscrowsTool(),
		s.getStakingAccountTool(),
	)
}

func (s *Server) listAgentsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_agents",
		mcplib.WithDescription("List all registered agents with their service metadata"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListAgents,
	}
}

func (s *Server) getAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_agent",
		mcplib.WithDescription("Get a registered agent by owner address"),
		mcplib.WithString("owner",
			mcplib.Required(),
			mcplib.Description("The owner address of the agent"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetAgent,
	}
}

func (s *Server) getReputationTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_reputation",
		mcplib.WithDescription("Get the reputation score, band and settlement history for an agent"),
		mcplib.WithString("owner",
			mcplib.Required(),
			mcplib.Description("The owner address of the agent"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetReputation,
	}
}

func (s *Server) getEscrowTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_escrow",
		mcplib.WithDescription("Get an escrow by buyer address and escrow ID"),
		mcplib.WithString("buyer",
			mcplib.Required(),
			mcplib.Description("The buyer address that opened the escrow"),
		),
		mcplib.WithString("id",
			mcplib.Required(),
			mcplib.Description("The buyer-chosen escrow ID"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetEscrow,
	}
}

func (s *Server) listEscrowsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_escrows",
		mcplib.WithDescription("List escrows where the given address is buyer or provider"),
		mcplib.WithString("participant",
			mcplib.Required(),
			mcplib.Description("The participant address to filter by"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListEscrows,
	}
}

func (s *Server) getStakingAccountTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_staking_account",
		mcplib.WithDescription("Get the staked collateral and trust tier for an owner"),
		mcplib.WithString("owner",
			mcplib.Required(),
			mcplib.Description("The owner address of the staking account"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetStakingAccount,
	}
}

func (s *Server) handleListAgents(ctx context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent registry not configured"), nil
	}
	agents, err := s.deps.Agents.List(ctx)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to list agents", err), nil
	}
	return marshalResult(agents, "agents")
}

func (s *Server) handleGetAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Agents == nil {
		return mcplib.NewToolResultError("agent registry not configured"), nil
	}
	owner, ok := stringArg(req, "owner")
	if !ok {
		return mcplib.NewToolResultError("owner is required"), nil
	}
	a, err := s.deps.Agents.Get(ctx, owner)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get agent %s", owner), err,
		), nil
	}
	return marshalResult(a, "agent")
}

func (s *Server) handleGetReputation(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Reputation == nil {
		return mcplib.NewToolResultError("reputation engine not configured"), nil
	}
	owner, ok := stringArg(req, "owner")
	if !ok {
		return mcplib.NewToolResultError("owner is required"), nil
	}
	m, err := s.deps.Reputation.Get(ctx, owner)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get reputation for %s", owner), err,
		), nil
	}
	return marshalResult(m, "reputation")
}

func (s *Server) handleGetEscrow(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Escrows == nil {
		return mcplib.NewToolResultError("escrow store not configured"), nil
	}
	buyer, ok := stringArg(req, "buyer")
	if !ok {
		return mcplib.NewToolResultError("buyer is required"), nil
	}
	id, ok := stringArg(req, "id")
	if !ok {
		return mcplib.NewToolResultError("id is required"), nil
	}
	rec, err := s.deps.Escrows.Get(ctx, buyer, id)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get escrow %s/%s", buyer, id), err,
		), nil
	}
	return marshalResult(rec, "escrow")
}

func (s *Server) handleListEscrows(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Escrows == nil {
		return mcplib.NewToolResultError("escrow store not configured"), nil
	}
	participant, ok := stringArg(req, "participant")
	if !ok {
		return mcplib.NewToolResultError("participant is required"), nil
	}
	records, err := s.deps.Escrows.ListByParticipant(ctx, participant)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to list escrows for %s", participant), err,
		), nil
	}
	return marshalResult(records, "escrows")
}

func (s *Server) handleGetStakingAccount(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Staking == nil {
		return mcplib.NewToolResultError("staking store not configured"), nil
	}
	owner, ok := stringArg(req, "owner")
	if !ok {
		return mcplib.NewToolResultError("owner is required"), nil
	}
	acct, err := s.deps.Staking.Get(ctx, owner)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr(
			fmt.Sprintf("failed to get staking account %s", owner), err,
		), nil
	}
	return marshalResult(acct, "staking account")
}

func stringArg(req mcplib.CallToolRequest, name string) (string, bool) { //nolint:gocritic // hugeParam: mcp-go handler signature
	v, ok := req.GetArguments()[name].(string)
	return v, ok && v != ""
}

func marshalResult(v any, what string) (*mcplib.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal "+what, err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
