package mcp_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	gsmcp "github.com/Dexploarer/ghostspeak-go/internal/adapter/mcp"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/agent"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/escrow"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/reputation"
	"github.com/Dexploarer/ghostspeak-go/internal/domain/staking"
)

// --- Mocks ---

type mockAgents struct {
	agents []agent.Agent
	err    error
}

func (m *mockAgents) List(_ context.Context) ([]agent.Agent, error) {
	return m.agents, m.err
}

func (m *mockAgents) Get(_ context.Context, owner string) (*agent.Agent, error) {
	for i := range m.agents {
		if m.agents[i].Owner == owner {
			return &m.agents[i], nil
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return nil, fmt.Errorf("agent %s not found", owner)
}

type mockEscrows struct {
	records []escrow.Record
}

func (m *mockEscrows) Get(_ context.Context, buyer, id string) (*escrow.Record, error) {
	for i := range m.records {
		if m.records[i].Buyer == buyer && m.records[i].ID == id {
			return &m.records[i], nil
		}
	}
	return nil, fmt.Errorf("escrow %s/%s not found", buyer, id)
}

func (m *mockEscrows) ListByParticipant(_ context.Context, participant string) ([]escrow.Record, error) {
	var out []escrow.Record
	for _, r := range m.records {
		if r.Buyer == participant || r.Provider == participant {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockReputation struct {
	metrics map[string]*reputation.Metrics
}

func (m *mockReputation) Get(_ context.Context, owner string) (*reputation.Metrics, error) {
	if r, ok := m.metrics[owner]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("reputation for %s not found", owner)
}

type mockStaking struct {
	accounts map[string]*staking.Account
	config   staking.Config
}

func (m *mockStaking) Get(_ context.Context, owner string) (*staking.Account, error) {
	if a, ok := m.accounts[owner]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("staking account for %s not found", owner)
}

func (m *mockStaking) GetConfig(_ context.Context) (*staking.Config, error) {
	return &m.config, nil
}

// --- Tests ---

func TestNewServer(t *testing.T) {
	cfg := gsmcp.ServerConfig{
		Addr:    ":3001",
		Name:    "test-server",
		Version: "0.1.0",
	}
	s := gsmcp.NewServer(cfg, gsmcp.ServerDeps{})
	if s == nil {
		t.Fatal("NewServer returned nil")
	}
	if s.MCPServer() == nil {
		t.Fatal("MCPServer() returned nil")
	}
}

func TestToolRegistration(t *testing.T) {
	s := gsmcp.NewServer(gsmcp.ServerConfig{Name: "test", Version: "0.1.0"}, gsmcp.ServerDeps{})

	tools := s.MCPServer().ListTools()
	expectedTools := map[string]bool{
		"list_agents":         false,
		"get_agent":           false,
		"get_reputation":      false,
		"get_escrow":          false,
		"list_escrows":        false,
		"get_staking_account": false,
	}
	if len(tools) != len(expectedTools) {
		t.Fatalf("expected %d tools, got %d", len(expectedTools), len(tools))
	}
	for name := range tools {
		if _, ok := expectedTools[name]; ok {
			expectedTools[name] = true
		} else {
			t.Errorf("unexpected tool: %s", name)
		}
	}
	for name, found := range expectedTools {
		if !found {
			t.Errorf("expected tool %q not registered", name)
		}
	}
}

func TestHandleListAgents(t *testing.T) {
	deps := gsmcp.ServerDeps{
		Agents: &mockAgents{
			agents: []agent.Agent{
				{Owner: "alice", Name: "Translator"},
				{Owner: "bob", Name: "Summarizer"},
			},
		},
	}
	s := gsmcp.NewServer(gsmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	result := callTool(t, s, "list_agents", nil)
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var agents []agent.Agent
	unmarshalResult(t, result, &agents)
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
}

func TestHandleGetReputation(t *testing.T) {
	deps := gsmcp.ServerDeps{
		Reputation: &mockReputation{
			metrics: map[string]*reputation.Metrics{
				"alice": {Agent: "alice", Score: 7_200, Band: reputation.BandGold},
			},
		},
	}
	s := gsmcp.NewServer(gsmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	result := callTool(t, s, "get_reputation", map[string]any{"owner": "alice"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var m reputation.Metrics
	unmarshalResult(t, result, &m)
	if m.Score != 7_200 || m.Band != reputation.BandGold {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}

func TestHandleGetEscrow(t *testing.T) {
	deps := gsmcp.ServerDeps{
		Escrows: &mockEscrows{
			records: []escrow.Record{
				{ID: "job-1", Buyer: "alice", Provider: "bob", Amount: 1_000_000, Status: escrow.StatusCreated},
			},
		},
	}
	s := gsmcp.NewServer(gsmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	result := callTool(t, s, "get_escrow", map[string]any{"buyer": "alice", "id": "job-1"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var rec escrow.Record
	unmarshalResult(t, result, &rec)
	if rec.Provider != "bob" || rec.Amount != 1_000_000 {
		t.Fatalf("unexpected escrow: %+v", rec)
	}
}

func TestHandleMissingArg(t *testing.T) {
	deps := gsmcp.ServerDeps{
		Reputation: &mockReputation{metrics: map[string]*reputation.Metrics{}},
	}
	s := gsmcp.NewServer(gsmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	result := callTool(t, s, "get_reputation", nil)
	if !result.IsError {
		t.Fatal("expected error result for missing owner")
	}
}

func TestHandleNilDeps(t *testing.T) {
	s := gsmcp.NewServer(gsmcp.ServerConfig{Name: "test", Version: "0.1.0"}, gsmcp.ServerDeps{})

	result := callTool(t, s, "list_agents", nil)
	if !result.IsError {
		t.Fatal("expected error result when deps are nil")
	}
}

func TestHandleGetStakingAccount(t *testing.T) {
	deps := gsmcp.ServerDeps{
		Staking: &mockStaking{
			accounts: map[string]*staking.Account{
				"bob": {Owner: "bob", Staked: 10_000, Tier: staking.TierSilver},
			},
			config: staking.DefaultConfig(),
		},
	}
	s := gsmcp.NewServer(gsmcp.ServerConfig{Name: "test", Version: "0.1.0"}, deps)

	result := callTool(t, s, "get_staking_account", map[string]any{"owner": "bob"})
	if result.IsError {
		t.Fatalf("tool returned error: %v", result.Content)
	}

	var acct staking.Account
	unmarshalResult(t, result, &acct)
	if acct.Tier != staking.TierSilver {
		t.Fatalf("unexpected account: %+v", acct)
	}
}

// --- Helpers ---

func callTool(t *testing.T, s *gsmcp.Server, name string, args map[string]any) *mcplib.CallToolResult {
	t.Helper()
	tools := s.MCPServer().ListTools()
	tool, ok := tools[name]
	if !ok {
		t.Fatalf("tool %s not found", name)
	}
	result, err := tool.Handler(context.Background(), mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{Name: name, Arguments: args},
	})
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return result
}

func unmarshalResult(t *testing.T, result *mcplib.CallToolResult, v any) {
	t.Helper()
	text, ok := result.Content[0].(mcplib.TextContent)
	if !ok {
		t.Fatal("expected TextContent")
	}
	if err := json.Unmarshal([]byte(text.Text), v); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
}
