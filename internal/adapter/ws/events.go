package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventAgentStatus       = "agent.status"
	EventEscrowStatus      = "escrow.status"
	EventReputationChanged = "reputation.changed"
)

// AgentStatusEvent is broadcast when an agent registers or deactivates.
type AgentStatusEvent struct {
	Agent  string `json:"agent"`
	Owner  string `json:"owner"`
	Active bool   `json:"active"`
}

// EscrowStatusEvent is broadcast on every escrow state transition.
type EscrowStatusEvent struct {
	Escrow   string `json:"escrow"`
	Buyer    string `json:"buyer"`
	Provider string `json:"provider"`
	Status   string `json:"status"`
}

// ReputationEvent is broadcast when an agent crosses a band boundary.
type ReputationEvent struct {
	Agent string `json:"agent"`
	Score int64  `json:"score"`
	Band  string `json:"band"`
}

// BroadcastEvent marshals a typed event and broadcasts it to all clients.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
