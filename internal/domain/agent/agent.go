// Package agent defines the Agent identity record that anchors staking,
// escrow, and reputation records.
package agent

import (
	"fmt"
	"time"

	"github.com/Dexploarer/ghostspeak-go/internal/domain"
)

const (
	MaxNameLen        = 64
	MaxDescriptionLen = 512
	MaxCapabilities   = 20
	MaxCapabilityLen  = 32
)

// Agent represents a registered marketplace agent. The owner address is the
// only party that may update metadata. Agents are never deleted, only
// deactivated.
type Agent struct {
	Address       string    `json:"address"`
	Owner         string    `json:"owner"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Capabilities  []string  `json:"capabilities,omitempty"`
	JobsCompleted uint64    `json:"jobs_completed"`
	TotalEarnings uint64    `json:"total_earnings"`
	Active        bool      `json:"active"`
	Verified      bool      `json:"verified"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RegisterRequest is the input for registering a new agent.
type RegisterRequest struct {
	Owner        string   `json:"owner"`
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Validate checks length limits before any record is created.
func (r *RegisterRequest) Validate() error {
	if r.Owner == "" {
		return fmt.Errorf("%w: owner is required", domain.ErrValidation)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrValidation)
	}
	if len(r.Name) > MaxNameLen {
		return fmt.Errorf("%w: name too long (max %d)", domain.ErrValidation, MaxNameLen)
	}
	if len(r.Description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description too long (max %d)", domain.ErrValidation, MaxDescriptionLen)
	}
	if len(r.Capabilities) > MaxCapabilities {
		return fmt.Errorf("%w: too many capabilities (max %d)", domain.ErrValidation, MaxCapabilities)
	}
	for _, c := range r.Capabilities {
		if c == "" || len(c) > MaxCapabilityLen {
			return fmt.Errorf("%w: capability tags must be 1-%d chars", domain.ErrValidation, MaxCapabilityLen)
		}
	}
	return nil
}

// UpdateRequest is the input for updating agent metadata. Zero-value fields
// are left unchanged.
type UpdateRequest struct {
	Name         string   `json:"name,omitempty"`
	Description  string   `json:"description,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

// Validate checks length limits on the provided fields.
func (r *UpdateRequest) Validate() error {
	if len(r.Name) > MaxNameLen {
		return fmt.Errorf("%w: name too long (max %d)", domain.ErrValidation, MaxNameLen)
	}
	if len(r.Description) > MaxDescriptionLen {
		return fmt.Errorf("%w: description too long (max %d)", domain.ErrValidation, MaxDescriptionLen)
	}
	if len(r.Capabilities) > MaxCapabilities {
		return fmt.Errorf("%w: too many capabilities (max %d)", domain.ErrValidation, MaxCapabilities)
	}
	for _, c := range r.Capabilities {
		if c == "" || len(c) > MaxCapabilityLen {
			return fmt.Errorf("%w: capability tags must be 1-%d chars", domain.ErrValidation, MaxCapabilityLen)
		}
	}
	return nil
}

// Apply merges an update into the agent. Caller authorization is checked by
// the service layer before this runs.
func (a *Agent) Apply(r UpdateRequest, now time.Time) {
	if r.Name != "" {
		a.Name = r.Name
	}
	if r.Description != "" {
		a.Description = r.Description
	}
	if r.Capabilities != nil {
		a.Capabilities = r.Capabilities
	}
	a.UpdatedAt = now
}
