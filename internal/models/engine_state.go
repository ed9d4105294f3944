package models

import (
	"time"

	"github.com/growth-engine/internal/types"
)

// EngineState is the persisted single source of truth for the orchestrator
type EngineState struct {
	Status         types.EngineStatus `json:"status"`
	LastActionAt   *time.Time         `json:"lastActionAt,omitempty"`
	CooldownEndsAt *time.Time         `json:"cooldownEndsAt,omitempty"`
	// Cursors are harvest cursors preserved across sessions ("" = exhausted)
	Cursors   map[string]string `json:"cursors,omitempty"`
	LastError *string           `json:"lastError,omitempty"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// NewEngineState returns the state used on first run
func NewEngineState(now time.Time) *EngineState {
	return &EngineState{
		Status:    types.EngineIdle,
		Cursors:   make(map[string]string),
		UpdatedAt: now,
	}
}

// CooldownExpired reports whether a cooldown has run out at now
func (s *EngineState) CooldownExpired(now time.Time) bool {
	return s.CooldownEndsAt == nil || !now.Before(*s.CooldownEndsAt)
}
