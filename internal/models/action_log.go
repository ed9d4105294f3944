package models

import (
	"time"

	"github.com/growth-engine/internal/types"
)

// ActionLogEntry is an immutable audit record of one attempted action
type ActionLogEntry struct {
	ID             string           `json:"id" db:"id"`
	Action         types.ActionKind `json:"action" db:"action"`
	TargetID       string           `json:"targetId" db:"target_id"`
	TargetUsername string           `json:"targetUsername" db:"target_username"`
	MediaID        *string          `json:"mediaId,omitempty" db:"media_id"`
	Success        bool             `json:"success" db:"success"`
	Error          *string          `json:"error,omitempty" db:"error"`
	Timestamp      time.Time        `json:"timestamp" db:"timestamp"`
}

// ActionLogQuery scopes an action log lookup
type ActionLogQuery struct {
	TargetID string
	Action   types.ActionKind
	// SuccessOnly restricts the result to successful entries
	SuccessOnly bool
	Since       time.Time
	Limit       int
}
