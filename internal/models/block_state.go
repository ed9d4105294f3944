package models

import (
	"time"

	"github.com/growth-engine/internal/types"
)

// BlockEvent is one classified block signal
type BlockEvent struct {
	Signal     types.BlockSignal `json:"signal"`
	Severity   types.Severity    `json:"severity"`
	Cooldown   time.Duration     `json:"cooldown"`
	HTTPStatus int               `json:"httpStatus,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// CooldownEndsAt returns when the cooldown for this event ends
func (e BlockEvent) CooldownEndsAt() time.Time {
	return e.Timestamp.Add(e.Cooldown)
}

// BlockState is the block detector's rolling state
type BlockState struct {
	ConsecutiveFailures int          `json:"consecutiveFailures"`
	RecentBlocks        []BlockEvent `json:"recentBlocks"`
	LastBlockAt         *time.Time   `json:"lastBlockAt,omitempty"`
	TotalBlocksToday    int          `json:"totalBlocksToday"`
	Day                 string       `json:"day"`
}
