// Package filter decides whether a prospect is worth engaging.
package filter

import (
	"time"

	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/types"
)

// Config holds the inclusion rules
type Config struct {
	SkipPrivate           bool
	SkipVerified          bool
	MinPostCount          int
	SkipPreviouslyEngaged bool
	ReEngagementCooldown  time.Duration
	// BypassPostCount disables the post-count rule when the counts could
	// not be refreshed and may be stale.
	BypassPostCount bool
}

// DefaultConfig returns the default inclusion rules
func DefaultConfig() Config {
	return Config{
		SkipPrivate:           true,
		SkipVerified:          false,
		MinPostCount:          3,
		SkipPreviouslyEngaged: true,
		ReEngagementCooldown:  30 * 24 * time.Hour,
	}
}

// Result is the outcome of filtering one prospect
type Result struct {
	Passed bool             `json:"passed"`
	Reason types.SkipReason `json:"reason,omitempty"`
}

func reject(reason types.SkipReason) Result {
	return Result{Reason: reason}
}

// FilterProspect applies the rules in order; the first failing rule wins.
// history holds the caller-supplied action log entries for this target.
func FilterProspect(p models.Prospect, cfg Config, history []models.ActionLogEntry, now time.Time) Result {
	if cfg.SkipPrivate && p.IsPrivate {
		return reject(types.ReasonPrivateAccount)
	}
	if cfg.SkipVerified && p.IsVerified {
		return reject(types.ReasonVerifiedAccount)
	}
	if !cfg.BypassPostCount && p.PostCount < cfg.MinPostCount {
		return reject(types.ReasonLowPostCount)
	}
	if cfg.SkipPreviouslyEngaged && RecentlyEngaged(p.UserID, history, cfg.ReEngagementCooldown, now) {
		return reject(types.ReasonRecentlyEngaged)
	}
	return Result{Passed: true}
}

// RecentlyEngaged reports whether history holds a successful like on
// targetID within window of now
func RecentlyEngaged(targetID string, history []models.ActionLogEntry, window time.Duration, now time.Time) bool {
	cutoff := now.Add(-window)
	for _, e := range history {
		if e.TargetID != targetID || e.Action != types.ActionLike || !e.Success {
			continue
		}
		if e.Timestamp.After(cutoff) {
			return true
		}
	}
	return false
}
