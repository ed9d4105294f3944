// Package types provides common type definitions for the growth engine.
package types

import "fmt"

// EngineStatus represents what the orchestrator is currently doing
type EngineStatus string

const (
	// EngineIdle means the engine is running and waiting for the next tick
	EngineIdle EngineStatus = "idle"
	// EngineHarvesting means a harvest session is active
	EngineHarvesting EngineStatus = "harvesting"
	// EngineEngaging means a prospect engagement is in flight
	EngineEngaging EngineStatus = "engaging"
	// EnginePaused means the engine was stopped externally
	EnginePaused EngineStatus = "paused"
	// EngineCooldown means a block was detected and the engine waits for cooldownEndsAt
	EngineCooldown EngineStatus = "cooldown"
	// EngineError means the session must be re-established before work resumes
	EngineError EngineStatus = "error"
)

// Valid reports whether s is one of the known engine statuses
func (s EngineStatus) Valid() bool {
	switch s {
	case EngineIdle, EngineHarvesting, EngineEngaging, EnginePaused, EngineCooldown, EngineError:
		return true
	default:
		return false
	}
}

// Resting reports whether no work is in flight for this status
func (s EngineStatus) Resting() bool {
	switch s {
	case EngineIdle, EnginePaused, EngineCooldown, EngineError:
		return true
	case EngineHarvesting, EngineEngaging:
		return false
	default:
		return false
	}
}

// ProspectStatus represents the lifecycle stage of a harvested prospect
type ProspectStatus string

const (
	// ProspectQueued is waiting for engagement
	ProspectQueued ProspectStatus = "queued"
	// ProspectEngaged was engaged successfully
	ProspectEngaged ProspectStatus = "engaged"
	// ProspectSkipped was rejected by a filter
	ProspectSkipped ProspectStatus = "skipped"
	// ProspectFailed could not be engaged
	ProspectFailed ProspectStatus = "failed"
)

// AllProspectStatuses lists every prospect status in display order
var AllProspectStatuses = []ProspectStatus{ProspectQueued, ProspectEngaged, ProspectSkipped, ProspectFailed}

// Valid reports whether s is a known prospect status
func (s ProspectStatus) Valid() bool {
	switch s {
	case ProspectQueued, ProspectEngaged, ProspectSkipped, ProspectFailed:
		return true
	default:
		return false
	}
}

// ParseProspectStatus converts a stored string into a ProspectStatus
func ParseProspectStatus(s string) (ProspectStatus, error) {
	st := ProspectStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown prospect status %q", s)
	}
	return st, nil
}

// ActionKind represents the kind of action recorded in the action log
type ActionKind string

const (
	ActionLike     ActionKind = "like"
	ActionUnlike   ActionKind = "unlike"
	ActionFollow   ActionKind = "follow"
	ActionUnfollow ActionKind = "unfollow"
	ActionHarvest  ActionKind = "harvest"
	ActionFilter   ActionKind = "filter"
)

// Valid reports whether k is a known action kind
func (k ActionKind) Valid() bool {
	switch k {
	case ActionLike, ActionUnlike, ActionFollow, ActionUnfollow, ActionHarvest, ActionFilter:
		return true
	default:
		return false
	}
}

// HarvestPhase represents the phase of a harvest session.
// Phases only move forward: resolving -> fetching -> done.
type HarvestPhase string

const (
	HarvestResolving HarvestPhase = "resolving"
	HarvestFetching  HarvestPhase = "fetching"
	HarvestDone      HarvestPhase = "done"
)

// Order returns the position of the phase in the forward sequence
func (p HarvestPhase) Order() int {
	switch p {
	case HarvestResolving:
		return 0
	case HarvestFetching:
		return 1
	case HarvestDone:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from p to next keeps the phase monotonic
func (p HarvestPhase) CanAdvanceTo(next HarvestPhase) bool {
	return next.Order() >= 0 && next.Order() >= p.Order()
}

// Severity represents how serious a detected block is
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities from least to most severe
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// BlockSignal identifies the failure signal reported by the remote API
type BlockSignal string

const (
	SignalCheckpointRequired  BlockSignal = "checkpoint_required"
	SignalFeedbackRequired    BlockSignal = "feedback_required"
	SignalSpamDetected        BlockSignal = "spam_detected"
	SignalConsecutiveFailures BlockSignal = "consecutive_failures"
	SignalRateLimited         BlockSignal = "rate_limited"
	SignalUnknown             BlockSignal = "unknown"
)

// SafetyLevel summarizes the account's current block risk
type SafetyLevel string

const (
	SafetySafe    SafetyLevel = "safe"
	SafetyCaution SafetyLevel = "caution"
	SafetyWarning SafetyLevel = "warning"
	SafetyDanger  SafetyLevel = "danger"
)

// SkipReason explains why a prospect was not engaged
type SkipReason string

const (
	ReasonPrivateAccount  SkipReason = "private_account"
	ReasonVerifiedAccount SkipReason = "verified_account"
	ReasonLowPostCount    SkipReason = "low_post_count"
	ReasonRecentlyEngaged SkipReason = "recently_engaged"
	ReasonLikelyBot       SkipReason = "likely_bot"
	ReasonNoContent       SkipReason = "no_content"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}
