// Package blockdetect classifies block signals from the remote API into
// severities and cooldowns, and tracks how close the account is to danger.
package blockdetect

import (
	"sync"
	"time"

	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/types"
)

const (
	// MaxRecentBlocks caps the rolling block log
	MaxRecentBlocks = 20
	// ConsecutiveFailureThreshold is the failure count that raises an event
	ConsecutiveFailureThreshold = 3

	escalateLowAt    = 3
	escalateMediumAt = 5
)

var cooldowns = map[types.Severity]time.Duration{
	types.SeverityCritical: 48 * time.Hour,
	types.SeverityHigh:     24 * time.Hour,
	types.SeverityMedium:   12 * time.Hour,
	types.SeverityLow:      time.Hour,
}

// CooldownFor returns the cooldown attached to a severity
func CooldownFor(s types.Severity) time.Duration {
	return cooldowns[s]
}

func baseSeverity(signal types.BlockSignal) types.Severity {
	switch signal {
	case types.SignalCheckpointRequired:
		return types.SeverityCritical
	case types.SignalFeedbackRequired:
		return types.SeverityHigh
	case types.SignalSpamDetected, types.SignalConsecutiveFailures:
		return types.SeverityMedium
	case types.SignalRateLimited, types.SignalUnknown:
		return types.SeverityLow
	default:
		return types.SeverityLow
	}
}

// escalate raises a base severity using how many blocks were already seen
// today. The rules apply in order, so LOW can climb to HIGH.
func escalate(s types.Severity, blocksToday int) types.Severity {
	if s == types.SeverityLow && blocksToday >= escalateLowAt {
		s = types.SeverityMedium
	}
	if s == types.SeverityMedium && blocksToday >= escalateMediumAt {
		s = types.SeverityHigh
	}
	return s
}

// Safety is the summarized risk level with a human-readable message
type Safety struct {
	Level   types.SafetyLevel `json:"level"`
	Message string            `json:"message"`
}

// Detector holds the rolling block state. It is safe for concurrent use.
type Detector struct {
	mu    sync.Mutex
	now   func() time.Time
	state models.BlockState
}

// NewDetector creates a detector with empty state; a nil now uses time.Now
func NewDetector(now func() time.Time) *Detector {
	if now == nil {
		now = time.Now
	}
	d := &Detector{now: now}
	d.state = models.BlockState{RecentBlocks: []models.BlockEvent{}, Day: models.DayKey(now())}
	return d
}

// ClassifyBlock turns a signal into an event and records it.
// httpStatus is 0 when not known.
func (d *Detector) ClassifyBlock(signal types.BlockSignal, httpStatus int) models.BlockEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.classifyLocked(signal, httpStatus)
}

func (d *Detector) classifyLocked(signal types.BlockSignal, httpStatus int) models.BlockEvent {
	now := d.now()
	if httpStatus == 429 && signal == types.SignalUnknown {
		signal = types.SignalRateLimited
	}

	severity := escalate(baseSeverity(signal), d.state.TotalBlocksToday)
	event := models.BlockEvent{
		Signal:     signal,
		Severity:   severity,
		Cooldown:   cooldowns[severity],
		HTTPStatus: httpStatus,
		Timestamp:  now,
	}

	d.state.RecentBlocks = append(d.state.RecentBlocks, event)
	if n := len(d.state.RecentBlocks); n > MaxRecentBlocks {
		d.state.RecentBlocks = append([]models.BlockEvent(nil), d.state.RecentBlocks[n-MaxRecentBlocks:]...)
	}
	d.state.LastBlockAt = &now
	d.state.TotalBlocksToday++
	return event
}

// RecordSuccess clears the consecutive failure counter
func (d *Detector) RecordSuccess() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.ConsecutiveFailures = 0
}

// RecordFailure counts a failed action. On the third consecutive failure it
// classifies a consecutive_failures event, resets the counter and returns it.
func (d *Detector) RecordFailure() *models.BlockEvent {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state.ConsecutiveFailures++
	if d.state.ConsecutiveFailures < ConsecutiveFailureThreshold {
		return nil
	}
	event := d.classifyLocked(types.SignalConsecutiveFailures, 0)
	d.state.ConsecutiveFailures = 0
	return &event
}

// GetSafetyLevel summarizes today's block pressure
func (d *Detector) GetSafetyLevel() Safety {
	d.mu.Lock()
	defer d.mu.Unlock()

	blocks, fails := d.state.TotalBlocksToday, d.state.ConsecutiveFailures
	switch {
	case blocks >= 5 || fails >= 3:
		return Safety{Level: types.SafetyDanger, Message: "Multiple blocks today; stop automation until tomorrow"}
	case blocks >= 2:
		return Safety{Level: types.SafetyWarning, Message: "Repeated blocks today; reduce activity"}
	case blocks >= 1 || fails >= 1:
		return Safety{Level: types.SafetyCaution, Message: "Recent failures detected; proceed carefully"}
	default:
		return Safety{Level: types.SafetySafe, Message: "No blocks detected"}
	}
}

// ResetDailyBlocks zeroes the daily count and clears the rolling log
func (d *Detector) ResetDailyBlocks() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.TotalBlocksToday = 0
	d.state.RecentBlocks = []models.BlockEvent{}
	d.state.Day = models.DayKey(d.now())
}

// Reset clears everything, used on explicit engine restart
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = models.BlockState{RecentBlocks: []models.BlockEvent{}, Day: models.DayKey(d.now())}
}

// State returns a deep copy of the current state for persistence
func (d *Detector) State() models.BlockState {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.state
	s.RecentBlocks = append([]models.BlockEvent{}, d.state.RecentBlocks...)
	return s
}

// Restore replaces the state with a persisted copy. A copy from an earlier
// day keeps its failure counter but drops the daily tallies.
func (d *Detector) Restore(s models.BlockState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = s
	d.state.RecentBlocks = append([]models.BlockEvent{}, s.RecentBlocks...)
	today := models.DayKey(d.now())
	if s.Day != today {
		d.state.TotalBlocksToday = 0
		d.state.RecentBlocks = []models.BlockEvent{}
		d.state.Day = today
	}
}
