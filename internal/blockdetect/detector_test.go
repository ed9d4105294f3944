package blockdetect

import (
	"fmt"
	"testing"
	"time"

	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 4, 9, 10, 0, 0, 0, time.UTC)

func newTestDetector() *Detector {
	return NewDetector(func() time.Time { return testNow })
}

func TestClassifyBlock_BaseSeverity(t *testing.T) {
	tests := []struct {
		signal   types.BlockSignal
		status   int
		severity types.Severity
		cooldown time.Duration
	}{
		{types.SignalCheckpointRequired, 0, types.SeverityCritical, 48 * time.Hour},
		{types.SignalFeedbackRequired, 400, types.SeverityHigh, 24 * time.Hour},
		{types.SignalSpamDetected, 0, types.SeverityMedium, 12 * time.Hour},
		{types.SignalConsecutiveFailures, 0, types.SeverityMedium, 12 * time.Hour},
		{types.SignalRateLimited, 429, types.SeverityLow, time.Hour},
		{types.SignalUnknown, 429, types.SeverityLow, time.Hour},
		{types.SignalUnknown, 0, types.SeverityLow, time.Hour},
	}

	for _, tt := range tests {
		t.Run(string(tt.signal), func(t *testing.T) {
			e := newTestDetector().ClassifyBlock(tt.signal, tt.status)
			assert.Equal(t, tt.severity, e.Severity)
			assert.Equal(t, tt.cooldown, e.Cooldown)
			assert.Equal(t, testNow, e.Timestamp)
		})
	}
}

func TestClassifyBlock_Escalation(t *testing.T) {
	tests := []struct {
		priorBlocks int
		signal      types.BlockSignal
		want        types.Severity
	}{
		{0, types.SignalRateLimited, types.SeverityLow},
		{1, types.SignalRateLimited, types.SeverityLow},
		{2, types.SignalRateLimited, types.SeverityLow},
		{3, types.SignalRateLimited, types.SeverityMedium},
		{4, types.SignalRateLimited, types.SeverityMedium},
		{5, types.SignalRateLimited, types.SeverityHigh},
		{6, types.SignalUnknown, types.SeverityHigh},
		{0, types.SignalSpamDetected, types.SeverityMedium},
		{4, types.SignalSpamDetected, types.SeverityMedium},
		{5, types.SignalSpamDetected, types.SeverityHigh},
		{7, types.SignalSpamDetected, types.SeverityHigh},
		{5, types.SignalFeedbackRequired, types.SeverityHigh},
		{5, types.SignalCheckpointRequired, types.SeverityCritical},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s after %d", tt.signal, tt.priorBlocks), func(t *testing.T) {
			d := newTestDetector()
			for i := 0; i < tt.priorBlocks; i++ {
				d.ClassifyBlock(types.SignalCheckpointRequired, 0)
			}
			e := d.ClassifyBlock(tt.signal, 0)
			assert.Equal(t, tt.want, e.Severity)
			assert.Equal(t, CooldownFor(tt.want), e.Cooldown)
		})
	}
}

func TestClassifyBlock_RollingLogCapped(t *testing.T) {
	d := newTestDetector()
	for i := 0; i < 25; i++ {
		d.ClassifyBlock(types.SignalRateLimited, 429)
	}

	s := d.State()
	assert.Len(t, s.RecentBlocks, MaxRecentBlocks)
	assert.Equal(t, 25, s.TotalBlocksToday)
	require.NotNil(t, s.LastBlockAt)
	assert.Equal(t, testNow, *s.LastBlockAt)
}

func TestRecordFailure(t *testing.T) {
	d := newTestDetector()

	assert.Nil(t, d.RecordFailure())
	assert.Nil(t, d.RecordFailure())

	e := d.RecordFailure()
	require.NotNil(t, e)
	assert.Equal(t, types.SignalConsecutiveFailures, e.Signal)
	assert.Equal(t, types.SeverityMedium, e.Severity)
	assert.Zero(t, d.State().ConsecutiveFailures)
	assert.Equal(t, 1, d.State().TotalBlocksToday)

	assert.Nil(t, d.RecordFailure())
	d.RecordSuccess()
	assert.Zero(t, d.State().ConsecutiveFailures)
}

func TestGetSafetyLevel(t *testing.T) {
	tests := []struct {
		name     string
		blocks   int
		failures int
		want     types.SafetyLevel
	}{
		{"clean", 0, 0, types.SafetySafe},
		{"one failure", 0, 1, types.SafetyCaution},
		{"one block", 1, 0, types.SafetyCaution},
		{"two blocks", 2, 0, types.SafetyWarning},
		{"five blocks", 5, 0, types.SafetyDanger},
		{"three failures", 0, 3, types.SafetyDanger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newTestDetector()
			d.Restore(models.BlockState{
				TotalBlocksToday:    tt.blocks,
				ConsecutiveFailures: tt.failures,
				Day:                 models.DayKey(testNow),
			})
			assert.Equal(t, tt.want, d.GetSafetyLevel().Level)
		})
	}
}

func TestResetDailyBlocks(t *testing.T) {
	d := newTestDetector()
	d.ClassifyBlock(types.SignalFeedbackRequired, 400)
	d.RecordFailure()

	d.ResetDailyBlocks()
	s := d.State()
	assert.Zero(t, s.TotalBlocksToday)
	assert.Empty(t, s.RecentBlocks)
	assert.Equal(t, 1, s.ConsecutiveFailures)
}

func TestRestore_StaleDayDropsDailyTallies(t *testing.T) {
	d := newTestDetector()
	d.Restore(models.BlockState{
		TotalBlocksToday:    4,
		ConsecutiveFailures: 2,
		RecentBlocks:        []models.BlockEvent{{Signal: types.SignalRateLimited}},
		Day:                 "2026-04-08",
	})

	s := d.State()
	assert.Zero(t, s.TotalBlocksToday)
	assert.Empty(t, s.RecentBlocks)
	assert.Equal(t, 2, s.ConsecutiveFailures)
	assert.Equal(t, "2026-04-09", s.Day)
}
