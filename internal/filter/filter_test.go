package filter

import (
	"testing"
	"time"

	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/types"
	"github.com/stretchr/testify/assert"
)

var now = time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)

func prospect() models.Prospect {
	return models.Prospect{
		UserID:    "1001",
		Username:  "jane_travel",
		PostCount: 120,
		Status:    types.ProspectQueued,
	}
}

func like(target string, success bool, at time.Time) models.ActionLogEntry {
	return models.ActionLogEntry{
		ID:        "log-" + target,
		Action:    types.ActionLike,
		TargetID:  target,
		Success:   success,
		Timestamp: at,
	}
}

func TestFilterProspect_PrivateAccount(t *testing.T) {
	p := prospect()
	p.IsPrivate = true

	got := FilterProspect(p, DefaultConfig(), nil, now)
	assert.False(t, got.Passed)
	assert.Equal(t, types.ReasonPrivateAccount, got.Reason)

	cfg := DefaultConfig()
	cfg.SkipPrivate = false
	assert.True(t, FilterProspect(p, cfg, nil, now).Passed)
}

func TestFilterProspect_RecentlyEngaged(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ReEngagementCooldown = 30 * 24 * time.Hour

	tests := []struct {
		name    string
		history []models.ActionLogEntry
		want    Result
	}{
		{"liked an hour ago", []models.ActionLogEntry{like("1001", true, now.Add(-time.Hour))}, Result{Reason: types.ReasonRecentlyEngaged}},
		{"liked 31 days ago", []models.ActionLogEntry{like("1001", true, now.Add(-31*24*time.Hour))}, Result{Passed: true}},
		{"failed like ignored", []models.ActionLogEntry{like("1001", false, now.Add(-time.Hour))}, Result{Passed: true}},
		{"other target ignored", []models.ActionLogEntry{like("2002", true, now.Add(-time.Hour))}, Result{Passed: true}},
		{"no history", nil, Result{Passed: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterProspect(prospect(), cfg, tt.history, now))
		})
	}
}

func TestFilterProspect_RuleOrder(t *testing.T) {
	p := prospect()
	p.IsPrivate = true
	p.IsVerified = true
	p.PostCount = 0

	cfg := DefaultConfig()
	cfg.SkipVerified = true
	history := []models.ActionLogEntry{like(p.UserID, true, now.Add(-time.Minute))}

	assert.Equal(t, types.ReasonPrivateAccount, FilterProspect(p, cfg, history, now).Reason)

	cfg.SkipPrivate = false
	assert.Equal(t, types.ReasonVerifiedAccount, FilterProspect(p, cfg, history, now).Reason)

	cfg.SkipVerified = false
	assert.Equal(t, types.ReasonLowPostCount, FilterProspect(p, cfg, history, now).Reason)

	cfg.BypassPostCount = true
	assert.Equal(t, types.ReasonRecentlyEngaged, FilterProspect(p, cfg, history, now).Reason)

	cfg.SkipPreviouslyEngaged = false
	assert.True(t, FilterProspect(p, cfg, history, now).Passed)
}
