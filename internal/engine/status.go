package engine

import (
	"context"
	"fmt"

	"github.com/growth-engine/internal/blockdetect"
	"github.com/growth-engine/internal/circuitbreaker"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/ratelimit"
)

// Report is the aggregated engine status
type Report struct {
	State          *models.EngineState   `json:"state"`
	Today          *models.DailyCounters `json:"today"`
	Limits         Limits                `json:"limits"`
	Queue          models.QueueStats     `json:"queue"`
	Safety         blockdetect.Safety    `json:"safety"`
	Blocks         models.BlockState     `json:"blocks"`
	RateLimiter    ratelimit.State       `json:"rateLimiter"`
	ProfileRefresh *circuitbreaker.Stats  `json:"profileRefresh"`
	HarvestActive  bool                  `json:"harvestActive"`
	ActiveHours    bool                  `json:"activeHours"`
}

// Limits echoes the configured daily caps next to today's counters
type Limits struct {
	DailyLikes   int `json:"dailyLikes"`
	DailyFollows int `json:"dailyFollows"`
}

// Status gathers the current state, today's counters, queue stats and the
// block detector's safety level
func (e *Engine) Status(ctx context.Context) (*Report, error) {
	e.mu.Lock()
	st, err := e.loadLocked(ctx)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := e.now()
	today, err := e.counters.Get(ctx, models.DayKey(now))
	if err != nil {
		return nil, fmt.Errorf("failed to read daily counters: %w", err)
	}
	queue, err := e.queue.GetQueueStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read queue stats: %w", err)
	}
	active, err := e.pipeline.HasActiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check harvest session: %w", err)
	}

	return &Report{
		State: st,
		Today: today,
		Limits: Limits{
			DailyLikes:   e.cfg.DailyLikeLimit,
			DailyFollows: e.cfg.DailyFollowLimit,
		},
		Queue:          queue,
		Safety:         e.detector.GetSafetyLevel(),
		Blocks:         e.detector.State(),
		RateLimiter:    e.limiter.Snapshot(),
		ProfileRefresh: e.breaker.GetStats(),
		HarvestActive:  active,
		ActiveHours:    ActiveHours(e.cfg.ActiveHoursStart, e.cfg.ActiveHoursEnd, now.Hour()),
	}, nil
}

// QueueStats returns prospect counts per status
func (e *Engine) QueueStats(ctx context.Context) (models.QueueStats, error) {
	return e.queue.GetQueueStats(ctx)
}
