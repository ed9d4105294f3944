// Package ratelimit spaces and caps engagement actions. Session and hourly
// counters live in process memory; daily counts come from a DailyCounterStore.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/timing"
	"github.com/growth-engine/internal/types"
)

// Denial reasons, in evaluation order.
const (
	ReasonMinDelay     = "min_delay"
	ReasonHourlyLimit  = "hourly_limit"
	ReasonSessionBreak = "session_break"
	ReasonDailyLimit   = "daily_limit"
)

const (
	hourWindow = time.Hour

	sessionBreakMin = 15 * time.Minute
	sessionBreakMax = 30 * time.Minute
)

// PauseSuggester picks the pause taken after a run of consecutive actions
type PauseSuggester interface {
	SuggestSessionPause(actions int) time.Duration
}

// Limits are the caps checked for one action
type Limits struct {
	Action       types.ActionKind
	MinDelay     time.Duration
	HourlyLimit  int
	SessionLimit int
	DailyLimit   int
}

// Decision is the outcome of CheckRateLimits
type Decision struct {
	Allowed    bool          `json:"allowed"`
	Reason     string        `json:"reason,omitempty"`
	RetryAfter time.Duration `json:"retryAfter,omitempty"`
}

func deny(reason string, retryAfter time.Duration) Decision {
	if retryAfter < 0 {
		retryAfter = 0
	}
	return Decision{Reason: reason, RetryAfter: retryAfter}
}

// State is the limiter's process-lifetime counters
type State struct {
	SessionActions     int        `json:"sessionActions"`
	HourlyActions      int        `json:"hourlyActions"`
	HourWindowStart    time.Time  `json:"hourWindowStart"`
	ConsecutiveActions int        `json:"consecutiveActions"`
	LastActionAt       *time.Time `json:"lastActionAt,omitempty"`
	BreakUntil         *time.Time `json:"breakUntil,omitempty"`
}

// Limiter evaluates the four rate-limit layers
type Limiter struct {
	store DailyCounterStore
	now   func() time.Time

	pauses PauseSuggester

	mu    sync.Mutex
	rng   *rand.Rand
	state State
}

// Config holds configuration for the limiter.
type Config struct {
	// Store supplies daily counts. Required.
	Store DailyCounterStore

	// Now is the clock. Default: time.Now.
	Now func() time.Time

	// Seed seeds break randomization. Default: current time.
	Seed int64

	// Pauses decides consecutive-action breaks. Default: a timing.Generator
	// seeded with Seed.
	Pauses PauseSuggester
}

// NewLimiter creates a limiter with fresh session state
func NewLimiter(cfg *Config) (*Limiter, error) {
	if cfg == nil || cfg.Store == nil {
		return nil, errors.New("daily counter store is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	pauses := cfg.Pauses
	if pauses == nil {
		pauses = timing.NewGenerator(seed, now)
	}

	l := &Limiter{
		store:  cfg.Store,
		now:    now,
		pauses: pauses,
		rng:    rand.New(rand.NewSource(seed)),
	}
	l.resetLocked()
	return l, nil
}

// CheckRateLimits returns the first violated layer, or Allowed
func (l *Limiter) CheckRateLimits(ctx context.Context, limits Limits) (Decision, error) {
	l.mu.Lock()
	now := l.now()

	if l.state.LastActionAt != nil && limits.MinDelay > 0 {
		elapsed := now.Sub(*l.state.LastActionAt)
		if elapsed < limits.MinDelay {
			l.mu.Unlock()
			return deny(ReasonMinDelay, limits.MinDelay-elapsed), nil
		}
	}

	if now.Sub(l.state.HourWindowStart) > hourWindow {
		l.state.HourlyActions = 0
		l.state.HourWindowStart = now
	}
	if limits.HourlyLimit > 0 && l.state.HourlyActions >= limits.HourlyLimit {
		retry := l.state.HourWindowStart.Add(hourWindow).Sub(now)
		l.mu.Unlock()
		return deny(ReasonHourlyLimit, retry), nil
	}

	if l.state.BreakUntil != nil {
		if now.Before(*l.state.BreakUntil) {
			retry := l.state.BreakUntil.Sub(now)
			l.mu.Unlock()
			return deny(ReasonSessionBreak, retry), nil
		}
		l.state.BreakUntil = nil
	}
	if limits.SessionLimit > 0 && l.state.SessionActions >= limits.SessionLimit {
		pause := sessionBreakMin + time.Duration(l.rng.Int63n(int64(sessionBreakMax-sessionBreakMin)+1))
		until := now.Add(pause)
		l.state.BreakUntil = &until
		l.state.SessionActions = 0
		l.mu.Unlock()
		return deny(ReasonSessionBreak, pause), nil
	}
	l.mu.Unlock()

	if limits.DailyLimit > 0 {
		counters, err := l.store.Get(ctx, models.DayKey(now))
		if err != nil {
			return Decision{}, fmt.Errorf("failed to check daily limit: %w", err)
		}
		if dailyCount(counters, limits.Action) >= limits.DailyLimit {
			return deny(ReasonDailyLimit, models.NextMidnight(now).Sub(now)), nil
		}
	}

	return Decision{Allowed: true}, nil
}

func dailyCount(c *models.DailyCounters, action types.ActionKind) int {
	switch action {
	case types.ActionFollow, types.ActionUnfollow:
		return c.Follows
	case types.ActionHarvest:
		return c.Harvests
	default:
		return c.Likes
	}
}

// RecordAction counts one performed action
func (l *Limiter) RecordAction() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.state.HourWindowStart) > hourWindow {
		l.state.HourlyActions = 0
		l.state.HourWindowStart = now
	}
	l.state.SessionActions++
	l.state.HourlyActions++
	l.state.ConsecutiveActions++
	l.state.LastActionAt = &now
}

// RecordBreak resets the consecutive-action counter after a pause
func (l *Limiter) RecordBreak() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.ConsecutiveActions = 0
}

// ShouldTakeBreak returns a pause once consecutive actions reach a
// randomized threshold in [20,40], else 0
func (l *Limiter) ShouldTakeBreak() time.Duration {
	l.mu.Lock()
	consecutive := l.state.ConsecutiveActions
	l.mu.Unlock()
	return l.pauses.SuggestSessionPause(consecutive)
}

// ResetSession reinitializes every in-memory counter
func (l *Limiter) ResetSession() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.resetLocked()
}

// Snapshot returns a copy of the current counters
func (l *Limiter) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Limiter) resetLocked() {
	l.state = State{HourWindowStart: l.now()}
}
