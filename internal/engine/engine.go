// Package engine is the top-level state machine. It owns the persisted
// EngineState and sequences harvest and engagement work on scheduler ticks.
//
// Harvest and engagement ticks arrive independently. They never run work in
// parallel: each tick claims the engine by moving it out of a resting status
// and no-ops when the status says another flow owns it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/growth-engine/internal/blockdetect"
	"github.com/growth-engine/internal/circuitbreaker"
	"github.com/growth-engine/internal/config"
	"github.com/growth-engine/internal/engagement"
	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/harvest"
	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/ratelimit"
	"github.com/growth-engine/internal/remote"
	"github.com/growth-engine/internal/retry"
	"github.com/growth-engine/internal/scheduler"
	"github.com/growth-engine/internal/storage"
	"github.com/growth-engine/internal/timing"
	"github.com/growth-engine/internal/types"
)

// Alarm names
const (
	AlarmHarvest    = "harvest-tick"
	AlarmEngage     = "engagement-tick"
	AlarmCooldown   = "cooldown-check"
	AlarmDailyReset = "daily-reset"
)

// Scheduler registers the engine's recurring alarms
type Scheduler interface {
	Every(name string, interval time.Duration, fn scheduler.Func)
	Daily(name string, fn scheduler.Func)
	Cancel(ctx context.Context, name string) bool
}

// Config holds the engine's collaborators
type Config struct {
	Engine config.EngineConfig

	State    storage.StateStore
	Counters ratelimit.DailyCounterStore
	Actions  storage.ActionLogStore
	API      remote.API

	Queue    *engagement.Queue
	Executor *engagement.Executor
	Pipeline *harvest.Pipeline
	Limiter  *ratelimit.Limiter
	Detector *blockdetect.Detector

	// Breaker guards profile refreshes. Default: ProfileBreakerConfig.
	Breaker *circuitbreaker.CircuitBreaker
	// Retry wraps profile refreshes. Default: retry.DefaultRetryConfig.
	Retry *retry.Executor
	// Scheduler is optional; without one the caller drives the ticks.
	Scheduler Scheduler
	// Delays spaces prospects between MinDelay and MaxDelay. Default: a
	// timing.Generator seeded from the clock.
	Delays Delays

	Now func() time.Time
}

// Engine is the orchestrator
type Engine struct {
	cfg config.EngineConfig

	state    storage.StateStore
	counters ratelimit.DailyCounterStore
	actions  storage.ActionLogStore
	api      remote.API

	queue    *engagement.Queue
	executor *engagement.Executor
	pipeline *harvest.Pipeline
	limiter  *ratelimit.Limiter
	detector *blockdetect.Detector
	breaker  *circuitbreaker.CircuitBreaker
	retry    *retry.Executor

	scheduler Scheduler
	delays    Delays
	now       func() time.Time

	// mu serializes read-modify-write of the persisted EngineState
	mu             sync.Mutex
	breakUntil     time.Time
	nextProspectAt time.Time
}

// Delays draws the randomized gap between prospects
type Delays interface {
	GenerateDelay(cfg timing.DelayConfig) time.Duration
}

// ProfileBreakerConfig is the default breaker for profile refreshes.
// Only transient failures count; a missing profile is an answer.
func ProfileBreakerConfig(now func() time.Time) *circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig("profile-refresh")
	cfg.Now = now
	cfg.IsFailure = func(err error) bool {
		return err != nil && !apperrors.IsContentNotFound(err) && !apperrors.IsNonRetryable(err)
	}
	return cfg
}

// New creates an engine. Call Resume before delivering ticks.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	switch {
	case cfg.State == nil:
		return nil, fmt.Errorf("state store cannot be nil")
	case cfg.Counters == nil:
		return nil, fmt.Errorf("daily counter store cannot be nil")
	case cfg.Actions == nil:
		return nil, fmt.Errorf("action log cannot be nil")
	case cfg.API == nil:
		return nil, fmt.Errorf("remote api cannot be nil")
	case cfg.Queue == nil:
		return nil, fmt.Errorf("engagement queue cannot be nil")
	case cfg.Executor == nil:
		return nil, fmt.Errorf("engagement executor cannot be nil")
	case cfg.Pipeline == nil:
		return nil, fmt.Errorf("harvest pipeline cannot be nil")
	case cfg.Limiter == nil:
		return nil, fmt.Errorf("rate limiter cannot be nil")
	case cfg.Detector == nil:
		return nil, fmt.Errorf("block detector cannot be nil")
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	e := &Engine{
		cfg:       cfg.Engine,
		state:     cfg.State,
		counters:  cfg.Counters,
		actions:   cfg.Actions,
		api:       cfg.API,
		queue:     cfg.Queue,
		executor:  cfg.Executor,
		pipeline:  cfg.Pipeline,
		limiter:   cfg.Limiter,
		detector:  cfg.Detector,
		breaker:   cfg.Breaker,
		retry:     cfg.Retry,
		scheduler: cfg.Scheduler,
		delays:    cfg.Delays,
		now:       cfg.Now,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.breaker == nil {
		e.breaker = circuitbreaker.NewCircuitBreaker(ProfileBreakerConfig(e.now))
	}
	if e.retry == nil {
		e.retry = retry.NewExecutor(nil)
	}
	if e.delays == nil {
		e.delays = timing.NewGenerator(e.now().UnixNano(), e.now)
	}
	return e, nil
}

// ActiveHours reports whether hour falls in [start, end). A window with
// start > end wraps past midnight.
func ActiveHours(start, end, hour int) bool {
	if start <= end {
		return start <= hour && hour < end
	}
	return hour >= start || hour < end
}

// Resume rebuilds in-memory state from the persisted records. It must run
// once at process start before any tick.
func (e *Engine) Resume(ctx context.Context) (*models.EngineState, error) {
	logger := logging.FromContext(ctx).Named("engine")

	if saved, err := e.state.GetBlockState(ctx); err != nil {
		return nil, fmt.Errorf("failed to load block state: %w", err)
	} else if saved != nil {
		e.detector.Restore(*saved)
	}

	active, err := e.pipeline.HasActiveSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to check harvest session: %w", err)
	}

	st, err := e.update(ctx, func(st *models.EngineState) bool {
		prev := st.Status
		switch st.Status {
		case types.EngineEngaging:
			st.Status = types.EngineIdle
		case types.EngineHarvesting:
			if !active {
				st.Status = types.EngineIdle
			}
		case types.EngineCooldown:
			if st.CooldownExpired(e.now()) {
				st.Status = types.EngineIdle
				st.CooldownEndsAt = nil
			}
		}
		if prev != st.Status {
			logger.WithFields(map[string]interface{}{
				"from": string(prev),
				"to":   string(st.Status),
			}).Info("Re-derived engine state after restart")
		}
		return true
	})
	if err != nil {
		return nil, err
	}

	if st.Status != types.EnginePaused {
		e.scheduleTicks()
	}
	e.scheduleDaily()

	logger.WithFields(map[string]interface{}{
		"state":         string(st.Status),
		"harvestActive": active,
	}).Info("Engine resumed")
	return st, nil
}

// Start moves the engine to idle and schedules the periodic ticks. An
// unexpired cooldown is kept whatever the prior status. Block state is reset.
func (e *Engine) Start(ctx context.Context) (*models.EngineState, error) {
	// in-flight ticks finish before the status changes
	e.cancelTicks(ctx)

	e.detector.Reset()
	e.persistBlockState(ctx)
	e.limiter.ResetSession()
	e.breaker.Reset()

	e.mu.Lock()
	e.breakUntil = time.Time{}
	e.nextProspectAt = time.Time{}
	e.mu.Unlock()

	st, err := e.update(ctx, func(st *models.EngineState) bool {
		st.LastError = nil
		if st.CooldownEndsAt != nil && !st.CooldownExpired(e.now()) {
			st.Status = types.EngineCooldown
			return true
		}
		st.Status = types.EngineIdle
		st.CooldownEndsAt = nil
		return true
	})
	if err != nil {
		return nil, err
	}

	e.scheduleTicks()
	e.scheduleDaily()
	logging.FromContext(ctx).Named("engine").WithField("state", string(st.Status)).Info("Engine started")
	return st, nil
}

// Stop pauses the engine, cancels the periodic ticks and discards any
// in-flight harvest session. Its cursors are kept for the next session.
func (e *Engine) Stop(ctx context.Context) (*models.EngineState, error) {
	e.cancelTicks(ctx)

	st, err := e.update(ctx, func(st *models.EngineState) bool {
		st.Status = types.EnginePaused
		return true
	})
	if err != nil {
		return nil, err
	}

	cursors, err := e.pipeline.Discard(ctx, st.Cursors)
	if err != nil {
		return nil, fmt.Errorf("failed to discard harvest session: %w", err)
	}
	st, err = e.update(ctx, func(st *models.EngineState) bool {
		mergeCursors(st, cursors)
		return true
	})
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Named("engine").Info("Engine stopped")
	return st, nil
}

// CooldownTick ends an expired cooldown
func (e *Engine) CooldownTick(ctx context.Context) error {
	_, err := e.update(ctx, func(st *models.EngineState) bool {
		return e.expireCooldown(ctx, st)
	})
	return err
}

// DailyReset zeroes today's counters and the detector's daily tallies
func (e *Engine) DailyReset(ctx context.Context) error {
	day := models.DayKey(e.now())
	if err := e.counters.Reset(ctx, day); err != nil {
		return fmt.Errorf("failed to reset daily counters: %w", err)
	}
	e.detector.ResetDailyBlocks()
	e.persistBlockState(ctx)
	logging.FromContext(ctx).Named("engine").WithField("day", day).Info("Daily counters reset")
	return nil
}

// expireCooldown moves an expired cooldown back to idle. It reports whether
// st changed.
func (e *Engine) expireCooldown(ctx context.Context, st *models.EngineState) bool {
	if st.Status != types.EngineCooldown || !st.CooldownExpired(e.now()) {
		return false
	}
	st.Status = types.EngineIdle
	st.CooldownEndsAt = nil
	logging.FromContext(ctx).Named("engine").Info("Cooldown expired, engine idle")
	return true
}

// handleFailure applies the state transition for a structural error. It
// reports whether err was structural.
func (e *Engine) handleFailure(ctx context.Context, err error) bool {
	logger := logging.FromContext(ctx).Named("engine")

	var event *models.BlockEvent
	var cfErr *engagement.ConsecutiveFailuresError
	switch {
	case errors.As(err, &cfErr):
		ev := cfErr.Event
		event = &ev
	case apperrors.IsBlock(err):
		signal := types.SignalUnknown
		if catErr, ok := apperrors.As(err); ok {
			signal = catErr.Signal()
		}
		status, _ := apperrors.StatusCode(err)
		ev := e.detector.ClassifyBlock(signal, status)
		event = &ev
	case apperrors.IsNotAuthenticated(err):
		msg := err.Error()
		_, uerr := e.update(ctx, func(st *models.EngineState) bool {
			st.Status = types.EngineError
			st.LastError = &msg
			return true
		})
		if uerr != nil {
			logger.WithError(uerr).Error("Failed to persist error state")
		}
		logger.WithError(err).Error("Session lost, engine needs re-authentication")
		return true
	default:
		return false
	}

	e.persistBlockState(ctx)

	cooldown := e.cfg.Cooldown()
	if event.Cooldown > cooldown {
		cooldown = event.Cooldown
	}
	endsAt := e.now().Add(cooldown)
	msg := err.Error()
	_, uerr := e.update(ctx, func(st *models.EngineState) bool {
		st.Status = types.EngineCooldown
		st.CooldownEndsAt = &endsAt
		st.LastError = &msg
		return true
	})
	if uerr != nil {
		logger.WithError(uerr).Error("Failed to persist cooldown state")
	}
	logger.WithFields(map[string]interface{}{
		"signal":         string(event.Signal),
		"severity":       string(event.Severity),
		"cooldownEndsAt": endsAt,
	}).Warn("Block detected, entering cooldown")
	return true
}

// update loads the engine state, applies fn and saves it when fn reports a
// change. It returns the resulting state.
func (e *Engine) update(ctx context.Context, fn func(st *models.EngineState) bool) (*models.EngineState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, err := e.loadLocked(ctx)
	if err != nil {
		return nil, err
	}
	prev := st.Status
	if !fn(st) {
		return st, nil
	}
	if !st.Status.Valid() {
		return nil, fmt.Errorf("invalid engine status %q", st.Status)
	}
	st.UpdatedAt = e.now()
	if err := e.state.SaveEngineState(ctx, st); err != nil {
		return nil, fmt.Errorf("failed to save engine state: %w", err)
	}
	if prev != st.Status {
		logging.FromContext(ctx).Named("engine").WithFields(map[string]interface{}{
			"from": string(prev),
			"to":   string(st.Status),
		}).Debug("Engine state transition")
	}
	return st, nil
}

func (e *Engine) loadLocked(ctx context.Context) (*models.EngineState, error) {
	st, err := e.state.GetEngineState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load engine state: %w", err)
	}
	if st == nil {
		st = models.NewEngineState(e.now())
	}
	if st.Cursors == nil {
		st.Cursors = make(map[string]string)
	}
	return st, nil
}

func (e *Engine) persistBlockState(ctx context.Context) {
	bs := e.detector.State()
	if err := e.state.SaveBlockState(ctx, &bs); err != nil {
		logging.FromContext(ctx).Named("engine").WithError(err).Warn("Failed to persist block state")
	}
}

func (e *Engine) scheduleTicks() {
	if e.scheduler == nil {
		return
	}
	e.scheduler.Every(AlarmHarvest, e.cfg.HarvestInterval, e.HarvestTick)
	e.scheduler.Every(AlarmEngage, e.cfg.EngageInterval, e.EngagementTick)
	e.scheduler.Every(AlarmCooldown, e.cfg.CooldownCheckInterval, e.CooldownTick)
}

func (e *Engine) scheduleDaily() {
	if e.scheduler == nil {
		return
	}
	e.scheduler.Daily(AlarmDailyReset, e.DailyReset)
}

func (e *Engine) cancelTicks(ctx context.Context) {
	if e.scheduler == nil {
		return
	}
	e.scheduler.Cancel(ctx, AlarmHarvest)
	e.scheduler.Cancel(ctx, AlarmEngage)
	e.scheduler.Cancel(ctx, AlarmCooldown)
}

func mergeCursors(st *models.EngineState, cursors map[string]string) {
	for src, c := range cursors {
		st.Cursors[src] = c
	}
}
