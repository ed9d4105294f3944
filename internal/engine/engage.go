package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/growth-engine/internal/botscore"
	"github.com/growth-engine/internal/engagement"
	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/filter"
	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/ratelimit"
	"github.com/growth-engine/internal/retry"
	"github.com/growth-engine/internal/timing"
	"github.com/growth-engine/internal/types"
)

// EngagementTick engages the next queued prospect. Guard failures (outside
// active hours, limits reached, empty queue) are silent no-ops.
func (e *Engine) EngagementTick(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("engine").WithField("tick", "engagement")
	ctx = logging.WithLogger(ctx, logger)

	st, err := e.update(ctx, func(st *models.EngineState) bool {
		return e.expireCooldown(ctx, st)
	})
	if err != nil {
		return err
	}
	if st.Status != types.EngineIdle {
		logger.WithField("state", string(st.Status)).Debug("Engagement tick deferred")
		return nil
	}

	now := e.now()
	if !ActiveHours(e.cfg.ActiveHoursStart, e.cfg.ActiveHoursEnd, now.Hour()) {
		logger.WithField("hour", now.Hour()).Debug("Outside active hours")
		return nil
	}
	if ok, err := e.allowed(ctx, now); err != nil || !ok {
		return err
	}
	if !e.breaker.Allow() {
		logger.Debug("Profile refresh circuit open, deferring engagement")
		return nil
	}

	p, err := e.queue.GetNextProspect(ctx)
	if err != nil {
		return err
	}
	if p == nil {
		logger.Debug("Engagement queue empty")
		return nil
	}

	claimed := false
	if _, err := e.update(ctx, func(st *models.EngineState) bool {
		if st.Status != types.EngineIdle {
			return false
		}
		claimed = true
		st.Status = types.EngineEngaging
		return true
	}); err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	runErr := e.engageProspect(ctx, p)
	e.persistBlockState(ctx)

	if runErr != nil && e.handleFailure(ctx, runErr) {
		return nil
	}

	finishedAt := e.now()
	e.spaceNextProspect(ctx, finishedAt)
	if _, err := e.update(ctx, func(st *models.EngineState) bool {
		if st.Status != types.EngineEngaging {
			return false
		}
		st.Status = types.EngineIdle
		st.LastActionAt = &finishedAt
		return true
	}); err != nil {
		return err
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("engagement tick failed: %w", runErr)
	}
	return nil
}

// allowed applies the daily like limit, the rate limiter, the gap between
// prospects and any pending consecutive-action break
func (e *Engine) allowed(ctx context.Context, now time.Time) (bool, error) {
	logger := logging.FromContext(ctx)

	e.mu.Lock()
	breakUntil, nextProspectAt := e.breakUntil, e.nextProspectAt
	e.mu.Unlock()
	if now.Before(breakUntil) {
		logger.WithField("breakUntil", breakUntil).Debug("Taking a break")
		return false, nil
	}
	if now.Before(nextProspectAt) {
		logger.WithField("nextProspectAt", nextProspectAt).Debug("Waiting between prospects")
		return false, nil
	}

	decision, err := e.limiter.CheckRateLimits(ctx, ratelimit.Limits{
		Action:       types.ActionLike,
		MinDelay:     e.cfg.MinDelay(),
		HourlyLimit:  e.cfg.HourlyActionLimit,
		SessionLimit: e.cfg.SessionActionLimit,
		DailyLimit:   e.cfg.DailyLikeLimit,
	})
	if err != nil {
		return false, err
	}
	if !decision.Allowed {
		logger.WithFields(map[string]interface{}{
			"reason":     decision.Reason,
			"retryAfter": decision.RetryAfter,
		}).Debug("Rate limited")
		return false, nil
	}

	if pause := e.limiter.ShouldTakeBreak(); pause > 0 {
		e.limiter.RecordBreak()
		e.mu.Lock()
		e.breakUntil = now.Add(pause)
		e.mu.Unlock()
		logger.WithField("pause", pause).Info("Consecutive action threshold reached, taking a break")
		return false, nil
	}
	return true, nil
}

// spaceNextProspect holds the next prospect back by a randomized delay drawn
// between the configured min and max delays. A zero max disables spacing.
func (e *Engine) spaceNextProspect(ctx context.Context, from time.Time) {
	if e.cfg.MaxDelay() <= 0 {
		return
	}
	gap := e.delays.GenerateDelay(timing.DelayConfig{
		MinDelay: e.cfg.MinDelay(),
		MaxDelay: e.cfg.MaxDelay(),
	})
	e.mu.Lock()
	e.nextProspectAt = from.Add(gap)
	e.mu.Unlock()
	logging.FromContext(ctx).WithField("gap", gap).Debug("Next prospect scheduled")
}

// engageProspect refreshes, filters and engages one prospect and records
// the outcome on the queue. A returned error is structural or unexpected.
func (e *Engine) engageProspect(ctx context.Context, p *models.Prospect) error {
	logger := logging.FromContext(ctx).WithFields(map[string]interface{}{
		"prospectId": p.UserID,
		"username":   p.Username,
	})
	ctx = logging.WithLogger(ctx, logger)

	snapshot, err := e.refreshProfile(ctx, p)
	switch {
	case err == nil:
	case apperrors.IsContentNotFound(err):
		return e.skip(ctx, p, types.ReasonNoContent, nil)
	case apperrors.IsNonRetryable(err), errors.Is(err, context.Canceled):
		return err
	default:
		logger.WithError(err).Warn("Profile refresh failed, post count filter bypassed")
	}

	if snapshot != nil && e.cfg.BotFilterEnabled {
		score := botscore.Score(botInput(snapshot))
		if score.IsLikelyBot(e.cfg.BotScoreThreshold) {
			return e.skip(ctx, p, types.ReasonLikelyBot, &score.Score)
		}
	}

	now := e.now()
	history, err := e.actions.Query(ctx, models.ActionLogQuery{
		TargetID:    p.UserID,
		Action:      types.ActionLike,
		SuccessOnly: true,
		Since:       now.Add(-e.cfg.ReEngagementCooldown()),
	})
	if err != nil {
		return fmt.Errorf("failed to load engagement history: %w", err)
	}
	verdict := filter.FilterProspect(*p, filter.Config{
		SkipPrivate:           e.cfg.SkipPrivate,
		SkipVerified:          e.cfg.SkipVerified,
		MinPostCount:          e.cfg.MinPostCount,
		SkipPreviouslyEngaged: e.cfg.SkipPreviouslyEngaged,
		ReEngagementCooldown:  e.cfg.ReEngagementCooldown(),
		BypassPostCount:       snapshot == nil,
	}, history, now)
	if !verdict.Passed {
		return e.skip(ctx, p, verdict.Reason, nil)
	}

	follow, err := e.followAllowed(ctx, now)
	if err != nil {
		return err
	}

	outcome, runErr := e.executor.Engage(ctx, p, engagement.Options{Follow: follow})
	e.count(ctx, outcome)

	switch {
	case runErr == nil && outcome.NoContent:
		return e.skip(ctx, p, types.ReasonNoContent, nil)
	case runErr == nil && outcome.Likes > 0:
		return e.queue.MarkEngaged(ctx, p.UserID, true, nil)
	case runErr == nil:
		msg := "no likes landed"
		return e.queue.MarkEngaged(ctx, p.UserID, false, &msg)
	case outcome != nil && outcome.Likes > 0:
		if err := e.queue.MarkEngaged(ctx, p.UserID, true, nil); err != nil {
			logger.WithError(err).Warn("Failed to mark partially engaged prospect")
		}
		return runErr
	case structural(runErr):
		// not the prospect's fault; it stays queued for after recovery
		return runErr
	default:
		msg := runErr.Error()
		if err := e.queue.MarkEngaged(ctx, p.UserID, false, &msg); err != nil {
			logger.WithError(err).Warn("Failed to mark prospect failed")
		}
		return runErr
	}
}

// refreshProfile fetches fresh counts through the circuit breaker and
// stores them on the prospect
func (e *Engine) refreshProfile(ctx context.Context, p *models.Prospect) (*models.ProfileSnapshot, error) {
	snapshot, err := retry.Do(ctx, e.retry, func(ctx context.Context) (*models.ProfileSnapshot, error) {
		return e.api.GetProfile(ctx, p.UserID)
	})
	e.breaker.Record(err)
	if err != nil {
		return nil, err
	}

	p.ApplyProfile(snapshot)
	if err := e.queue.UpdateProfile(ctx, p); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to store refreshed profile")
	}
	return snapshot, nil
}

func (e *Engine) followAllowed(ctx context.Context, now time.Time) (bool, error) {
	if !e.cfg.FollowAfterLike {
		return false, nil
	}
	counters, err := e.counters.Get(ctx, models.DayKey(now))
	if err != nil {
		return false, fmt.Errorf("failed to read daily counters: %w", err)
	}
	return counters.Follows < e.cfg.DailyFollowLimit, nil
}

// count feeds the landed actions into the daily counters and the limiter
func (e *Engine) count(ctx context.Context, outcome *engagement.Outcome) {
	if outcome == nil {
		return
	}
	delta := models.CounterDelta{Likes: outcome.Likes}
	if outcome.Followed {
		delta.Follows = 1
	}
	for i := 0; i < delta.Likes+delta.Follows; i++ {
		e.limiter.RecordAction()
	}
	if delta.Likes == 0 && delta.Follows == 0 {
		return
	}
	if _, err := e.counters.Increment(ctx, models.DayKey(e.now()), delta); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to update daily counters")
	}
}

func (e *Engine) skip(ctx context.Context, p *models.Prospect, reason types.SkipReason, score *float64) error {
	msg := string(reason)
	entry := &models.ActionLogEntry{
		Action:         types.ActionFilter,
		TargetID:       p.UserID,
		TargetUsername: p.Username,
		Success:        true,
		Error:          &msg,
		Timestamp:      e.now(),
	}
	if err := e.actions.Append(ctx, entry); err != nil {
		logging.FromContext(ctx).WithError(err).Warn("Failed to write filter action log")
	}
	if score != nil {
		logging.FromContext(ctx).WithField("botScore", *score).Info("Prospect scored as likely bot")
	}
	return e.queue.MarkSkipped(ctx, p.UserID, reason)
}

func structural(err error) bool {
	var cfErr *engagement.ConsecutiveFailuresError
	return errors.As(err, &cfErr) || apperrors.IsNonRetryable(err) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func botInput(s *models.ProfileSnapshot) botscore.Input {
	return botscore.Input{
		Username:       s.Username,
		FullName:       s.FullName,
		HasProfilePic:  s.HasProfilePic,
		Biography:      s.Biography,
		PostCount:      s.PostCount,
		FollowerCount:  s.FollowerCount,
		FollowingCount: s.FollowingCount,
		IsPrivate:      s.IsPrivate,
		HasExternalURL: s.ExternalURL != "",
	}
}
