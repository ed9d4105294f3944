package engagement

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/remote"
	"github.com/growth-engine/internal/retry"
	"github.com/growth-engine/internal/storage"
	"github.com/growth-engine/internal/timing"
	"github.com/growth-engine/internal/types"
)

// Defaults
const (
	DefaultLikesPerProspect = 2
	// contentPerLike is how many recent items are fetched per wanted like
	contentPerLike = 3
)

// FailureRecorder tracks consecutive action failures. RecordFailure
// returns an event once the failures amount to a block.
type FailureRecorder interface {
	RecordSuccess()
	RecordFailure() *models.BlockEvent
}

// ConsecutiveFailuresError aborts engagement after repeated failed actions
type ConsecutiveFailuresError struct {
	Event models.BlockEvent
}

func (e *ConsecutiveFailuresError) Error() string {
	return fmt.Sprintf("consecutive action failures: %s block", e.Event.Severity)
}

// Options scope one Engage call
type Options struct {
	// Follow follows the prospect after at least one successful like
	Follow bool
}

// Outcome is what one Engage call achieved. It is returned alongside any
// error so partial progress is still counted.
type Outcome struct {
	Likes     int  `json:"likes"`
	Attempted int  `json:"attempted"`
	Followed  bool `json:"followed"`
	// NoContent is set when the prospect had nothing left to like
	NoContent bool `json:"noContent"`
}

// ExecutorConfig holds configuration for an engagement executor
type ExecutorConfig struct {
	API     remote.API
	Actions storage.ActionLogStore
	Retry   *retry.Executor
	// Failures observes each like and follow. Optional.
	Failures FailureRecorder

	LikesPerProspect int

	Delays *timing.Generator
	Sleep  func(ctx context.Context, d time.Duration) error
	Now    func() time.Time
}

// Executor performs the actions for one prospect
type Executor struct {
	api      remote.API
	actions  storage.ActionLogStore
	retry    *retry.Executor
	failures FailureRecorder

	likesPerProspect int

	delays *timing.Generator
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// NewExecutor creates an engagement executor
func NewExecutor(cfg *ExecutorConfig) (*Executor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.API == nil {
		return nil, fmt.Errorf("remote api cannot be nil")
	}
	if cfg.Actions == nil {
		return nil, fmt.Errorf("action log cannot be nil")
	}

	e := &Executor{
		api:              cfg.API,
		actions:          cfg.Actions,
		retry:            cfg.Retry,
		failures:         cfg.Failures,
		likesPerProspect: cfg.LikesPerProspect,
		delays:           cfg.Delays,
		sleep:            cfg.Sleep,
		now:              cfg.Now,
	}
	if e.retry == nil {
		e.retry = retry.NewExecutor(nil)
	}
	if e.likesPerProspect <= 0 {
		e.likesPerProspect = DefaultLikesPerProspect
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.delays == nil {
		e.delays = timing.NewGenerator(time.Now().UnixNano(), e.now)
	}
	if e.sleep == nil {
		e.sleep = sleepContext
	}
	return e, nil
}

// Engage likes up to LikesPerProspect unliked recent items of p and
// optionally follows. Block and authentication errors stop the run and are
// returned unchanged; removed content is skipped silently.
func (e *Executor) Engage(ctx context.Context, p *models.Prospect, opts Options) (*Outcome, error) {
	logger := logging.FromContext(ctx).Named("engagement").WithFields(map[string]interface{}{
		"prospectId": p.UserID,
		"username":   p.Username,
	})
	outcome := &Outcome{}

	items, err := retry.Do(ctx, e.retry, func(ctx context.Context) ([]remote.ContentItem, error) {
		return e.api.FetchRecentContent(ctx, p.UserID, e.likesPerProspect*contentPerLike)
	})
	if err != nil {
		if apperrors.IsContentNotFound(err) {
			outcome.NoContent = true
			return outcome, nil
		}
		return outcome, fmt.Errorf("failed to fetch content: %w", err)
	}

	var candidates []remote.ContentItem
	for _, item := range items {
		if !item.HasLiked {
			candidates = append(candidates, item)
		}
	}
	if len(candidates) == 0 {
		outcome.NoContent = true
		return outcome, nil
	}

	for _, item := range candidates {
		if outcome.Likes >= e.likesPerProspect {
			break
		}
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		if outcome.Attempted > 0 {
			if err := e.sleep(ctx, e.delays.GenerateLikeDelay()); err != nil {
				return outcome, err
			}
		}
		outcome.Attempted++

		liked, err := e.like(ctx, p, item.ID)
		if err != nil {
			return outcome, err
		}
		if liked {
			outcome.Likes++
		}
	}

	if outcome.Likes == 0 {
		logger.WithField("attempted", outcome.Attempted).Warn("No likes landed for prospect")
		return outcome, nil
	}

	if opts.Follow {
		if err := e.sleep(ctx, e.delays.GenerateLikeDelay()); err != nil {
			return outcome, err
		}
		followed, err := e.follow(ctx, p)
		if err != nil {
			return outcome, err
		}
		outcome.Followed = followed
	}

	logger.WithFields(map[string]interface{}{
		"likes":    outcome.Likes,
		"followed": outcome.Followed,
	}).Info("Prospect engaged")
	return outcome, nil
}

// like performs one like. It reports whether the like landed; a non-nil
// error means the run must stop.
func (e *Executor) like(ctx context.Context, p *models.Prospect, itemID string) (bool, error) {
	res, err := retry.Do(ctx, e.retry, func(ctx context.Context) (*remote.LikeResult, error) {
		return e.api.LikeItem(ctx, itemID)
	})
	if err == nil && !res.OK && res.Spam {
		err = apperrors.NewActionBlockedError("like rejected as spam", true)
	}

	switch {
	case err == nil && res.OK:
		e.record(ctx, types.ActionLike, p, &itemID, nil)
		if e.failures != nil {
			e.failures.RecordSuccess()
		}
		return true, nil
	case apperrors.IsContentNotFound(err):
		return false, nil
	case err == nil:
		err = errors.New("like not applied")
	}

	e.record(ctx, types.ActionLike, p, &itemID, err)
	if apperrors.IsNonRetryable(err) || ctx.Err() != nil {
		return false, err
	}
	return false, e.countFailure()
}

func (e *Executor) follow(ctx context.Context, p *models.Prospect) (bool, error) {
	status, err := retry.Do(ctx, e.retry, func(ctx context.Context) (*remote.FriendshipStatus, error) {
		return e.api.FollowUser(ctx, p.UserID)
	})
	if err == nil {
		e.record(ctx, types.ActionFollow, p, nil, nil)
		if e.failures != nil {
			e.failures.RecordSuccess()
		}
		return status.Following || status.OutgoingRequest, nil
	}

	e.record(ctx, types.ActionFollow, p, nil, err)
	if apperrors.IsNonRetryable(err) || ctx.Err() != nil {
		return false, err
	}
	return false, e.countFailure()
}

func (e *Executor) countFailure() error {
	if e.failures == nil {
		return nil
	}
	if event := e.failures.RecordFailure(); event != nil {
		return &ConsecutiveFailuresError{Event: *event}
	}
	return nil
}

func (e *Executor) record(ctx context.Context, action types.ActionKind, p *models.Prospect, mediaID *string, actionErr error) {
	entry := &models.ActionLogEntry{
		Action:         action,
		TargetID:       p.UserID,
		TargetUsername: p.Username,
		MediaID:        mediaID,
		Success:        actionErr == nil,
		Timestamp:      e.now(),
	}
	if actionErr != nil {
		msg := actionErr.Error()
		entry.Error = &msg
	}
	if err := e.actions.Append(ctx, entry); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("action", string(action)).Warn("Failed to write action log")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
