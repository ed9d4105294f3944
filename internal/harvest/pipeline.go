// Package harvest collects followers of the configured source accounts into
// the prospect queue. A session is resumable: progress is checkpointed after
// every resolution and every page.
package harvest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/ratelimit"
	"github.com/growth-engine/internal/remote"
	"github.com/growth-engine/internal/retry"
	"github.com/growth-engine/internal/storage"
	"github.com/growth-engine/internal/timing"
	"github.com/growth-engine/internal/types"
)

// Defaults
const (
	DefaultPageCap      = 10
	DefaultPerSourceCap = 200
	DefaultPageSize     = 50
	DefaultStallTimeout = 5 * time.Minute
)

// CallDelayConfig spaces consecutive harvest calls
func CallDelayConfig() timing.DelayConfig {
	return timing.DelayConfig{
		MinDelay:             2 * time.Second,
		MaxDelay:             6 * time.Second,
		BurstProbability:     0.1,
		BurstSpeedMultiplier: 0.7,
	}
}

// Outcome of one Tick
type Outcome string

const (
	// OutcomeNoSources means nothing is configured to harvest
	OutcomeNoSources Outcome = "no_sources"
	// OutcomeDone means the session finished and was cleared
	OutcomeDone Outcome = "done"
	// OutcomeAbandoned means a stalled session was discarded
	OutcomeAbandoned Outcome = "abandoned"
	// OutcomeInterrupted means the context ended mid-session; progress is kept
	OutcomeInterrupted Outcome = "interrupted"
)

// Result summarizes one Tick
type Result struct {
	SessionID      string  `json:"sessionId"`
	Outcome        Outcome `json:"outcome"`
	PagesFetched   int     `json:"pagesFetched"`
	ProspectsAdded int     `json:"prospectsAdded"`
	// Cursors are the cursors to carry into the next session. Set when the
	// session ended (done or abandoned).
	Cursors map[string]string `json:"cursors,omitempty"`
}

// Ended reports whether the session is gone after this tick
func (r *Result) Ended() bool {
	return r.Outcome == OutcomeDone || r.Outcome == OutcomeAbandoned
}

// PipelineConfig holds configuration for a harvest pipeline
type PipelineConfig struct {
	API       remote.API
	State     storage.StateStore
	Prospects storage.ProspectStore
	Counters  ratelimit.DailyCounterStore
	// Actions receives one harvest entry per source when a session ends. Optional.
	Actions storage.ActionLogStore
	Retry   *retry.Executor

	Sources      []string
	PageCap      int // Pages per session across all sources (default: 10)
	PerSourceCap int // Prospects per source per session (default: 200)
	PageSize     int // Followers requested per page (default: 50)
	StallTimeout time.Duration

	// Delays spaces remote calls. Default: a generator seeded from the clock.
	Delays *timing.Generator
	// Sleep waits between calls. Default: a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

// Pipeline runs harvest sessions
type Pipeline struct {
	api       remote.API
	state     storage.StateStore
	prospects storage.ProspectStore
	counters  ratelimit.DailyCounterStore
	actions   storage.ActionLogStore
	retry     *retry.Executor

	sources      []string
	pageCap      int
	perSourceCap int
	pageSize     int
	stallTimeout time.Duration

	delays *timing.Generator
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
}

// NewPipeline creates a harvest pipeline
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}
	if cfg.API == nil {
		return nil, fmt.Errorf("remote api cannot be nil")
	}
	if cfg.State == nil {
		return nil, fmt.Errorf("state store cannot be nil")
	}
	if cfg.Prospects == nil {
		return nil, fmt.Errorf("prospect store cannot be nil")
	}
	if cfg.Counters == nil {
		return nil, fmt.Errorf("daily counter store cannot be nil")
	}

	p := &Pipeline{
		api:          cfg.API,
		state:        cfg.State,
		prospects:    cfg.Prospects,
		counters:     cfg.Counters,
		actions:      cfg.Actions,
		retry:        cfg.Retry,
		sources:      append([]string(nil), cfg.Sources...),
		pageCap:      cfg.PageCap,
		perSourceCap: cfg.PerSourceCap,
		pageSize:     cfg.PageSize,
		stallTimeout: cfg.StallTimeout,
		delays:       cfg.Delays,
		sleep:        cfg.Sleep,
		now:          cfg.Now,
	}
	if p.retry == nil {
		p.retry = retry.NewExecutor(nil)
	}
	if p.pageCap <= 0 {
		p.pageCap = DefaultPageCap
	}
	if p.perSourceCap <= 0 {
		p.perSourceCap = DefaultPerSourceCap
	}
	if p.pageSize <= 0 {
		p.pageSize = DefaultPageSize
	}
	if p.stallTimeout <= 0 {
		p.stallTimeout = DefaultStallTimeout
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.delays == nil {
		p.delays = timing.NewGenerator(time.Now().UnixNano(), p.now)
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	return p, nil
}

// HasActiveSession reports whether a harvest session is persisted
func (p *Pipeline) HasActiveSession(ctx context.Context) (bool, error) {
	progress, err := p.state.GetHarvestProgress(ctx)
	if err != nil {
		return false, err
	}
	return progress != nil, nil
}

// Discard drops any in-flight session and returns the cursors worth
// keeping, merged over seed
func (p *Pipeline) Discard(ctx context.Context, seed map[string]string) (map[string]string, error) {
	progress, err := p.state.GetHarvestProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load harvest progress: %w", err)
	}
	if progress == nil {
		return seed, nil
	}
	if err := p.state.ClearHarvestProgress(ctx); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Named("harvest").WithField("sessionId", progress.SessionID).Info("Harvest session discarded")
	return progress.PreservedCursors(seed), nil
}

// Tick resumes the persisted session, or starts one seeded with the
// long-lived cursors, and runs it until it ends or ctx is done.
// Structural remote errors (blocks, lost session) are returned with the
// progress checkpointed so the caller can transition state.
func (p *Pipeline) Tick(ctx context.Context, seed map[string]string) (*Result, error) {
	logger := logging.FromContext(ctx).Named("harvest")

	progress, err := p.state.GetHarvestProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load harvest progress: %w", err)
	}

	if progress != nil && progress.Stalled(p.now(), p.stallTimeout) {
		return p.abandon(ctx, progress, seed)
	}

	if progress == nil {
		if len(p.sources) == 0 {
			return &Result{Outcome: OutcomeNoSources}, nil
		}
		progress = models.NewHarvestProgress(uuid.NewString(), p.sources, seed, p.pageCap, p.now())
		if err := p.save(ctx, progress); err != nil {
			return nil, err
		}
		logger.WithFields(map[string]interface{}{
			"sessionId": progress.SessionID,
			"sources":   len(progress.Sources),
			"pageCap":   progress.PageCap,
		}).Info("Harvest session started")
	}

	result := &Result{SessionID: progress.SessionID}
	logger = logger.WithField("sessionId", progress.SessionID)
	ctx = logging.WithLogger(ctx, logger)

	if progress.Phase == types.HarvestResolving {
		if err := p.resolve(ctx, progress); err != nil {
			return p.interrupted(result, err)
		}
		progress.Advance(types.HarvestFetching)
		if err := p.save(ctx, progress); err != nil {
			return nil, err
		}
	}

	if progress.Phase == types.HarvestFetching {
		if err := p.fetch(ctx, progress, result); err != nil {
			return p.interrupted(result, err)
		}
	}

	return p.finish(ctx, progress, seed, result)
}

func (p *Pipeline) interrupted(result *Result, err error) (*Result, error) {
	result.Outcome = OutcomeInterrupted
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return result, nil
	}
	return result, err
}

// resolve maps each unresolved source to its remote id
func (p *Pipeline) resolve(ctx context.Context, progress *models.HarvestProgress) error {
	logger := logging.FromContext(ctx)
	calls := 0

	for _, src := range progress.Sources {
		if _, ok := progress.ResolvedIDs[src]; ok {
			continue
		}
		if _, failed := progress.Errored[src]; failed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if calls > 0 {
			if err := p.sleep(ctx, p.delays.GenerateDelay(CallDelayConfig())); err != nil {
				return err
			}
		}
		calls++

		profile, err := retry.Do(ctx, p.retry, func(ctx context.Context) (*models.ProfileSnapshot, error) {
			return p.api.ResolveUsername(ctx, src)
		})
		switch {
		case err == nil:
			progress.ResolvedIDs[src] = profile.UserID
			logger.WithField("source", src).WithField("userId", profile.UserID).Debug("Source resolved")
		case apperrors.IsNonRetryable(err), ctx.Err() != nil:
			return err
		default:
			progress.MarkErrored(src)
			logger.WithError(err).WithField("source", src).Warn("Failed to resolve source, skipping for this session")
		}
		progress.Touch(p.now())
		if err := p.save(ctx, progress); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) eligible(progress *models.HarvestProgress, src string) bool {
	if _, ok := progress.ResolvedIDs[src]; !ok {
		return false
	}
	if progress.Exhausted(src) {
		return false
	}
	return progress.Harvested[src] < p.perSourceCap
}

// fetch runs round-robin rounds, one page per eligible source, until the
// page cap is hit or a full round makes no progress
func (p *Pipeline) fetch(ctx context.Context, progress *models.HarvestProgress, result *Result) error {
	n := len(progress.Sources)
	if n == 0 {
		return nil
	}

	for {
		progressed := false
		for step := 0; step < n; step++ {
			if progress.PagesProcessed >= progress.PageCap {
				return nil
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			idx := progress.CurrentIndex % n
			src := progress.Sources[idx]
			if p.eligible(progress, src) {
				if result.PagesFetched > 0 {
					if err := p.sleep(ctx, p.delays.GenerateDelay(CallDelayConfig())); err != nil {
						return err
					}
				}
				ok, err := p.fetchPage(ctx, progress, src, result)
				if err != nil {
					return err
				}
				progressed = progressed || ok
			}

			progress.CurrentIndex = (idx + 1) % n
			if err := p.save(ctx, progress); err != nil {
				return err
			}
		}
		if !progressed {
			return nil
		}
	}
}

// fetchPage fetches and stores one page for src. It reports whether a page
// was fetched; per-source failures mark the source and return no error.
func (p *Pipeline) fetchPage(ctx context.Context, progress *models.HarvestProgress, src string, result *Result) (bool, error) {
	logger := logging.FromContext(ctx).WithField("source", src)
	userID := progress.ResolvedIDs[src]
	cursor, _ := progress.Cursor(src)

	page, err := retry.Do(ctx, p.retry, func(ctx context.Context) (*remote.FollowerPage, error) {
		return p.api.FetchFollowerPage(ctx, userID, cursor, p.pageSize)
	})
	if err != nil {
		if apperrors.IsNonRetryable(err) || ctx.Err() != nil {
			return false, err
		}
		progress.MarkErrored(src)
		progress.Touch(p.now())
		logger.WithError(err).WithField("cursor", cursor).Warn("Follower page failed, skipping source for this session")
		return false, nil
	}

	// the whole page is stored before the cursor moves past it; the
	// per-source cap applies when the next page is selected
	now := p.now()
	added := 0
	for _, f := range page.Items {
		inserted, err := p.prospects.InsertIfAbsent(ctx, &models.Prospect{
			UserID:     f.UserID,
			Username:   f.Username,
			FullName:   f.FullName,
			AvatarURL:  f.AvatarURL,
			IsPrivate:  f.IsPrivate,
			IsVerified: f.IsVerified,
			Source:     src,
			FetchedAt:  now,
			Status:     types.ProspectQueued,
		})
		if err != nil {
			return false, fmt.Errorf("failed to store prospect %s: %w", f.UserID, err)
		}
		if inserted {
			added++
			progress.Harvested[src]++
		}
	}

	progress.SetCursor(src, page.NextCursor)
	progress.PagesProcessed++
	progress.Touch(now)
	result.PagesFetched++
	result.ProspectsAdded += added

	if added > 0 {
		if _, err := p.counters.Increment(ctx, models.DayKey(now), models.CounterDelta{ProspectsAdded: added}); err != nil {
			logger.WithError(err).Warn("Failed to update daily prospect counter")
		}
	}

	logger.WithFields(map[string]interface{}{
		"page":      progress.PagesProcessed,
		"items":     len(page.Items),
		"added":     added,
		"exhausted": page.NextCursor == "",
	}).Debug("Follower page stored")
	return true, nil
}

// finish closes a completed session
func (p *Pipeline) finish(ctx context.Context, progress *models.HarvestProgress, seed map[string]string, result *Result) (*Result, error) {
	logger := logging.FromContext(ctx)
	progress.Advance(types.HarvestDone)

	now := p.now()
	if _, err := p.counters.Increment(ctx, models.DayKey(now), models.CounterDelta{Harvests: 1}); err != nil {
		logger.WithError(err).Warn("Failed to update daily harvest counter")
	}
	p.logSources(ctx, progress, now)

	result.Outcome = OutcomeDone
	result.Cursors = progress.PreservedCursors(seed)
	if err := p.state.ClearHarvestProgress(ctx); err != nil {
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"pages":          progress.PagesProcessed,
		"prospectsAdded": result.ProspectsAdded,
		"errored":        len(progress.Errored),
	}).Info("Harvest session complete")
	return result, nil
}

// abandon discards a stalled session, keeping its cursors
func (p *Pipeline) abandon(ctx context.Context, progress *models.HarvestProgress, seed map[string]string) (*Result, error) {
	result := &Result{
		SessionID: progress.SessionID,
		Outcome:   OutcomeAbandoned,
		Cursors:   progress.PreservedCursors(seed),
	}
	if err := p.state.ClearHarvestProgress(ctx); err != nil {
		return nil, err
	}
	logging.FromContext(ctx).Named("harvest").WithFields(map[string]interface{}{
		"sessionId":      progress.SessionID,
		"phase":          string(progress.Phase),
		"lastProgressAt": progress.LastProgressAt,
	}).Warn("Harvest session stalled, abandoned with cursors preserved")
	return result, nil
}

func (p *Pipeline) logSources(ctx context.Context, progress *models.HarvestProgress, now time.Time) {
	if p.actions == nil {
		return
	}
	for _, src := range progress.Sources {
		entry := &models.ActionLogEntry{
			Action:         types.ActionHarvest,
			TargetID:       progress.ResolvedIDs[src],
			TargetUsername: src,
			Success:        true,
			Timestamp:      now,
		}
		if _, failed := progress.Errored[src]; failed {
			msg := "source failed during session"
			entry.Success = false
			entry.Error = &msg
		}
		if err := p.actions.Append(ctx, entry); err != nil {
			logging.FromContext(ctx).WithError(err).WithField("source", src).Warn("Failed to log harvest action")
		}
	}
}

func (p *Pipeline) save(ctx context.Context, progress *models.HarvestProgress) error {
	if err := p.state.SaveHarvestProgress(ctx, progress); err != nil {
		return fmt.Errorf("failed to save harvest progress: %w", err)
	}
	return nil
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
