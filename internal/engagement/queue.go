// Package engagement dequeues prospects and performs the like/follow actions
// for one prospect at a time.
package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/growth-engine/internal/logging"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/storage"
	"github.com/growth-engine/internal/types"
)

// Queue is the FIFO view of queued prospects
type Queue struct {
	store storage.ProspectStore
	now   func() time.Time
}

// NewQueue creates a queue over store; a nil now uses time.Now
func NewQueue(store storage.ProspectStore, now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{store: store, now: now}
}

// GetNextProspect returns the oldest queued prospect, or nil when empty
func (q *Queue) GetNextProspect(ctx context.Context) (*models.Prospect, error) {
	p, err := q.store.NextQueued(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue prospect: %w", err)
	}
	return p, nil
}

// MarkEngaged records the engagement outcome. Success moves the prospect to
// engaged and stamps engagedAt; failure moves it to failed with errMsg.
func (q *Queue) MarkEngaged(ctx context.Context, userID string, success bool, errMsg *string) error {
	if success {
		now := q.now()
		if err := q.store.UpdateStatus(ctx, userID, types.ProspectEngaged, nil, &now); err != nil {
			return fmt.Errorf("failed to mark prospect engaged: %w", err)
		}
	} else {
		if err := q.store.UpdateStatus(ctx, userID, types.ProspectFailed, errMsg, nil); err != nil {
			return fmt.Errorf("failed to mark prospect failed: %w", err)
		}
	}

	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"prospectId": userID,
		"success":    success,
	}).Debug("Prospect engagement recorded")
	return nil
}

// MarkSkipped moves the prospect to skipped
func (q *Queue) MarkSkipped(ctx context.Context, userID string, reason types.SkipReason) error {
	r := string(reason)
	if err := q.store.UpdateStatus(ctx, userID, types.ProspectSkipped, &r, nil); err != nil {
		return fmt.Errorf("failed to mark prospect skipped: %w", err)
	}
	logging.FromContext(ctx).WithFields(map[string]interface{}{
		"prospectId": userID,
		"reason":     r,
	}).Info("Prospect skipped")
	return nil
}

// GetQueueStats returns counts per status
func (q *Queue) GetQueueStats(ctx context.Context) (models.QueueStats, error) {
	return q.store.Stats(ctx)
}

// UpdateProfile stores the refreshed profile fields of p
func (q *Queue) UpdateProfile(ctx context.Context, p *models.Prospect) error {
	if err := q.store.UpdateProfile(ctx, p); err != nil {
		return fmt.Errorf("failed to update prospect profile: %w", err)
	}
	return nil
}
