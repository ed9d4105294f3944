package storage

import (
	"context"
	"time"

	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/types"
)

// ProspectStore is the prospect record store. UserID is unique.
type ProspectStore interface {
	// InsertIfAbsent inserts p unless its UserID is already stored.
	// It reports whether a row was written and assigns p.Seq when it was.
	InsertIfAbsent(ctx context.Context, p *models.Prospect) (bool, error)
	// Get returns the prospect or a content-not-found error
	Get(ctx context.Context, userID string) (*models.Prospect, error)
	// NextQueued returns the queued prospect with the earliest FetchedAt,
	// ties broken by Seq. It returns nil when the queue is empty.
	NextQueued(ctx context.Context) (*models.Prospect, error)
	// UpdateProfile stores refreshed profile fields
	UpdateProfile(ctx context.Context, p *models.Prospect) error
	// UpdateStatus transitions a prospect
	UpdateStatus(ctx context.Context, userID string, status types.ProspectStatus, reason *string, engagedAt *time.Time) error
	// Stats counts prospects per status
	Stats(ctx context.Context) (models.QueueStats, error)
}

// ActionLogStore is the append-only action log
type ActionLogStore interface {
	Append(ctx context.Context, entry *models.ActionLogEntry) error
	// Query returns matching entries, newest first
	Query(ctx context.Context, q models.ActionLogQuery) ([]models.ActionLogEntry, error)
}

// StateStore persists the engine's single-key records
type StateStore interface {
	GetEngineState(ctx context.Context) (*models.EngineState, error)
	SaveEngineState(ctx context.Context, s *models.EngineState) error

	// GetHarvestProgress returns nil when no session is active
	GetHarvestProgress(ctx context.Context) (*models.HarvestProgress, error)
	SaveHarvestProgress(ctx context.Context, p *models.HarvestProgress) error
	ClearHarvestProgress(ctx context.Context) error

	// GetBlockState returns nil when nothing was saved
	GetBlockState(ctx context.Context) (*models.BlockState, error)
	SaveBlockState(ctx context.Context, s *models.BlockState) error
}
