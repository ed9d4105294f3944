package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/growth-engine/internal/models"
)

// ActionDailySummary aggregates one action kind over one day
type ActionDailySummary struct {
	Day       time.Time `json:"day"`
	Action    string    `json:"action"`
	Successes uint64    `json:"successes"`
	Failures  uint64    `json:"failures"`
}

// ActionAnalyticsRepository mirrors action log entries into ClickHouse
type ActionAnalyticsRepository struct {
	db *ClickHouseDB
}

// NewActionAnalyticsRepository creates a new analytics repository
func NewActionAnalyticsRepository(db *ClickHouseDB) *ActionAnalyticsRepository {
	return &ActionAnalyticsRepository{db: db}
}

// Record appends entries to action_events
func (r *ActionAnalyticsRepository) Record(ctx context.Context, entries ...*models.ActionLogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch, err := r.db.Conn().PrepareBatch(ctx, `
		INSERT INTO action_events (id, action, target_id, target_username, media_id, success, error, timestamp)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, e := range entries {
		var mediaID, errText string
		if e.MediaID != nil {
			mediaID = *e.MediaID
		}
		if e.Error != nil {
			errText = *e.Error
		}
		if err := batch.Append(e.ID, string(e.Action), e.TargetID, e.TargetUsername, mediaID, e.Success, errText, e.Timestamp); err != nil {
			return fmt.Errorf("failed to append to batch: %w", err)
		}
	}

	return batch.Send()
}

// DailySummary returns per-day, per-action success and failure counts
func (r *ActionAnalyticsRepository) DailySummary(ctx context.Context, from, to time.Time) ([]ActionDailySummary, error) {
	query := `
		SELECT toDate(timestamp) AS day, action, countIf(success) AS successes, countIf(NOT success) AS failures
		FROM action_events
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY day, action
		ORDER BY day ASC, action ASC
	`

	rows, err := r.db.Conn().Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query action summary: %w", err)
	}
	defer rows.Close()

	var out []ActionDailySummary
	for rows.Next() {
		var s ActionDailySummary
		if err := rows.Scan(&s.Day, &s.Action, &s.Successes, &s.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan action summary: %w", err)
		}
		out = append(out, s)
	}

	return out, rows.Err()
}
