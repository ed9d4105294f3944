package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/models"
)

// ActionLogRepository handles the action log in Postgres
type ActionLogRepository struct {
	db *PostgresDB
}

// NewActionLogRepository creates a new action log repository
func NewActionLogRepository(db *PostgresDB) *ActionLogRepository {
	return &ActionLogRepository{db: db}
}

// Append writes one entry. A missing id is generated.
func (r *ActionLogRepository) Append(ctx context.Context, e *models.ActionLogEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	query := `
		INSERT INTO action_log (
			id, action, target_id, target_username, media_id, success, error, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		e.ID,
		e.Action,
		e.TargetID,
		e.TargetUsername,
		e.MediaID,
		e.Success,
		e.Error,
		e.Timestamp,
	)
	if err != nil {
		return apperrors.NewDatabaseError("append action log", err)
	}
	return nil
}

// Query returns entries matching q, newest first
func (r *ActionLogRepository) Query(ctx context.Context, q models.ActionLogQuery) ([]models.ActionLogEntry, error) {
	var (
		conditions []string
		args       []interface{}
	)
	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}

	if q.TargetID != "" {
		add("target_id = $%d", q.TargetID)
	}
	if q.Action != "" {
		add("action = $%d", q.Action)
	}
	if q.SuccessOnly {
		conditions = append(conditions, "success = TRUE")
	}
	if !q.Since.IsZero() {
		add("timestamp >= $%d", q.Since)
	}

	query := `
		SELECT id, action, target_id, target_username, media_id, success, error, timestamp
		FROM action_log`
	if len(conditions) > 0 {
		query += "\n\t\tWHERE " + strings.Join(conditions, " AND ")
	}
	query += "\n\t\tORDER BY timestamp DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf("\n\t\tLIMIT $%d", len(args))
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabaseError("query action log", err)
	}
	defer rows.Close()

	var entries []models.ActionLogEntry
	for rows.Next() {
		var e models.ActionLogEntry
		if err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.TargetID,
			&e.TargetUsername,
			&e.MediaID,
			&e.Success,
			&e.Error,
			&e.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan action log entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("query action log", err)
	}
	return entries, nil
}

var _ ActionLogStore = (*ActionLogRepository)(nil)
