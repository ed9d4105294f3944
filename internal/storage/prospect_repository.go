package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/types"
	"github.com/jackc/pgx/v5"
)

// ProspectRepository handles prospect persistence in Postgres
type ProspectRepository struct {
	db *PostgresDB
}

// NewProspectRepository creates a new prospect repository
func NewProspectRepository(db *PostgresDB) *ProspectRepository {
	return &ProspectRepository{db: db}
}

const prospectColumns = `
	user_id, username, full_name, avatar_url, is_private, is_verified,
	post_count, follower_count, following_count, source, fetched_at,
	engaged_at, status, status_reason, seq`

func scanProspect(row pgx.Row) (*models.Prospect, error) {
	var p models.Prospect
	err := row.Scan(
		&p.UserID,
		&p.Username,
		&p.FullName,
		&p.AvatarURL,
		&p.IsPrivate,
		&p.IsVerified,
		&p.PostCount,
		&p.FollowerCount,
		&p.FollowingCount,
		&p.Source,
		&p.FetchedAt,
		&p.EngagedAt,
		&p.Status,
		&p.StatusReason,
		&p.Seq,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertIfAbsent inserts p unless the user id already exists
func (r *ProspectRepository) InsertIfAbsent(ctx context.Context, p *models.Prospect) (bool, error) {
	query := `
		INSERT INTO prospects (
			user_id, username, full_name, avatar_url, is_private, is_verified,
			post_count, follower_count, following_count, source, fetched_at, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING seq
	`

	err := r.db.Pool().QueryRow(ctx, query,
		p.UserID,
		p.Username,
		p.FullName,
		p.AvatarURL,
		p.IsPrivate,
		p.IsVerified,
		p.PostCount,
		p.FollowerCount,
		p.FollowingCount,
		p.Source,
		p.FetchedAt,
		p.Status,
	).Scan(&p.Seq)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, apperrors.NewDatabaseError("insert prospect", err)
	}
	return true, nil
}

// Get retrieves a prospect by user id
func (r *ProspectRepository) Get(ctx context.Context, userID string) (*models.Prospect, error) {
	query := `SELECT ` + prospectColumns + ` FROM prospects WHERE user_id = $1`

	p, err := scanProspect(r.db.Pool().QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewContentNotFoundError("prospect", userID)
		}
		return nil, apperrors.NewDatabaseError("get prospect", err)
	}
	return p, nil
}

// NextQueued returns the oldest queued prospect, or nil
func (r *ProspectRepository) NextQueued(ctx context.Context) (*models.Prospect, error) {
	query := `
		SELECT ` + prospectColumns + `
		FROM prospects
		WHERE status = $1
		ORDER BY fetched_at ASC, seq ASC
		LIMIT 1
	`

	p, err := scanProspect(r.db.Pool().QueryRow(ctx, query, types.ProspectQueued))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("next queued prospect", err)
	}
	return p, nil
}

// UpdateProfile stores refreshed profile fields
func (r *ProspectRepository) UpdateProfile(ctx context.Context, p *models.Prospect) error {
	query := `
		UPDATE prospects
		SET username = $2, full_name = $3, avatar_url = $4,
			is_private = $5, is_verified = $6, post_count = $7,
			follower_count = $8, following_count = $9
		WHERE user_id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		p.UserID,
		p.Username,
		p.FullName,
		p.AvatarURL,
		p.IsPrivate,
		p.IsVerified,
		p.PostCount,
		p.FollowerCount,
		p.FollowingCount,
	)
	if err != nil {
		return apperrors.NewDatabaseError("update prospect profile", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewContentNotFoundError("prospect", p.UserID)
	}
	return nil
}

// UpdateStatus transitions a prospect's status
func (r *ProspectRepository) UpdateStatus(ctx context.Context, userID string, status types.ProspectStatus, reason *string, engagedAt *time.Time) error {
	query := `
		UPDATE prospects
		SET status = $2, status_reason = $3, engaged_at = COALESCE($4, engaged_at)
		WHERE user_id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, userID, status, reason, engagedAt)
	if err != nil {
		return apperrors.NewDatabaseError("update prospect status", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewContentNotFoundError("prospect", userID)
	}
	return nil
}

// Stats counts prospects per status
func (r *ProspectRepository) Stats(ctx context.Context) (models.QueueStats, error) {
	var stats models.QueueStats

	rows, err := r.db.Pool().Query(ctx, `SELECT status, COUNT(*) FROM prospects GROUP BY status`)
	if err != nil {
		return stats, apperrors.NewDatabaseError("prospect stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status types.ProspectStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("failed to scan prospect stats: %w", err)
		}
		stats.Add(status, count)
	}
	if err := rows.Err(); err != nil {
		return stats, apperrors.NewDatabaseError("prospect stats", err)
	}
	return stats, nil
}

var _ ProspectStore = (*ProspectRepository)(nil)
