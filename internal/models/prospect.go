package models

import (
	"time"

	"github.com/growth-engine/internal/types"
)

// Prospect represents a harvested candidate account.
// UserID (the remote user id) is unique across the store.
type Prospect struct {
	UserID         string               `json:"userId" db:"user_id"`
	Username       string               `json:"username" db:"username"`
	FullName       string               `json:"fullName" db:"full_name"`
	AvatarURL      string               `json:"avatarUrl,omitempty" db:"avatar_url"`
	IsPrivate      bool                 `json:"isPrivate" db:"is_private"`
	IsVerified     bool                 `json:"isVerified" db:"is_verified"`
	PostCount      int                  `json:"postCount" db:"post_count"`
	FollowerCount  int                  `json:"followerCount" db:"follower_count"`
	FollowingCount int                  `json:"followingCount" db:"following_count"`
	Source         string               `json:"source" db:"source"`
	FetchedAt      time.Time            `json:"fetchedAt" db:"fetched_at"`
	EngagedAt      *time.Time           `json:"engagedAt,omitempty" db:"engaged_at"`
	Status         types.ProspectStatus `json:"status" db:"status"`
	StatusReason   *string              `json:"statusReason,omitempty" db:"status_reason"`
	// Seq is the insertion order, used to break fetchedAt ties
	Seq int64 `json:"seq" db:"seq"`
}

// QueueStats holds prospect counts per status
type QueueStats struct {
	Queued  int `json:"queued"`
	Engaged int `json:"engaged"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Total returns the number of prospects across all statuses
func (s QueueStats) Total() int {
	return s.Queued + s.Engaged + s.Skipped + s.Failed
}

// Add increments the counter for a status
func (s *QueueStats) Add(status types.ProspectStatus, n int) {
	switch status {
	case types.ProspectQueued:
		s.Queued += n
	case types.ProspectEngaged:
		s.Engaged += n
	case types.ProspectSkipped:
		s.Skipped += n
	case types.ProspectFailed:
		s.Failed += n
	}
}
