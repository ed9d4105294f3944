// Package remote is the port to the authenticated session. Implementations
// issue the actual calls from a context holding live session credentials and
// return typed results or categorized errors from internal/errors.
package remote

import (
	"context"
	"time"

	"github.com/growth-engine/internal/models"
)

// API is every remote operation the engine performs
type API interface {
	// ResolveUsername maps a username to its profile, including the remote id
	ResolveUsername(ctx context.Context, username string) (*models.ProfileSnapshot, error)
	// GetProfile refreshes a profile by remote id
	GetProfile(ctx context.Context, userID string) (*models.ProfileSnapshot, error)
	// FetchFollowerPage returns one page of followers; cursor "" is the first page
	FetchFollowerPage(ctx context.Context, userID, cursor string, pageSize int) (*FollowerPage, error)
	// FetchRecentContent returns up to count recent items posted by userID
	FetchRecentContent(ctx context.Context, userID string, count int) ([]ContentItem, error)
	// LikeItem likes one content item
	LikeItem(ctx context.Context, itemID string) (*LikeResult, error)
	// FollowUser follows userID
	FollowUser(ctx context.Context, userID string) (*FriendshipStatus, error)
}

// Follower is one entry of a follower page
type Follower struct {
	UserID     string `json:"userId"`
	Username   string `json:"username"`
	FullName   string `json:"fullName"`
	AvatarURL  string `json:"avatarUrl,omitempty"`
	IsPrivate  bool   `json:"isPrivate"`
	IsVerified bool   `json:"isVerified"`
}

// FollowerPage is one page of followers. An empty NextCursor means the
// list is exhausted.
type FollowerPage struct {
	Items      []Follower `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// ContentItem is one recent post
type ContentItem struct {
	ID       string    `json:"id"`
	HasLiked bool      `json:"hasLiked"`
	TakenAt  time.Time `json:"takenAt"`
}

// LikeResult is the outcome of a like. Spam marks a rejection the remote
// side attributed to spam detection.
type LikeResult struct {
	OK   bool `json:"ok"`
	Spam bool `json:"spam,omitempty"`
}

// FriendshipStatus is the relationship after a follow
type FriendshipStatus struct {
	Following       bool `json:"following"`
	OutgoingRequest bool `json:"outgoingRequest"`
}
