// Package remotetest provides an in-memory remote.API for tests.
package remotetest

import (
	"context"
	"sync"

	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/remote"
)

// PageCall records one FetchFollowerPage invocation
type PageCall struct {
	UserID string
	Cursor string
}

// Fake is a scriptable remote.API. Zero-value maps are allocated by New.
type Fake struct {
	mu sync.Mutex

	// Accounts resolves usernames
	Accounts map[string]*models.ProfileSnapshot
	// Profiles answers GetProfile by user id
	Profiles map[string]*models.ProfileSnapshot
	// ProfileErr, when set, fails every GetProfile
	ProfileErr error
	// Pages maps user id then cursor to a page
	Pages map[string]map[string]*remote.FollowerPage
	// PageErrs fails FetchFollowerPage for a user id
	PageErrs map[string]error
	// Content answers FetchRecentContent
	Content map[string][]remote.ContentItem
	// ContentErr, when set, fails every FetchRecentContent
	ContentErr error
	// LikeErrs queues errors per item id, consumed one per call
	LikeErrs map[string][]error
	// FollowErr, when set, fails every FollowUser
	FollowErr error

	PageCalls    []PageCall
	ResolveCalls []string
	LikeCalls    []string
	Liked        []string
	Followed     []string
}

// New returns an empty fake
func New() *Fake {
	return &Fake{
		Accounts: make(map[string]*models.ProfileSnapshot),
		Profiles: make(map[string]*models.ProfileSnapshot),
		Pages:    make(map[string]map[string]*remote.FollowerPage),
		PageErrs: make(map[string]error),
		Content:  make(map[string][]remote.ContentItem),
		LikeErrs: make(map[string][]error),
	}
}

// AddAccount registers a resolvable source account
func (f *Fake) AddAccount(username, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accounts[username] = &models.ProfileSnapshot{UserID: userID, Username: username}
}

// AddPage registers the page served for cursor
func (f *Fake) AddPage(userID, cursor string, next string, followers ...remote.Follower) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Pages[userID] == nil {
		f.Pages[userID] = make(map[string]*remote.FollowerPage)
	}
	f.Pages[userID][cursor] = &remote.FollowerPage{Items: followers, NextCursor: next}
}

// ResolveUsername implements remote.API
func (f *Fake) ResolveUsername(ctx context.Context, username string) (*models.ProfileSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ResolveCalls = append(f.ResolveCalls, username)
	p, ok := f.Accounts[username]
	if !ok {
		return nil, apperrors.NewContentNotFoundError("user", username)
	}
	cp := *p
	return &cp, nil
}

// GetProfile implements remote.API
func (f *Fake) GetProfile(ctx context.Context, userID string) (*models.ProfileSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ProfileErr != nil {
		return nil, f.ProfileErr
	}
	p, ok := f.Profiles[userID]
	if !ok {
		return nil, apperrors.NewContentNotFoundError("user", userID)
	}
	cp := *p
	return &cp, nil
}

// FetchFollowerPage implements remote.API
func (f *Fake) FetchFollowerPage(ctx context.Context, userID, cursor string, pageSize int) (*remote.FollowerPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PageCalls = append(f.PageCalls, PageCall{UserID: userID, Cursor: cursor})
	if err := f.PageErrs[userID]; err != nil {
		return nil, err
	}
	page, ok := f.Pages[userID][cursor]
	if !ok {
		return &remote.FollowerPage{}, nil
	}
	items := page.Items
	if pageSize > 0 && len(items) > pageSize {
		items = items[:pageSize]
	}
	return &remote.FollowerPage{Items: append([]remote.Follower(nil), items...), NextCursor: page.NextCursor}, nil
}

// FetchRecentContent implements remote.API
func (f *Fake) FetchRecentContent(ctx context.Context, userID string, count int) ([]remote.ContentItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ContentErr != nil {
		return nil, f.ContentErr
	}
	items := f.Content[userID]
	if count > 0 && len(items) > count {
		items = items[:count]
	}
	return append([]remote.ContentItem(nil), items...), nil
}

// LikeItem implements remote.API
func (f *Fake) LikeItem(ctx context.Context, itemID string) (*remote.LikeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LikeCalls = append(f.LikeCalls, itemID)
	if queued := f.LikeErrs[itemID]; len(queued) > 0 {
		err := queued[0]
		f.LikeErrs[itemID] = queued[1:]
		if err != nil {
			return nil, err
		}
	}
	f.Liked = append(f.Liked, itemID)
	return &remote.LikeResult{OK: true}, nil
}

// FollowUser implements remote.API
func (f *Fake) FollowUser(ctx context.Context, userID string) (*remote.FriendshipStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FollowErr != nil {
		return nil, f.FollowErr
	}
	f.Followed = append(f.Followed, userID)
	return &remote.FriendshipStatus{Following: true}, nil
}

// Snapshot helpers for assertions

// PageCallsFor returns the cursors requested for userID in order
func (f *Fake) PageCallsFor(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.PageCalls {
		if c.UserID == userID {
			out = append(out, c.Cursor)
		}
	}
	return out
}

var _ remote.API = (*Fake)(nil)
