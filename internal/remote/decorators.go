package remote

import (
	"context"
	stderrors "errors"
	"time"

	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/models"
	"golang.org/x/time/rate"
)

// Paced spaces raw calls to the bridge with a token bucket. It sits below
// the human-like timing delays and only protects the bridge itself.
type Paced struct {
	next    API
	limiter *rate.Limiter
}

// NewPaced wraps next with a limiter of rps calls per second and burst
func NewPaced(next API, rps float64, burst int) *Paced {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	return &Paced{next: next, limiter: rate.NewLimiter(limit, burst)}
}

func (p *Paced) wait(ctx context.Context) error {
	return p.limiter.Wait(ctx)
}

// ResolveUsername waits for a token then delegates
func (p *Paced) ResolveUsername(ctx context.Context, username string) (*models.ProfileSnapshot, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.ResolveUsername(ctx, username)
}

// GetProfile waits for a token then delegates
func (p *Paced) GetProfile(ctx context.Context, userID string) (*models.ProfileSnapshot, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.GetProfile(ctx, userID)
}

// FetchFollowerPage waits for a token then delegates
func (p *Paced) FetchFollowerPage(ctx context.Context, userID, cursor string, pageSize int) (*FollowerPage, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.FetchFollowerPage(ctx, userID, cursor, pageSize)
}

// FetchRecentContent waits for a token then delegates
func (p *Paced) FetchRecentContent(ctx context.Context, userID string, count int) ([]ContentItem, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.FetchRecentContent(ctx, userID, count)
}

// LikeItem waits for a token then delegates
func (p *Paced) LikeItem(ctx context.Context, itemID string) (*LikeResult, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.LikeItem(ctx, itemID)
}

// FollowUser waits for a token then delegates
func (p *Paced) FollowUser(ctx context.Context, userID string) (*FriendshipStatus, error) {
	if err := p.wait(ctx); err != nil {
		return nil, err
	}
	return p.next.FollowUser(ctx, userID)
}

// Bounded caps every call at a fixed timeout. A call that never answers
// fails with a status-coded timeout error, which the retry layer treats as
// retryable.
type Bounded struct {
	next    API
	timeout time.Duration
}

// NewBounded wraps next; a non-positive timeout uses 30s
func NewBounded(next API, timeout time.Duration) *Bounded {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Bounded{next: next, timeout: timeout}
}

func bounded[T any](ctx context.Context, timeout time.Duration, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(callCtx)
	if err != nil && ctx.Err() == nil &&
		(stderrors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded) {
		var zero T
		return zero, apperrors.NewRemoteTimeoutError(op)
	}
	return v, err
}

// ResolveUsername delegates under the timeout
func (b *Bounded) ResolveUsername(ctx context.Context, username string) (*models.ProfileSnapshot, error) {
	return bounded(ctx, b.timeout, OpResolveUsername, func(ctx context.Context) (*models.ProfileSnapshot, error) {
		return b.next.ResolveUsername(ctx, username)
	})
}

// GetProfile delegates under the timeout
func (b *Bounded) GetProfile(ctx context.Context, userID string) (*models.ProfileSnapshot, error) {
	return bounded(ctx, b.timeout, OpGetProfile, func(ctx context.Context) (*models.ProfileSnapshot, error) {
		return b.next.GetProfile(ctx, userID)
	})
}

// FetchFollowerPage delegates under the timeout
func (b *Bounded) FetchFollowerPage(ctx context.Context, userID, cursor string, pageSize int) (*FollowerPage, error) {
	return bounded(ctx, b.timeout, OpFetchFollowerPage, func(ctx context.Context) (*FollowerPage, error) {
		return b.next.FetchFollowerPage(ctx, userID, cursor, pageSize)
	})
}

// FetchRecentContent delegates under the timeout
func (b *Bounded) FetchRecentContent(ctx context.Context, userID string, count int) ([]ContentItem, error) {
	return bounded(ctx, b.timeout, OpFetchRecentContent, func(ctx context.Context) ([]ContentItem, error) {
		return b.next.FetchRecentContent(ctx, userID, count)
	})
}

// LikeItem delegates under the timeout
func (b *Bounded) LikeItem(ctx context.Context, itemID string) (*LikeResult, error) {
	return bounded(ctx, b.timeout, OpLikeItem, func(ctx context.Context) (*LikeResult, error) {
		return b.next.LikeItem(ctx, itemID)
	})
}

// FollowUser delegates under the timeout
func (b *Bounded) FollowUser(ctx context.Context, userID string) (*FriendshipStatus, error) {
	return bounded(ctx, b.timeout, OpFollowUser, func(ctx context.Context) (*FriendshipStatus, error) {
		return b.next.FollowUser(ctx, userID)
	})
}
