package engagement

import (
	"context"
	"testing"
	"time"

	"github.com/growth-engine/internal/blockdetect"
	apperrors "github.com/growth-engine/internal/errors"
	"github.com/growth-engine/internal/models"
	"github.com/growth-engine/internal/remote"
	"github.com/growth-engine/internal/remote/remotetest"
	"github.com/growth-engine/internal/retry"
	"github.com/growth-engine/internal/storage"
	"github.com/growth-engine/internal/timing"
	"github.com/growth-engine/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)

func noSleep(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func setupTestExecutor(t *testing.T, likes int, failures FailureRecorder) (*Executor, *remotetest.Fake, *storage.MemoryActionLog) {
	t.Helper()
	fake := remotetest.New()
	actions := storage.NewMemoryActionLog()
	e, err := NewExecutor(&ExecutorConfig{
		API:              fake,
		Actions:          actions,
		Retry:            retry.NewExecutor(nil, retry.WithSleep(noSleep)),
		Failures:         failures,
		LikesPerProspect: likes,
		Delays:           timing.NewGenerator(1, func() time.Time { return testNow }),
		Sleep:            noSleep,
		Now:              func() time.Time { return testNow },
	})
	require.NoError(t, err)
	return e, fake, actions
}

func prospect(id string) *models.Prospect {
	return &models.Prospect{UserID: id, Username: "user_" + id, Status: types.ProspectQueued}
}

func items(ids ...string) []remote.ContentItem {
	out := make([]remote.ContentItem, 0, len(ids))
	for _, id := range ids {
		out = append(out, remote.ContentItem{ID: id})
	}
	return out
}

func TestQueue_Lifecycle(t *testing.T) {
	store := storage.NewMemoryProspectStore()
	q := NewQueue(store, func() time.Time { return testNow })
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		p := prospect(id)
		p.FetchedAt = testNow.Add(time.Duration(i) * time.Second)
		_, err := store.InsertIfAbsent(ctx, p)
		require.NoError(t, err)
	}

	next, err := q.GetNextProspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", next.UserID)

	require.NoError(t, q.MarkEngaged(ctx, "a", true, nil))
	msg := "like not applied"
	require.NoError(t, q.MarkEngaged(ctx, "b", false, &msg))
	require.NoError(t, q.MarkSkipped(ctx, "c", types.ReasonPrivateAccount))

	next, err = q.GetNextProspect(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)

	stats, err := q.GetQueueStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.QueueStats{Engaged: 1, Failed: 1, Skipped: 1}, stats)

	a, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, a.EngagedAt)
	assert.True(t, testNow.Equal(*a.EngagedAt))

	c, err := store.Get(ctx, "c")
	require.NoError(t, err)
	require.NotNil(t, c.StatusReason)
	assert.Equal(t, "private_account", *c.StatusReason)
}

func TestEngage_SkipsAlreadyLikedItems(t *testing.T) {
	e, fake, actions := setupTestExecutor(t, 2, nil)
	fake.Content["1"] = []remote.ContentItem{{ID: "m1", HasLiked: true}, {ID: "m2"}, {ID: "m3"}, {ID: "m4"}}

	outcome, err := e.Engage(context.Background(), prospect("1"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Likes)
	assert.Equal(t, []string{"m2", "m3"}, fake.Liked)

	entries, err := actions.Query(context.Background(), models.ActionLogQuery{TargetID: "1", Action: types.ActionLike, SuccessOnly: true})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestEngage_RemovedContentIsNotCounted(t *testing.T) {
	e, fake, actions := setupTestExecutor(t, 2, nil)
	fake.Content["1"] = items("m1", "m2", "m3")
	fake.LikeErrs["m1"] = []error{apperrors.NewContentNotFoundError("media", "m1")}

	outcome, err := e.Engage(context.Background(), prospect("1"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Likes)
	assert.Equal(t, 3, outcome.Attempted)
	assert.Equal(t, []string{"m2", "m3"}, fake.Liked)

	failures, err := actions.Query(context.Background(), models.ActionLogQuery{TargetID: "1"})
	require.NoError(t, err)
	for _, entry := range failures {
		assert.True(t, entry.Success, "removed content is not logged as a failure")
	}
}

func TestEngage_TransientErrorsAreRetried(t *testing.T) {
	e, fake, _ := setupTestExecutor(t, 1, nil)
	fake.Content["1"] = items("m1")
	fake.LikeErrs["m1"] = []error{apperrors.NewStatusError(500, "boom"), apperrors.NewRateLimitedError("slow down")}

	outcome, err := e.Engage(context.Background(), prospect("1"), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Likes)
	assert.Equal(t, []string{"m1", "m1", "m1"}, fake.LikeCalls)
}

func TestEngage_BlockAbortsRemainingLikes(t *testing.T) {
	e, fake, actions := setupTestExecutor(t, 3, nil)
	fake.Content["1"] = items("m1", "m2", "m3")
	fake.LikeErrs["m2"] = []error{apperrors.NewActionBlockedError("feedback_required", false)}

	outcome, err := e.Engage(context.Background(), prospect("1"), Options{Follow: true})
	require.Error(t, err)
	assert.True(t, apperrors.IsActionBlocked(err))
	assert.Equal(t, 1, outcome.Likes)
	assert.Equal(t, []string{"m1", "m2"}, fake.LikeCalls)
	assert.Empty(t, fake.Followed)

	entries, err := actions.Query(context.Background(), models.ActionLogQuery{TargetID: "1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Success && entries[1].Success)
}

func TestEngage_SpamRejectionIsABlock(t *testing.T) {
	e, fake, _ := setupTestExecutor(t, 1, nil)
	fake.Content["1"] = items("m1")
	spammy := &spamAPI{Fake: fake}
	e.api = spammy

	_, err := e.Engage(context.Background(), prospect("1"), Options{})
	require.Error(t, err)
	catErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, types.SignalSpamDetected, catErr.Signal())
}

type spamAPI struct {
	*remotetest.Fake
}

func (spamAPI) LikeItem(ctx context.Context, itemID string) (*remote.LikeResult, error) {
	return &remote.LikeResult{OK: false, Spam: true}, nil
}

func TestEngage_AuthErrorOnContentFetch(t *testing.T) {
	e, fake, _ := setupTestExecutor(t, 2, nil)
	fake.ContentErr = apperrors.NewNotAuthenticatedError("session expired")

	_, err := e.Engage(context.Background(), prospect("1"), Options{})
	require.Error(t, err)
	assert.True(t, apperrors.IsNotAuthenticated(err))
}

func TestEngage_NoContent(t *testing.T) {
	e, fake, _ := setupTestExecutor(t, 2, nil)
	fake.Content["1"] = []remote.ContentItem{{ID: "m1", HasLiked: true}}

	outcome, err := e.Engage(context.Background(), prospect("1"), Options{})
	require.NoError(t, err)
	assert.True(t, outcome.NoContent)
	assert.Empty(t, fake.LikeCalls)

	fake.ContentErr = apperrors.NewContentNotFoundError("user", "1")
	outcome, err = e.Engage(context.Background(), prospect("1"), Options{})
	require.NoError(t, err)
	assert.True(t, outcome.NoContent)
}

func TestEngage_FollowAfterLikes(t *testing.T) {
	e, fake, actions := setupTestExecutor(t, 1, nil)
	fake.Content["1"] = items("m1")

	outcome, err := e.Engage(context.Background(), prospect("1"), Options{Follow: true})
	require.NoError(t, err)
	assert.True(t, outcome.Followed)
	assert.Equal(t, []string{"1"}, fake.Followed)

	follows, err := actions.Query(context.Background(), models.ActionLogQuery{Action: types.ActionFollow})
	require.NoError(t, err)
	assert.Len(t, follows, 1)
}

func TestEngage_ConsecutiveFailuresBecomeABlock(t *testing.T) {
	detector := blockdetect.NewDetector(func() time.Time { return testNow })
	e, fake, _ := setupTestExecutor(t, 3, detector)
	e.retry = retry.NewExecutor(&retry.RetryConfig{MaxRetries: 0, RetryableStatuses: []int{500}}, retry.WithSleep(noSleep))

	fake.Content["1"] = items("m1", "m2", "m3", "m4")
	for _, id := range []string{"m1", "m2", "m3"} {
		fake.LikeErrs[id] = []error{apperrors.NewStatusError(500, "boom")}
	}

	outcome, err := e.Engage(context.Background(), prospect("1"), Options{})
	require.Error(t, err)
	var cfErr *ConsecutiveFailuresError
	require.ErrorAs(t, err, &cfErr)
	assert.Equal(t, types.SignalConsecutiveFailures, cfErr.Event.Signal)
	assert.Equal(t, 0, outcome.Likes)
	assert.Equal(t, 3, outcome.Attempted)
}

func TestNewExecutor_Validation(t *testing.T) {
	_, err := NewExecutor(nil)
	assert.Error(t, err)
	_, err = NewExecutor(&ExecutorConfig{API: remotetest.New()})
	assert.Error(t, err)
}
