package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proerror77/Nova-sub006/pkg/cache"
	apperrors "github.com/proerror77/Nova-sub006/pkg/errors"
	"github.com/proerror77/Nova-sub006/pkg/kafka"
	"github.com/proerror77/Nova-sub006/services/feed/internal/event"
	"github.com/proerror77/Nova-sub006/services/feed/internal/ranking"
	"github.com/proerror77/Nova-sub006/services/feed/internal/repository/postgres"
)

// stubRepo implements repository.FeedRepository with overridable behavior.
type stubRepo struct {
	candidatesFn   func(ctx context.Context, userID string, since time.Time, limit int) ([]ranking.Candidate, error)
	replaceFn      func(ctx context.Context, userID string, entries []ranking.Scored) error
	fetchPageFn    func(ctx context.Context, userID string, afterRank int64, limit int) ([]postgres.FeedEntry, error)
	removeAuthorFn func(ctx context.Context, authorID string) (int64, error)
	deleteFeedFn   func(ctx context.Context, userID string) error
	followerIDsFn  func(ctx context.Context, authorID, afterID string, limit int) ([]string, error)
	activeIDsFn    func(ctx context.Context, afterID string, limit int) ([]string, error)

	fetchPageCalls int
}

func (s *stubRepo) CandidatesForUser(ctx context.Context, userID string, since time.Time, limit int) ([]ranking.Candidate, error) {
	if s.candidatesFn != nil {
		return s.candidatesFn(ctx, userID, since, limit)
	}
	return nil, nil
}

func (s *stubRepo) ReplaceFeed(ctx context.Context, userID string, entries []ranking.Scored) error {
	if s.replaceFn != nil {
		return s.replaceFn(ctx, userID, entries)
	}
	return nil
}

func (s *stubRepo) FetchPage(ctx context.Context, userID string, afterRank int64, limit int) ([]postgres.FeedEntry, error) {
	s.fetchPageCalls++
	if s.fetchPageFn != nil {
		return s.fetchPageFn(ctx, userID, afterRank, limit)
	}
	return nil, nil
}

func (s *stubRepo) DeleteUserFeed(ctx context.Context, userID string) error {
	if s.deleteFeedFn != nil {
		return s.deleteFeedFn(ctx, userID)
	}
	return nil
}

func (s *stubRepo) RemoveAuthor(ctx context.Context, authorID string) (int64, error) {
	if s.removeAuthorFn != nil {
		return s.removeAuthorFn(ctx, authorID)
	}
	return 0, nil
}

func (s *stubRepo) Resequence(context.Context, string) error { return nil }

func (s *stubRepo) TrendingPosts(context.Context, time.Time, int) ([]postgres.TrendingPost, error) {
	return []postgres.TrendingPost{{PostID: "p-hot", AuthorID: "a-1", Heat: 99}}, nil
}

func (s *stubRepo) SuggestedUsers(context.Context, time.Time, int) ([]postgres.SuggestedUser, error) {
	return []postgres.SuggestedUser{{UserID: "a-2", RecentFollowers: 12}}, nil
}

func (s *stubRepo) HotUserIDs(context.Context, time.Time, int) ([]string, error) { return nil, nil }

func (s *stubRepo) FollowerIDs(ctx context.Context, authorID, afterID string, limit int) ([]string, error) {
	if s.followerIDsFn != nil {
		return s.followerIDsFn(ctx, authorID, afterID, limit)
	}
	return nil, nil
}

func (s *stubRepo) ActiveUserIDs(ctx context.Context, afterID string, limit int) ([]string, error) {
	if s.activeIDsFn != nil {
		return s.activeIDsFn(ctx, afterID, limit)
	}
	return nil, nil
}

func newTestService(t *testing.T, repo *stubRepo) (*FeedService, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.DiscardHandler)
	ranker, err := ranking.NewRanker(ranking.DefaultWeights(), ranking.DefaultEngagementWeights())
	require.NoError(t, err)

	return NewFeedService(repo, cache.New(client, logger), ranker, DefaultConfig(), logger), mr
}

func pageEntries(userID string, fromRank int64, n int) []postgres.FeedEntry {
	out := make([]postgres.FeedEntry, n)
	for i := range out {
		rank := fromRank + int64(i)
		out[i] = postgres.FeedEntry{
			UserID:   userID,
			PostID:   fmt.Sprintf("p-%d", rank),
			AuthorID: fmt.Sprintf("a-%d", rank),
			Rank:     rank,
			Score:    1.0 / float64(rank),
		}
	}
	return out
}

// --- GetFeed ---

func TestGetFeed_ServesFromStoreAndSetsCursor(t *testing.T) {
	repo := &stubRepo{
		fetchPageFn: func(_ context.Context, userID string, afterRank int64, limit int) ([]postgres.FeedEntry, error) {
			assert.Equal(t, int64(0), afterRank)
			assert.Equal(t, 4, limit, "service over-fetches by one to detect more pages")
			return pageEntries(userID, 1, 4), nil
		},
	}
	svc, _ := newTestService(t, repo)

	page, err := svc.GetFeed(context.Background(), "u-1", "", 3)
	require.NoError(t, err)

	require.Len(t, page.Items, 3)
	assert.True(t, page.HasMore)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("3")), page.NextCursor)
	assert.Equal(t, int64(1), page.Items[0].Rank)
}

func TestGetFeed_CursorContinuesFromRank(t *testing.T) {
	repo := &stubRepo{
		fetchPageFn: func(_ context.Context, userID string, afterRank int64, _ int) ([]postgres.FeedEntry, error) {
			assert.Equal(t, int64(3), afterRank)
			return pageEntries(userID, 4, 2), nil
		},
	}
	svc, _ := newTestService(t, repo)

	cur := base64.StdEncoding.EncodeToString([]byte("3"))
	page, err := svc.GetFeed(context.Background(), "u-1", cur, 3)
	require.NoError(t, err)

	require.Len(t, page.Items, 2)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestGetFeed_SecondReadHitsCache(t *testing.T) {
	repo := &stubRepo{
		fetchPageFn: func(_ context.Context, userID string, _ int64, _ int) ([]postgres.FeedEntry, error) {
			return pageEntries(userID, 1, 2), nil
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.GetFeed(context.Background(), "u-1", "", 5)
	require.NoError(t, err)
	page, err := svc.GetFeed(context.Background(), "u-1", "", 5)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.fetchPageCalls, "second read must come from cache")
	assert.Len(t, page.Items, 2)
}

func TestGetFeed_StoreFailureDegradesToEmptyPage(t *testing.T) {
	repo := &stubRepo{
		fetchPageFn: func(context.Context, string, int64, int) ([]postgres.FeedEntry, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc, _ := newTestService(t, repo)

	page, err := svc.GetFeed(context.Background(), "u-1", "", 10)
	require.NoError(t, err, "a reader never sees a store failure")
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestGetFeed_MalformedCursorRejected(t *testing.T) {
	svc, _ := newTestService(t, &stubRepo{})

	_, err := svc.GetFeed(context.Background(), "u-1", "not-base64!!!", 10)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestGetFeed_OversizedPageRejected(t *testing.T) {
	svc, _ := newTestService(t, &stubRepo{})

	_, err := svc.GetFeed(context.Background(), "u-1", "", 101)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

// --- Materialize ---

func TestMaterialize_PersistsDenseRanksAndDropsPages(t *testing.T) {
	now := time.Now().UTC()
	var persisted []ranking.Scored
	repo := &stubRepo{
		candidatesFn: func(context.Context, string, time.Time, int) ([]ranking.Candidate, error) {
			return []ranking.Candidate{
				{PostID: "p-1", AuthorID: "a-1", CreatedAt: now.Add(-time.Hour), Likes: 50},
				{PostID: "p-2", AuthorID: "a-2", CreatedAt: now.Add(-30 * time.Hour)},
				{PostID: "p-3", AuthorID: "a-3", CreatedAt: now.Add(-2 * time.Hour), Likes: 5},
			}, nil
		},
		replaceFn: func(_ context.Context, _ string, entries []ranking.Scored) error {
			persisted = entries
			return nil
		},
	}
	svc, mr := newTestService(t, repo)

	// A stale cached page must not survive materialization.
	staleKey := pageKey("u-1", 0, 20)
	require.NoError(t, mr.Set(staleKey, `{"items":[]}`))

	n, err := svc.Materialize(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.Len(t, persisted, 3)
	for i, e := range persisted {
		assert.Equal(t, i+1, e.Rank)
	}
	assert.False(t, mr.Exists(staleKey), "stale page survived invalidation")
}

func TestMaterialize_CandidateFailurePropagates(t *testing.T) {
	repo := &stubRepo{
		candidatesFn: func(context.Context, string, time.Time, int) ([]ranking.Candidate, error) {
			return nil, errors.New("projection lagging")
		},
	}
	svc, _ := newTestService(t, repo)

	_, err := svc.Materialize(context.Background(), "u-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source candidates")
}

// --- HandleEvent ---

func invalidateEnvelope(t *testing.T, p event.InvalidatePayload) *kafka.Envelope {
	t.Helper()
	env, err := kafka.NewEnvelope(context.Background(), kafka.EventFeedInvalidate, "feed", "target", "test", p)
	require.NoError(t, err)
	return env
}

func TestHandleEvent_UserInvalidateRematerializes(t *testing.T) {
	var materialized string
	repo := &stubRepo{
		replaceFn: func(_ context.Context, userID string, _ []ranking.Scored) error {
			materialized = userID
			return nil
		},
	}
	svc, _ := newTestService(t, repo)

	env := invalidateEnvelope(t, event.InvalidatePayload{UserID: "u-7"})
	require.NoError(t, svc.HandleEvent(context.Background(), env))
	assert.Equal(t, "u-7", materialized)
}

func TestHandleEvent_AuthorInvalidateRemovesAndDropsPages(t *testing.T) {
	var removed string
	repo := &stubRepo{
		removeAuthorFn: func(_ context.Context, authorID string) (int64, error) {
			removed = authorID
			return 9, nil
		},
	}
	svc, mr := newTestService(t, repo)

	otherUserPage := pageKey("u-other", 0, 20)
	require.NoError(t, mr.Set(otherUserPage, `{"items":[]}`))

	env := invalidateEnvelope(t, event.InvalidatePayload{AuthorID: "a-3", Reason: "takedown"})
	require.NoError(t, svc.HandleEvent(context.Background(), env))

	assert.Equal(t, "a-3", removed)
	assert.False(t, mr.Exists(otherUserPage), "author removal must drop every user's pages")
}

func TestHandleEvent_EmptyInvalidateRejected(t *testing.T) {
	svc, _ := newTestService(t, &stubRepo{})

	env := invalidateEnvelope(t, event.InvalidatePayload{})
	err := svc.HandleEvent(context.Background(), env)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestHandleEvent_UserDeletedCascades(t *testing.T) {
	var deletedFeed, removedAuthor string
	repo := &stubRepo{
		deleteFeedFn: func(_ context.Context, userID string) error {
			deletedFeed = userID
			return nil
		},
		removeAuthorFn: func(_ context.Context, authorID string) (int64, error) {
			removedAuthor = authorID
			return 3, nil
		},
	}
	svc, _ := newTestService(t, repo)

	env, err := kafka.NewEnvelope(context.Background(), kafka.EventUserDeleted, "user", "u-9", "identity", struct{}{})
	require.NoError(t, err)

	require.NoError(t, svc.HandleEvent(context.Background(), env))
	assert.Equal(t, "u-9", deletedFeed)
	assert.Equal(t, "u-9", removedAuthor)
}

func TestHandleEvent_UnknownEventIgnored(t *testing.T) {
	svc, _ := newTestService(t, &stubRepo{})

	env, err := kafka.NewEnvelope(context.Background(), kafka.EventPostCreated, "post", "p-1", "test", struct{}{})
	require.NoError(t, err)
	assert.NoError(t, svc.HandleEvent(context.Background(), env))
}

// --- Discovery ---

func TestTrending_ReadThroughCaches(t *testing.T) {
	svc, mr := newTestService(t, &stubRepo{})

	posts, err := svc.Trending(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p-hot", posts[0].PostID)

	assert.True(t, mr.Exists(TrendingKey(24*time.Hour)))
}
