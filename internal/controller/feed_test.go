package controller

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/gateway/gatewaytest"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/report"
)

func viewerOf(tier model.Tier) ViewerSource {
	return ViewerFunc(func() *model.User {
		return &model.User{ID: 100, Username: "viewer", SubscriptionTier: tier}
	})
}

func newFeed(t *testing.T, fake *gatewaytest.Fake, viewer ViewerSource) (*Feed, *report.Recorder) {
	t.Helper()
	rec := report.NewRecorder()
	f := NewFeed(Deps{Gateway: fake, Viewer: viewer, Reporter: rec}, FeedOptions{PageSize: 10, CommentPageSize: 20})
	return f, rec
}

func postsFake(posts ...model.Post) *gatewaytest.Fake {
	fake := gatewaytest.New()
	fake.ListFunc = func(_ context.Context, resource string, _ gateway.Filters, _, _ int) (*gateway.Page, error) {
		if resource == gateway.ResourcePosts {
			return gatewaytest.PageOf(false, posts...), nil
		}
		return &gateway.Page{}, nil
	}
	return fake
}

func TestFeed_LockedPostHidesContent(t *testing.T) {
	fake := postsFake(model.Post{
		ID:           1,
		Author:       model.Author{ID: 9, Username: "oracle_ann"},
		Content:      "hidden wisdom",
		ImageURL:     "/img/1.png",
		RequiredTier: model.TierMystic,
		LikeCount:    3,
	})
	f, rec := newFeed(t, fake, viewerOf(model.TierSeeker))
	ctx := context.Background()
	require.NoError(t, f.LoadFirstPage(ctx))

	views := f.Views()
	require.Len(t, views, 1)
	v := views[0]
	assert.True(t, v.Locked)
	assert.Empty(t, v.Content)
	assert.Empty(t, v.ImageURL)
	assert.False(t, v.CanLike)
	assert.False(t, v.CanComment)
	assert.Equal(t, "oracle_ann", v.Author.Username)
	assert.Equal(t, model.TierMystic, v.RequiredTier)

	fake.Reset()
	assert.ErrorIs(t, f.ToggleLike(ctx, 1), apperr.ErrActionDisabled)
	_, err := f.SubmitComment(ctx, 1, "let me in")
	assert.ErrorIs(t, err, apperr.ErrActionDisabled)
	// 锁定优先于输入校验
	_, err = f.SubmitComment(ctx, 1, "   ")
	assert.ErrorIs(t, err, apperr.ErrActionDisabled)
	assert.False(t, apperr.IsValidation(err))
	assert.Empty(t, fake.Calls())
	assert.Empty(t, rec.Entries())

	// the raw collection keeps the body for a later tier upgrade
	assert.Equal(t, "hidden wisdom", f.Posts().Snapshot().Items[0].Content)
}

func TestFeed_ToggleLikeRevertsOnFailure(t *testing.T) {
	fake := postsFake(model.Post{ID: 1, LikeCount: 5})
	f, rec := newFeed(t, fake, viewerOf(model.TierFree))
	ctx := context.Background()
	require.NoError(t, f.LoadFirstPage(ctx))
	before := f.Posts().Snapshot()

	var during model.Post
	fake.CreateFunc = func(_ context.Context, resource string, _ any) (json.RawMessage, error) {
		assert.Equal(t, gateway.PostLike(1), resource)
		during = f.Posts().Snapshot().Items[0]
		return nil, gatewaytest.Fail(500, "")
	}

	err := f.ToggleLike(ctx, 1)
	require.Error(t, err)
	assert.Equal(t, 6, during.LikeCount)
	assert.True(t, during.UserLiked)

	assert.Equal(t, before, f.Posts().Snapshot())
	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "HTTP 500", entries[0].Message)
}

func TestFeed_ToggleLikeUnlikes(t *testing.T) {
	fake := postsFake(model.Post{ID: 4, LikeCount: 8, UserLiked: true})
	f, _ := newFeed(t, fake, viewerOf(model.TierFree))
	ctx := context.Background()
	require.NoError(t, f.LoadFirstPage(ctx))

	require.NoError(t, f.ToggleLike(ctx, 4))
	p := f.Posts().Snapshot().Items[0]
	assert.Equal(t, 7, p.LikeCount)
	assert.False(t, p.UserLiked)
	assert.Equal(t, 1, fake.Count("DELETE", gateway.PostUnlike(4)))
}

func TestFeed_ToggleLikeRequiresSession(t *testing.T) {
	fake := postsFake(model.Post{ID: 1})
	f, rec := newFeed(t, fake, nil)
	require.NoError(t, f.LoadFirstPage(context.Background()))

	err := f.ToggleLike(context.Background(), 1)
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
	assert.Len(t, rec.Entries(), 1)
}

func TestFeed_FilterChangeReloads(t *testing.T) {
	fake := postsFake(model.Post{ID: 1})
	f, _ := newFeed(t, fake, nil)
	ctx := context.Background()

	assert.Equal(t, Idle, f.State())
	require.NoError(t, f.LoadFirstPage(ctx))
	assert.Equal(t, Ready, f.State())

	require.NoError(t, f.SetFilter(ctx, "trending"))
	assert.Equal(t, FilterTrending, f.Filter())

	calls := fake.Calls()
	require.Len(t, calls, 2)
	assert.Empty(t, calls[0].Filters)
	assert.Equal(t, "trending", calls[1].Filters["filter"])
	assert.Equal(t, 1, calls[1].Page)

	err := f.SetFilter(ctx, "bogus")
	assert.True(t, apperr.IsValidation(err))
	assert.Equal(t, FilterTrending, f.Filter())
}

func TestFeed_LoadFailureSetsErrorState(t *testing.T) {
	fake := gatewaytest.New()
	fake.ListFunc = func(context.Context, string, gateway.Filters, int, int) (*gateway.Page, error) {
		return nil, gatewaytest.Fail(503, "maintenance")
	}
	f, rec := newFeed(t, fake, nil)

	err := f.LoadFirstPage(context.Background())
	require.Error(t, err)
	assert.Equal(t, Failed, f.State())
	snap := f.Posts().Snapshot()
	assert.Empty(t, snap.Items)
	assert.Error(t, snap.Err)
	require.Len(t, rec.Entries(), 1)
	assert.Equal(t, "maintenance", rec.Entries()[0].Message)
}

func TestFeed_CommentsLoadOnceAndReloadAfterSubmit(t *testing.T) {
	comments := []model.Comment{{ID: 1, PostID: 2, Content: "first"}}
	fake := gatewaytest.New()
	fake.ListFunc = func(_ context.Context, resource string, _ gateway.Filters, _, _ int) (*gateway.Page, error) {
		switch resource {
		case gateway.ResourcePosts:
			return gatewaytest.PageOf(false, model.Post{ID: 2, CommentCount: 1}), nil
		case gateway.PostComments(2):
			return gatewaytest.PageOf(false, comments...), nil
		}
		return nil, errors.New("unexpected resource " + resource)
	}
	fake.CreateFunc = func(_ context.Context, _ string, payload any) (json.RawMessage, error) {
		c := model.Comment{ID: 2, PostID: 2, Content: payload.(newComment).Content}
		comments = append(comments, c)
		return gatewaytest.JSON(c), nil
	}
	f, _ := newFeed(t, fake, viewerOf(model.TierFree))
	ctx := context.Background()
	require.NoError(t, f.LoadFirstPage(ctx))

	open, err := f.ToggleComments(ctx, 2)
	require.NoError(t, err)
	assert.True(t, open)
	open, err = f.ToggleComments(ctx, 2)
	require.NoError(t, err)
	assert.False(t, open)
	require.NoError(t, f.ExpandComments(ctx, 2))
	assert.Equal(t, 1, fake.Count("LIST", gateway.PostComments(2)))
	assert.True(t, f.Expanded(2))

	created, err := f.SubmitComment(ctx, 2, "  second  ")
	require.NoError(t, err)
	assert.Equal(t, "second", created.Content)
	assert.Equal(t, 2, f.Posts().Snapshot().Items[0].CommentCount)
	assert.Equal(t, 2, fake.Count("LIST", gateway.PostComments(2)))
	assert.Len(t, f.Comments(2).Snapshot().Items, 2)
}

func TestFeed_SubmitCommentFailureRevertsCount(t *testing.T) {
	fake := postsFake(model.Post{ID: 3, CommentCount: 4})
	fake.CreateFunc = func(context.Context, string, any) (json.RawMessage, error) {
		return nil, gatewaytest.Fail(500, "db down")
	}
	f, rec := newFeed(t, fake, viewerOf(model.TierFree))
	ctx := context.Background()
	require.NoError(t, f.LoadFirstPage(ctx))

	_, err := f.SubmitComment(ctx, 3, "hello")
	require.Error(t, err)
	assert.Equal(t, 4, f.Posts().Snapshot().Items[0].CommentCount)
	assert.Len(t, rec.Entries(), 1)
	assert.Equal(t, 0, fake.Count("LIST", gateway.PostComments(3)))

	_, err = f.SubmitComment(ctx, 3, "   ")
	assert.True(t, apperr.IsValidation(err))
}

func TestFeed_CreatePostReloads(t *testing.T) {
	fake := postsFake(model.Post{ID: 1})
	fake.CreateFunc = func(context.Context, string, any) (json.RawMessage, error) {
		return gatewaytest.JSON(model.Post{ID: 2, Content: "new"}), nil
	}
	f, _ := newFeed(t, fake, viewerOf(model.TierSage))
	ctx := context.Background()

	p, err := f.CreatePost(ctx, "new", "", model.TierSeeker)
	require.NoError(t, err)
	assert.EqualValues(t, 2, p.ID)
	assert.Equal(t, 1, fake.Count("CREATE", gateway.ResourcePosts))
	assert.Equal(t, 1, fake.Count("LIST", gateway.ResourcePosts))

	_, err = f.CreatePost(ctx, "x", "", model.Tier("emperor"))
	assert.True(t, apperr.IsValidation(err))
}

func TestFeed_NextPageStates(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	fake := gatewaytest.New()
	fake.ListFunc = func(_ context.Context, _ string, _ gateway.Filters, page, _ int) (*gateway.Page, error) {
		if page == 1 {
			return gatewaytest.PageOf(true, model.Post{ID: 1}, model.Post{ID: 2}), nil
		}
		close(started)
		<-release
		return gatewaytest.PageOf(false, model.Post{ID: 3}), nil
	}
	f, rec := newFeed(t, fake, nil)
	ctx := context.Background()

	assert.Equal(t, Idle, f.State())
	require.NoError(t, f.LoadFirstPage(ctx))
	assert.Equal(t, Ready, f.State())

	done := make(chan error, 1)
	go func() { done <- f.LoadNextPage(ctx) }()
	<-started
	assert.Equal(t, LoadingNextPage, f.State())
	assert.Len(t, f.Posts().Snapshot().Items, 2)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Ready, f.State())
	snap := f.Posts().Snapshot()
	assert.Len(t, snap.Items, 3)
	assert.False(t, snap.HasMore)
	assert.Equal(t, 2, snap.Page)
	assert.Empty(t, rec.Entries())
}
