package controller

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/loader"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/mutation"
	"github.com/d60-Lab/sagesync/internal/state"
	"github.com/d60-Lab/sagesync/internal/validate"
	"github.com/d60-Lab/sagesync/pkg/logger"
)

// Filter selects which posts the feed shows.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterTrending  Filter = "trending"
	FilterFollowing Filter = "following"
	FilterPremium   Filter = "premium"
)

var Filters = []Filter{FilterAll, FilterTrending, FilterFollowing, FilterPremium}

func ParseFilter(s string) (Filter, error) {
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range Filters {
		if string(f) == s {
			return f, nil
		}
	}
	return "", apperr.Invalid("filter", "unknown filter "+strconv.Quote(s))
}

// LoadState is the feed's load state.
type LoadState int

const (
	Idle LoadState = iota
	LoadingFirstPage
	LoadingNextPage
	Ready
	Failed
)

func (s LoadState) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingFirstPage:
		return "loading_first_page"
	case LoadingNextPage:
		return "loading_next_page"
	case Ready:
		return "ready"
	case Failed:
		return "error"
	}
	return "unknown"
}

// PostView is a post as the viewer may see it. When Locked, Content and
// ImageURL are blanked; header fields and RequiredTier stay.
type PostView struct {
	model.Post
	Locked     bool
	CanLike    bool
	CanComment bool
}

type FeedOptions struct {
	PageSize        int
	CommentPageSize int
}

const postsKey = "posts"

type newPost struct {
	Content      string     `json:"content" validate:"required,max=5000"`
	ImageURL     string     `json:"image_url,omitempty" validate:"omitempty,url"`
	RequiredTier model.Tier `json:"required_tier,omitempty" validate:"omitempty,oneof=free seeker mystic sage oracle"`
}

type newComment struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// Feed 社区动态控制器
type Feed struct {
	Deps
	posts    *loader.Loader[model.Post]
	comments *loader.Loader[model.Comment]
	log      *zap.Logger

	mu       sync.RWMutex
	filter   Filter
	state    LoadState
	expanded map[int64]bool
}

func NewFeed(deps Deps, opts FeedOptions) *Feed {
	f := &Feed{
		Deps:     deps.withDefaults(),
		filter:   FilterAll,
		expanded: make(map[int64]bool),
		log:      logger.Named("feed"),
	}
	f.posts = loader.New(f.fetchPosts, opts.PageSize,
		loader.WithName("posts"), loader.WithObserver(f.observe))
	f.posts.SetIdentity(func(p model.Post) string { return strconv.FormatInt(p.ID, 10) })
	f.comments = loader.New(f.fetchComments, opts.CommentPageSize, loader.WithName("comments"))
	return f
}

func (f *Feed) fetchPosts(ctx context.Context, _ string, params loader.Params, page, pageSize int) ([]model.Post, bool, error) {
	p, err := f.Gateway.List(ctx, gateway.ResourcePosts, gateway.Filters(params), page, pageSize)
	if err != nil {
		return nil, false, err
	}
	items, err := gateway.DecodeItems[model.Post](p)
	if err != nil {
		return nil, false, err
	}
	return items, p.HasNext, nil
}

func (f *Feed) fetchComments(ctx context.Context, key string, _ loader.Params, page, pageSize int) ([]model.Comment, bool, error) {
	postID, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil, false, apperr.Invalid("post_id", "invalid post id")
	}
	p, err := f.Gateway.List(ctx, gateway.PostComments(postID), nil, page, pageSize)
	if err != nil {
		return nil, false, err
	}
	items, err := gateway.DecodeItems[model.Comment](p)
	if err != nil {
		return nil, false, err
	}
	return items, p.HasNext, nil
}

func (f *Feed) observe(ev loader.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch ev.Kind {
	case loader.EventStarted:
		if ev.Page <= 1 {
			f.state = LoadingFirstPage
		} else {
			f.state = LoadingNextPage
		}
	case loader.EventSucceeded:
		f.state = Ready
	case loader.EventFailed:
		f.state = Failed
	}
}

func (f *Feed) State() LoadState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.state
}

func (f *Feed) Filter() Filter {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter
}

func (f *Feed) params() loader.Params {
	filter := f.Filter()
	if filter == FilterAll {
		return nil
	}
	return loader.Params{"filter": string(filter)}
}

// Posts is the read side of the posts collection.
func (f *Feed) Posts() state.View[model.Post] { return f.posts.Collection(postsKey) }

func (f *Feed) LoadFirstPage(ctx context.Context) error {
	if _, err := f.posts.LoadFirstPage(ctx, postsKey, f.params()); err != nil {
		return f.fail(ctx, err, "Failed to load posts")
	}
	return nil
}

func (f *Feed) LoadNextPage(ctx context.Context) error {
	if _, err := f.posts.LoadNextPage(ctx, postsKey); err != nil {
		return f.fail(ctx, err, "Failed to load more posts")
	}
	return nil
}

// SetFilter switches the filter and reloads from page 1. A fetch still in
// flight for the old filter is dropped when it lands.
func (f *Feed) SetFilter(ctx context.Context, name string) error {
	filter, err := ParseFilter(name)
	if err != nil {
		return f.fail(ctx, err, "")
	}
	f.mu.Lock()
	f.filter = filter
	f.mu.Unlock()
	return f.reload(ctx)
}

// Reload resets the posts under the active filter, e.g. after the viewer
// changed.
func (f *Feed) Reload(ctx context.Context) error { return f.reload(ctx) }

func (f *Feed) reload(ctx context.Context) error {
	if _, err := f.posts.Reset(ctx, postsKey, f.params()); err != nil {
		return f.fail(ctx, err, "Failed to load posts")
	}
	return nil
}

// View applies tier gating to p for the current viewer.
func (f *Feed) View(p model.Post) PostView {
	viewer := f.Viewer.Viewer()
	if !f.Policy.Allows(viewer, p.RequiredTier) {
		p.Content = ""
		p.ImageURL = ""
		return PostView{Post: p, Locked: true}
	}
	return PostView{Post: p, CanLike: true, CanComment: true}
}

// Views returns the gated views of every loaded post in order.
func (f *Feed) Views() []PostView {
	posts := f.Posts().Snapshot().Items
	out := make([]PostView, len(posts))
	for i, p := range posts {
		out[i] = f.View(p)
	}
	return out
}

func (f *Feed) findPost(id int64) (model.Post, bool) {
	return f.posts.Collection(postsKey).Find(func(p model.Post) bool { return p.ID == id })
}

func (f *Feed) updatePost(id int64, fn func(model.Post) model.Post) {
	f.posts.Collection(postsKey).UpdateItem(func(p model.Post) bool { return p.ID == id }, fn)
}

// interactable resolves the post for a like or comment intent.
func (f *Feed) interactable(postID int64) (model.Post, error) {
	viewer := f.Viewer.Viewer()
	if viewer == nil {
		return model.Post{}, apperr.ErrNotAuthenticated
	}
	p, ok := f.findPost(postID)
	if !ok {
		return model.Post{}, apperr.Invalid("post_id", "post not found")
	}
	if !f.Policy.Allows(viewer, p.RequiredTier) {
		return model.Post{}, apperr.ErrActionDisabled
	}
	return p, nil
}

// ToggleLike flips the like flag and count immediately and restores both if
// the remote call fails.
func (f *Feed) ToggleLike(ctx context.Context, postID int64) error {
	p, err := f.interactable(postID)
	if err != nil {
		return f.fail(ctx, err, "")
	}
	prevCount, prevLiked := p.LikeCount, p.UserLiked

	return f.Mutations.Apply(ctx, mutation.Mutation{
		Name: "toggle_like",
		Mutate: func() {
			f.updatePost(postID, func(p model.Post) model.Post {
				if prevLiked {
					p.LikeCount = prevCount - 1
				} else {
					p.LikeCount = prevCount + 1
				}
				p.UserLiked = !prevLiked
				return p
			})
		},
		Commit: func(ctx context.Context) error {
			if prevLiked {
				return f.Gateway.Delete(ctx, gateway.PostUnlike(postID), "")
			}
			_, err := f.Gateway.Create(ctx, gateway.PostLike(postID), nil)
			return err
		},
		Revert: func() {
			f.updatePost(postID, func(p model.Post) model.Post {
				p.LikeCount = prevCount
				p.UserLiked = prevLiked
				return p
			})
		},
		Fallback: "Failed to like post",
	})
}

func commentsKey(postID int64) string { return strconv.FormatInt(postID, 10) }

// Comments is the read side of a post's comment collection.
func (f *Feed) Comments(postID int64) state.View[model.Comment] {
	return f.comments.Collection(commentsKey(postID))
}

func (f *Feed) Expanded(postID int64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.expanded[postID]
}

// ToggleComments expands or collapses a post's comments. The first expansion
// loads them; later expansions reuse what was loaded.
func (f *Feed) ToggleComments(ctx context.Context, postID int64) (bool, error) {
	f.mu.Lock()
	open := !f.expanded[postID]
	f.expanded[postID] = open
	f.mu.Unlock()
	if !open {
		return false, nil
	}
	return true, f.ExpandComments(ctx, postID)
}

// ExpandComments loads a post's first page of comments unless it has been
// loaded already.
func (f *Feed) ExpandComments(ctx context.Context, postID int64) error {
	if p, ok := f.findPost(postID); ok && !f.Policy.Allows(f.Viewer.Viewer(), p.RequiredTier) {
		return apperr.ErrActionDisabled
	}
	f.mu.Lock()
	f.expanded[postID] = true
	f.mu.Unlock()

	key := commentsKey(postID)
	if f.comments.Loaded(key) {
		return nil
	}
	if _, err := f.comments.LoadFirstPage(ctx, key, nil); err != nil {
		return f.fail(ctx, err, "Failed to load comments")
	}
	return nil
}

func (f *Feed) CollapseComments(postID int64) {
	f.mu.Lock()
	delete(f.expanded, postID)
	f.mu.Unlock()
}

func (f *Feed) LoadMoreComments(ctx context.Context, postID int64) error {
	if _, err := f.comments.LoadNextPage(ctx, commentsKey(postID)); err != nil {
		return f.fail(ctx, err, "Failed to load comments")
	}
	return nil
}

// SubmitComment bumps the post's comment count right away, creates the
// comment, then reloads the comment list. The comment itself only appears
// once the reload lands.
func (f *Feed) SubmitComment(ctx context.Context, postID int64, content string) (*model.Comment, error) {
	p, err := f.interactable(postID)
	if err != nil {
		return nil, f.fail(ctx, err, "")
	}
	in := newComment{Content: strings.TrimSpace(content)}
	if err := validate.Struct(in); err != nil {
		return nil, f.fail(ctx, err, "")
	}
	prevCount := p.CommentCount

	var created model.Comment
	err = f.Mutations.Apply(ctx, mutation.Mutation{
		Name: "submit_comment",
		Mutate: func() {
			f.updatePost(postID, func(p model.Post) model.Post {
				p.CommentCount = prevCount + 1
				return p
			})
		},
		Commit: func(ctx context.Context) error {
			raw, err := f.Gateway.Create(ctx, gateway.PostComments(postID), in)
			if err != nil {
				return err
			}
			created, err = gateway.Decode[model.Comment](raw)
			return err
		},
		Revert: func() {
			f.updatePost(postID, func(p model.Post) model.Post {
				p.CommentCount = prevCount
				return p
			})
		},
		Fallback: "Failed to add comment",
	})
	if err != nil {
		return nil, err
	}

	if _, err := f.comments.Reset(ctx, commentsKey(postID), nil); err != nil {
		f.log.Warn("comment reload failed", zap.Int64("post_id", postID), zap.Error(err))
		f.Reporter.Report(ctx, err, "Failed to load comments")
	}
	return &created, nil
}

// CreatePost publishes a post and reloads the feed under the active filter.
func (f *Feed) CreatePost(ctx context.Context, content, imageURL string, requiredTier model.Tier) (*model.Post, error) {
	if f.Viewer.Viewer() == nil {
		return nil, f.fail(ctx, apperr.ErrNotAuthenticated, "")
	}
	in := newPost{Content: strings.TrimSpace(content), ImageURL: strings.TrimSpace(imageURL), RequiredTier: requiredTier}
	if err := validate.Struct(in); err != nil {
		return nil, f.fail(ctx, err, "")
	}

	var created model.Post
	err := f.Mutations.Confirm(ctx, "create_post", "Failed to create post", func(ctx context.Context) error {
		raw, err := f.Gateway.Create(ctx, gateway.ResourcePosts, in)
		if err != nil {
			return err
		}
		created, err = gateway.Decode[model.Post](raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	// the post exists even if the reload fails; reload reports its own error
	_ = f.reload(ctx)
	return &created, nil
}
