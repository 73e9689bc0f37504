package service

import (
	"context"

	"github.com/d60-Lab/sagesync/internal/access"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/repository"
)

type CreatePostInput struct {
	Content      string
	ImageURL     string
	RequiredTier model.Tier
}

// PostService 社区帖子、点赞、评论
type PostService interface {
	List(ctx context.Context, viewer Viewer, filter string, page, perPage int) ([]*model.Post, bool, error)
	Get(ctx context.Context, viewer Viewer, id int64) (*model.Post, error)
	Create(ctx context.Context, viewer Viewer, in CreatePostInput) (*model.Post, error)
	Like(ctx context.Context, viewer Viewer, postID int64) (*model.Post, error)
	Unlike(ctx context.Context, viewer Viewer, postID int64) (*model.Post, error)
	Comments(ctx context.Context, postID int64, page, perPage int) ([]*model.Comment, bool, error)
	AddComment(ctx context.Context, viewer Viewer, postID int64, content string) (*model.Comment, error)
}

type postService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	follows  repository.FollowRepository
}

func NewPostService(posts repository.PostRepository, comments repository.CommentRepository, users repository.UserRepository, follows repository.FollowRepository) PostService {
	return &postService{posts: posts, comments: comments, users: users, follows: follows}
}

func (s *postService) query(ctx context.Context, viewer Viewer, filter string) (repository.PostQuery, error) {
	switch filter {
	case "", "all":
		return repository.PostQuery{}, nil
	case "trending":
		return repository.PostQuery{ByLikes: true}, nil
	case "premium":
		return repository.PostQuery{ExcludeTier: model.TierFree}, nil
	case "following":
		if viewer.Anonymous() {
			return repository.PostQuery{}, nil
		}
		ids, err := s.follows.FolloweeIDs(ctx, viewer.ID)
		if err != nil {
			return repository.PostQuery{}, err
		}
		return repository.PostQuery{AuthorIDs: append(ids, viewer.ID)}, nil
	}
	return repository.PostQuery{}, ErrUnknownFilter
}

func (s *postService) List(ctx context.Context, viewer Viewer, filter string, page, perPage int) ([]*model.Post, bool, error) {
	q, err := s.query(ctx, viewer, filter)
	if err != nil {
		return nil, false, err
	}
	offset, limit := pageBounds(page, perPage, 10)
	rows, err := s.posts.List(ctx, q, offset, limit+1)
	if err != nil {
		return nil, false, err
	}
	rows, hasNext := trimPage(rows, limit)
	if err := s.hydrate(ctx, viewer, rows...); err != nil {
		return nil, false, err
	}
	return rows, hasNext, nil
}

// hydrate 填充作者与 user_liked
func (s *postService) hydrate(ctx context.Context, viewer Viewer, posts ...*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	authorIDs := make([]int64, 0, len(posts))
	postIDs := make([]int64, 0, len(posts))
	for _, p := range posts {
		authorIDs = append(authorIDs, p.AuthorID)
		postIDs = append(postIDs, p.ID)
	}
	authors, err := s.users.AuthorsByIDs(ctx, authorIDs)
	if err != nil {
		return err
	}
	liked, err := s.posts.LikedSet(ctx, viewer.ID, postIDs)
	if err != nil {
		return err
	}
	for _, p := range posts {
		p.Author = authors[p.AuthorID]
		p.UserLiked = liked[p.ID]
	}
	return nil
}

func (s *postService) Get(ctx context.Context, viewer Viewer, id int64) (*model.Post, error) {
	p, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}
	if err := s.hydrate(ctx, viewer, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *postService) Create(ctx context.Context, viewer Viewer, in CreatePostInput) (*model.Post, error) {
	tier := in.RequiredTier
	if tier == "" {
		tier = model.TierFree
	}
	// 只能发布不高于自身等级的内容
	if !access.HasAccess(viewer.Tier, tier) {
		return nil, ErrInsufficientTier
	}
	p := &model.Post{
		AuthorID:     viewer.ID,
		Content:      in.Content,
		ImageURL:     in.ImageURL,
		RequiredTier: tier,
	}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, err
	}
	if err := s.hydrate(ctx, viewer, p); err != nil {
		return nil, err
	}
	return p, nil
}

// gated loads a post the viewer may interact with.
func (s *postService) gated(ctx context.Context, viewer Viewer, postID int64) (*model.Post, error) {
	p, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, notFound(err, ErrPostNotFound)
	}
	if !access.HasAccess(viewer.Tier, p.RequiredTier) {
		return nil, ErrInsufficientTier
	}
	return p, nil
}

func (s *postService) Like(ctx context.Context, viewer Viewer, postID int64) (*model.Post, error) {
	if _, err := s.gated(ctx, viewer, postID); err != nil {
		return nil, err
	}
	if _, err := s.posts.Like(ctx, postID, viewer.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, viewer, postID)
}

func (s *postService) Unlike(ctx context.Context, viewer Viewer, postID int64) (*model.Post, error) {
	if _, err := s.gated(ctx, viewer, postID); err != nil {
		return nil, err
	}
	if _, err := s.posts.Unlike(ctx, postID, viewer.ID); err != nil {
		return nil, err
	}
	return s.Get(ctx, viewer, postID)
}

func (s *postService) Comments(ctx context.Context, postID int64, page, perPage int) ([]*model.Comment, bool, error) {
	if _, err := s.posts.GetByID(ctx, postID); err != nil {
		return nil, false, notFound(err, ErrPostNotFound)
	}
	offset, limit := pageBounds(page, perPage, 20)
	rows, err := s.comments.ListByPost(ctx, postID, offset, limit+1)
	if err != nil {
		return nil, false, err
	}
	rows, hasNext := trimPage(rows, limit)

	ids := make([]int64, len(rows))
	for i, c := range rows {
		ids[i] = c.UserID
	}
	authors, err := s.users.AuthorsByIDs(ctx, ids)
	if err != nil {
		return nil, false, err
	}
	for _, c := range rows {
		c.User = authors[c.UserID]
	}
	return rows, hasNext, nil
}

func (s *postService) AddComment(ctx context.Context, viewer Viewer, postID int64, content string) (*model.Comment, error) {
	if _, err := s.gated(ctx, viewer, postID); err != nil {
		return nil, err
	}
	c := &model.Comment{PostID: postID, UserID: viewer.ID, Content: content}
	if err := s.comments.Create(ctx, c); err != nil {
		return nil, err
	}
	authors, err := s.users.AuthorsByIDs(ctx, []int64{viewer.ID})
	if err != nil {
		return nil, err
	}
	c.User = authors[viewer.ID]
	return c, nil
}
