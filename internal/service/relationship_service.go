package service

import (
	"context"
	"errors"

	"github.com/d60-Lab/sagesync/internal/repository"
)

var (
	ErrFollowSelf = errors.New("cannot follow self")
)

// RelationshipService 关系链服务
type RelationshipService interface {
	Follow(ctx context.Context, fromUserID, toUserID int64) error
	Unfollow(ctx context.Context, fromUserID, toUserID int64) error
	ListFollowing(ctx context.Context, userID int64, page, pageSize int) ([]int64, bool, error)
}

type relationshipService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
}

func NewRelationshipService(followRepo repository.FollowRepository, userRepo repository.UserRepository) RelationshipService {
	return &relationshipService{followRepo: followRepo, userRepo: userRepo}
}

func (s *relationshipService) Follow(ctx context.Context, fromUserID, toUserID int64) error {
	if fromUserID == toUserID {
		return ErrFollowSelf
	}
	if _, err := s.userRepo.GetByID(ctx, toUserID); err != nil {
		return notFound(err, ErrUserNotFound)
	}
	return s.followRepo.Create(ctx, fromUserID, toUserID)
}

func (s *relationshipService) Unfollow(ctx context.Context, fromUserID, toUserID int64) error {
	return s.followRepo.Delete(ctx, fromUserID, toUserID)
}

func (s *relationshipService) ListFollowing(ctx context.Context, userID int64, page, pageSize int) ([]int64, bool, error) {
	offset, limit := pageBounds(page, pageSize, 10)
	items, err := s.followRepo.ListFollowings(ctx, userID, offset, limit+1)
	if err != nil {
		return nil, false, err
	}
	items, hasNext := trimPage(items, limit)
	res := make([]int64, len(items))
	for i, it := range items {
		res[i] = it.FolloweeID
	}
	return res, hasNext, nil
}
