package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/sagesync/internal/model"
)

// PostQuery 列表查询条件
type PostQuery struct {
	// AuthorIDs 非空时只返回这些作者的帖子（following 过滤）
	AuthorIDs []int64
	// ExcludeTier 非空时排除该等级的帖子（premium 过滤）
	ExcludeTier model.Tier
	// ByLikes 按点赞数排序（trending）
	ByLikes bool
}

// PostRepository 帖子、点赞仓储
type PostRepository interface {
	Create(ctx context.Context, p *model.Post) error
	GetByID(ctx context.Context, id int64) (*model.Post, error)
	List(ctx context.Context, q PostQuery, offset, limit int) ([]*model.Post, error)
	// Like 幂等点赞，返回是否新增
	Like(ctx context.Context, postID, userID int64) (bool, error)
	// Unlike 幂等取消，返回是否删除
	Unlike(ctx context.Context, postID, userID int64) (bool, error)
	LikedSet(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error)
}

type postRepository struct {
	db *gorm.DB
}

func NewPostRepository(db *gorm.DB) PostRepository { return &postRepository{db: db} }

func (r *postRepository) Create(ctx context.Context, p *model.Post) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*model.Post, error) {
	var p model.Post
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postRepository) List(ctx context.Context, q PostQuery, offset, limit int) ([]*model.Post, error) {
	tx := r.db.WithContext(ctx).Model(&model.Post{})
	if len(q.AuthorIDs) > 0 {
		tx = tx.Where("author_id IN ?", q.AuthorIDs)
	}
	if q.ExcludeTier != "" {
		tx = tx.Where("required_tier <> ?", q.ExcludeTier)
	}
	if q.ByLikes {
		tx = tx.Order("like_count DESC")
	}
	var res []*model.Post
	err := tx.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *postRepository) Like(ctx context.Context, postID, userID int64) (bool, error) {
	created := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Like{PostID: postID, UserID: userID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return tx.Model(&model.Post{}).Where("id = ?", postID).
			UpdateColumn("like_count", gorm.Expr("like_count + 1")).Error
	})
	return created, err
}

func (r *postRepository) Unlike(ctx context.Context, postID, userID int64) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&model.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true
		return tx.Model(&model.Post{}).Where("id = ? AND like_count > 0", postID).
			UpdateColumn("like_count", gorm.Expr("like_count - 1")).Error
	})
	return removed, err
}

func (r *postRepository) LikedSet(ctx context.Context, userID int64, postIDs []int64) (map[int64]bool, error) {
	out := make(map[int64]bool, len(postIDs))
	if userID == 0 || len(postIDs) == 0 {
		return out, nil
	}
	var ids []int64
	if err := r.db.WithContext(ctx).Model(&model.Like{}).
		Where("user_id = ? AND post_id IN ?", userID, postIDs).
		Pluck("post_id", &ids).Error; err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
