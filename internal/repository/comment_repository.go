package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/sagesync/internal/model"
)

type CommentRepository interface {
	// Create 写评论并累加帖子评论数（同一事务）
	Create(ctx context.Context, c *model.Comment) error
	ListByPost(ctx context.Context, postID int64, offset, limit int) ([]*model.Comment, error)
}

type commentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) CommentRepository { return &commentRepository{db: db} }

func (r *commentRepository) Create(ctx context.Context, c *model.Comment) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		return tx.Model(&model.Post{}).Where("id = ?", c.PostID).
			UpdateColumn("comment_count", gorm.Expr("comment_count + 1")).Error
	})
}

func (r *commentRepository) ListByPost(ctx context.Context, postID int64, offset, limit int) ([]*model.Comment, error) {
	var res []*model.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&res).Error
	return res, err
}
