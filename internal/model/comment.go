package model

import "time"

// Comment 评论，归属于唯一的 Post
type Comment struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	PostID    int64     `json:"post_id" gorm:"index:idx_comment_post;not null"`
	UserID    int64     `json:"user_id" gorm:"not null"`
	User      Author    `json:"user" gorm:"-"`
	Content   string    `json:"content" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_comment_post"`
}

func (Comment) TableName() string { return "comments" }
