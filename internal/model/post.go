package model

import "time"

// Post 动态；UserLiked 与 Author 由查询时计算
type Post struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	AuthorID     int64     `json:"author_id" gorm:"index:idx_post_author;not null"`
	Author       Author    `json:"author" gorm:"-"`
	Content      string    `json:"content" gorm:"type:text;not null"`
	ImageURL     string    `json:"image_url,omitempty"`
	RequiredTier Tier      `json:"required_tier" gorm:"type:varchar(16);not null;default:free;index"`
	LikeCount    int       `json:"like_count" gorm:"not null;default:0"`
	CommentCount int       `json:"comment_count" gorm:"not null;default:0"`
	ShareCount   int       `json:"share_count" gorm:"not null;default:0"`
	UserLiked    bool      `json:"user_liked" gorm:"-"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
	UpdatedAt    time.Time `json:"-"`
}

func (Post) TableName() string { return "posts" }

// Like 点赞记录，(post_id, user_id) 唯一
type Like struct {
	ID        int64 `gorm:"primaryKey"`
	PostID    int64 `gorm:"not null;index:idx_like_pair,unique"`
	UserID    int64 `gorm:"not null;index:idx_like_pair,unique;index:idx_like_user"`
	CreatedAt time.Time
}

func (Like) TableName() string { return "likes" }
