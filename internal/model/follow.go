package model

import "time"

// Follow 关注关系（A 关注 B），用于 following 过滤
type Follow struct {
	ID         int64 `gorm:"primaryKey"`
	FollowerID int64 `gorm:"index:idx_follow_follower;index:idx_follow_pair,unique;not null"`
	FolloweeID int64 `gorm:"not null;index:idx_follow_pair,unique"`
	// 复合唯一键，避免重复关注
	// idx_follow_pair = (follower_id, followee_id)
	CreatedAt time.Time
}

func (Follow) TableName() string { return "follows" }
