package model

import "time"

// User 账号；客户端侧作为当前会话的 viewer 使用
type User struct {
	ID               int64     `json:"id" gorm:"primaryKey"`
	Username         string    `json:"username" gorm:"type:varchar(64);uniqueIndex;not null"`
	Email            string    `json:"email,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	DisplayName      string    `json:"display_name,omitempty" gorm:"type:varchar(128)"`
	AvatarURL        string    `json:"avatar_url,omitempty"`
	SubscriptionTier Tier      `json:"subscription_tier" gorm:"type:varchar(16);not null;default:free"`
	PasswordHash     string    `json:"-" gorm:"not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"-"`
}

func (User) TableName() string { return "users" }

// Author is the public projection of a user attached to posts and comments.
type Author struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

func (u *User) Author() Author {
	return Author{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

// Name 优先展示昵称
func (a Author) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}
