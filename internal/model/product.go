package model

import "time"

// Category 商品分类
type Category struct {
	ID   int64  `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(64);uniqueIndex;not null"`
	Icon string `json:"icon,omitempty"`
}

func (Category) TableName() string { return "categories" }

// Product 商品目录条目，对客户端只读
type Product struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"type:varchar(255);not null"`
	Description  string    `json:"description" gorm:"type:text"`
	Price        Money     `json:"price" gorm:"not null"`
	Category     string    `json:"category" gorm:"type:varchar(64);index"`
	RequiredTier Tier      `json:"required_tier" gorm:"type:varchar(16);not null;default:free"`
	ImageURL     string    `json:"image_url,omitempty"`
	CreatedAt    time.Time `json:"-"`
}

func (Product) TableName() string { return "products" }
