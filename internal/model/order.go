package model

import (
	"time"
)

// Order 订单模型
type Order struct {
	ID        int64       `json:"id" gorm:"primaryKey"`
	UserID    int64       `json:"user_id" gorm:"index:idx_user_created;not null"`
	Amount    Money       `json:"amount" gorm:"not null"`
	Status    int8        `json:"status" gorm:"index;not null;default:0"` // 0:pending, 1:paid, 2:shipped, 3:completed, 4:cancelled
	Items     []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt time.Time   `json:"created_at" gorm:"index:idx_user_created;not null"`
	UpdatedAt time.Time   `json:"updated_at" gorm:"not null"`
}

// TableName 指定表名
func (Order) TableName() string {
	return "orders"
}

// OrderItem 下单时冻结的商品与单价
type OrderItem struct {
	ID        int64  `json:"id" gorm:"primaryKey"`
	OrderID   int64  `json:"order_id" gorm:"index;not null"`
	ProductID int64  `json:"product_id" gorm:"not null"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity" gorm:"not null"`
	UnitPrice Money  `json:"unit_price" gorm:"not null"`
}

func (OrderItem) TableName() string { return "order_items" }

// OrderStatus 订单状态常量
const (
	OrderStatusPending   = 0
	OrderStatusPaid      = 1
	OrderStatusShipped   = 2
	OrderStatusCompleted = 3
	OrderStatusCancelled = 4
)
