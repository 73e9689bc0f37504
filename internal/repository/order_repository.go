package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/sagesync/internal/model"
)

// ErrEmptyCart 购物车为空时无法下单
var ErrEmptyCart = errors.New("cart is empty")

// OrderRepository 订单仓储接口
type OrderRepository interface {
	// PlaceFromCart 在一个事务内按当前价格生成订单并清空购物车
	PlaceFromCart(ctx context.Context, userID int64) (*model.Order, error)

	// GetByOrderID 根据订单ID查询订单（限定用户）
	GetByOrderID(ctx context.Context, userID, orderID int64) (*model.Order, error)

	// GetByUserID 根据用户ID分页查询订单列表
	GetByUserID(ctx context.Context, userID int64, offset, limit int) ([]*model.Order, error)

	// UpdateStatus 更新订单状态
	UpdateStatus(ctx context.Context, orderID int64, status int8) error

	// Count 统计订单数量
	Count(ctx context.Context) (int64, error)
}

// orderRepository 单库订单仓储实现
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) PlaceFromCart(ctx context.Context, userID int64) (*model.Order, error) {
	var order *model.Order
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []model.CartItem
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).Order("id ASC").Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}

		ids := make([]int64, len(items))
		for i, it := range items {
			ids[i] = it.ProductID
		}
		var products []model.Product
		if err := tx.Where("id IN ?", ids).Find(&products).Error; err != nil {
			return err
		}
		byID := make(map[int64]model.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}

		o := &model.Order{UserID: userID, Status: model.OrderStatusPending}
		for _, it := range items {
			p, ok := byID[it.ProductID]
			if !ok {
				continue
			}
			o.Items = append(o.Items, model.OrderItem{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  it.Quantity,
				UnitPrice: p.Price,
			})
			o.Amount += p.Price.Times(it.Quantity)
		}
		if len(o.Items) == 0 {
			return ErrEmptyCart
		}
		if err := tx.Create(o).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", userID).Delete(&model.CartItem{}).Error; err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// GetByOrderID 根据订单ID查询订单
func (r *orderRepository) GetByOrderID(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetByUserID 根据用户ID查询订单列表
func (r *orderRepository) GetByUserID(ctx context.Context, userID int64, offset, limit int) ([]*model.Order, error) {
	var orders []*model.Order
	err := r.db.WithContext(ctx).Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// UpdateStatus 更新订单状态
func (r *orderRepository) UpdateStatus(ctx context.Context, orderID int64, status int8) error {
	return r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("status", status).Error
}

// Count 统计订单数量
func (r *orderRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Order{}).Count(&count).Error
	return count, err
}
