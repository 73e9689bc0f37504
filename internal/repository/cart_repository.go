package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/d60-Lab/sagesync/internal/model"
)

// CartRepository 服务端购物车
type CartRepository interface {
	List(ctx context.Context, userID int64) ([]*model.CartItem, error)
	// Add 已存在则累加数量
	Add(ctx context.Context, userID, productID int64, quantity int) error
	// SetQuantity 返回是否命中
	SetQuantity(ctx context.Context, userID, productID int64, quantity int) (bool, error)
	Remove(ctx context.Context, userID, productID int64) (bool, error)
}

type cartRepository struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository { return &cartRepository{db: db} }

func (r *cartRepository) List(ctx context.Context, userID int64) ([]*model.CartItem, error) {
	var res []*model.CartItem
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id ASC").Find(&res).Error
	return res, err
}

func (r *cartRepository) Add(ctx context.Context, userID, productID int64, quantity int) error {
	item := &model.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]any{"quantity": gorm.Expr("cart_items.quantity + ?", quantity)}),
	}).Create(item).Error
}

func (r *cartRepository) SetQuantity(ctx context.Context, userID, productID int64, quantity int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.CartItem{}).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Update("quantity", quantity)
	return res.RowsAffected > 0, res.Error
}

func (r *cartRepository) Remove(ctx context.Context, userID, productID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&model.CartItem{})
	return res.RowsAffected > 0, res.Error
}
