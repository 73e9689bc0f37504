package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/d60-Lab/sagesync/internal/model"
)

// ProductRepository 商品目录仓储（只读）
type ProductRepository interface {
	List(ctx context.Context, category string, offset, limit int) ([]*model.Product, error)
	GetByID(ctx context.Context, id int64) (*model.Product, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.Product, error)
	Categories(ctx context.Context) ([]*model.Category, error)
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository { return &productRepository{db: db} }

func (r *productRepository) List(ctx context.Context, category string, offset, limit int) ([]*model.Product, error) {
	tx := r.db.WithContext(ctx)
	if category != "" {
		tx = tx.Where("category = ?", category)
	}
	var res []*model.Product
	err := tx.Order("id ASC").Offset(offset).Limit(limit).Find(&res).Error
	return res, err
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*model.Product, error) {
	var p model.Product
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*model.Product, error) {
	out := make(map[int64]*model.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var res []*model.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&res).Error; err != nil {
		return nil, err
	}
	for _, p := range res {
		out[p.ID] = p
	}
	return out, nil
}

func (r *productRepository) Categories(ctx context.Context) ([]*model.Category, error) {
	var res []*model.Category
	err := r.db.WithContext(ctx).Order("id ASC").Find(&res).Error
	return res, err
}
