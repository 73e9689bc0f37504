package service

import (
	"context"

	"github.com/d60-Lab/sagesync/internal/access"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/repository"
)

// ErrEmptyCart 购物车为空
var ErrEmptyCart = repository.ErrEmptyCart

// ShopService 商品、购物车与订单
type ShopService interface {
	Products(ctx context.Context, category string, page, perPage int) ([]*model.Product, bool, error)
	Product(ctx context.Context, id int64) (*model.Product, error)
	Categories(ctx context.Context) ([]*model.Category, error)
	Cart(ctx context.Context, userID int64) (*model.Cart, error)
	AddToCart(ctx context.Context, viewer Viewer, productID int64, quantity int) error
	// UpdateCartItem 数量小于 1 时移除该行
	UpdateCartItem(ctx context.Context, userID, productID int64, quantity int) error
	RemoveFromCart(ctx context.Context, userID, productID int64) error
	PlaceOrder(ctx context.Context, userID int64) (*model.Order, error)
	Orders(ctx context.Context, userID int64, page, perPage int) ([]*model.Order, bool, error)
	Order(ctx context.Context, userID, orderID int64) (*model.Order, error)
}

type shopService struct {
	products repository.ProductRepository
	carts    repository.CartRepository
	orders   repository.OrderRepository
}

func NewShopService(products repository.ProductRepository, carts repository.CartRepository, orders repository.OrderRepository) ShopService {
	return &shopService{products: products, carts: carts, orders: orders}
}

func (s *shopService) Products(ctx context.Context, category string, page, perPage int) ([]*model.Product, bool, error) {
	if category == "all" {
		category = ""
	}
	offset, limit := pageBounds(page, perPage, 12)
	rows, err := s.products.List(ctx, category, offset, limit+1)
	if err != nil {
		return nil, false, err
	}
	rows, hasNext := trimPage(rows, limit)
	return rows, hasNext, nil
}

func (s *shopService) Product(ctx context.Context, id int64) (*model.Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return p, nil
}

func (s *shopService) Categories(ctx context.Context) ([]*model.Category, error) {
	return s.products.Categories(ctx)
}

func (s *shopService) Cart(ctx context.Context, userID int64) (*model.Cart, error) {
	items, err := s.carts.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]model.CartLine, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, model.NewCartLine(*p, it.Quantity))
	}
	cart := model.NewCart(lines)
	return &cart, nil
}

func (s *shopService) AddToCart(ctx context.Context, viewer Viewer, productID int64, quantity int) error {
	p, err := s.Product(ctx, productID)
	if err != nil {
		return err
	}
	if !access.HasAccess(viewer.Tier, p.RequiredTier) {
		return ErrInsufficientTier
	}
	if quantity < 1 {
		quantity = 1
	}
	return s.carts.Add(ctx, viewer.ID, productID, quantity)
}

func (s *shopService) UpdateCartItem(ctx context.Context, userID, productID int64, quantity int) error {
	if quantity < 1 {
		return s.RemoveFromCart(ctx, userID, productID)
	}
	ok, err := s.carts.SetQuantity(ctx, userID, productID, quantity)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCartItemNotFound
	}
	return nil
}

func (s *shopService) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	ok, err := s.carts.Remove(ctx, userID, productID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCartItemNotFound
	}
	return nil
}

func (s *shopService) PlaceOrder(ctx context.Context, userID int64) (*model.Order, error) {
	return s.orders.PlaceFromCart(ctx, userID)
}

func (s *shopService) Orders(ctx context.Context, userID int64, page, perPage int) ([]*model.Order, bool, error) {
	offset, limit := pageBounds(page, perPage, 10)
	rows, err := s.orders.GetByUserID(ctx, userID, offset, limit+1)
	if err != nil {
		return nil, false, err
	}
	rows, hasNext := trimPage(rows, limit)
	return rows, hasNext, nil
}

func (s *shopService) Order(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	o, err := s.orders.GetByOrderID(ctx, userID, orderID)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return o, nil
}
