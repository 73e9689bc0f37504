package controller

import (
	"context"
	"slices"
	"sync"

	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/loader"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/state"
)

const (
	productsKey = "products"
	// CategoryAll shows every category.
	CategoryAll = "all"
)

// ProductView is a product as the viewer may act on it.
type ProductView struct {
	model.Product
	Locked       bool
	CanAddToCart bool
}

// Catalog 商品目录控制器
type Catalog struct {
	Deps
	products *loader.Loader[model.Product]

	mu         sync.RWMutex
	category   string
	categories []model.Category
}

func NewCatalog(deps Deps, pageSize int) *Catalog {
	c := &Catalog{Deps: deps.withDefaults(), category: CategoryAll}
	c.products = loader.New(c.fetchProducts, pageSize, loader.WithName("products"))
	c.products.SetIdentity(func(p model.Product) string { return gateway.ID(p.ID) })
	return c
}

func (c *Catalog) fetchProducts(ctx context.Context, _ string, params loader.Params, page, pageSize int) ([]model.Product, bool, error) {
	p, err := c.Gateway.List(ctx, gateway.ResourceProducts, gateway.Filters(params), page, pageSize)
	if err != nil {
		return nil, false, err
	}
	items, err := gateway.DecodeItems[model.Product](p)
	if err != nil {
		return nil, false, err
	}
	return items, p.HasNext, nil
}

func (c *Catalog) Products() state.View[model.Product] { return c.products.Collection(productsKey) }

func (c *Catalog) Category() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.category
}

func (c *Catalog) params() loader.Params {
	cat := c.Category()
	if cat == CategoryAll {
		return nil
	}
	return loader.Params{"category": cat}
}

func (c *Catalog) LoadFirstPage(ctx context.Context) error {
	if _, err := c.products.LoadFirstPage(ctx, productsKey, c.params()); err != nil {
		return c.fail(ctx, err, "Failed to load products")
	}
	return nil
}

func (c *Catalog) LoadNextPage(ctx context.Context) error {
	if _, err := c.products.LoadNextPage(ctx, productsKey); err != nil {
		return c.fail(ctx, err, "Failed to load more products")
	}
	return nil
}

// SetCategory filters by category name and reloads from page 1. "" and
// "all" clear the filter.
func (c *Catalog) SetCategory(ctx context.Context, category string) error {
	if category == "" {
		category = CategoryAll
	}
	c.mu.Lock()
	c.category = category
	c.mu.Unlock()
	if _, err := c.products.Reset(ctx, productsKey, c.params()); err != nil {
		return c.fail(ctx, err, "Failed to load products")
	}
	return nil
}

// Categories returns the category list, fetching it on first use.
func (c *Catalog) Categories(ctx context.Context) ([]model.Category, error) {
	c.mu.RLock()
	cached := c.categories
	c.mu.RUnlock()
	if cached != nil {
		return slices.Clone(cached), nil
	}

	p, err := c.Gateway.List(ctx, gateway.ResourceCategories, nil, 1, 0)
	if err != nil {
		return nil, c.fail(ctx, err, "Failed to load categories")
	}
	cats, err := gateway.DecodeItems[model.Category](p)
	if err != nil {
		return nil, c.fail(ctx, err, "Failed to load categories")
	}
	c.mu.Lock()
	c.categories = cats
	c.mu.Unlock()
	return slices.Clone(cats), nil
}

// Product fetches a single product.
func (c *Catalog) Product(ctx context.Context, id int64) (*model.Product, error) {
	raw, err := c.Gateway.Get(ctx, gateway.ResourceProducts, gateway.ID(id))
	if err != nil {
		return nil, c.fail(ctx, err, "Failed to load product")
	}
	p, err := gateway.Decode[model.Product](raw)
	if err != nil {
		return nil, c.fail(ctx, err, "Failed to load product")
	}
	return &p, nil
}

func (c *Catalog) View(p model.Product) ProductView {
	if !c.Policy.Allows(c.Viewer.Viewer(), p.RequiredTier) {
		return ProductView{Product: p, Locked: true}
	}
	return ProductView{Product: p, CanAddToCart: true}
}

func (c *Catalog) Views() []ProductView {
	items := c.Products().Snapshot().Items
	out := make([]ProductView, len(items))
	for i, p := range items {
		out[i] = c.View(p)
	}
	return out
}

// Reload resets the product list, e.g. after the viewer changed.
func (c *Catalog) Reload(ctx context.Context) error {
	return c.SetCategory(ctx, c.Category())
}
