package controller

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/mutation"
	"github.com/d60-Lab/sagesync/internal/state"
	"github.com/d60-Lab/sagesync/internal/validate"
	"github.com/d60-Lab/sagesync/pkg/logger"
)

type addLine struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity" validate:"min=1"`
}

type lineQuantity struct {
	Quantity int `json:"quantity"`
}

// Cart 购物车控制器. Lines mirror the last confirmed server cart except while
// a quantity change is in flight.
type Cart struct {
	Deps
	lines *state.Collection[model.CartLine]
	log   *zap.Logger

	mu        sync.RWMutex
	confirmed model.Cart
}

func NewCart(deps Deps) *Cart {
	c := &Cart{
		Deps:  deps.withDefaults(),
		lines: state.NewCollection[model.CartLine](),
		log:   logger.Named("cart"),
	}
	c.lines.Update(func(s *state.Snapshot[model.CartLine]) { s.HasMore = false })
	return c
}

// Lines is the read side of the cart lines.
func (c *Cart) Lines() state.View[model.CartLine] { return c.lines }

// Snapshot returns the last confirmed cart.
func (c *Cart) Snapshot() model.Cart {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.Cart{Items: slices.Clone(c.confirmed.Items), TotalAmount: c.confirmed.TotalAmount}
}

func (c *Cart) Total() model.Money {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.confirmed.TotalAmount
}

// AggregateCount sums line quantities of the confirmed cart. Without a
// session it is 0 and no call is made.
func (c *Cart) AggregateCount() int {
	if c.Viewer.Viewer() == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return model.QuantityOf(c.confirmed.Items)
}

func (c *Cart) setConfirmed(cart model.Cart) {
	c.mu.Lock()
	c.confirmed = cart
	c.mu.Unlock()
	c.lines.Update(func(s *state.Snapshot[model.CartLine]) {
		s.Items = slices.Clone(cart.Items)
		s.Page = 1
		s.HasMore = false
		s.Loading = false
		s.Err = nil
	})
}

// Refresh replaces the cart with the server's copy. Signed out, the cart is
// emptied locally.
func (c *Cart) Refresh(ctx context.Context) error {
	if c.Viewer.Viewer() == nil {
		c.setConfirmed(model.Cart{})
		return nil
	}
	c.lines.Update(func(s *state.Snapshot[model.CartLine]) { s.Loading = true })

	raw, err := c.Gateway.Get(ctx, gateway.ResourceCart, "")
	if err == nil {
		var cart model.Cart
		if cart, err = gateway.Decode[model.Cart](raw); err == nil {
			c.setConfirmed(cart)
			return nil
		}
	}
	c.lines.Update(func(s *state.Snapshot[model.CartLine]) {
		s.Loading = false
		s.Err = err
	})
	return c.fail(ctx, err, "Failed to load cart")
}

// AddLine adds quantity units of product and refreshes the cart.
func (c *Cart) AddLine(ctx context.Context, product model.Product, quantity int) error {
	viewer := c.Viewer.Viewer()
	if viewer == nil {
		return c.fail(ctx, apperr.ErrNotAuthenticated, "")
	}
	if !c.Policy.Allows(viewer, product.RequiredTier) {
		return apperr.ErrActionDisabled
	}
	in := addLine{ProductID: product.ID, Quantity: quantity}
	if err := validate.Struct(in); err != nil {
		return c.fail(ctx, err, "")
	}

	err := c.Mutations.Confirm(ctx, "add_to_cart", "Failed to add item to cart", func(ctx context.Context) error {
		_, err := c.Gateway.Create(ctx, gateway.ResourceCart, in)
		return err
	})
	if err != nil {
		return err
	}
	_ = c.Refresh(ctx)
	return nil
}

// SetLineQuantity writes the new quantity locally, or drops the line when
// quantity < 1, then confirms remotely. A failed commit restores the lines;
// a successful one is followed by a full refresh.
func (c *Cart) SetLineQuantity(ctx context.Context, productID int64, quantity int) error {
	if c.Viewer.Viewer() == nil {
		return c.fail(ctx, apperr.ErrNotAuthenticated, "")
	}
	match := func(l model.CartLine) bool { return l.Product.ID == productID }
	if _, ok := c.lines.Find(match); !ok {
		return c.fail(ctx, apperr.Invalid("product_id", "item is not in the cart"), "")
	}
	prev := c.lines.Snapshot().Items

	name, fallback := "update_cart_quantity", "Failed to update quantity"
	if quantity < 1 {
		name, fallback = "remove_from_cart", "Failed to remove item"
	}
	err := c.Mutations.Apply(ctx, mutation.Mutation{
		Name: name,
		Mutate: func() {
			c.lines.Update(func(s *state.Snapshot[model.CartLine]) {
				i := slices.IndexFunc(s.Items, match)
				if i < 0 {
					return
				}
				if quantity < 1 {
					s.Items = slices.Delete(s.Items, i, i+1)
					return
				}
				s.Items[i] = model.NewCartLine(s.Items[i].Product, quantity)
			})
		},
		Commit: func(ctx context.Context) error {
			if quantity < 1 {
				return c.Gateway.Delete(ctx, gateway.ResourceCart, gateway.ID(productID))
			}
			_, err := c.Gateway.Update(ctx, gateway.ResourceCart, gateway.ID(productID), lineQuantity{Quantity: quantity})
			return err
		},
		Revert: func() {
			c.lines.Update(func(s *state.Snapshot[model.CartLine]) { s.Items = prev })
		},
		OnCommitted: func() {
			c.mu.Lock()
			c.confirmed = model.NewCart(c.lines.Snapshot().Items)
			c.mu.Unlock()
		},
		Fallback: fallback,
	})
	if err != nil {
		return err
	}
	_ = c.Refresh(ctx)
	return nil
}

func (c *Cart) RemoveLine(ctx context.Context, productID int64) error {
	return c.SetLineQuantity(ctx, productID, 0)
}

// Checkout places an order for the confirmed cart. It is never retried.
func (c *Cart) Checkout(ctx context.Context) (*model.Order, error) {
	if c.Viewer.Viewer() == nil {
		return nil, c.fail(ctx, apperr.ErrNotAuthenticated, "")
	}
	if len(c.Snapshot().Items) == 0 {
		return nil, c.fail(ctx, apperr.Invalid("cart", "cart is empty"), "")
	}

	var order model.Order
	err := c.Mutations.Confirm(ctx, "checkout", "Failed to create order", func(ctx context.Context) error {
		raw, err := c.Gateway.Create(ctx, gateway.ResourceOrders, nil)
		if err != nil {
			return err
		}
		order, err = gateway.Decode[model.Order](raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.log.Info("order placed", zap.Int64("order_id", order.ID), zap.Stringer("amount", order.Amount))
	_ = c.Refresh(ctx)
	return &order, nil
}
