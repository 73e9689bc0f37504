// Package gateway is the client side of the remote API: a resource-oriented
// request/response contract, its HTTP implementation and a read-through
// catalog cache.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/d60-Lab/sagesync/internal/apperr"
)

// Filters are sent as query parameters on list calls.
type Filters map[string]string

// Page is one page of raw items.
type Page struct {
	Items   []json.RawMessage `json:"items"`
	HasNext bool              `json:"has_next"`
}

// Gateway is the remote data source. Every failure is an
// *apperr.TransportError.
type Gateway interface {
	List(ctx context.Context, resource string, filters Filters, page, pageSize int) (*Page, error)
	Get(ctx context.Context, resource, id string) (json.RawMessage, error)
	Create(ctx context.Context, resource string, payload any) (json.RawMessage, error)
	Update(ctx context.Context, resource, id string, payload any) (json.RawMessage, error)
	Delete(ctx context.Context, resource, id string) error
}

// Resources.
const (
	ResourcePosts      = "posts"
	ResourceProducts   = "shop/products"
	ResourceCategories = "shop/categories"
	ResourceCart       = "shop/cart"
	ResourceOrders     = "shop/orders"
	ResourceRegister   = "auth/register"
	ResourceLogin      = "auth/login"
	ResourceLogout     = "auth/logout"
	ResourceMe         = "auth/me"
	ResourceHealth     = "health"
)

func PostComments(postID int64) string { return fmt.Sprintf("posts/%d/comments", postID) }
func PostLike(postID int64) string     { return fmt.Sprintf("posts/%d/like", postID) }
func PostUnlike(postID int64) string   { return fmt.Sprintf("posts/%d/unlike", postID) }

// ID formats a numeric identifier for Get/Update/Delete.
func ID(id int64) string { return strconv.FormatInt(id, 10) }

// Decode unmarshals raw into T. A malformed payload is reported as a
// transport failure since it came off the wire.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, apperr.NewTransportError(0, "empty response", nil)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, apperr.NewTransportError(0, "malformed response", err)
	}
	return v, nil
}

// DecodeItems unmarshals every item of p.
func DecodeItems[T any](p *Page) ([]T, error) {
	if p == nil {
		return nil, nil
	}
	out := make([]T, 0, len(p.Items))
	for _, raw := range p.Items {
		v, err := Decode[T](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
