// Package service implements the dev API's business rules on top of the
// gorm repositories.
package service

import (
	"errors"

	"gorm.io/gorm"

	"github.com/d60-Lab/sagesync/internal/model"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrPostNotFound     = errors.New("post not found")
	ErrProductNotFound  = errors.New("product not found")
	ErrCartItemNotFound = errors.New("item is not in the cart")
	ErrOrderNotFound    = errors.New("order not found")
	ErrInsufficientTier = errors.New("insufficient subscription tier")
	ErrUnknownFilter    = errors.New("unknown filter")
)

// Viewer is the caller of a request; the zero value is anonymous.
type Viewer struct {
	ID   int64
	Tier model.Tier
}

func (v Viewer) Anonymous() bool { return v.ID == 0 }

// pageBounds 规范化分页参数，返回 offset/limit
func pageBounds(page, pageSize, def int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = def
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return (page - 1) * pageSize, pageSize
}

// trimPage drops the probe row fetched to detect a next page.
func trimPage[T any](rows []T, limit int) ([]T, bool) {
	if len(rows) > limit {
		return rows[:limit], true
	}
	return rows, false
}

func notFound(err, sentinel error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return sentinel
	}
	return err
}
