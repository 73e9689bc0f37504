// Package gatewaytest provides a scriptable in-memory gateway.
package gatewaytest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/internal/gateway"
)

// Call records one invocation.
type Call struct {
	Method   string
	Resource string
	ID       string
	Filters  gateway.Filters
	Page     int
	PageSize int
	Payload  any
}

// Fake implements gateway.Gateway with per-method hooks. A nil hook answers
// with an empty success.
type Fake struct {
	ListFunc   func(ctx context.Context, resource string, filters gateway.Filters, page, pageSize int) (*gateway.Page, error)
	GetFunc    func(ctx context.Context, resource, id string) (json.RawMessage, error)
	CreateFunc func(ctx context.Context, resource string, payload any) (json.RawMessage, error)
	UpdateFunc func(ctx context.Context, resource, id string, payload any) (json.RawMessage, error)
	DeleteFunc func(ctx context.Context, resource, id string) error

	mu    sync.Mutex
	calls []Call
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake { return &Fake{} }

func (f *Fake) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *Fake) List(ctx context.Context, resource string, filters gateway.Filters, page, pageSize int) (*gateway.Page, error) {
	f.record(Call{Method: "LIST", Resource: resource, Filters: filters, Page: page, PageSize: pageSize})
	if f.ListFunc == nil {
		return &gateway.Page{}, nil
	}
	return f.ListFunc(ctx, resource, filters, page, pageSize)
}

func (f *Fake) Get(ctx context.Context, resource, id string) (json.RawMessage, error) {
	f.record(Call{Method: "GET", Resource: resource, ID: id})
	if f.GetFunc == nil {
		return json.RawMessage("null"), nil
	}
	return f.GetFunc(ctx, resource, id)
}

func (f *Fake) Create(ctx context.Context, resource string, payload any) (json.RawMessage, error) {
	f.record(Call{Method: "CREATE", Resource: resource, Payload: payload})
	if f.CreateFunc == nil {
		return json.RawMessage("null"), nil
	}
	return f.CreateFunc(ctx, resource, payload)
}

func (f *Fake) Update(ctx context.Context, resource, id string, payload any) (json.RawMessage, error) {
	f.record(Call{Method: "UPDATE", Resource: resource, ID: id, Payload: payload})
	if f.UpdateFunc == nil {
		return json.RawMessage("null"), nil
	}
	return f.UpdateFunc(ctx, resource, id, payload)
}

func (f *Fake) Delete(ctx context.Context, resource, id string) error {
	f.record(Call{Method: "DELETE", Resource: resource, ID: id})
	if f.DeleteFunc == nil {
		return nil
	}
	return f.DeleteFunc(ctx, resource, id)
}

func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Count returns how many calls matched method and resource. An empty
// resource matches any.
func (f *Fake) Count(method, resource string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method && (resource == "" || c.Resource == resource) {
			n++
		}
	}
	return n
}

func (f *Fake) Reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// JSON marshals v, panicking on failure.
func JSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// PageOf builds a page from values.
func PageOf[T any](hasNext bool, items ...T) *gateway.Page {
	p := &gateway.Page{HasNext: hasNext, Items: make([]json.RawMessage, 0, len(items))}
	for _, it := range items {
		p.Items = append(p.Items, JSON(it))
	}
	return p
}

// Fail returns a transport failure with status and message.
func Fail(status int, message string) error {
	return apperr.NewTransportError(status, message, nil)
}
