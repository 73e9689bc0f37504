// Package auth owns the client session: the bearer token, the current viewer
// and change notifications for controllers that depend on the viewer's tier.
package auth

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/validate"
	"github.com/d60-Lab/sagesync/pkg/logger"
)

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Username    string `json:"username" validate:"required,min=3,max=32"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6"`
	DisplayName string `json:"display_name,omitempty" validate:"max=64"`
}

// Session is the payload of a successful login or register call.
type Session struct {
	User  model.User `json:"user"`
	Token string     `json:"token"`
}

// Manager 登录态管理
type Manager struct {
	gw    gateway.Gateway
	store *TokenStore
	log   *zap.Logger

	mu        sync.RWMutex
	viewer    *model.User
	listeners map[uint64]func(*model.User)
	nextID    uint64
}

func NewManager(gw gateway.Gateway, store *TokenStore) *Manager {
	if store == nil {
		store = NewTokenStore("")
	}
	return &Manager{
		gw:        gw,
		store:     store,
		log:       logger.Named("auth"),
		listeners: make(map[uint64]func(*model.User)),
	}
}

func (m *Manager) Tokens() *TokenStore { return m.store }

// Viewer returns a copy of the signed-in user, or nil.
func (m *Manager) Viewer() *model.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.viewer == nil {
		return nil
	}
	u := *m.viewer
	return &u
}

func (m *Manager) Authenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.viewer != nil
}

// OnChange registers fn for sign-in, sign-out and tier changes.
func (m *Manager) OnChange(fn func(viewer *model.User)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

func (m *Manager) Login(ctx context.Context, in Credentials) (*model.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return m.open(ctx, gateway.ResourceLogin, in)
}

func (m *Manager) Register(ctx context.Context, in Registration) (*model.User, error) {
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	return m.open(ctx, gateway.ResourceRegister, in)
}

func (m *Manager) open(ctx context.Context, resource string, payload any) (*model.User, error) {
	raw, err := m.gw.Create(ctx, resource, payload)
	if err != nil {
		return nil, err
	}
	sess, err := gateway.Decode[Session](raw)
	if err != nil {
		return nil, err
	}
	m.store.Set(sess.Token)
	m.setViewer(&sess.User)
	m.log.Info("signed in", zap.Int64("user_id", sess.User.ID), zap.String("tier", string(sess.User.SubscriptionTier)))
	return m.Viewer(), nil
}

// Logout ends the session locally even when the remote call fails.
func (m *Manager) Logout(ctx context.Context) error {
	_, err := m.gw.Create(ctx, gateway.ResourceLogout, nil)
	m.store.Clear()
	m.setViewer(nil)
	return err
}

// Refresh asks the remote side who the token belongs to. A 401 clears the
// session and is not an error.
func (m *Manager) Refresh(ctx context.Context) (*model.User, error) {
	if m.store.Token() == "" {
		m.setViewer(nil)
		return nil, nil
	}
	raw, err := m.gw.Get(ctx, gateway.ResourceMe, "")
	if err != nil {
		if apperr.IsUnauthorized(err) {
			m.store.Clear()
			m.setViewer(nil)
			return nil, nil
		}
		return nil, err
	}
	u, err := gateway.Decode[model.User](raw)
	if err != nil {
		return nil, err
	}
	m.setViewer(&u)
	return m.Viewer(), nil
}

// Restore adopts a stored token, taking the viewer from its claims until the
// next Refresh.
func (m *Manager) Restore(token string) error {
	u, err := ViewerFromToken(token)
	if err != nil {
		return err
	}
	m.store.Set(token)
	m.setViewer(u)
	return nil
}

func (m *Manager) setViewer(u *model.User) {
	m.mu.Lock()
	changed := !sameViewer(m.viewer, u)
	if u != nil {
		cp := *u
		m.viewer = &cp
	} else {
		m.viewer = nil
	}
	fns := make([]func(*model.User), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if !changed {
		return
	}
	for _, fn := range fns {
		fn(m.Viewer())
	}
}

func sameViewer(a, b *model.User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.SubscriptionTier == b.SubscriptionTier
}
