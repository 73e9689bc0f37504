package auth

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/sagesync/internal/apperr"
	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/gateway/gatewaytest"
	"github.com/d60-Lab/sagesync/internal/model"
)

var secret = []byte("test-secret")

func TestToken_RoundTrip(t *testing.T) {
	u := &model.User{ID: 42, Username: "seeker_sam", SubscriptionTier: model.TierSeeker}
	tok, err := IssueToken(secret, u, time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(secret, tok)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.EqualValues(t, 42, id)
	assert.Equal(t, model.TierSeeker, claims.Tier)

	_, err = ParseToken([]byte("other"), tok)
	assert.Error(t, err)

	viewer, err := ViewerFromToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "seeker_sam", viewer.Username)
	assert.Equal(t, model.TierSeeker, viewer.SubscriptionTier)
}

func TestViewerFromToken_Expired(t *testing.T) {
	tok, err := IssueToken(secret, &model.User{ID: 1}, -time.Minute)
	require.NoError(t, err)
	_, err = ViewerFromToken(tok)
	assert.Error(t, err)

	_, err = ViewerFromToken("")
	assert.Error(t, err)
}

func sessionFake(u model.User) *gatewaytest.Fake {
	fake := gatewaytest.New()
	fake.CreateFunc = func(_ context.Context, resource string, _ any) (json.RawMessage, error) {
		switch resource {
		case gateway.ResourceLogin, gateway.ResourceRegister:
			return gatewaytest.JSON(Session{User: u, Token: "tok-" + u.Username}), nil
		}
		return json.RawMessage("null"), nil
	}
	return fake
}

func TestManager_LoginNotifiesAndStoresToken(t *testing.T) {
	u := model.User{ID: 7, Username: "mystic", SubscriptionTier: model.TierMystic}
	m := NewManager(sessionFake(u), nil)

	var seen []*model.User
	m.OnChange(func(v *model.User) { seen = append(seen, v) })

	got, err := m.Login(context.Background(), Credentials{Username: "mystic", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, model.TierMystic, got.SubscriptionTier)
	assert.Equal(t, "tok-mystic", m.Tokens().Token())
	assert.True(t, m.Authenticated())
	require.Len(t, seen, 1)
	assert.EqualValues(t, 7, seen[0].ID)

	require.NoError(t, m.Logout(context.Background()))
	assert.Nil(t, m.Viewer())
	assert.Empty(t, m.Tokens().Token())
	require.Len(t, seen, 2)
	assert.Nil(t, seen[1])
}

func TestManager_LoginValidation(t *testing.T) {
	fake := gatewaytest.New()
	m := NewManager(fake, nil)

	_, err := m.Login(context.Background(), Credentials{Username: "x"})
	assert.True(t, apperr.IsValidation(err))
	_, err = m.Register(context.Background(), Registration{Username: "abc", Email: "nope", Password: "secret1"})
	assert.True(t, apperr.IsValidation(err))
	assert.Empty(t, fake.Calls())
}

func TestManager_RefreshUnauthorizedClearsSession(t *testing.T) {
	fake := gatewaytest.New()
	fake.GetFunc = func(context.Context, string, string) (json.RawMessage, error) {
		return nil, gatewaytest.Fail(401, "Not authenticated")
	}
	tok, err := IssueToken(secret, &model.User{ID: 3, Username: "sage", SubscriptionTier: model.TierSage}, time.Hour)
	require.NoError(t, err)

	m := NewManager(fake, nil)
	require.NoError(t, m.Restore(tok))
	require.True(t, m.Authenticated())

	u, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.False(t, m.Authenticated())
	assert.Empty(t, m.Tokens().Token())
}

func TestManager_RefreshWithoutTokenSkipsGateway(t *testing.T) {
	fake := gatewaytest.New()
	m := NewManager(fake, nil)

	u, err := m.Refresh(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)
	assert.Empty(t, fake.Calls())
}

func TestManager_LogoutClearsEvenOnFailure(t *testing.T) {
	u := model.User{ID: 1, Username: "free"}
	fake := sessionFake(u)
	m := NewManager(fake, nil)
	_, err := m.Login(context.Background(), Credentials{Username: "free", Password: "pw"})
	require.NoError(t, err)

	fake.CreateFunc = func(context.Context, string, any) (json.RawMessage, error) {
		return nil, errors.New("offline")
	}
	assert.Error(t, m.Logout(context.Background()))
	assert.False(t, m.Authenticated())
}
