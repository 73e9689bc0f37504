package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/d60-Lab/sagesync/internal/apperr"
)

func newTestClient(t *testing.T, h http.HandlerFunc, token string) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Options{
		BaseURL: srv.URL,
		Tokens:  TokenFunc(func() string { return token }),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestHTTPClient_ListSendsPagingAndFilters(t *testing.T) {
	var got *http.Request
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"items":    []map[string]any{{"id": 1}, {"id": 2}},
				"page":     2,
				"per_page": 2,
				"has_next": true,
			},
		})
	}, "tok-1")

	p, err := c.List(context.Background(), ResourcePosts, Filters{"filter": "trending", "empty": ""}, 2, 2)
	require.NoError(t, err)
	assert.True(t, p.HasNext)
	assert.Len(t, p.Items, 2)

	require.NotNil(t, got)
	assert.Equal(t, "/api/posts", got.URL.Path)
	assert.Equal(t, "trending", got.URL.Query().Get("filter"))
	assert.Equal(t, "2", got.URL.Query().Get("page"))
	assert.Equal(t, "2", got.URL.Query().Get("per_page"))
	assert.False(t, got.URL.Query().Has("empty"))
	assert.Equal(t, "Bearer tok-1", got.Header.Get("Authorization"))
	assert.NotEmpty(t, got.Header.Get("X-Request-ID"))

	type item struct{ ID int64 }
	items, err := DecodeItems[item](p)
	require.NoError(t, err)
	assert.Equal(t, []item{{1}, {2}}, items)
}

func TestHTTPClient_CreateAndDeletePaths(t *testing.T) {
	var methods, paths []string
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		paths = append(paths, r.URL.Path)
		if r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"ok": true}})
	}, "")

	ctx := context.Background()
	raw, err := c.Create(ctx, ResourceCart, map[string]any{"product_id": 3, "quantity": 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	require.NoError(t, c.Delete(ctx, PostUnlike(7), ""))
	require.NoError(t, c.Delete(ctx, ResourceCart, ID(3)))

	assert.Equal(t, []string{"POST", "DELETE", "DELETE"}, methods)
	assert.Equal(t, []string{"/api/shop/cart", "/api/posts/7/unlike", "/api/shop/cart/3"}, paths)
	assert.EqualValues(t, 2, body["quantity"])
}

func TestHTTPClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  int
		message string
	}{
		{
			name: "envelope error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "error": "Post not found"})
			},
			status:  404,
			message: "Post not found",
		},
		{
			name: "envelope message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Not authenticated"})
			},
			status:  401,
			message: "Not authenticated",
		},
		{
			name: "plain text",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "upstream down", http.StatusBadGateway)
			},
			status:  502,
			message: "upstream down",
		},
		{
			name: "no message",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			status:  500,
			message: "HTTP 500",
		},
		{
			name: "success false on 200",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Insufficient subscription tier"})
			},
			status:  200,
			message: "Insufficient subscription tier",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.handler, "")
			_, err := c.Get(context.Background(), ResourceMe, "")
			require.Error(t, err)

			var te *apperr.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.status, te.Status)
			assert.Equal(t, tt.message, te.Message)
		})
	}
}

func TestHTTPClient_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(Options{BaseURL: url})
	_, err := c.Get(context.Background(), ResourceHealth, "")
	require.Error(t, err)
	assert.True(t, apperr.IsTransport(err))
	assert.Equal(t, 0, apperr.StatusOf(err))
}

func TestDecode_Malformed(t *testing.T) {
	_, err := Decode[map[string]int](json.RawMessage(`{"a":"x"}`))
	assert.True(t, apperr.IsTransport(err))

	_, err = Decode[int](nil)
	assert.True(t, apperr.IsTransport(err))
}
