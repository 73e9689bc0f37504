// Package middleware 开发服务端使用的 gin 中间件
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/sagesync/internal/auth"
	"github.com/d60-Lab/sagesync/internal/service"
	"github.com/d60-Lab/sagesync/pkg/response"
)

const viewerKey = "viewer"

// Auth resolves the bearer token into a viewer. Requests without a token
// continue anonymously; a bad or expired token is rejected with 401.
func Auth(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Next()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			return
		}
		claims, err := auth.ParseToken(key, strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		id, err := claims.UserID()
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			return
		}
		c.Set(viewerKey, service.Viewer{ID: id, Tier: claims.Tier})
		c.Next()
	}
}

// RequireAuth 必须登录
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ViewerFrom(c).Anonymous() {
			response.Unauthorized(c, "authentication required")
			return
		}
		c.Next()
	}
}

// ViewerFrom returns the request's viewer, anonymous if none was set.
func ViewerFrom(c *gin.Context) service.Viewer {
	if v, ok := c.Get(viewerKey); ok {
		if viewer, ok := v.(service.Viewer); ok {
			return viewer
		}
	}
	return service.Viewer{}
}
