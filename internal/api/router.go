// Package api 组装开发服务端的 gin 路由
package api

import (
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "github.com/d60-Lab/sagesync/docs"
	"github.com/d60-Lab/sagesync/internal/api/handler"
	"github.com/d60-Lab/sagesync/internal/api/middleware"
)

type RouterOptions struct {
	JWTSecret   string
	ServiceName string
	// Sentry 为 true 时挂载 sentrygin，需先调用 sentry.Init
	Sentry  bool
	Swagger bool
}

// NewRouter 注册 /api 下的全部路由
func NewRouter(h *handler.Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Sentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	if opts.ServiceName != "" {
		r.Use(otelgin.Middleware(opts.ServiceName))
	}
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(middleware.RequestLogger())

	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	authed := middleware.RequireAuth()
	api := r.Group("/api", middleware.Auth(opts.JWTSecret))
	api.GET("/health", h.Health)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Register)
		authGroup.POST("/login", h.Login)
		authGroup.POST("/logout", h.Logout)
		authGroup.GET("/me", authed, h.Me)
	}

	posts := api.Group("/posts")
	{
		posts.GET("", h.ListPosts)
		posts.POST("", authed, h.CreatePost)
		posts.GET("/:id", h.GetPost)
		posts.POST("/:id/like", authed, h.LikePost)
		posts.DELETE("/:id/unlike", authed, h.UnlikePost)
		posts.GET("/:id/comments", h.ListComments)
		posts.POST("/:id/comments", authed, h.CreateComment)
	}

	shop := api.Group("/shop")
	{
		shop.GET("/products", h.ListProducts)
		shop.GET("/products/:id", h.GetProduct)
		shop.GET("/categories", h.ListCategories)

		shop.GET("/cart", authed, h.GetCart)
		shop.POST("/cart", authed, h.AddToCart)
		shop.PUT("/cart/:id", authed, h.UpdateCartItem)
		shop.DELETE("/cart/:id", authed, h.RemoveFromCart)

		shop.POST("/orders", authed, h.CreateOrder)
		shop.GET("/orders", authed, h.ListOrders)
		shop.GET("/orders/:id", authed, h.GetOrder)
	}

	users := api.Group("/users")
	{
		users.POST("/:id/follow", authed, h.Follow)
		users.DELETE("/:id/follow", authed, h.Unfollow)
		users.GET("/:id/following", h.ListFollowing)
	}
	return r
}
