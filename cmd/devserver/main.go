// Command devserver serves the community and shop API that the sagesync
// client talks to, backed by sqlite or postgres.
//
// @title SageSync Dev API
// @version 1.0
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/d60-Lab/sagesync/config"
	"github.com/d60-Lab/sagesync/internal/api"
	"github.com/d60-Lab/sagesync/internal/api/handler"
	"github.com/d60-Lab/sagesync/internal/repository"
	"github.com/d60-Lab/sagesync/internal/service"
	"github.com/d60-Lab/sagesync/pkg/database"
	"github.com/d60-Lab/sagesync/pkg/logger"
	"github.com/d60-Lab/sagesync/pkg/tracing"
)

func main() {
	var (
		envFile = flag.String("env", ".env", "optional .env file")
		seed    = flag.Bool("seed", true, "insert demo data into an empty database")
	)
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Named("devserver")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		log.Fatal("init tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	useSentry := cfg.Sentry.DSN != ""
	if useSentry {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			log.Fatal("init sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatal("init database", zap.Error(err))
	}
	if *seed {
		if err := service.Seed(ctx, db); err != nil {
			log.Fatal("seed database", zap.Error(err))
		}
	}

	users := repository.NewUserRepository(db)
	follows := repository.NewFollowRepository(db)
	h := handler.NewHandler(
		service.NewAuthService(users, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		service.NewPostService(repository.NewPostRepository(db), repository.NewCommentRepository(db), users, follows),
		service.NewShopService(repository.NewProductRepository(db), repository.NewCartRepository(db), repository.NewOrderRepository(db)),
		service.NewRelationshipService(follows, users),
	)

	gin.SetMode(cfg.Server.Mode)
	router := api.NewRouter(h, api.RouterOptions{
		JWTSecret:   cfg.Auth.JWTSecret,
		ServiceName: cfg.Tracing.ServiceName,
		Sentry:      useSentry,
		Swagger:     cfg.Server.Mode != gin.ReleaseMode,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	// 最多等待 5 秒处理完剩余请求
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}
}
