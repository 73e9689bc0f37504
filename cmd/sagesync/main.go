// Command sagesync runs the client-side sync layer headless against a
// remote API: it signs in, loads the feed, catalog and cart, and keeps them
// in sync until interrupted.
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
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d60-Lab/sagesync/config"
	"github.com/d60-Lab/sagesync/internal/access"
	"github.com/d60-Lab/sagesync/internal/auth"
	"github.com/d60-Lab/sagesync/internal/controller"
	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/metrics"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/report"
	"github.com/d60-Lab/sagesync/internal/state"
	"github.com/d60-Lab/sagesync/pkg/logger"
	"github.com/d60-Lab/sagesync/pkg/tracing"
)

func main() {
	var (
		envFile  = flag.String("env", ".env", "optional .env file")
		username = flag.String("username", "", "sign in as this user")
		password = flag.String("password", "", "password for -username")
		filter   = flag.String("filter", "all", "feed filter: all|trending|following|premium")
		category = flag.String("category", "all", "catalog category")
		interval = flag.Duration("interval", 30*time.Second, "resync interval, 0 loads once and exits")
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
	log := logger.Named("sagesync")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		log.Fatal("init tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	reporters := []report.Reporter{report.NewLog()}
	if cfg.Sentry.DSN != "" {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			log.Fatal("init sentry", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
		reporters = append(reporters, report.NewSentry(sentry.CurrentHub()))
	}

	tokens := auth.NewTokenStore("")
	var gw gateway.Gateway = gateway.NewHTTPClient(gateway.Options{
		BaseURL:       cfg.Gateway.BaseURL,
		RatePerSecond: cfg.Gateway.RatePerSecond,
		Burst:         cfg.Gateway.Burst,
		Timeout:       cfg.Gateway.Timeout,
		Tokens:        tokens,
	})
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		gw = gateway.NewCachedGateway(gw, rdb, cfg.Shop.CacheTTL)
	}

	session := auth.NewManager(gw, tokens)
	if err := signIn(ctx, session, cfg.Gateway.Token, *username, *password); err != nil {
		log.Fatal("sign in", zap.Error(err))
	}

	deps := controller.Deps{
		Gateway:  gw,
		Viewer:   session,
		Policy:   access.NewPolicy(),
		Reporter: report.Multi(reporters...),
	}
	feed := controller.NewFeed(deps, controller.FeedOptions{
		PageSize:        cfg.Feed.PageSize,
		CommentPageSize: cfg.Feed.CommentPageSize,
	})
	catalog := controller.NewCatalog(deps, cfg.Shop.PageSize)
	cart := controller.NewCart(deps)

	watch(log, "posts", feed.Posts())
	watch(log, "products", catalog.Products())
	watch(log, "cart", cart.Lines())

	// 会话变化后刷新与 viewer 相关的数据
	session.OnChange(func(viewer *model.User) {
		if err := loadAll(ctx, feed.Reload, cart.Refresh); err != nil {
			log.Warn("reload after session change", zap.Error(err))
		}
	})

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server", zap.Error(err))
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	if err := initialLoad(ctx, feed, catalog, cart, *filter, *category); err != nil {
		log.Error("initial load", zap.Error(err))
	}
	summary(log, session, feed, catalog, cart)
	if *interval <= 0 {
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := session.Refresh(ctx); err != nil {
				log.Warn("refresh session", zap.Error(err))
			}
			if err := loadAll(ctx, feed.Reload, cart.Refresh); err != nil {
				log.Warn("resync", zap.Error(err))
			}
			summary(log, session, feed, catalog, cart)
		}
	}
}

// signIn 优先使用已保存的 token，其次用户名密码
func signIn(ctx context.Context, session *auth.Manager, token, username, password string) error {
	if token != "" {
		if err := session.Restore(token); err != nil {
			return err
		}
		_, err := session.Refresh(ctx)
		return err
	}
	if username == "" {
		return nil
	}
	_, err := session.Login(ctx, auth.Credentials{Username: username, Password: password})
	return err
}

func initialLoad(ctx context.Context, feed *controller.Feed, catalog *controller.Catalog, cart *controller.Cart, filter, category string) error {
	return loadAll(ctx,
		func(ctx context.Context) error { return feed.SetFilter(ctx, filter) },
		func(ctx context.Context) error { return catalog.SetCategory(ctx, category) },
		func(ctx context.Context) error {
			_, err := catalog.Categories(ctx)
			return err
		},
		cart.Refresh,
	)
}

// loadAll 并发执行各个加载。每个加载各自成败，一个失败不会取消其他加载。
func loadAll(ctx context.Context, loads ...func(context.Context) error) error {
	var g errgroup.Group
	errs := make([]error, len(loads))
	for i, load := range loads {
		g.Go(func() error {
			errs[i] = load(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

func watch[T any](log *zap.Logger, name string, v state.View[T]) {
	v.Subscribe(func(s state.Snapshot[T]) {
		if s.Loading {
			return
		}
		fields := []zap.Field{
			zap.String("collection", name),
			zap.Int("items", len(s.Items)),
			zap.Int("page", s.Page),
			zap.Bool("has_more", s.HasMore),
		}
		if s.Err != nil {
			fields = append(fields, zap.Error(s.Err))
		}
		log.Debug("snapshot", fields...)
	})
}

func summary(log *zap.Logger, session *auth.Manager, feed *controller.Feed, catalog *controller.Catalog, cart *controller.Cart) {
	viewer := "anonymous"
	if u := session.Viewer(); u != nil {
		viewer = u.Username
	}
	locked := 0
	for _, v := range feed.Views() {
		if v.Locked {
			locked++
		}
	}
	log.Info("synced",
		zap.String("viewer", viewer),
		zap.String("feed_filter", string(feed.Filter())),
		zap.Stringer("feed_state", feed.State()),
		zap.Int("posts", len(feed.Posts().Snapshot().Items)),
		zap.Int("locked_posts", locked),
		zap.Int("products", len(catalog.Products().Snapshot().Items)),
		zap.Int("cart_count", cart.AggregateCount()),
		zap.Stringer("cart_total", cart.Total()),
	)
}
