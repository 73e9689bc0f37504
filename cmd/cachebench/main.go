package main

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"net/http/httptest"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/d60-Lab/sagesync/internal/api"
	"github.com/d60-Lab/sagesync/internal/api/handler"
	"github.com/d60-Lab/sagesync/internal/gateway"
	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/repository"
	"github.com/d60-Lab/sagesync/internal/service"
	"github.com/d60-Lab/sagesync/pkg/database"
)

type request struct {
	category string
	page     int
	size     int
}

var categories = []string{"", "Apparel", "Digital", "Crystals", "Courses"}

func main() {
	ctx := context.Background()

	// DATABASE_URL 为空时使用内存 sqlite
	var dialector gorm.Dialector
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open("file:cachebench?mode=memory&cache=shared")
	}
	db := must(gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}))
	mustDo(database.Migrate(db))
	mustDo(service.Seed(ctx, db))

	const productCount = 5000

	fmt.Println("Setting up test data...")
	products := make([]model.Product, productCount)
	for i := range products {
		products[i] = model.Product{
			Name:         fmt.Sprintf("Bench product %d", i),
			Price:        model.Cents(int64(100 + i%9000)),
			Category:     categories[1+i%(len(categories)-1)],
			RequiredTier: model.Tiers[i%len(model.Tiers)],
		}
	}
	mustDo(db.CreateInBatches(&products, 500).Error)
	fmt.Printf("Test data ready: %d products\n", productCount)

	users := repository.NewUserRepository(db)
	follows := repository.NewFollowRepository(db)
	h := handler.NewHandler(
		service.NewAuthService(users, "bench", 0),
		service.NewPostService(repository.NewPostRepository(db), repository.NewCommentRepository(db), users, follows),
		service.NewShopService(repository.NewProductRepository(db), repository.NewCartRepository(db), repository.NewOrderRepository(db)),
		service.NewRelationshipService(follows, users),
	)
	gin.SetMode(gin.ReleaseMode)
	srv := httptest.NewServer(api.NewRouter(h, api.RouterOptions{JWTSecret: "bench"}))
	defer srv.Close()

	// REDIS_ADDR 为空时使用进程内 miniredis
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		mr := must(miniredis.Run())
		defer mr.Close()
		redisAddr = mr.Addr()
	}
	client := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis at %s: %v", redisAddr, err))
	}

	direct := gateway.NewHTTPClient(gateway.Options{BaseURL: srv.URL})
	cached := gateway.NewCachedGateway(direct, client, 10*time.Minute)

	reqs := makeRequests(3000)

	noCache := runScenario(ctx, reqs, false, direct, client)
	withCache := runScenario(ctx, reqs, true, cached, client)
	counters := cached.Counters()

	fmt.Printf("\nCatalog page latency (%d req, %d products, dev server + Redis)\n", len(reqs), productCount)
	fmt.Printf("%-14s avg=%v p95=%v p99=%v\n",
		"No cache", avg(noCache.durations), pct(noCache.durations, 0.95), pct(noCache.durations, 0.99))
	fmt.Printf("%-14s avg=%v p95=%v p99=%v hits=%d misses=%d cache_keys=%d mem=%s\n",
		"Redis cache", avg(withCache.durations), pct(withCache.durations, 0.95), pct(withCache.durations, 0.99),
		counters.Hits, counters.Misses, withCache.cacheKeys, formatBytes(withCache.memoryBytes))
}

type scenarioResult struct {
	durations   []time.Duration
	cacheKeys   int
	memoryBytes int64
}

func runScenario(ctx context.Context, reqs []request, warm bool, gw gateway.Gateway, client *redis.Client) scenarioResult {
	client.FlushAll(ctx)

	call := func(r request) {
		filters := gateway.Filters{"category": r.category}
		if _, err := gw.List(ctx, gateway.ResourceProducts, filters, r.page, r.size); err != nil {
			panic(err)
		}
	}

	if warm {
		fmt.Print("  Warming cache...")
		for _, r := range reqs {
			call(r)
		}
		fmt.Println(" done")
	}

	fmt.Print("  Running benchmark...")
	out := make([]time.Duration, 0, len(reqs))
	for _, r := range reqs {
		start := time.Now()
		call(r)
		out = append(out, time.Since(start))
	}
	fmt.Println(" done")

	keys, _ := client.Keys(ctx, "sagesync:*").Result()

	var memBytes int64
	if info, err := client.Info(ctx, "memory").Result(); err == nil {
		memBytes = parseRedisMemory(info)
	}

	return scenarioResult{
		durations:   out,
		cacheKeys:   len(keys),
		memoryBytes: memBytes,
	}
}

// parseRedisMemory extracts used_memory from Redis INFO
func parseRedisMemory(info string) int64 {
	for _, line := range strings.Split(info, "\n") {
		v, ok := strings.CutPrefix(strings.TrimSpace(line), "used_memory:")
		if !ok {
			continue
		}
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			return n
		}
	}
	return 0
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func makeRequests(n int) []request {
	sizes := []int{12, 24, 48}
	out := make([]request, n)
	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < n; i++ {
		page := 1
		if rnd.Float64() > 0.72 {
			// 模拟翻到较深的页
			page = 2 + rnd.Intn(20)
		}
		out[i] = request{
			category: categories[rnd.Intn(len(categories))],
			page:     page,
			size:     sizes[rnd.Intn(len(sizes))],
		}
	}
	return out
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range vs {
		sum += v
	}
	return sum / time.Duration(len(vs))
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), vs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}
