package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/d60-Lab/sagesync/internal/model"
	"github.com/d60-Lab/sagesync/internal/repository"
	"github.com/d60-Lab/sagesync/pkg/database"
)

type fixture struct {
	db    *gorm.DB
	users repository.UserRepository
	posts PostService
	shop  ShopService
	auth  AuthService
	rel   RelationshipService
}

func setup(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, Seed(context.Background(), db))

	users := repository.NewUserRepository(db)
	follows := repository.NewFollowRepository(db)
	return &fixture{
		db:    db,
		users: users,
		posts: NewPostService(repository.NewPostRepository(db), repository.NewCommentRepository(db), users, follows),
		shop:  NewShopService(repository.NewProductRepository(db), repository.NewCartRepository(db), repository.NewOrderRepository(db)),
		auth:  NewAuthService(users, "secret", 0),
		rel:   NewRelationshipService(follows, users),
	}
}

func (f *fixture) viewer(t *testing.T, username string) Viewer {
	t.Helper()
	u, err := f.users.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return Viewer{ID: u.ID, Tier: u.SubscriptionTier}
}

func TestSeed_Idempotent(t *testing.T) {
	f := setup(t)
	require.NoError(t, Seed(context.Background(), f.db))
	var n int64
	require.NoError(t, f.db.Model(&model.User{}).Count(&n).Error)
	assert.EqualValues(t, 5, n)
}

func TestPostService_ListPagesAndFilters(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, hasNext, err := f.posts.List(ctx, Viewer{}, "all", 1, 4)
	require.NoError(t, err)
	assert.Len(t, first, 4)
	assert.True(t, hasNext)
	assert.NotEmpty(t, first[0].Author.Username)

	second, hasNext, err := f.posts.List(ctx, Viewer{}, "all", 2, 4)
	require.NoError(t, err)
	assert.Len(t, second, 3)
	assert.False(t, hasNext)

	trending, _, err := f.posts.List(ctx, Viewer{}, "trending", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 42, trending[0].LikeCount)

	premium, _, err := f.posts.List(ctx, Viewer{}, "premium", 1, 10)
	require.NoError(t, err)
	for _, p := range premium {
		assert.NotEqual(t, model.TierFree, p.RequiredTier)
	}

	seeker := f.viewer(t, "seeker_sam")
	following, _, err := f.posts.List(ctx, seeker, "following", 1, 10)
	require.NoError(t, err)
	for _, p := range following {
		assert.NotEqual(t, "free_spirit", p.Author.Username)
	}

	_, _, err = f.posts.List(ctx, Viewer{}, "bogus", 1, 10)
	assert.ErrorIs(t, err, ErrUnknownFilter)
}

func TestPostService_LikeIsIdempotentAndGated(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	free := f.viewer(t, "free_spirit")

	posts, _, err := f.posts.List(ctx, free, "all", 1, 10)
	require.NoError(t, err)
	var open, locked *model.Post
	for _, p := range posts {
		if p.RequiredTier == model.TierFree && open == nil {
			open = p
		}
		if p.RequiredTier == model.TierOracle {
			locked = p
		}
	}
	require.NotNil(t, open)
	require.NotNil(t, locked)

	liked, err := f.posts.Like(ctx, free, open.ID)
	require.NoError(t, err)
	assert.Equal(t, open.LikeCount+1, liked.LikeCount)
	assert.True(t, liked.UserLiked)

	again, err := f.posts.Like(ctx, free, open.ID)
	require.NoError(t, err)
	assert.Equal(t, liked.LikeCount, again.LikeCount)

	unliked, err := f.posts.Unlike(ctx, free, open.ID)
	require.NoError(t, err)
	assert.Equal(t, open.LikeCount, unliked.LikeCount)
	assert.False(t, unliked.UserLiked)

	_, err = f.posts.Like(ctx, free, locked.ID)
	assert.ErrorIs(t, err, ErrInsufficientTier)
	_, err = f.posts.Like(ctx, free, 9999)
	assert.ErrorIs(t, err, ErrPostNotFound)
}

func TestPostService_Comments(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seeker := f.viewer(t, "seeker_sam")

	posts, _, err := f.posts.List(ctx, seeker, "all", 1, 10)
	require.NoError(t, err)
	target := posts[len(posts)-1] // oldest: the welcome post
	require.Equal(t, 2, target.CommentCount)

	c, err := f.posts.AddComment(ctx, seeker, target.ID, "hello from the test")
	require.NoError(t, err)
	assert.Equal(t, "seeker_sam", c.User.Username)

	list, hasNext, err := f.posts.Comments(ctx, target.ID, 1, 2)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.True(t, hasNext)

	p, err := f.posts.Get(ctx, seeker, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, p.CommentCount)
}

func TestShopService_CartAndOrder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	seeker := f.viewer(t, "seeker_sam")

	products, hasNext, err := f.shop.Products(ctx, "Crystals", 1, 12)
	require.NoError(t, err)
	assert.False(t, hasNext)
	require.Len(t, products, 2)
	amethyst, moldavite := products[0], products[1]

	assert.ErrorIs(t, f.shop.AddToCart(ctx, seeker, moldavite.ID, 1), ErrInsufficientTier)
	require.NoError(t, f.shop.AddToCart(ctx, seeker, amethyst.ID, 1))
	require.NoError(t, f.shop.AddToCart(ctx, seeker, amethyst.ID, 1))

	cart, err := f.shop.Cart(ctx, seeker.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "25.00", cart.TotalAmount.String())

	require.NoError(t, f.shop.UpdateCartItem(ctx, seeker.ID, amethyst.ID, 3))
	order, err := f.shop.PlaceOrder(ctx, seeker.ID)
	require.NoError(t, err)
	assert.Equal(t, "37.50", order.Amount.String())
	require.Len(t, order.Items, 1)

	cart, err = f.shop.Cart(ctx, seeker.ID)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)

	_, err = f.shop.PlaceOrder(ctx, seeker.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)

	got, err := f.shop.Order(ctx, seeker.ID, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 1)
	_, err = f.shop.Order(ctx, seeker.ID+1, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	assert.ErrorIs(t, f.shop.RemoveFromCart(ctx, seeker.ID, amethyst.ID), ErrCartItemNotFound)
}

func TestAuthService_RegisterLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	u, tok, err := f.auth.Register(ctx, RegisterInput{Username: "newbie", Email: "n@example.com", Password: "s3cret!"})
	require.NoError(t, err)
	assert.Equal(t, model.TierFree, u.SubscriptionTier)
	assert.NotEmpty(t, tok)

	_, _, err = f.auth.Register(ctx, RegisterInput{Username: "newbie", Password: "x"})
	assert.ErrorIs(t, err, ErrUsernameTaken)

	_, _, err = f.auth.Login(ctx, "newbie", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.auth.Login(ctx, "ghost", "x")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	logged, _, err := f.auth.Login(ctx, "sage_master", DemoPassword)
	require.NoError(t, err)
	assert.Equal(t, model.TierOracle, logged.SubscriptionTier)
}

func TestRelationshipService(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	free := f.viewer(t, "free_spirit")
	mystic := f.viewer(t, "mystic_mia")

	assert.ErrorIs(t, f.rel.Follow(ctx, free.ID, free.ID), ErrFollowSelf)
	assert.ErrorIs(t, f.rel.Follow(ctx, free.ID, 9999), ErrUserNotFound)
	require.NoError(t, f.rel.Follow(ctx, free.ID, mystic.ID))
	require.NoError(t, f.rel.Follow(ctx, free.ID, mystic.ID))

	ids, hasNext, err := f.rel.ListFollowing(ctx, free.ID, 1, 1)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.True(t, hasNext)

	require.NoError(t, f.rel.Unfollow(ctx, free.ID, mystic.ID))
	ids, hasNext, err = f.rel.ListFollowing(ctx, free.ID, 1, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
	assert.False(t, hasNext)
}
