package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/d60-Lab/sagesync/internal/model"
)

// DemoPassword is the password of every seeded account.
const DemoPassword = "password123"

// Seed 写入演示数据；已有用户时跳过
func Seed(ctx context.Context, db *gorm.DB) error {
	var n int64
	if err := db.WithContext(ctx).Model(&model.User{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	users := []model.User{
		{Username: "sage_master", DisplayName: "The Sage Master", Email: "master@sage.example", SubscriptionTier: model.TierOracle},
		{Username: "free_spirit", DisplayName: "Free Spirit", Email: "free@sage.example", SubscriptionTier: model.TierFree},
		{Username: "seeker_sam", DisplayName: "Sam the Seeker", Email: "seeker@sage.example", SubscriptionTier: model.TierSeeker},
		{Username: "mystic_mia", DisplayName: "Mia", Email: "mystic@sage.example", SubscriptionTier: model.TierMystic},
		{Username: "sage_sol", DisplayName: "Sol", Email: "sage@sage.example", SubscriptionTier: model.TierSage},
	}
	for i := range users {
		users[i].PasswordHash = string(hash)
		users[i].AvatarURL = "/assets/icons/default-avatar.png"
	}

	categories := []model.Category{
		{Name: "Apparel", Icon: "fas fa-tshirt"},
		{Name: "Digital", Icon: "fas fa-download"},
		{Name: "Crystals", Icon: "fas fa-gem"},
		{Name: "Courses", Icon: "fas fa-graduation-cap"},
	}

	products := []model.Product{
		{Name: "Mystical Sage T-Shirt", Description: "Premium cotton t-shirt with sacred geometry design", Price: model.Cents(2999), Category: "Apparel", RequiredTier: model.TierFree},
		{Name: "Seeker Hoodie", Description: "Heavyweight hoodie with the seeker sigil", Price: model.Cents(5499), Category: "Apparel", RequiredTier: model.TierSeeker},
		{Name: "Meditation Soundscape", Description: "Ninety minutes of layered drones", Price: model.Cents(999), Category: "Digital", RequiredTier: model.TierFree},
		{Name: "Lunar Journal Template", Description: "Printable journal for the lunar cycle", Price: model.Cents(1450), Category: "Digital", RequiredTier: model.TierSeeker},
		{Name: "Amethyst Cluster", Description: "Hand-picked amethyst cluster", Price: model.Cents(1250), Category: "Crystals", RequiredTier: model.TierFree},
		{Name: "Moldavite Pendant", Description: "Certified moldavite on a silver chain", Price: model.Cents(18900), Category: "Crystals", RequiredTier: model.TierMystic},
		{Name: "Foundations of Stillness", Description: "Six-week introductory course", Price: model.Cents(4900), Category: "Courses", RequiredTier: model.TierSeeker},
		{Name: "Inner Work Intensive", Description: "Live cohort with weekly sessions", Price: model.Cents(29900), Category: "Courses", RequiredTier: model.TierSage},
		{Name: "Oracle Council Seat", Description: "A year of private council sessions", Price: model.Cents(99900), Category: "Courses", RequiredTier: model.TierOracle},
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&users).Error; err != nil {
			return fmt.Errorf("seed users: %w", err)
		}
		if err := tx.Create(&categories).Error; err != nil {
			return fmt.Errorf("seed categories: %w", err)
		}
		if err := tx.Create(&products).Error; err != nil {
			return fmt.Errorf("seed products: %w", err)
		}

		master := users[0].ID
		now := time.Now().Add(-48 * time.Hour)
		posts := []model.Post{
			{AuthorID: master, Content: "Welcome to the Sage Empire! Share your wisdom and connect with fellow seekers.", RequiredTier: model.TierFree, LikeCount: 42, ShareCount: 5},
			{AuthorID: users[2].ID, Content: "Day 30 of morning sits. The noise is quieter now.", RequiredTier: model.TierFree, LikeCount: 12},
			{AuthorID: master, Content: "Seeker circle notes: breath as an anchor, not a task.", RequiredTier: model.TierSeeker, LikeCount: 18},
			{AuthorID: users[3].ID, Content: "Full moon ritual recording is up for the mystic circle.", ImageURL: "/assets/posts/moon.jpg", RequiredTier: model.TierMystic, LikeCount: 27},
			{AuthorID: users[4].ID, Content: "Sage study group: this week we read the Cloud of Unknowing.", RequiredTier: model.TierSage, LikeCount: 9},
			{AuthorID: master, Content: "Oracle council agenda for the solstice gathering.", RequiredTier: model.TierOracle, LikeCount: 4},
			{AuthorID: users[1].ID, Content: "First post here. Grateful to find this place.", RequiredTier: model.TierFree, LikeCount: 3},
		}
		for i := range posts {
			posts[i].CreatedAt = now.Add(time.Duration(i) * time.Hour)
		}
		if err := tx.Create(&posts).Error; err != nil {
			return fmt.Errorf("seed posts: %w", err)
		}

		comments := []model.Comment{
			{PostID: posts[0].ID, UserID: users[1].ID, Content: "Happy to be here!"},
			{PostID: posts[0].ID, UserID: users[2].ID, Content: "Thank you for building this."},
			{PostID: posts[1].ID, UserID: master, Content: "Keep going."},
		}
		if err := tx.Create(&comments).Error; err != nil {
			return fmt.Errorf("seed comments: %w", err)
		}
		counts := map[int64]int{}
		for _, c := range comments {
			counts[c.PostID]++
		}
		for id, n := range counts {
			if err := tx.Model(&model.Post{}).Where("id = ?", id).Update("comment_count", n).Error; err != nil {
				return err
			}
		}

		follows := []model.Follow{
			{FollowerID: users[1].ID, FolloweeID: master},
			{FollowerID: users[2].ID, FolloweeID: master},
			{FollowerID: users[2].ID, FolloweeID: users[3].ID},
		}
		return tx.Create(&follows).Error
	})
}
