package reward

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/arcadehub/promptengine/internal/domain"
	"github.com/arcadehub/promptengine/internal/repo"
)

func newRewardDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1) // serialize writers like a real single-writer sqlite file
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedItems(t *testing.T, db *gorm.DB, poolID string, n int, kind domain.RewardKind, maxClaims int) {
	t.Helper()
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		item := &domain.RewardItem{
			ID:        fmt.Sprintf("id-%s-%d", poolID, i),
			ItemID:    fmt.Sprintf("%s-item-%d", poolID, i),
			PoolID:    poolID,
			Kind:      kind,
			Code:      fmt.Sprintf("CODE-%d", i),
			MaxClaims: maxClaims,
			Enabled:   true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Create(item).Error; err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}
}

func TestClaim_Success(t *testing.T) {
	db := newRewardDB(t)
	seedItems(t, db, "pool1", 1, domain.RewardJDECard, 1)

	c := New(db)
	res, err := c.Claim(context.Background(), "pool1", "u1", 5)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if res.ItemID == "" || res.Code == "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestClaim_AlreadyClaimed(t *testing.T) {
	db := newRewardDB(t)
	seedItems(t, db, "pool1", 2, domain.RewardJDECard, 1)

	c := New(db)
	if _, err := c.Claim(context.Background(), "pool1", "u1", 5); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := c.Claim(context.Background(), "pool1", "u1", 5); err != ErrAlreadyClaimed {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestClaim_PoolExhausted(t *testing.T) {
	db := newRewardDB(t)
	seedItems(t, db, "pool1", 1, domain.RewardJDECard, 1)

	c := New(db)
	if _, err := c.Claim(context.Background(), "pool1", "u1", 5); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := c.Claim(context.Background(), "pool1", "u2", 5); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestClaim_JDECardOrderedBeforeAlipay(t *testing.T) {
	db := newRewardDB(t)
	seedItems(t, db, "pool1", 1, domain.RewardAlipayCode, 5)
	seedItems(t, db, "pool2", 0, domain.RewardJDECard, 0)
	// re-seed pool1 with both kinds to exercise ordering within one pool
	now := time.Now().UTC()
	db.Create(&domain.RewardItem{ID: "jd1", ItemID: "z-jd-card", PoolID: "pool1", Kind: domain.RewardJDECard, Code: "JD1", MaxClaims: 1, Enabled: true, CreatedAt: now, UpdatedAt: now})

	c := New(db)
	res, err := c.Claim(context.Background(), "pool1", "u1", 5)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if res.Kind != domain.RewardJDECard {
		t.Fatalf("expected JD_ECARD to be exhausted first regardless of item_id ordering, got %s", res.Kind)
	}
}

func TestClaim_NoOverclaimUnderConcurrency(t *testing.T) {
	db := newRewardDB(t)
	seedItems(t, db, "pool1", 10, domain.RewardJDECard, 1)

	c := New(db)
	const users = 20
	var wg sync.WaitGroup
	results := make(chan error, users)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := c.Claim(context.Background(), "pool1", fmt.Sprintf("user-%d", idx), 5)
			results <- err
		}(i)
	}
	wg.Wait()
	close(results)

	successes, exhausted := 0, 0
	for err := range results {
		switch err {
		case nil:
			successes++
		case ErrPoolExhausted:
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 10 {
		t.Fatalf("expected exactly 10 successful claims, got %d", successes)
	}
	if exhausted != users-10 {
		t.Fatalf("expected %d exhausted, got %d", users-10, exhausted)
	}

	var claimCount int64
	db.Model(&domain.RewardClaim{}).Where("pool_id = ?", "pool1").Count(&claimCount)
	if claimCount != 10 {
		t.Fatalf("expected 10 reward_claims rows, got %d", claimCount)
	}

	var items []domain.RewardItem
	db.Where("pool_id = ?", "pool1").Find(&items)
	for _, it := range items {
		if it.ClaimedCount > it.MaxClaims {
			t.Fatalf("item %s overclaimed: claimed=%d max=%d", it.ItemID, it.ClaimedCount, it.MaxClaims)
		}
	}
}
