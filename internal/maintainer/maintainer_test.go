package maintainer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/glowcart/commerce-backend/internal/domain"
	"github.com/glowcart/commerce-backend/internal/repo"
)

func newMaintDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("maint_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedStory(t *testing.T, db *gorm.DB) string {
	t.Helper()

	creator := domain.Creator{ID: uuid.NewString(), DisplayName: "c", TrustTier: domain.TierStandard}
	if err := db.Create(&creator).Error; err != nil {
		t.Fatalf("seed creator: %v", err)
	}
	story := domain.Story{
		ID:        uuid.NewString(),
		CreatorID: creator.ID,
		Type:      domain.StoryProduct,
		MediaRef:  "m",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(&story).Error; err != nil {
		t.Fatalf("seed story: %v", err)
	}
	return story.ID
}

func strp(s string) *string { return &s }

func TestRunOnce_BackfillsToClickCount(t *testing.T) {
	db := newMaintDB(t)
	ctx := context.Background()
	story := seedStory(t, db)

	// Yesterday: 5 clicks but only 2 recorded impressions.
	at := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < 5; i++ {
		if _, err := repo.CreateClick(ctx, db, story, strp("p1"), strp("u1"), at.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("seed click: %v", err)
		}
	}
	for i := 0; i < 2; i++ {
		if _, err := repo.CreateImpression(ctx, db, story, nil, at, false); err != nil {
			t.Fatalf("seed impression: %v", err)
		}
	}

	m := &Maintainer{DB: db, Lookback: 7 * 24 * time.Hour, BatchSize: 100}
	if err := m.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	var synthetic int64
	if err := db.Model(&domain.Impression{}).Where("synthetic = ?", true).Count(&synthetic).Error; err != nil {
		t.Fatalf("count synthetic: %v", err)
	}
	if synthetic != 3 {
		t.Fatalf("synthetic impressions = %d; want 3", synthetic)
	}

	rows, err := repo.ListFunnelDailyPage(ctx, db, 0, 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("funnel rows: %v, %d", err, len(rows))
	}
	row := rows[0]
	if row.Impressions != 5 || row.Clicks != 5 || row.Purchases != 0 {
		t.Fatalf("funnel row: %+v", row)
	}
	if row.Impressions < row.Clicks || row.Clicks < row.Purchases {
		t.Fatalf("monotonic invariant violated: %+v", row)
	}
}

func TestRunOnce_PurchaseImpliesView(t *testing.T) {
	db := newMaintDB(t)
	ctx := context.Background()
	story := seedStory(t, db)

	// An attributed purchase with no impression and no click at all.
	at := time.Now().UTC().Add(-24 * time.Hour)
	p := &domain.Purchase{
		ID:        uuid.NewString(),
		OrderID:   "ord-1",
		ProductID: "p1",
		Amount:    "10.00", AmountMinor: 1000, Currency: "USD",
		StoryID:   &story,
		CreatedAt: at,
	}
	if err := repo.CreatePurchase(ctx, db, p); err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	m := &Maintainer{DB: db}
	if err := m.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	rows, err := repo.ListFunnelDailyPage(ctx, db, 0, 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("funnel rows: %v, %d", err, len(rows))
	}
	row := rows[0]
	if row.Impressions != 1 || row.Clicks != 1 || row.Purchases != 1 {
		t.Fatalf("funnel row: %+v", row)
	}
	if row.Impressions < row.Clicks || row.Clicks < row.Purchases {
		t.Fatalf("monotonic invariant violated: %+v", row)
	}

	// Both repair tiers inserted exactly one flagged row, and the
	// backfilled click carries no user or product, so it can never win
	// an attribution lookup.
	var synthClicks []domain.StoryClick
	if err := db.Where("synthetic = ?", true).Find(&synthClicks).Error; err != nil {
		t.Fatalf("load synthetic clicks: %v", err)
	}
	if len(synthClicks) != 1 {
		t.Fatalf("synthetic clicks = %d; want 1", len(synthClicks))
	}
	if synthClicks[0].UserID != nil || synthClicks[0].ProductID != nil {
		t.Fatalf("synthetic click carries attribution fields: %+v", synthClicks[0])
	}
	var synthImps int64
	if err := db.Model(&domain.Impression{}).Where("synthetic = ?", true).Count(&synthImps).Error; err != nil {
		t.Fatalf("count synthetic impressions: %v", err)
	}
	if synthImps != 1 {
		t.Fatalf("synthetic impressions = %d; want 1", synthImps)
	}

	// A second run finds the cohort already consistent and adds nothing.
	if err := m.RunOnce(ctx); err != nil {
		t.Fatalf("second RunOnce: %v", err)
	}
	var clicks int64
	if err := db.Model(&domain.StoryClick{}).Count(&clicks).Error; err != nil {
		t.Fatalf("count clicks: %v", err)
	}
	if clicks != 1 {
		t.Fatalf("clicks after second run = %d; want 1", clicks)
	}
}

func TestRunOnce_IdempotentWhenConsistent(t *testing.T) {
	db := newMaintDB(t)
	ctx := context.Background()
	story := seedStory(t, db)

	at := time.Now().UTC().Add(-24 * time.Hour)
	for i := 0; i < 3; i++ {
		if _, err := repo.CreateImpression(ctx, db, story, nil, at, false); err != nil {
			t.Fatalf("seed impression: %v", err)
		}
	}
	if _, err := repo.CreateClick(ctx, db, story, strp("p1"), strp("u1"), at); err != nil {
		t.Fatalf("seed click: %v", err)
	}

	m := &Maintainer{DB: db}
	if err := m.RunOnce(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := m.RunOnce(ctx); err != nil {
		t.Fatalf("second run: %v", err)
	}

	// A consistent cohort needs no repair on either run.
	var synthetic int64
	if err := db.Model(&domain.Impression{}).Where("synthetic = ?", true).Count(&synthetic).Error; err != nil {
		t.Fatalf("count synthetic: %v", err)
	}
	if synthetic != 0 {
		t.Fatalf("synthetic impressions = %d; want 0", synthetic)
	}
}

func TestRunOnce_PrunesExpiredIdempotency(t *testing.T) {
	db := newMaintDB(t)
	ctx := context.Background()

	if _, err := repo.ReserveIdempotency(ctx, db, "stale", "click", "r", 201, -time.Hour); err != nil {
		t.Fatalf("seed stale key: %v", err)
	}
	if _, err := repo.ReserveIdempotency(ctx, db, "fresh", "click", "r", 201, time.Hour); err != nil {
		t.Fatalf("seed fresh key: %v", err)
	}

	m := &Maintainer{DB: db}
	if err := m.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if _, err := repo.GetIdempotency(ctx, db, "stale"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("stale key survived: %v", err)
	}
	if _, err := repo.GetIdempotency(ctx, db, "fresh"); err != nil {
		t.Fatalf("fresh key pruned: %v", err)
	}
}

func TestRunOnce_SingleFlight(t *testing.T) {
	m := &Maintainer{DB: newMaintDB(t)}

	m.mu.Lock()
	err := m.RunOnce(context.Background())
	m.mu.Unlock()

	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("got %v; want ErrAlreadyRunning", err)
	}
}
