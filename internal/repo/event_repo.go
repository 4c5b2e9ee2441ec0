// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists the append-only event facts
// (impressions and story clicks) and serves the attribution lookup.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. Facts
// are insert-only: nothing here updates or deletes a row.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/domain"
)

// CreateImpression appends an impression fact. Synthetic impressions are
// inserted by the funnel maintainer; genuine ones come from the ingestion
// path with synthetic=false.
func CreateImpression(ctx context.Context, db *gorm.DB, storyID string, userID *string, viewedAt time.Time, synthetic bool) (*domain.Impression, error) {
	imp := &domain.Impression{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		UserID:    userID,
		ViewedAt:  viewedAt.UTC(),
		Synthetic: synthetic,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(imp).Error; err != nil {
		return nil, err
	}
	return imp, nil
}

// CreateImpressionsBatch inserts prepared impression rows in bounded
// batches. Used by the funnel maintainer for synthetic backfill.
func CreateImpressionsBatch(ctx context.Context, db *gorm.DB, imps []domain.Impression, batchSize int) error {
	if len(imps) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(imps, batchSize).Error
}

// CreateClick appends a call-to-action click fact.
func CreateClick(ctx context.Context, db *gorm.DB, storyID string, productID, userID *string, clickedAt time.Time) (*domain.StoryClick, error) {
	click := &domain.StoryClick{
		ID:        uuid.NewString(),
		StoryID:   storyID,
		ProductID: productID,
		UserID:    userID,
		ClickedAt: clickedAt.UTC(),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(click).Error; err != nil {
		return nil, err
	}
	return click, nil
}

// CreateClicksBatch inserts prepared click rows in bounded batches. Used by
// the funnel maintainer for synthetic backfill.
func CreateClicksBatch(ctx context.Context, db *gorm.DB, clicks []domain.StoryClick, batchSize int) error {
	if len(clicks) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(clicks, batchSize).Error
}

// LatestClick returns the most recent click by userID on productID with
// clicked_at in [since, until], or ErrNotFound when no click qualifies.
// This is the "last click wins" attribution query: the window is trailing
// from the purchase time (until), not from the click time, and both ends
// are inclusive, so a click exactly the lookback old still attributes.
func LatestClick(ctx context.Context, db *gorm.DB, userID, productID string, since, until time.Time) (*domain.StoryClick, error) {
	var click domain.StoryClick
	err := db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND clicked_at >= ? AND clicked_at <= ?",
			userID, productID, since.UTC(), until.UTC()).
		Order("clicked_at DESC").
		First(&click).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &click, nil
}
