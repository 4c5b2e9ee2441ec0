// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the aggregate queries behind the funnel
// maintainer and the reporting endpoints: per-day fact counts grouped by
// story, and access to the funnel_daily view.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/glowcart/commerce-backend/internal/domain"
)

// FunnelCount is one (story, day) bucket of a fact count query.
// Day is YYYY-MM-DD in UTC.
type FunnelCount struct {
	StoryID string
	Day     string
	N       int64
}

// DailyImpressionCounts counts impressions per (story, day) with viewed_at
// in (since, until].
func DailyImpressionCounts(ctx context.Context, db *gorm.DB, since, until time.Time) ([]FunnelCount, error) {
	var out []FunnelCount
	err := db.WithContext(ctx).
		Model(&domain.Impression{}).
		Select("story_id, date(viewed_at) AS day, COUNT(*) AS n").
		Where("viewed_at > ? AND viewed_at <= ?", since.UTC(), until.UTC()).
		Group("story_id, date(viewed_at)").
		Scan(&out).Error
	return out, err
}

// DailyClickCounts counts clicks per (story, day) with clicked_at in
// (since, until].
func DailyClickCounts(ctx context.Context, db *gorm.DB, since, until time.Time) ([]FunnelCount, error) {
	var out []FunnelCount
	err := db.WithContext(ctx).
		Model(&domain.StoryClick{}).
		Select("story_id, date(clicked_at) AS day, COUNT(*) AS n").
		Where("clicked_at > ? AND clicked_at <= ?", since.UTC(), until.UTC()).
		Group("story_id, date(clicked_at)").
		Scan(&out).Error
	return out, err
}

// DailyPurchaseCounts counts attributed purchases per (story, day) with
// created_at in (since, until]. Unattributed purchases carry no story and
// are not part of any story's funnel.
func DailyPurchaseCounts(ctx context.Context, db *gorm.DB, since, until time.Time) ([]FunnelCount, error) {
	var out []FunnelCount
	err := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Select("story_id, date(created_at) AS day, COUNT(*) AS n").
		Where("story_id IS NOT NULL AND created_at > ? AND created_at <= ?", since.UTC(), until.UTC()).
		Group("story_id, date(created_at)").
		Scan(&out).Error
	return out, err
}

// UpsertFunnelDaily writes one row of the funnel_daily view, replacing any
// previous aggregate for the same (day, story).
func UpsertFunnelDaily(ctx context.Context, db *gorm.DB, row *domain.FunnelDaily) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "day"}, {Name: "story_id"}},
			UpdateAll: true,
		}).
		Create(row).Error
}

// CountFunnelDaily returns the number of rows in the funnel_daily view.
func CountFunnelDaily(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Model(&domain.FunnelDaily{}).Count(&total).Error
	return total, err
}

// ListFunnelDailyPage returns a page of funnel_daily rows ordered by day
// descending, then story id, for stable pagination.
func ListFunnelDailyPage(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.FunnelDaily, error) {
	var out []domain.FunnelDaily
	err := db.WithContext(ctx).
		Order("day DESC, story_id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// FunnelStats returns aggregate metadata for the funnel_daily view: the row
// count and the most recent refresh timestamp. Used for weak ETags on the
// reporting endpoint. When the view is empty, maxRefreshed is nil.
func FunnelStats(ctx context.Context, db *gorm.DB) (count int64, maxRefreshed *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.FunnelDaily{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest refreshed_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		RefreshedAt time.Time
	}
	if err = q.Select("refreshed_at").Order("refreshed_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.RefreshedAt, nil
}
