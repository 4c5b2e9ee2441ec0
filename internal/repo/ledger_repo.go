// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file persists the commission ledger: purchase rows
// and their converse refund adjustments, plus the per-creator earnings
// aggregate consumed by the reporting endpoint.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/domain"
)

// CreatePurchase inserts a fully priced purchase ledger row. The caller is
// responsible for having derived AmountMinor and CommissionMinor through the
// currency engine; this function only persists.
func CreatePurchase(ctx context.Context, db *gorm.DB, p *domain.Purchase) error {
	return db.WithContext(ctx).Create(p).Error
}

// GetPurchase fetches a purchase by id, or ErrNotFound.
func GetPurchase(ctx context.Context, db *gorm.DB, id string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPurchaseByOrder fetches a purchase by its externally unique order id,
// or ErrNotFound.
func GetPurchaseByOrder(ctx context.Context, db *gorm.DB, orderID string) (*domain.Purchase, error) {
	var p domain.Purchase
	err := db.WithContext(ctx).Where("order_id = ?", orderID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateRefund inserts a refund ledger row.
func CreateRefund(ctx context.Context, db *gorm.DB, r *domain.Refund) error {
	return db.WithContext(ctx).Create(r).Error
}

// EarningsRow is one currency bucket of a creator's commission ledger.
type EarningsRow struct {
	Currency        string `json:"currency"`
	Purchases       int64  `json:"purchases"`
	CommissionMinor int64  `json:"commission_minor"`
}

// CreatorEarnings sums attributed commission for a creator, grouped by
// currency. Minor units of different currencies are never added together.
func CreatorEarnings(ctx context.Context, db *gorm.DB, creatorID string) ([]EarningsRow, error) {
	var rows []EarningsRow
	err := db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Select("currency, COUNT(*) AS purchases, COALESCE(SUM(commission_minor), 0) AS commission_minor").
		Where("creator_id = ?", creatorID).
		Group("currency").
		Order("currency").
		Scan(&rows).Error
	return rows, err
}
