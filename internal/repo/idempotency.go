// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository helpers for the Idempotency
// model, whose unique key index is the atomic check-and-reserve primitive
// for at-most-once event processing.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given key: the event was already processed (or is being processed by a
// concurrent request that won the insert race).
var ErrDuplicate = errors.New("duplicate")

// GetIdempotency returns the record for key or ErrNotFound. Expired records
// are still returned; pruning is a storage concern, and a replay old enough
// to hit a pruned key is rejected by the timestamp check before reaching
// the store.
func GetIdempotency(ctx context.Context, db *gorm.DB, key string) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ReserveIdempotency inserts a reservation for key and returns ErrDuplicate
// on unique violation. Run it inside the same transaction as the ledger
// write: a failure later in the transaction rolls the reservation back, so a
// crash can never leave a reserved key without its corresponding row.
func ReserveIdempotency(ctx context.Context, db *gorm.DB, key, operation, refID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	now := time.Now().UTC()
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		Key:       key,
		Operation: operation,
		RefID:     refID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
		low := strings.ToLower(err.Error())
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(low, "unique constraint failed") ||
			strings.Contains(low, "constraint failed: unique") {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return rec, nil
}

// PruneIdempotency deletes records whose ExpiresAt is in the past. Safe to
// run at any time: replays older than the signature validity window are
// rejected by timestamp skew before the key is consulted.
func PruneIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
