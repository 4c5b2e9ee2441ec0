// Package services – RefundService
//
// Refunds are converse ledger adjustments: each refund references the
// purchase it offsets and is recorded as an independent row. Recording a
// refund does not rewrite the purchase or claw back attributed commission.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/domain"
	"github.com/glowcart/commerce-backend/internal/money"
	"github.com/glowcart/commerce-backend/internal/repo"
)

// RefundInput is a refund submission. Amount is the raw decimal string from
// the request body.
type RefundInput struct {
	PurchaseID string
	Amount     string
	Currency   string
	Reason     *string
	UserID     *string
}

// RefundService records refund adjustments against the ledger.
type RefundService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// IdempotencyTTL bounds how long a used key stays reserved.
	IdempotencyTTL time.Duration
}

// Record validates and persists a refund. The idempotency reservation and
// the ledger write share one transaction, the same guarantee as purchases.
//
// Error contract mirrors PurchaseService.Record, plus ErrPurchaseNotFound
// when the referenced purchase does not exist.
func (s *RefundService) Record(ctx context.Context, key string, in RefundInput, at time.Time) (*domain.Refund, error) {
	if strings.TrimSpace(in.PurchaseID) == "" {
		return nil, Invalid("purchaseId", "must not be empty")
	}
	amount, err := money.ParseAmount(in.Amount)
	if err != nil {
		return nil, Invalid("amount", "must be a decimal number")
	}
	if !amount.IsPositive() {
		return nil, Invalid("amount", "must be positive")
	}
	code, err := money.NormalizeCode(in.Currency)
	if err != nil {
		return nil, Invalid("currency", "must be a 3-letter code")
	}

	if _, err := repo.GetPurchase(ctx, s.DB, in.PurchaseID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}

	minor := money.ToMinorUnits(amount, code)
	if !minor.IsInt64() {
		return nil, ErrAmountOverflow
	}

	r := &domain.Refund{
		ID:          uuid.NewString(),
		PurchaseID:  in.PurchaseID,
		UserID:      in.UserID,
		Amount:      money.FromMinorUnits(minor, code),
		AmountMinor: minor.Int64(),
		Currency:    code,
		Reason:      in.Reason,
		CreatedAt:   at.UTC(),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.ReserveIdempotency(ctx, tx, key, opRefund, r.ID, 201, s.IdempotencyTTL); err != nil {
			return err
		}
		return repo.CreateRefund(ctx, tx, r)
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrIdempotencyConflict
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}
