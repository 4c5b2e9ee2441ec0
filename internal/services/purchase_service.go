// Package services – PurchaseService
//
// This file implements the purchase leg of the ingestion path. A purchase
// moves through: schema validation → attribution → exact-decimal pricing →
// a single transaction that reserves the idempotency key and writes the
// commission ledger row. The reservation and the ledger write commit or roll
// back together, so a crash can never strand a reserved key without its row
// (which would permanently block a legitimate retry).
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/attribution"
	"github.com/glowcart/commerce-backend/internal/domain"
	"github.com/glowcart/commerce-backend/internal/money"
	"github.com/glowcart/commerce-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PurchaseInput is the validated-at-the-edge purchase submission. Amount is
// the raw decimal string from the request body (decoded via json.Number, so
// it never round-tripped through a float).
type PurchaseInput struct {
	OrderID         string
	ProductID       string
	Amount          string
	Currency        string
	UserID          *string
	ReferrerStoryID *string
}

// PurchaseReceipt is the outcome returned to the caller: the persisted
// ledger row plus the commission rendered in the purchase currency.
type PurchaseReceipt struct {
	Purchase   *domain.Purchase
	Amount     string // normalized fixed-decimal amount, e.g. "239.00"
	Commission string // formatted commission, e.g. "28.68"
}

// PurchaseService prices and records purchases.
type PurchaseService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Resolver decides creator credit and commission rate.
	Resolver *attribution.Resolver
	// IdempotencyTTL bounds how long a used key stays reserved.
	IdempotencyTTL time.Duration
}

// Record validates, attributes, prices, and persists a purchase at time at.
//
// Error contract:
//   - *ValidationError for schema violations (field-level detail)
//   - ErrIdempotencyConflict when key was already used
//   - ErrDuplicateOrder when the order id is already on the ledger
//   - ErrAmountOverflow when minor units exceed the ledger range
func (s *PurchaseService) Record(ctx context.Context, key string, in PurchaseInput, at time.Time) (*PurchaseReceipt, error) {
	tr := otel.Tracer("services/PurchaseService")
	ctx, span := tr.Start(ctx, "Record",
		trace.WithAttributes(
			attribute.String("order.id", in.OrderID),
			attribute.String("product.id", in.ProductID),
		),
	)
	defer span.End()

	// Schema validation. Authentication already happened at the gate;
	// failures here are field-level violations, never auth errors.
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, Invalid("orderId", "must not be empty")
	}
	if strings.TrimSpace(in.ProductID) == "" {
		return nil, Invalid("productId", "must not be empty")
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

	// Attribution. Absence of a match degrades to unattributed; only store
	// failures abort.
	res, err := s.Resolver.Resolve(ctx, in.UserID, in.ProductID, in.ReferrerStoryID, at)
	if err != nil {
		return nil, err
	}

	// Pricing: all integer minor-unit arithmetic on exact decimals.
	minorGross := money.ToMinorUnits(amount, code)
	commission := money.Commission(minorGross, res.Rate, code)
	if !minorGross.IsInt64() || !commission.IsInt64() {
		return nil, ErrAmountOverflow
	}

	p := &domain.Purchase{
		ID:              uuid.NewString(),
		OrderID:         in.OrderID,
		UserID:          in.UserID,
		ProductID:       in.ProductID,
		Amount:          money.FromMinorUnits(minorGross, code),
		AmountMinor:     minorGross.Int64(),
		Currency:        code,
		ReferrerStoryID: in.ReferrerStoryID,
		StoryID:         res.StoryID,
		CreatorID:       res.CreatorID,
		CommissionMinor: commission.Int64(),
		CreatedAt:       at.UTC(),
	}

	// Reserve the key and write the ledger row atomically. The reservation
	// runs first so of two concurrent submissions racing the same key, the
	// loser fails before any ledger write.
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.ReserveIdempotency(ctx, tx, key, opPurchase, p.ID, 201, s.IdempotencyTTL); err != nil {
			return err
		}
		if err := repo.CreatePurchase(ctx, tx, p); err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateOrder
			}
			return err
		}
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrIdempotencyConflict
	}
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("attribution.source", string(res.Source)))

	return &PurchaseReceipt{
		Purchase:   p,
		Amount:     p.Amount,
		Commission: money.FromMinorUnits(commission, code),
	}, nil
}

// isUniqueViolation reports whether err is a unique-constraint failure.
// glebarez/sqlite often returns plain-text errors for these.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}
