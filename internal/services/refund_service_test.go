package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glowcart/commerce-backend/internal/domain"
)

func TestRefundRecord_Success(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	at := time.Now().UTC()

	purchaseSvc := newPurchaseService(db)
	receipt, err := purchaseSvc.Record(ctx, "pkey", PurchaseInput{
		OrderID: "ord-1", ProductID: "sku-1", Amount: "239.00", Currency: "USD",
	}, at)
	if err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	svc := &RefundService{DB: db, IdempotencyTTL: time.Hour}
	reason := "damaged"
	r, err := svc.Record(ctx, "rkey", RefundInput{
		PurchaseID: receipt.Purchase.ID,
		Amount:     "239.00",
		Currency:   "USD",
		Reason:     &reason,
	}, at)
	if err != nil {
		t.Fatalf("Record refund: %v", err)
	}
	if r.AmountMinor != 23900 || r.Currency != "USD" {
		t.Fatalf("refund pricing: %+v", r)
	}

	// The purchase row must be untouched: refunds are independent entries.
	var p domain.Purchase
	if err := db.First(&p, "id = ?", receipt.Purchase.ID).Error; err != nil {
		t.Fatalf("reload purchase: %v", err)
	}
	if p.AmountMinor != 23900 || p.CommissionMinor != receipt.Purchase.CommissionMinor {
		t.Fatalf("purchase rewritten by refund: %+v", p)
	}
}

func TestRefundRecord_UnknownPurchase(t *testing.T) {
	svc := &RefundService{DB: newSvcDB(t), IdempotencyTTL: time.Hour}

	_, err := svc.Record(context.Background(), "rkey", RefundInput{
		PurchaseID: "no-such-purchase",
		Amount:     "10.00",
		Currency:   "USD",
	}, time.Now().UTC())
	if !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("got %v; want ErrPurchaseNotFound", err)
	}
}

func TestRefundRecord_ValidationAndConflict(t *testing.T) {
	db := newSvcDB(t)
	ctx := context.Background()
	at := time.Now().UTC()

	purchaseSvc := newPurchaseService(db)
	receipt, err := purchaseSvc.Record(ctx, "pkey", PurchaseInput{
		OrderID: "ord-1", ProductID: "sku-1", Amount: "50.00", Currency: "USD",
	}, at)
	if err != nil {
		t.Fatalf("seed purchase: %v", err)
	}

	svc := &RefundService{DB: db, IdempotencyTTL: time.Hour}

	if _, err := svc.Record(ctx, "k", RefundInput{PurchaseID: "", Amount: "1", Currency: "USD"}, at); err == nil {
		t.Fatal("empty purchase id accepted")
	} else if _, isValidation := AsValidation(err); !isValidation {
		t.Fatalf("got %v; want ValidationError", err)
	}
	if _, err := svc.Record(ctx, "k", RefundInput{PurchaseID: receipt.Purchase.ID, Amount: "-1", Currency: "USD"}, at); err == nil {
		t.Fatal("negative amount accepted")
	}

	in := RefundInput{PurchaseID: receipt.Purchase.ID, Amount: "50.00", Currency: "USD"}
	if _, err := svc.Record(ctx, "ref-key", in, at); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	if _, err := svc.Record(ctx, "ref-key", in, at); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("replay: got %v, want ErrIdempotencyConflict", err)
	}

	var n int64
	if err := db.Model(&domain.Refund{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("refund rows = %d, %v; want exactly 1", n, err)
	}
}
