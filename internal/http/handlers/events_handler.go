// Event ingestion HTTP handlers.
//
// This file exposes the four signed event endpoints:
//   - POST /events/impressions  (story viewed)
//   - POST /events/clicks       (call-to-action tapped)
//   - POST /events/purchases    (order completed, commission attributed)
//   - POST /events/refunds      (converse ledger adjustment)
//
// Handlers are transport-thin: the signature gate has already authenticated
// the request and stashed the idempotency key, so handlers only decode the
// body, call the application services, and translate results into HTTP
// responses.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/glowcart/commerce-backend/internal/domain"
	"github.com/glowcart/commerce-backend/internal/http/middleware"
	"github.com/glowcart/commerce-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// EventService records the lightweight event facts consumed by the funnel.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type EventService interface {
	// RecordImpression appends a view fact for a live story.
	RecordImpression(ctx context.Context, key, storyID string, userID *string, viewedAt time.Time) (*domain.Impression, error)
	// RecordClick appends a call-to-action fact for a live story.
	RecordClick(ctx context.Context, key, storyID string, productID, userID *string, clickedAt time.Time) (*domain.StoryClick, error)
}

// PurchaseService records fully attributed, exactly priced purchases.
type PurchaseService interface {
	Record(ctx context.Context, key string, in services.PurchaseInput, at time.Time) (*services.PurchaseReceipt, error)
}

// RefundService records refund adjustments against existing purchases.
type RefundService interface {
	Record(ctx context.Context, key string, in services.RefundInput, at time.Time) (*domain.Refund, error)
}

//
// Handler wiring
//

// EventHandlers groups the signed ingestion endpoints. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type EventHandlers struct {
	eventSvc    EventService
	purchaseSvc PurchaseService
	refundSvc   RefundService
}

// NewEventHandlers constructs an EventHandlers bound to the given services.
func NewEventHandlers(eventSvc EventService, purchaseSvc PurchaseService, refundSvc RefundService) *EventHandlers {
	return &EventHandlers{eventSvc: eventSvc, purchaseSvc: purchaseSvc, refundSvc: refundSvc}
}

//
// DTOs
//

// ImpressionRequest is the JSON payload for recording a story view.
type ImpressionRequest struct {
	// StoryID identifies the viewed story.
	StoryID string `json:"storyId" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	// UserID optionally identifies the viewer.
	UserID *string `json:"userId,omitempty" example:"user123"`
	// ViewedAt is the client-observed view time in epoch milliseconds.
	// Defaults to the server receive time when omitted.
	ViewedAt *int64 `json:"viewedAt,omitempty" example:"1735732800000"`
}

// ClickRequest is the JSON payload for recording a call-to-action click.
type ClickRequest struct {
	StoryID   string  `json:"storyId" binding:"required" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
	ProductID *string `json:"productId,omitempty" example:"sku-889"`
	UserID    *string `json:"userId,omitempty" example:"user123"`
	ClickedAt *int64  `json:"clickedAt,omitempty" example:"1735732800000"`
}

// PurchaseRequest is the JSON payload for recording a completed order.
// Amount is decoded as json.Number so the decimal string never round-trips
// through a float.
type PurchaseRequest struct {
	OrderID   string      `json:"orderId" binding:"required" example:"ord-2043"`
	ProductID string      `json:"productId" binding:"required" example:"sku-889"`
	Amount    json.Number `json:"amount" swaggertype:"string" example:"239.00"`
	Currency  string      `json:"currency" binding:"required" example:"USD"`
	UserID    *string     `json:"userId,omitempty" example:"user123"`
	// ReferrerStoryID is the story the client claims led to this purchase.
	// It takes precedence over click inference when it resolves.
	ReferrerStoryID *string `json:"referrerStoryId,omitempty" example:"141add05-4415-4938-b5a1-17e0d3171aff"`
}

// RefundRequest is the JSON payload for recording a refund.
type RefundRequest struct {
	PurchaseID string      `json:"purchaseId" binding:"required" example:"a7bd5c9e-0cf5-4a06-9277-3e7a41dcb3f7"`
	Amount     json.Number `json:"amount" swaggertype:"string" example:"239.00"`
	Currency   string      `json:"currency" binding:"required" example:"USD"`
	Reason     *string     `json:"reason,omitempty" example:"damaged"`
	UserID     *string     `json:"userId,omitempty" example:"user123"`
}

// PurchaseResponse is the receipt returned for a recorded purchase. Field
// names mirror the camelCase request payloads. Ok is always true; failures
// use the error envelope instead.
type PurchaseResponse struct {
	Ok         bool    `json:"ok" example:"true"`
	ID         string  `json:"id"`
	OrderID    string  `json:"orderId" example:"ord-2043"`
	ProductID  string  `json:"productId" example:"sku-889"`
	Amount     string  `json:"amount" example:"239.00"`
	Currency   string  `json:"currency" example:"USD"`
	Commission string  `json:"commission" example:"28.68"`
	CreatorID  *string `json:"creatorId"`
	StoryID    *string `json:"storyId,omitempty"`
}

//
// Helpers
//

// eventTime converts an optional client epoch-millisecond stamp to UTC,
// defaulting to now.
func eventTime(ms *int64, now time.Time) time.Time {
	if ms == nil {
		return now.UTC()
	}
	return time.UnixMilli(*ms).UTC()
}

// failEvent translates a service error into the HTTP error contract shared
// by all four event endpoints.
func failEvent(c *gin.Context, err error) {
	if ve, okv := services.AsValidation(err); okv {
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, ve.Error())
		return
	}
	switch {
	case errors.Is(err, services.ErrIdempotencyConflict):
		fail(c, http.StatusConflict, ErrCodeIdempotencyConflict, services.ErrIdempotencyConflict.Error())
	case errors.Is(err, services.ErrDuplicateOrder):
		fail(c, http.StatusConflict, ErrCodeDuplicateOrder, services.ErrDuplicateOrder.Error())
	case errors.Is(err, services.ErrStoryNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrStoryNotFound.Error())
	case errors.Is(err, services.ErrPurchaseNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrPurchaseNotFound.Error())
	case errors.Is(err, services.ErrStoryExpired):
		fail(c, http.StatusGone, ErrCodeStoryExpired, services.ErrStoryExpired.Error())
	case errors.Is(err, services.ErrAmountOverflow):
		fail(c, http.StatusUnprocessableEntity, ErrCodeAmountOutOfRange, services.ErrAmountOverflow.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeRecordFailed, "failed to record event")
	}
}

// idemKey returns the validated idempotency key stashed by the middleware
// chain. The signature gate guarantees presence, so an empty key here means
// a misconfigured route; treat it as a bad request rather than panicking.
func idemKey(c *gin.Context) (string, bool) {
	key, found := middleware.GetIdempotencyKey(c)
	if !found || key == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing Idempotency-Key header")
		return "", false
	}
	return key, true
}

//
// Handlers
//

// RecordImpression godoc
// @ID          recordImpression
// @Summary     Record a story impression
// @Description Records a view fact for a live story. Requires a signed request.
// @Tags        Events
// @Accept      json
// @Produce     json
//
// @Param       X-Timestamp      header  string  true  "Epoch milliseconds used in the signature"
// @Param       X-Signature      header  string  true  "Hex HMAC-SHA256 of {timestamp}.{body}"
// @Param       Idempotency-Key  header  string  true  "Client-chosen idempotency key"
// @Param       body             body    handlers.ImpressionRequest  true  "Impression payload"
//
// @Success     201  {object}  domain.Impression
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Signature rejected"
// @Failure     404  {object}  handlers.ErrorResponse  "Story not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Idempotency conflict"
// @Failure     410  {object}  handlers.ErrorResponse  "Story expired"
// @Router      /events/impressions [post]
func (h *EventHandlers) RecordImpression(c *gin.Context) {
	key, found := idemKey(c)
	if !found {
		return
	}

	var req ImpressionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, "storyId: must not be empty")
		return
	}

	imp, err := h.eventSvc.RecordImpression(c.Request.Context(), key, req.StoryID, req.UserID, eventTime(req.ViewedAt, time.Now()))
	if err != nil {
		failEvent(c, err)
		return
	}
	ok(c, http.StatusCreated, imp)
}

// RecordClick godoc
// @ID          recordClick
// @Summary     Record a call-to-action click
// @Description Records a CTA click fact for a live story. Requires a signed request.
// @Tags        Events
// @Accept      json
// @Produce     json
//
// @Param       X-Timestamp      header  string  true  "Epoch milliseconds used in the signature"
// @Param       X-Signature      header  string  true  "Hex HMAC-SHA256 of {timestamp}.{body}"
// @Param       Idempotency-Key  header  string  true  "Client-chosen idempotency key"
// @Param       body             body    handlers.ClickRequest  true  "Click payload"
//
// @Success     201  {object}  domain.StoryClick
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Signature rejected"
// @Failure     404  {object}  handlers.ErrorResponse  "Story not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Idempotency conflict"
// @Failure     410  {object}  handlers.ErrorResponse  "Story expired"
// @Router      /events/clicks [post]
func (h *EventHandlers) RecordClick(c *gin.Context) {
	key, found := idemKey(c)
	if !found {
		return
	}

	var req ClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, "storyId: must not be empty")
		return
	}

	click, err := h.eventSvc.RecordClick(c.Request.Context(), key, req.StoryID, req.ProductID, req.UserID, eventTime(req.ClickedAt, time.Now()))
	if err != nil {
		failEvent(c, err)
		return
	}
	ok(c, http.StatusCreated, click)
}

// RecordPurchase godoc
// @ID          recordPurchase
// @Summary     Record a completed purchase
// @Description Attributes the purchase to a creator (explicit referrer first, then last qualifying click), derives the commission in exact decimal arithmetic, and writes the ledger row. Requires a signed request.
// @Tags        Events
// @Accept      json
// @Produce     json
//
// @Param       X-Timestamp      header  string  true  "Epoch milliseconds used in the signature"
// @Param       X-Signature      header  string  true  "Hex HMAC-SHA256 of {timestamp}.{body}"
// @Param       Idempotency-Key  header  string  true  "Client-chosen idempotency key"
// @Param       body             body    handlers.PurchaseRequest  true  "Purchase payload"
//
// @Success     201  {object}  handlers.PurchaseResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Signature rejected"
// @Failure     409  {object}  handlers.ErrorResponse  "Idempotency conflict or duplicate order"
// @Failure     422  {object}  handlers.ErrorResponse  "Amount out of range"
// @Router      /events/purchases [post]
func (h *EventHandlers) RecordPurchase(c *gin.Context) {
	key, found := idemKey(c)
	if !found {
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, "invalid JSON body")
		return
	}

	in := services.PurchaseInput{
		OrderID:         req.OrderID,
		ProductID:       req.ProductID,
		Amount:          req.Amount.String(),
		Currency:        req.Currency,
		UserID:          req.UserID,
		ReferrerStoryID: req.ReferrerStoryID,
	}
	receipt, err := h.purchaseSvc.Record(c.Request.Context(), key, in, time.Now())
	if err != nil {
		failEvent(c, err)
		return
	}

	p := receipt.Purchase
	ok(c, http.StatusCreated, PurchaseResponse{
		Ok:         true,
		ID:         p.ID,
		OrderID:    p.OrderID,
		ProductID:  p.ProductID,
		Amount:     receipt.Amount,
		Currency:   p.Currency,
		Commission: receipt.Commission,
		CreatorID:  p.CreatorID,
		StoryID:    p.StoryID,
	})
}

// RecordRefund godoc
// @ID          recordRefund
// @Summary     Record a refund
// @Description Records a converse ledger adjustment against an existing purchase. Requires a signed request.
// @Tags        Events
// @Accept      json
// @Produce     json
//
// @Param       X-Timestamp      header  string  true  "Epoch milliseconds used in the signature"
// @Param       X-Signature      header  string  true  "Hex HMAC-SHA256 of {timestamp}.{body}"
// @Param       Idempotency-Key  header  string  true  "Client-chosen idempotency key"
// @Param       body             body    handlers.RefundRequest  true  "Refund payload"
//
// @Success     201  {object}  domain.Refund
// @Failure     400  {object}  handlers.ErrorResponse  "Validation failed"
// @Failure     401  {object}  handlers.ErrorResponse  "Signature rejected"
// @Failure     404  {object}  handlers.ErrorResponse  "Purchase not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Idempotency conflict"
// @Router      /events/refunds [post]
func (h *EventHandlers) RecordRefund(c *gin.Context) {
	key, found := idemKey(c)
	if !found {
		return
	}

	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeValidationFailed, "invalid JSON body")
		return
	}

	in := services.RefundInput{
		PurchaseID: req.PurchaseID,
		Amount:     req.Amount.String(),
		Currency:   req.Currency,
		Reason:     req.Reason,
		UserID:     req.UserID,
	}
	r, err := h.refundSvc.Record(c.Request.Context(), key, in, time.Now())
	if err != nil {
		failEvent(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}
