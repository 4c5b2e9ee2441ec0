// Package services – IngestService
//
// This file implements IngestService, which records the two lightweight
// event facts: story impressions and call-to-action clicks. Both follow the
// same admitted-request pipeline: verify the story exists and is still live,
// then reserve the idempotency key and append the fact inside one
// transaction so a duplicate submission can never insert a second row.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/domain"
	"github.com/glowcart/commerce-backend/internal/repo"
)

// Operation names recorded on idempotency reservations.
const (
	opImpression = "impression"
	opClick      = "click"
	opPurchase   = "purchase"
	opRefund     = "refund"
)

// IngestService records impression and click facts.
type IngestService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// IdempotencyTTL bounds how long a used key stays reserved before it may
	// be pruned.
	IdempotencyTTL time.Duration
}

// RecordImpression appends a genuine (non-synthetic) impression fact for
// storyID, observed at viewedAt. The idempotency key is reserved in the same
// transaction as the insert.
//
// Returns ErrStoryNotFound / ErrStoryExpired when the story cannot accept
// new facts, and ErrIdempotencyConflict when key was already used.
func (s *IngestService) RecordImpression(ctx context.Context, key, storyID string, userID *string, viewedAt time.Time) (*domain.Impression, error) {
	if err := s.checkLiveStory(ctx, storyID, viewedAt); err != nil {
		return nil, err
	}

	var imp *domain.Impression
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateImpression(ctx, tx, storyID, userID, viewedAt, false)
		if err != nil {
			return err
		}
		if _, err := repo.ReserveIdempotency(ctx, tx, key, opImpression, created.ID, 201, s.IdempotencyTTL); err != nil {
			return err
		}
		imp = created
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrIdempotencyConflict
	}
	if err != nil {
		return nil, err
	}
	return imp, nil
}

// RecordClick appends a call-to-action click fact for storyID. productID and
// userID are optional; a click without a user can never attribute a purchase
// but still counts toward the story's funnel.
func (s *IngestService) RecordClick(ctx context.Context, key, storyID string, productID, userID *string, clickedAt time.Time) (*domain.StoryClick, error) {
	if err := s.checkLiveStory(ctx, storyID, clickedAt); err != nil {
		return nil, err
	}

	var click *domain.StoryClick
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		created, err := repo.CreateClick(ctx, tx, storyID, productID, userID, clickedAt)
		if err != nil {
			return err
		}
		if _, err := repo.ReserveIdempotency(ctx, tx, key, opClick, created.ID, 201, s.IdempotencyTTL); err != nil {
			return err
		}
		click = created
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, ErrIdempotencyConflict
	}
	if err != nil {
		return nil, err
	}
	return click, nil
}

// checkLiveStory verifies the story exists and has not expired as of at.
func (s *IngestService) checkLiveStory(ctx context.Context, storyID string, at time.Time) error {
	story, err := repo.GetStory(ctx, s.DB, storyID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrStoryNotFound
	}
	if err != nil {
		return err
	}
	if !story.Live(at) {
		return ErrStoryExpired
	}
	return nil
}
