// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read access to the creator and story
// catalog. Both entities are owned by external systems (onboarding, content
// publishing); this subsystem only looks them up during admission and
// attribution.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/glowcart/commerce-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// GetCreator fetches a creator by id, or ErrNotFound.
func GetCreator(ctx context.Context, db *gorm.DB, id string) (*domain.Creator, error) {
	var c domain.Creator
	err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetStory fetches a story by id, or ErrNotFound. Expiry is not checked
// here: attribution lookups legitimately resolve expired stories, since
// expiry only gates new impressions and clicks.
func GetStory(ctx context.Context, db *gorm.DB, id string) (*domain.Story, error) {
	var s domain.Story
	err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
