// Package attribution decides which creator, if any, receives commission
// credit for a purchase.
//
// Resolution runs in priority order, first match wins:
//
//  1. An explicit referrer story on the purchase resolves to that story's
//     owning creator. Explicit attribution always beats inference.
//  2. Otherwise the most recent click by the same (user, product) within a
//     trailing lookback window from the purchase time wins ("last click
//     wins"). A click on a different product never attributes this purchase.
//  3. Otherwise the purchase is unattributed: no creator, platform default
//     rate.
//
// Absence of a match is never an error; attribution degrades gracefully and
// the purchase always proceeds. Expired stories remain valid attribution
// sources for clicks recorded before expiry: expiry gates new facts at the
// ingestion edge, not retroactive lookups here.
package attribution

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/glowcart/commerce-backend/internal/domain"
)

// Source identifies how a purchase was attributed.
type Source string

// Attribution sources, in priority order.
const (
	SourceReferrer Source = "referrer" // explicit referrer story on the purchase
	SourceClick    Source = "click"    // most recent qualifying click in the window
	SourceNone     Source = "none"     // unattributed
)

// Store is the narrow read surface the resolver needs from the persistent
// store. Implementations must honor the context for cancellation.
type Store interface {
	// GetStory fetches a story by id, including expired stories.
	GetStory(ctx context.Context, id string) (*domain.Story, error)
	// GetCreator fetches a creator by id.
	GetCreator(ctx context.Context, id string) (*domain.Creator, error)
	// LatestClick returns the most recent click by userID on productID with
	// clicked_at in [since, until], or an error satisfying IsNotFound.
	LatestClick(ctx context.Context, userID, productID string, since, until time.Time) (*domain.StoryClick, error)
	// IsNotFound reports whether err means "no such record" (as opposed to a
	// store failure, which aborts resolution).
	IsNotFound(err error) bool
}

// Result carries the attribution outcome. CreatorID and StoryID are nil for
// unattributed purchases. Rate is always set: the creator's configured rate,
// or the platform default when the creator has none or the purchase is
// unattributed.
type Result struct {
	CreatorID *string
	StoryID   *string
	Rate      decimal.Decimal
	Source    Source
}

// Resolver resolves purchases to creators. Safe for concurrent use.
type Resolver struct {
	Store Store
	// Lookback is the trailing attribution window from the purchase time.
	Lookback time.Duration
	// DefaultRate is the platform commission rate in percent, used for
	// unattributed purchases and creators without a configured rate.
	DefaultRate decimal.Decimal
}

// Resolve attributes a purchase of productID made at purchasedAt. userID and
// referrerStoryID are optional signals; either may be nil.
func (r *Resolver) Resolve(ctx context.Context, userID *string, productID string, referrerStoryID *string, purchasedAt time.Time) (Result, error) {
	// 1) Explicit referrer wins.
	if referrerStoryID != nil && *referrerStoryID != "" {
		story, err := r.Store.GetStory(ctx, *referrerStoryID)
		switch {
		case err == nil:
			return r.credit(ctx, story.CreatorID, story.ID, SourceReferrer)
		case r.Store.IsNotFound(err):
			// A dangling referrer id degrades to inference rather than
			// blocking the purchase.
		default:
			return Result{}, err
		}
	}

	// 2) Last click wins within the trailing window.
	if userID != nil && *userID != "" {
		since := purchasedAt.Add(-r.Lookback)
		click, err := r.Store.LatestClick(ctx, *userID, productID, since, purchasedAt)
		switch {
		case err == nil:
			story, serr := r.Store.GetStory(ctx, click.StoryID)
			if serr == nil {
				return r.credit(ctx, story.CreatorID, story.ID, SourceClick)
			}
			if !r.Store.IsNotFound(serr) {
				return Result{}, serr
			}
		case r.Store.IsNotFound(err):
		default:
			return Result{}, err
		}
	}

	// 3) Unattributed.
	return Result{Rate: r.DefaultRate, Source: SourceNone}, nil
}

// credit builds the attributed result for a creator, falling back to the
// default rate when the creator has no configured rate (or it fails to
// parse, which is treated the same as absent).
func (r *Resolver) credit(ctx context.Context, creatorID, storyID string, source Source) (Result, error) {
	rate := r.DefaultRate
	creator, err := r.Store.GetCreator(ctx, creatorID)
	switch {
	case err == nil:
		if creator.CommissionRate != nil {
			if parsed, perr := decimal.NewFromString(*creator.CommissionRate); perr == nil {
				rate = parsed
			}
		}
	case r.Store.IsNotFound(err):
		// Story without a creator row: keep the story attribution but use
		// the default rate.
	default:
		return Result{}, err
	}

	return Result{
		CreatorID: &creatorID,
		StoryID:   &storyID,
		Rate:      rate,
		Source:    source,
	}, nil
}
