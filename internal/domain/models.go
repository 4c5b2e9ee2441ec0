// Package domain defines the persistence models for the commerce-event
// pipeline: creators, stories, the append-only event facts (impressions,
// clicks, purchases, refunds), and the daily funnel aggregates. These types
// are mapped with GORM and form the core data layer of the application.
package domain

import "time"

// Trust tiers assigned to creators by onboarding. The tier is informational
// to this subsystem; commission rates are configured per creator.
const (
	TierTop         = "top"
	TierStandard    = "standard"
	TierProvisional = "provisional"
	TierUnverified  = "unverified"
)

// Story content types.
const (
	StoryAmbient         = "ambient"
	StoryBehindTheScenes = "behind_the_scenes"
	StoryProduct         = "product"
)

// Creator represents a content creator eligible for commission credit.
// Creators are provisioned by the onboarding system; this subsystem only
// reads them during attribution.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - DisplayName: human-readable name.
//   - TrustTier: one of top/standard/provisional/unverified.
//   - CommissionRate: configured rate in percent, stored as a decimal string
//     (e.g. "8.5"). Nil means the platform default rate applies.
//   - Popularity: ranking score maintained by an external process.
type Creator struct {
	ID             string    `json:"id"              gorm:"type:char(36);primaryKey"`
	DisplayName    string    `json:"display_name"    gorm:"type:varchar(255);not null"`
	TrustTier      string    `json:"trust_tier"      gorm:"type:varchar(16);not null;default:'unverified';check:trust_tier IN ('top','standard','provisional','unverified')"`
	CommissionRate *string   `json:"commission_rate,omitempty" gorm:"type:varchar(16)"`
	Popularity     float64   `json:"popularity"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// TableName returns the database table name for Creator.
func (Creator) TableName() string { return "creators" }

// Story is a piece of creator content that can carry a linked product.
// A story is only eligible for new impressions and clicks while
// now < ExpiresAt; expiry never invalidates facts recorded before it.
type Story struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	CreatorID string    `json:"creator_id" gorm:"type:char(36);not null;index:idx_creator_stories"`
	Type      string    `json:"type"       gorm:"type:varchar(32);not null;check:type IN ('ambient','behind_the_scenes','product')"`
	MediaRef  string    `json:"media_ref"  gorm:"type:varchar(512);not null"`
	ProductID *string   `json:"product_id,omitempty" gorm:"type:varchar(64);index"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Creator Creator `json:"-" gorm:"foreignKey:CreatorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Story.
func (Story) TableName() string { return "stories" }

// Live reports whether the story may still receive new impressions/clicks.
func (s Story) Live(now time.Time) bool { return now.Before(s.ExpiresAt) }

// Impression is an append-only view fact. Synthetic impressions are inserted
// by the funnel maintainer to repair cohorts where lossy client delivery
// dropped the genuine view event; they are flagged so analytics can tell the
// two apart. Rows are never updated after creation.
type Impression struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	StoryID   string    `json:"story_id" gorm:"type:char(36);not null;index:idx_story_impressions,priority:1"`
	UserID    *string   `json:"user_id,omitempty" gorm:"type:varchar(64)"`
	ViewedAt  time.Time `json:"viewed_at" gorm:"not null;index:idx_story_impressions,priority:2"`
	Synthetic bool      `json:"synthetic" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`

	Story Story `json:"-" gorm:"foreignKey:StoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Impression.
func (Impression) TableName() string { return "impressions" }

// StoryClick is an append-only call-to-action fact. The composite index on
// (user_id, product_id, clicked_at) serves the attribution lookup, which
// scans a user's recent clicks for a product in reverse click order.
// Synthetic clicks are inserted by the funnel maintainer to repair cohorts
// where an attributed purchase arrived without its click; they carry no user
// or product, so they never feed attribution.
type StoryClick struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	StoryID   string    `json:"story_id" gorm:"type:char(36);not null;index:idx_story_clicks,priority:1"`
	ProductID *string   `json:"product_id,omitempty" gorm:"type:varchar(64);index:idx_click_attr,priority:2"`
	UserID    *string   `json:"user_id,omitempty"    gorm:"type:varchar(64);index:idx_click_attr,priority:1"`
	ClickedAt time.Time `json:"clicked_at" gorm:"not null;index:idx_story_clicks,priority:2;index:idx_click_attr,priority:3"`
	Synthetic bool      `json:"synthetic" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`

	Story Story `json:"-" gorm:"foreignKey:StoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for StoryClick.
func (StoryClick) TableName() string { return "story_clicks" }

// Purchase is the commission ledger row written at the end of the ingestion
// path. Amounts are recorded twice: the human decimal string exactly as
// submitted, and the derived integer minor units. Commission is always
// derived by the currency engine, never client-supplied.
//
// CreatorID is nil for unattributed purchases (no explicit referrer and no
// qualifying click in the lookback window).
type Purchase struct {
	ID              string    `json:"id"         gorm:"type:char(36);primaryKey"`
	OrderID         string    `json:"order_id"   gorm:"type:varchar(64);not null;uniqueIndex:ux_purchase_order"`
	UserID          *string   `json:"user_id,omitempty" gorm:"type:varchar(64);index"`
	ProductID       string    `json:"product_id" gorm:"type:varchar(64);not null;index"`
	Amount          string    `json:"amount"     gorm:"type:varchar(32);not null"`
	AmountMinor     int64     `json:"amount_minor" gorm:"not null"`
	Currency        string    `json:"currency"   gorm:"type:char(3);not null"`
	ReferrerStoryID *string   `json:"referrer_story_id,omitempty" gorm:"type:char(36)"`
	StoryID         *string   `json:"story_id,omitempty" gorm:"type:char(36);index"` // story that won attribution
	CreatorID       *string   `json:"creator_id" gorm:"type:char(36);index"`
	CommissionMinor int64     `json:"commission_minor" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for Purchase.
func (Purchase) TableName() string { return "purchases" }

// Refund is a converse ledger adjustment recorded against a purchase. It is
// an independent entry: recording a refund does not rewrite the purchase row
// or claw back previously attributed commission.
type Refund struct {
	ID          string    `json:"id"          gorm:"type:char(36);primaryKey"`
	PurchaseID  string    `json:"purchase_id" gorm:"type:char(36);not null;index"`
	UserID      *string   `json:"user_id,omitempty" gorm:"type:varchar(64)"`
	Amount      string    `json:"amount"      gorm:"type:varchar(32);not null"`
	AmountMinor int64     `json:"amount_minor" gorm:"not null"`
	Currency    string    `json:"currency"    gorm:"type:char(3);not null"`
	Reason      *string   `json:"reason,omitempty" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at"`

	Purchase Purchase `json:"-" gorm:"foreignKey:PurchaseID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Refund.
func (Refund) TableName() string { return "refunds" }

// FunnelDaily is the per-story, per-day aggregate view refreshed by the
// funnel maintainer. After a maintainer run, Impressions >= Clicks >=
// Purchases holds for every row in the lookback window.
type FunnelDaily struct {
	Day         string    `json:"day"      gorm:"type:char(10);not null;primaryKey"` // YYYY-MM-DD (UTC)
	StoryID     string    `json:"story_id" gorm:"type:char(36);not null;primaryKey"`
	Impressions int64     `json:"impressions" gorm:"not null"`
	Clicks      int64     `json:"clicks"      gorm:"not null"`
	Purchases   int64     `json:"purchases"   gorm:"not null"`
	RefreshedAt time.Time `json:"refreshed_at" gorm:"not null"`
}

// TableName returns the database table name for FunnelDaily.
func (FunnelDaily) TableName() string { return "funnel_daily" }
