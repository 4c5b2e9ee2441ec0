// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records the outcome of a previously processed event submission,
// keyed by the client-supplied Idempotency-Key. The unique index on Key is
// the atomic insert-if-absent primitive: of two concurrent submissions with
// the same key, exactly one insert succeeds and the other surfaces a
// conflict without re-executing side effects.
//
// Rows older than the signature validity window may be pruned: a replay that
// old is already rejected by the timestamp skew check before the key is
// consulted.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_key"`
	Operation string    `gorm:"type:TEXT NOT NULL"` // impression|click|purchase|refund
	RefID     string    `gorm:"type:TEXT NOT NULL"` // id of the fact/ledger row created
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
