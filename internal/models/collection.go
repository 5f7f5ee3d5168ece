package models

import (
	"time"
)

// CollectionItem is one user-owned holding. (user, game, external id, variant)
// is unique; repeated adds increment Quantity instead of duplicating rows.
type CollectionItem struct {
	ID             uint       `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID         string     `json:"user_id" gorm:"not null;uniqueIndex:idx_collection_identity;index"`
	Game           string     `json:"game" gorm:"not null;uniqueIndex:idx_collection_identity"`
	ExternalID     string     `json:"external_id" gorm:"uniqueIndex:idx_collection_identity"`
	Variant        Variant    `json:"variant" gorm:"not null;uniqueIndex:idx_collection_identity;default:'normal'"`
	Name           string     `json:"name"`
	Quantity       int        `json:"quantity" gorm:"not null"`
	CostBasisCents *int64     `json:"cost_basis_cents"` // per unit
	LastValueCents *int64     `json:"last_value_cents"` // per unit, from the latest revaluation
	LastValuedAt   *time.Time `json:"last_valued_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CanonicalGame returns the normalized game id for the item.
func (c CollectionItem) CanonicalGame() (Game, bool) {
	return NormalizeGame(c.Game)
}

// CostBasisTotalCents is the stored per-unit cost basis times quantity;
// an unset cost basis counts as zero.
func (c CollectionItem) CostBasisTotalCents() int64 {
	if c.CostBasisCents == nil {
		return 0
	}
	return *c.CostBasisCents * int64(c.Quantity)
}
