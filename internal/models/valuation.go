package models

import (
	"time"

	"gorm.io/datatypes"
)

// ItemValuation is the value assigned to one collection item on one day by
// one pricing source. Unique on (user, item, date, source).
type ItemValuation struct {
	ID               uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID           string         `json:"user_id" gorm:"not null;uniqueIndex:idx_item_valuation_key"`
	CollectionItemID uint           `json:"collection_item_id" gorm:"not null;uniqueIndex:idx_item_valuation_key"`
	AsOfDate         Date           `json:"as_of_date" gorm:"not null;uniqueIndex:idx_item_valuation_key;index"`
	Source           Vendor         `json:"source" gorm:"not null;uniqueIndex:idx_item_valuation_key"`
	Game             Game           `json:"game" gorm:"not null"`
	ValueCents       int64          `json:"value_cents" gorm:"not null"`
	Currency         Currency       `json:"currency" gorm:"not null;default:'USD'"`
	Confidence       *Confidence    `json:"confidence"`
	Meta             datatypes.JSON `json:"meta"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// ItemValuationMeta is serialized into ItemValuation.Meta.
type ItemValuationMeta struct {
	UnitPriceCents   int64    `json:"unit_price_cents"`
	Quantity         int      `json:"quantity"`
	Variant          Variant  `json:"variant"`
	ExternalID       string   `json:"external_id"`
	OriginalCents    int64    `json:"original_cents,omitempty"`
	OriginalCurrency Currency `json:"original_currency,omitempty"`
	PriceUpdatedAt   string   `json:"price_updated_at,omitempty"`
}

// MergeItemValuation applies upsert-on-conflict semantics: the incoming run
// overwrites value, currency, game and meta; confidence is replaced only when
// the incoming value is non-null. Identity and CreatedAt stay with existing.
func MergeItemValuation(existing, incoming ItemValuation, now time.Time) ItemValuation {
	merged := existing
	merged.ValueCents = incoming.ValueCents
	merged.Currency = incoming.Currency
	merged.Game = incoming.Game
	merged.Meta = incoming.Meta
	if incoming.Confidence != nil {
		c := *incoming.Confidence
		merged.Confidence = &c
	}
	merged.UpdatedAt = now
	return merged
}

// GameTotals are the per-game sub-totals of a portfolio snapshot.
type GameTotals struct {
	Quantity       int64 `json:"quantity"`
	DistinctItems  int   `json:"distinct_items"`
	CostBasisCents int64 `json:"cost_basis_cents"`
	ValueCents     int64 `json:"value_cents"`
}

// Breakdown maps each game to its sub-totals.
type Breakdown map[Game]GameTotals

// DailyPortfolioValuation aggregates a user's item valuations for one day.
// Unique on (user, date). It is a cache: safe to recompute at any time.
type DailyPortfolioValuation struct {
	ID                  uint                          `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID              string                        `json:"user_id" gorm:"not null;uniqueIndex:idx_portfolio_user_date"`
	AsOfDate            Date                          `json:"as_of_date" gorm:"not null;uniqueIndex:idx_portfolio_user_date"`
	TotalQuantity       int64                         `json:"total_quantity"`
	DistinctItems       int                           `json:"distinct_items"`
	TotalCostBasisCents int64                         `json:"total_cost_basis_cents"`
	TotalValueCents     int64                         `json:"total_value_cents"`
	RealizedPnlCents    *int64                        `json:"realized_pnl_cents"`
	UnrealizedPnlCents  *int64                        `json:"unrealized_pnl_cents"`
	Breakdown           datatypes.JSONType[Breakdown] `json:"breakdown"`
	CreatedAt           time.Time                     `json:"created_at"`
	UpdatedAt           time.Time                     `json:"updated_at"`
}

// MergePortfolioValuation replaces every aggregate with the incoming run's
// numbers while keeping the stored row identity.
func MergePortfolioValuation(existing, incoming DailyPortfolioValuation, now time.Time) DailyPortfolioValuation {
	merged := incoming
	merged.ID = existing.ID
	merged.UserID = existing.UserID
	merged.AsOfDate = existing.AsOfDate
	merged.CreatedAt = existing.CreatedAt
	merged.UpdatedAt = now
	return merged
}

// PortfolioHistoryResponse is the API response for portfolio history
type PortfolioHistoryResponse struct {
	Snapshots []DailyPortfolioValuation `json:"snapshots"`
	Period    string                    `json:"period"` // "week", "month", "3month", "year", "all"
}
