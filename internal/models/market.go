package models

import (
	"time"
)

// MarketItem is a catalog-wide priceable identity, independent of any user.
type MarketItem struct {
	ID              uint               `json:"id" gorm:"primaryKey;autoIncrement"`
	Game            Game               `json:"game" gorm:"not null;uniqueIndex:idx_market_item_identity"`
	CanonicalSource Vendor             `json:"canonical_source" gorm:"not null;uniqueIndex:idx_market_item_identity"`
	CanonicalID     string             `json:"canonical_id" gorm:"not null;uniqueIndex:idx_market_item_identity"`
	Variant         Variant            `json:"variant" gorm:"not null;uniqueIndex:idx_market_item_identity;default:'normal'"`
	Name            string             `json:"name"`
	Active          bool               `json:"active" gorm:"not null;default:true"`
	Sources         []MarketItemSource `json:"sources,omitempty" gorm:"foreignKey:MarketItemID"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// MarketItemSource is one configured external id for a market item.
type MarketItemSource struct {
	ID           uint    `json:"id" gorm:"primaryKey;autoIncrement"`
	MarketItemID uint    `json:"market_item_id" gorm:"not null;uniqueIndex:idx_market_source"`
	Vendor       Vendor  `json:"vendor" gorm:"not null;uniqueIndex:idx_market_source"`
	ExternalID   string  `json:"external_id" gorm:"not null;uniqueIndex:idx_market_source"`
	Variant      Variant `json:"variant" gorm:"not null;default:'normal'"`
}

// MarketPriceSnapshot is the best known price of a market item on one day.
// Unique on (market item, date).
type MarketPriceSnapshot struct {
	ID           uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	MarketItemID uint        `json:"market_item_id" gorm:"not null;uniqueIndex:idx_market_snapshot_item_date"`
	AsOfDate     Date        `json:"as_of_date" gorm:"not null;uniqueIndex:idx_market_snapshot_item_date;index"`
	ValueCents   int64       `json:"value_cents" gorm:"not null"`
	LowCents     *int64      `json:"low_cents"`
	HighCents    *int64      `json:"high_cents"`
	Currency     Currency    `json:"currency" gorm:"not null;default:'USD'"`
	Confidence   *Confidence `json:"confidence"`
	SalesCount   *int        `json:"sales_count"`
	Source       Vendor      `json:"source" gorm:"not null"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}
