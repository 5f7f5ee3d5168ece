package models

import (
	"time"

	"gorm.io/datatypes"
)

// Vendor rows keep raw vendor text ("1,234.50", "$3.10", "") so that parsing
// and the "no price" decision live in one place: the pricing package.

// TCGPlayerBucket is one finish bucket of a TCGplayer price block.
type TCGPlayerBucket struct {
	Low    string `json:"low,omitempty"`
	Mid    string `json:"mid,omitempty"`
	High   string `json:"high,omitempty"`
	Market string `json:"market,omitempty"`
}

// TCGPlayerPriceRow is a TCGplayer snapshot for one card id.
type TCGPlayerPriceRow struct {
	ID          uint                                           `json:"id" gorm:"primaryKey;autoIncrement"`
	Game        Game                                           `json:"game" gorm:"not null;uniqueIndex:idx_tcgplayer_card"`
	ExternalID  string                                         `json:"external_id" gorm:"not null;uniqueIndex:idx_tcgplayer_card"`
	Buckets     datatypes.JSONType[map[string]TCGPlayerBucket] `json:"buckets"`
	MarketPrice string                                         `json:"market_price"`
	MidPrice    string                                         `json:"mid_price"`
	LowPrice    string                                         `json:"low_price"`
	HighPrice   string                                         `json:"high_price"`
	UpdatedAt   time.Time                                      `json:"updated_at" gorm:"index"`
}

// CardmarketPriceRow is a Cardmarket snapshot; all amounts are EUR.
type CardmarketPriceRow struct {
	ID               uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Game             Game      `json:"game" gorm:"not null;uniqueIndex:idx_cardmarket_card"`
	ExternalID       string    `json:"external_id" gorm:"not null;uniqueIndex:idx_cardmarket_card"`
	TrendPrice       string    `json:"trend_price"`
	AvgSellPrice     string    `json:"avg_sell_price"`
	Avg30            string    `json:"avg30"`
	LowPrice         string    `json:"low_price"`
	ReverseHoloTrend string    `json:"reverse_holo_trend"`
	UpdatedAt        time.Time `json:"updated_at" gorm:"index"`
}

// YGOPRODeckPriceRow mirrors the flat card_prices block of YGOPRODeck.
// CardmarketPrice is EUR; the rest are USD.
type YGOPRODeckPriceRow struct {
	ID                uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ExternalID        string    `json:"external_id" gorm:"not null;uniqueIndex"`
	TCGPlayerPrice    string    `json:"tcgplayer_price" gorm:"column:tcgplayer_price"`
	CardmarketPrice   string    `json:"cardmarket_price"`
	EbayPrice         string    `json:"ebay_price"`
	AmazonPrice       string    `json:"amazon_price"`
	CoolstuffincPrice string    `json:"coolstuffinc_price"`
	UpdatedAt         time.Time `json:"updated_at" gorm:"index"`
}

// ScryfallPriceRow mirrors the prices object of a Scryfall card.
type ScryfallPriceRow struct {
	ID         uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ExternalID string    `json:"external_id" gorm:"not null;uniqueIndex"`
	USD        string    `json:"usd"`
	USDFoil    string    `json:"usd_foil"`
	USDEtched  string    `json:"usd_etched"`
	EUR        string    `json:"eur"`
	EURFoil    string    `json:"eur_foil"`
	UpdatedAt  time.Time `json:"updated_at" gorm:"index"`
}

// EbayPriceRow is a sold-listing summary for one item.
type EbayPriceRow struct {
	ID            uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Game          Game      `json:"game" gorm:"not null;index:idx_ebay_card"`
	ExternalID    string    `json:"external_id" gorm:"not null;index:idx_ebay_card"`
	MedianSold    string    `json:"median_sold"`
	AverageSold   string    `json:"average_sold"`
	LowestListing string    `json:"lowest_listing"`
	SalesCount    int       `json:"sales_count"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"index"`
}

// PSAPriceRow is a PSA cert lookup result.
type PSAPriceRow struct {
	ID             uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CertNumber     string    `json:"cert_number" gorm:"not null;index"`
	Grade          string    `json:"grade"`
	EstimatedValue string    `json:"estimated_value"`
	LastSale       string    `json:"last_sale"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"index"`
}

// EffectivePriceRow is the unified, already-normalized price table some
// sync jobs write directly.
type EffectivePriceRow struct {
	ID         uint        `json:"id" gorm:"primaryKey;autoIncrement"`
	Game       Game        `json:"game" gorm:"not null;index:idx_effective_card"`
	ExternalID string      `json:"external_id" gorm:"not null;index:idx_effective_card"`
	Variant    Variant     `json:"variant" gorm:"not null;default:'normal'"`
	PriceCents int64       `json:"price_cents"`
	Currency   Currency    `json:"currency" gorm:"not null;default:'USD'"`
	Source     string      `json:"source"`
	Confidence *Confidence `json:"confidence"`
	UpdatedAt  time.Time   `json:"updated_at" gorm:"index"`
}

func (TCGPlayerPriceRow) TableName() string  { return "tcgplayer_price_rows" }
func (YGOPRODeckPriceRow) TableName() string { return "ygoprodeck_price_rows" }
