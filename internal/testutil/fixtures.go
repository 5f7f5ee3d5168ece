package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-valuation/internal/models"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// NewUserID returns a unique user id.
func NewUserID() string {
	return fmt.Sprintf("user_%d", nextID())
}

// CreateCollectionItem stores a holding with a normal variant and no cost basis.
func CreateCollectionItem(t *testing.T, db *gorm.DB, userID, game, externalID string, quantity int) *models.CollectionItem {
	t.Helper()
	return CreateCollectionItemWith(t, db, models.CollectionItem{
		UserID:     userID,
		Game:       game,
		ExternalID: externalID,
		Quantity:   quantity,
	})
}

// CreateCollectionItemWith stores item, defaulting the variant to normal.
func CreateCollectionItemWith(t *testing.T, db *gorm.DB, item models.CollectionItem) *models.CollectionItem {
	t.Helper()

	if item.Variant == "" {
		item.Variant = models.VariantNormal
	}
	if err := db.Create(&item).Error; err != nil {
		t.Fatalf("failed to create collection item: %v", err)
	}
	return &item
}

// CreateTCGPlayerRow stores a Pokémon TCGplayer row with one bucket.
func CreateTCGPlayerRow(t *testing.T, db *gorm.DB, externalID, bucket string, prices models.TCGPlayerBucket, updatedAt time.Time) *models.TCGPlayerPriceRow {
	t.Helper()

	row := &models.TCGPlayerPriceRow{
		Game:       models.GamePokemon,
		ExternalID: externalID,
		Buckets:    datatypes.NewJSONType(map[string]models.TCGPlayerBucket{bucket: prices}),
		UpdatedAt:  updatedAt,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("failed to create tcgplayer row: %v", err)
	}
	return row
}

// CreateYGOPRODeckRow stores a YGOPRODeck row with only a TCGplayer price.
func CreateYGOPRODeckRow(t *testing.T, db *gorm.DB, externalID, tcgplayerPrice string, updatedAt time.Time) *models.YGOPRODeckPriceRow {
	t.Helper()

	row := &models.YGOPRODeckPriceRow{
		ExternalID:     externalID,
		TCGPlayerPrice: tcgplayerPrice,
		UpdatedAt:      updatedAt,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("failed to create ygoprodeck row: %v", err)
	}
	return row
}

// CreateEffectiveRow stores a unified price row.
func CreateEffectiveRow(t *testing.T, db *gorm.DB, game models.Game, externalID string, cents int64, confidence *models.Confidence, updatedAt time.Time) *models.EffectivePriceRow {
	t.Helper()

	row := &models.EffectivePriceRow{
		Game:       game,
		ExternalID: externalID,
		Variant:    models.VariantNormal,
		PriceCents: cents,
		Currency:   models.CurrencyUSD,
		Source:     "fixture",
		Confidence: confidence,
		UpdatedAt:  updatedAt,
	}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("failed to create effective row: %v", err)
	}
	return row
}

// CreateMarketItem stores an active market item with its canonical source.
func CreateMarketItem(t *testing.T, db *gorm.DB, game models.Game, vendor models.Vendor, externalID string) *models.MarketItem {
	t.Helper()

	item := &models.MarketItem{
		Game:            game,
		CanonicalSource: vendor,
		CanonicalID:     externalID,
		Variant:         models.VariantNormal,
		Name:            fmt.Sprintf("Item %d", nextID()),
		Active:          true,
		Sources: []models.MarketItemSource{
			{Vendor: vendor, ExternalID: externalID, Variant: models.VariantNormal},
		},
	}
	if err := db.Create(item).Error; err != nil {
		t.Fatalf("failed to create market item: %v", err)
	}
	return item
}

// CreateMarketSnapshot stores one daily snapshot value.
func CreateMarketSnapshot(t *testing.T, db *gorm.DB, marketItemID uint, date models.Date, cents int64) *models.MarketPriceSnapshot {
	t.Helper()

	snap := &models.MarketPriceSnapshot{
		MarketItemID: marketItemID,
		AsOfDate:     date,
		ValueCents:   cents,
		Currency:     models.CurrencyUSD,
		Source:       models.VendorTCGPlayer,
	}
	if err := db.Create(snap).Error; err != nil {
		t.Fatalf("failed to create market snapshot: %v", err)
	}
	return snap
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 { return &v }

// ConfidencePtr returns a pointer to c.
func ConfidencePtr(c models.Confidence) *models.Confidence { return &c }
