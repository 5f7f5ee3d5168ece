package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/pricing"
	"github.com/codyseavey/tcg-valuation/internal/testutil"
)

var jan1 = models.NewDate(2024, time.January, 1)

func newTestRevaluation(db *gorm.DB, fx map[string]float64) *RevaluationService {
	return NewRevaluationService(db, NewPriceResolver(db, ResolverOptions{}), pricing.NewFXTable(fx))
}

func loadPortfolio(t *testing.T, db *gorm.DB, userID string, date models.Date) models.DailyPortfolioValuation {
	t.Helper()
	var pv models.DailyPortfolioValuation
	if err := db.Where("user_id = ? AND as_of_date = ?", userID, date).First(&pv).Error; err != nil {
		t.Fatalf("load portfolio valuation: %v", err)
	}
	return pv
}

func loadItemValuations(t *testing.T, db *gorm.DB, userID string) []models.ItemValuation {
	t.Helper()
	var vals []models.ItemValuation
	if err := db.Where("user_id = ?", userID).Order("id ASC").Find(&vals).Error; err != nil {
		t.Fatalf("load item valuations: %v", err)
	}
	return vals
}

func TestRevalueUserEndToEnd(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()

	a := testutil.CreateCollectionItem(t, db, user, "pokemon", "sv1-25", 2)
	testutil.CreateCollectionItem(t, db, user, "yugioh", "89631139", 1)
	testutil.CreateTCGPlayerRow(t, db, "sv1-25", "normal", models.TCGPlayerBucket{Market: "5.00"}, time.Now())

	svc := newTestRevaluation(db, nil)
	res := svc.RevalueUser(context.Background(), user, jan1)

	if !res.OK {
		t.Fatalf("expected ok, got error %q", res.Error)
	}
	if res.UpdatedItems != 1 || res.SkippedNoPrice != 1 || res.SkippedUnsupportedGame != 0 {
		t.Errorf("unexpected counts: %+v", res)
	}

	vals := loadItemValuations(t, db, user)
	if len(vals) != 1 {
		t.Fatalf("expected 1 item valuation, got %d", len(vals))
	}
	if vals[0].CollectionItemID != a.ID || vals[0].ValueCents != 1000 {
		t.Errorf("expected item %d valued at 1000, got item %d at %d", a.ID, vals[0].CollectionItemID, vals[0].ValueCents)
	}
	if vals[0].AsOfDate.String() != "2024-01-01" {
		t.Errorf("expected as-of 2024-01-01, got %s", vals[0].AsOfDate)
	}

	var meta models.ItemValuationMeta
	if err := json.Unmarshal(vals[0].Meta, &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.UnitPriceCents != 500 || meta.Quantity != 2 {
		t.Errorf("unexpected meta: %+v", meta)
	}

	pv := loadPortfolio(t, db, user, jan1)
	if pv.TotalQuantity != 2 {
		t.Errorf("expected total quantity 2, got %d", pv.TotalQuantity)
	}
	if pv.DistinctItems != 1 {
		t.Errorf("expected 1 distinct item, got %d", pv.DistinctItems)
	}
	if pv.TotalValueCents != 1000 {
		t.Errorf("expected total value 1000, got %d", pv.TotalValueCents)
	}
	if pv.RealizedPnlCents != nil {
		t.Errorf("realized pnl should be nil, got %d", *pv.RealizedPnlCents)
	}
	if pv.UnrealizedPnlCents == nil || *pv.UnrealizedPnlCents != 1000 {
		t.Errorf("expected unrealized pnl 1000, got %v", pv.UnrealizedPnlCents)
	}

	breakdown := pv.Breakdown.Data()
	if got := breakdown[models.GamePokemon]; got.ValueCents != 1000 || got.Quantity != 2 || got.DistinctItems != 1 {
		t.Errorf("unexpected pokemon breakdown: %+v", got)
	}
	if _, ok := breakdown[models.GameYugioh]; ok {
		t.Error("unpriced game should not appear in breakdown")
	}

	var stored models.CollectionItem
	if err := db.First(&stored, a.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if stored.LastValueCents == nil || *stored.LastValueCents != 500 {
		t.Errorf("expected last unit value 500, got %v", stored.LastValueCents)
	}
	if stored.LastValuedAt == nil {
		t.Error("expected last valued timestamp")
	}
}

func TestRevalueUserIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()

	testutil.CreateCollectionItem(t, db, user, "pokemon", "sv2-1", 3)
	testutil.CreateTCGPlayerRow(t, db, "sv2-1", "normal", models.TCGPlayerBucket{Market: "2.50"}, time.Now())

	svc := newTestRevaluation(db, nil)
	ctx := context.Background()

	first := svc.RevalueUser(ctx, user, jan1)
	firstPV := loadPortfolio(t, db, user, jan1)
	second := svc.RevalueUser(ctx, user, jan1)
	secondPV := loadPortfolio(t, db, user, jan1)

	if !first.OK || !second.OK {
		t.Fatalf("expected both runs ok: %+v %+v", first, second)
	}
	if n := testutil.CountRows(t, db, &models.ItemValuation{}); n != 1 {
		t.Errorf("expected 1 item valuation after two runs, got %d", n)
	}
	if n := testutil.CountRows(t, db, &models.DailyPortfolioValuation{}); n != 1 {
		t.Errorf("expected 1 portfolio row after two runs, got %d", n)
	}
	if firstPV.ID != secondPV.ID {
		t.Errorf("portfolio row identity changed: %d -> %d", firstPV.ID, secondPV.ID)
	}
	if secondPV.TotalValueCents != 750 || firstPV.TotalValueCents != secondPV.TotalValueCents {
		t.Errorf("expected stable total 750, got %d then %d", firstPV.TotalValueCents, secondPV.TotalValueCents)
	}
	if secondPV.TotalQuantity != firstPV.TotalQuantity || secondPV.DistinctItems != firstPV.DistinctItems {
		t.Errorf("aggregates changed between runs: %+v vs %+v", firstPV, secondPV)
	}
}

func TestRevalueUserConfidenceMerge(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()

	testutil.CreateCollectionItem(t, db, user, "pokemon", "merge-1", 1)
	row := testutil.CreateEffectiveRow(t, db, models.GamePokemon, "merge-1", 200,
		testutil.ConfidencePtr(models.ConfidenceB), time.Now())

	svc := newTestRevaluation(db, nil)
	ctx := context.Background()

	if res := svc.RevalueUser(ctx, user, jan1); !res.OK {
		t.Fatalf("first run failed: %s", res.Error)
	}

	if err := db.Model(row).Updates(map[string]any{"price_cents": 350, "confidence": nil}).Error; err != nil {
		t.Fatalf("update effective row: %v", err)
	}

	if res := svc.RevalueUser(ctx, user, jan1); !res.OK {
		t.Fatalf("second run failed: %s", res.Error)
	}

	vals := loadItemValuations(t, db, user)
	if len(vals) != 1 {
		t.Fatalf("expected 1 valuation, got %d", len(vals))
	}
	if vals[0].ValueCents != 350 {
		t.Errorf("expected second run's value 350, got %d", vals[0].ValueCents)
	}
	if vals[0].Confidence == nil || *vals[0].Confidence != models.ConfidenceB {
		t.Errorf("expected prior confidence B to be kept, got %v", vals[0].Confidence)
	}
}

func TestRevalueUserSkips(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()

	testutil.CreateCollectionItem(t, db, user, "funko", "pop-1", 4)
	testutil.CreateCollectionItem(t, db, user, "pokemon", "", 1)
	testutil.CreateCollectionItem(t, db, user, "pokemon", "nothing-here", 1)

	res := newTestRevaluation(db, nil).RevalueUser(context.Background(), user, jan1)
	if !res.OK {
		t.Fatalf("expected ok, got %q", res.Error)
	}
	if res.SkippedUnsupportedGame != 1 {
		t.Errorf("expected 1 unsupported skip, got %d", res.SkippedUnsupportedGame)
	}
	if res.SkippedNoPrice != 2 {
		t.Errorf("expected 2 no-price skips, got %d", res.SkippedNoPrice)
	}
	if res.UpdatedItems != 0 {
		t.Errorf("expected no updated items, got %d", res.UpdatedItems)
	}

	pv := loadPortfolio(t, db, user, jan1)
	if pv.UnrealizedPnlCents != nil {
		t.Errorf("expected nil unrealized pnl with nothing valued, got %d", *pv.UnrealizedPnlCents)
	}
	if pv.TotalQuantity != 0 || pv.TotalValueCents != 0 {
		t.Errorf("unpriced items must not contribute to totals: %+v", pv)
	}
}

func TestRevalueUserCostBasisAndScaling(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()

	testutil.CreateCollectionItemWith(t, db, models.CollectionItem{
		UserID:         user,
		Game:           "Pokémon",
		ExternalID:     "scale-1",
		Quantity:       3,
		CostBasisCents: testutil.Int64Ptr(100),
	})
	testutil.CreateCollectionItem(t, db, user, "mtg", "mtg-uuid-1", 2)

	testutil.CreateTCGPlayerRow(t, db, "scale-1", "normal", models.TCGPlayerBucket{Market: "2.50"}, time.Now())
	sf := models.ScryfallPriceRow{ExternalID: "mtg-uuid-1", USD: "0.40", UpdatedAt: time.Now()}
	if err := db.Create(&sf).Error; err != nil {
		t.Fatalf("create scryfall row: %v", err)
	}

	res := newTestRevaluation(db, nil).RevalueUser(context.Background(), user, jan1)
	if !res.OK || res.UpdatedItems != 2 {
		t.Fatalf("expected 2 updated items, got %+v", res)
	}

	pv := loadPortfolio(t, db, user, jan1)
	if pv.TotalValueCents != 750+80 {
		t.Errorf("expected total 830, got %d", pv.TotalValueCents)
	}
	if pv.TotalCostBasisCents != 300 {
		t.Errorf("expected cost basis 300, got %d", pv.TotalCostBasisCents)
	}
	if pv.UnrealizedPnlCents == nil || *pv.UnrealizedPnlCents != 530 {
		t.Errorf("expected unrealized pnl 530, got %v", pv.UnrealizedPnlCents)
	}
	if pv.DistinctItems != 2 || pv.TotalQuantity != 5 {
		t.Errorf("expected 2 distinct items and quantity 5, got %d and %d", pv.DistinctItems, pv.TotalQuantity)
	}
	if got := pv.Breakdown.Data()[models.GameMTG]; got.ValueCents != 80 || got.CostBasisCents != 0 {
		t.Errorf("unexpected mtg breakdown: %+v", got)
	}
}

func TestRevalueUserConvertsEUR(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()

	testutil.CreateCollectionItem(t, db, user, "pokemon", "eu-1", 2)
	cm := models.CardmarketPriceRow{Game: models.GamePokemon, ExternalID: "eu-1", TrendPrice: "10,00", UpdatedAt: time.Now()}
	if err := db.Create(&cm).Error; err != nil {
		t.Fatalf("create cardmarket row: %v", err)
	}

	withRate := newTestRevaluation(db, map[string]float64{"EUR": 1.10}).RevalueUser(context.Background(), user, jan1)
	if !withRate.OK || withRate.UpdatedItems != 1 {
		t.Fatalf("expected converted valuation, got %+v", withRate)
	}
	vals := loadItemValuations(t, db, user)
	if len(vals) != 1 || vals[0].ValueCents != 2200 || vals[0].Currency != models.CurrencyUSD {
		t.Fatalf("expected USD 2200, got %+v", vals)
	}

	var meta models.ItemValuationMeta
	if err := json.Unmarshal(vals[0].Meta, &meta); err != nil {
		t.Fatalf("decode meta: %v", err)
	}
	if meta.OriginalCents != 1000 || meta.OriginalCurrency != models.CurrencyEUR {
		t.Errorf("expected original EUR 1000 in meta, got %+v", meta)
	}

	other := testutil.NewUserID()
	testutil.CreateCollectionItem(t, db, other, "pokemon", "eu-1", 1)
	noRate := newTestRevaluation(db, nil).RevalueUser(context.Background(), other, jan1)
	if !noRate.OK || noRate.SkippedNoPrice != 1 || noRate.UpdatedItems != 0 {
		t.Errorf("missing fx rate should count as no price, got %+v", noRate)
	}
}

func TestRevalueUserContractViolations(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newTestRevaluation(db, nil)
	ctx := context.Background()

	user := testutil.NewUserID()
	testutil.CreateCollectionItem(t, db, user, "pokemon", "neg-1", -1)

	res := svc.RevalueUser(ctx, user, jan1)
	if res.OK {
		t.Fatal("negative quantity should fail the pass")
	}
	testutil.AssertAppError(t, res.Err(), "NEGATIVE_QUANTITY")
	if n := testutil.CountRows(t, db, &models.DailyPortfolioValuation{}); n != 0 {
		t.Errorf("failed pass must not write a portfolio row, got %d", n)
	}

	res = svc.RevalueUser(ctx, "", jan1)
	if res.OK {
		t.Fatal("empty user id should fail")
	}
	testutil.AssertAppError(t, res.Err(), "INVALID_INPUT")
}

func TestRevalueUserEmptyCollection(t *testing.T) {
	db := testutil.SetupTestDB(t)

	res := newTestRevaluation(db, nil).RevalueUser(context.Background(), testutil.NewUserID(), jan1)
	if !res.OK {
		t.Fatalf("empty collection should be ok, got %q", res.Error)
	}
	if res.UpdatedItems != 0 || res.SkippedNoPrice != 0 || res.SkippedUnsupportedGame != 0 {
		t.Errorf("expected zero counts, got %+v", res)
	}
	if n := testutil.CountRows(t, db, &models.DailyPortfolioValuation{}); n != 0 {
		t.Errorf("empty collection should not write a portfolio row, got %d", n)
	}
}

func TestRevalueAllIsolatesFailures(t *testing.T) {
	db := testutil.SetupTestDB(t)

	good := testutil.NewUserID()
	bad := testutil.NewUserID()
	testutil.CreateCollectionItem(t, db, good, "pokemon", "all-1", 1)
	testutil.CreateCollectionItem(t, db, bad, "pokemon", "all-1", -2)
	testutil.CreateTCGPlayerRow(t, db, "all-1", "normal", models.TCGPlayerBucket{Market: "1.00"}, time.Now())

	summary, err := newTestRevaluation(db, nil).RevalueAll(context.Background(), jan1)
	testutil.AssertNoError(t, err)

	if summary.Users != 2 || summary.Failed != 1 {
		t.Errorf("expected 2 users and 1 failure, got %+v", summary)
	}
	pv := loadPortfolio(t, db, good, jan1)
	if pv.TotalValueCents != 100 {
		t.Errorf("expected good user's total 100, got %d", pv.TotalValueCents)
	}
}

func TestRevalueUserReadsChangedPriceThroughCache(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()
	testutil.CreateCollectionItem(t, db, user, "pokemon", "sv2-10", 2)
	testutil.CreateTCGPlayerRow(t, db, "sv2-10", "normal", models.TCGPlayerBucket{Market: "5.00"}, time.Now().Add(-time.Hour))

	resolver := NewPriceResolver(db, ResolverOptions{CacheSize: 4096, CacheTTL: 10 * time.Minute})
	svc := NewRevaluationService(db, resolver, pricing.NewFXTable(nil))
	ctx := context.Background()

	if res := svc.RevalueUser(ctx, user, jan1); !res.OK {
		t.Fatalf("first pass failed: %s", res.Error)
	}
	if pv := loadPortfolio(t, db, user, jan1); pv.TotalValueCents != 1000 {
		t.Fatalf("expected 1000 before the price change, got %d", pv.TotalValueCents)
	}

	// A read through the API path warms the cache with the old price.
	if q := resolver.Resolve(ctx, models.GamePokemon, "sv2-10", models.VariantNormal); q == nil || q.AmountCents != 500 {
		t.Fatalf("expected cached quote of 500, got %+v", q)
	}

	if err := db.Where("external_id = ?", "sv2-10").Delete(&models.TCGPlayerPriceRow{}).Error; err != nil {
		t.Fatalf("delete price row: %v", err)
	}
	testutil.CreateTCGPlayerRow(t, db, "sv2-10", "normal", models.TCGPlayerBucket{Market: "7.00"}, time.Now())

	if res := svc.RevalueUser(ctx, user, jan1); !res.OK {
		t.Fatalf("second pass failed: %s", res.Error)
	}
	if pv := loadPortfolio(t, db, user, jan1); pv.TotalValueCents != 1400 {
		t.Errorf("expected changed price to be stored (1400), got %d", pv.TotalValueCents)
	}
	vals := loadItemValuations(t, db, user)
	if len(vals) != 1 || vals[0].ValueCents != 1400 {
		t.Errorf("expected one item valuation of 1400, got %+v", vals)
	}
}

func TestRevalueUserRollsBackOnWriteFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()
	item := testutil.CreateCollectionItem(t, db, user, "pokemon", "sv1-50", 3)
	testutil.CreateCollectionItem(t, db, user, "pokemon", "sv1-51", 1)
	testutil.CreateTCGPlayerRow(t, db, "sv1-50", "normal", models.TCGPlayerBucket{Market: "2.00"}, time.Now())
	testutil.CreateTCGPlayerRow(t, db, "sv1-51", "normal", models.TCGPlayerBucket{Market: "1.00"}, time.Now())

	const hook = "test:fail_portfolio_insert"
	err := db.Callback().Create().Before("gorm:create").Register(hook, func(tx *gorm.DB) {
		if tx.Statement.Table == "daily_portfolio_valuations" {
			_ = tx.AddError(errors.New("disk full"))
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}

	res := newTestRevaluation(db, nil).RevalueUser(context.Background(), user, jan1)
	if res.OK {
		t.Fatal("expected the pass to fail when the portfolio write fails")
	}
	testutil.AssertAppError(t, res.Err(), "INTERNAL_ERROR")

	if n := testutil.CountRows(t, db, &models.ItemValuation{}); n != 0 {
		t.Errorf("expected item valuations to be rolled back, found %d", n)
	}
	if n := testutil.CountRows(t, db, &models.DailyPortfolioValuation{}); n != 0 {
		t.Errorf("expected no portfolio row, found %d", n)
	}
	var reloaded models.CollectionItem
	if err := db.First(&reloaded, item.ID).Error; err != nil {
		t.Fatalf("reload item: %v", err)
	}
	if reloaded.LastValueCents != nil || reloaded.LastValuedAt != nil {
		t.Errorf("expected last value to stay unset, got %v at %v", reloaded.LastValueCents, reloaded.LastValuedAt)
	}

	if err := db.Callback().Create().Remove(hook); err != nil {
		t.Fatalf("remove callback: %v", err)
	}
	if res := newTestRevaluation(db, nil).RevalueUser(context.Background(), user, jan1); !res.OK {
		t.Fatalf("expected retry to succeed, got %s", res.Error)
	}
	if pv := loadPortfolio(t, db, user, jan1); pv.TotalValueCents != 700 {
		t.Errorf("expected 700 after retry, got %d", pv.TotalValueCents)
	}
}
