package services

import (
	"context"
	"testing"
	"time"

	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/testutil"
)

func TestResolvePokemonPrefersTCGPlayer(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now()

	testutil.CreateTCGPlayerRow(t, db, "sv1-1", "normal",
		models.TCGPlayerBucket{Low: "1", Mid: "2", High: "3", Market: "4"}, now)
	testutil.CreateEffectiveRow(t, db, models.GamePokemon, "sv1-1", 999, nil, now)

	r := NewPriceResolver(db, ResolverOptions{})
	q := r.Resolve(context.Background(), models.GamePokemon, "sv1-1", models.VariantNormal)
	if q == nil {
		t.Fatal("expected a quote")
	}
	if q.AmountCents != 400 {
		t.Errorf("expected market price 400, got %d", q.AmountCents)
	}
	if q.Source != models.VendorTCGPlayer {
		t.Errorf("expected tcgplayer source, got %s", q.Source)
	}
	if q.Confidence == nil || *q.Confidence != models.ConfidenceA {
		t.Errorf("expected confidence A for a fresh market price, got %v", q.Confidence)
	}
}

func TestResolveFallsBackThroughChain(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now()
	ctx := context.Background()

	// TCGplayer row exists but carries no usable price.
	testutil.CreateTCGPlayerRow(t, db, "sv1-2", "normal", models.TCGPlayerBucket{Market: "0"}, now)
	testutil.CreateEffectiveRow(t, db, models.GamePokemon, "sv1-2", 275, nil, now)

	cm := models.CardmarketPriceRow{Game: models.GamePokemon, ExternalID: "sv1-3", TrendPrice: "3,10", UpdatedAt: now}
	if err := db.Create(&cm).Error; err != nil {
		t.Fatalf("create cardmarket row: %v", err)
	}

	r := NewPriceResolver(db, ResolverOptions{})

	q := r.Resolve(ctx, models.GamePokemon, "sv1-2", models.VariantNormal)
	if q == nil || q.Source != models.VendorEffective || q.AmountCents != 275 {
		t.Fatalf("expected effective quote of 275, got %+v", q)
	}
	if q.Confidence != nil {
		t.Errorf("effective row without confidence should pass nil through, got %v", *q.Confidence)
	}

	q = r.Resolve(ctx, models.GamePokemon, "sv1-3", models.VariantNormal)
	if q == nil {
		t.Fatal("expected cardmarket quote")
	}
	if q.Source != models.VendorCardmarket || q.Currency != models.CurrencyEUR || q.AmountCents != 310 {
		t.Errorf("expected EUR 310 from cardmarket, got %+v", q)
	}
}

func TestResolvePicksMostRecentRow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now()

	testutil.CreateEffectiveRow(t, db, models.GamePokemon, "old-new", 100, nil, now.Add(-72*time.Hour))
	testutil.CreateEffectiveRow(t, db, models.GamePokemon, "old-new", 200, nil, now)
	testutil.CreateEffectiveRow(t, db, models.GamePokemon, "old-new", 150, nil, now.Add(-24*time.Hour))

	r := NewPriceResolver(db, ResolverOptions{})
	q := r.Resolve(context.Background(), models.GamePokemon, "old-new", models.VariantNormal)
	if q == nil || q.AmountCents != 200 {
		t.Fatalf("expected most recent price 200, got %+v", q)
	}
}

func TestResolveUnsupportedAndUnknown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := NewPriceResolver(db, ResolverOptions{})
	ctx := context.Background()

	tests := []struct {
		name       string
		game       models.Game
		externalID string
	}{
		{"funko unsupported", models.GameFunko, "funko-1"},
		{"lorcana unsupported", models.GameLorcana, "lor-1"},
		{"unknown pokemon id", models.GamePokemon, "missing"},
		{"empty id", models.GameYugioh, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if q := r.Resolve(ctx, tt.game, tt.externalID, models.VariantNormal); q != nil {
				t.Errorf("expected nil quote, got %+v", q)
			}
		})
	}

	if r.SupportsGame(models.GameFunko) {
		t.Error("funko should not be supported")
	}
	if !r.SupportsGame(models.GameMTG) {
		t.Error("mtg should be supported")
	}
}

func TestResolveYugiohStaleGradesC(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateYGOPRODeckRow(t, db, "46986414", "$1.25", time.Now().Add(-10*24*time.Hour))

	r := NewPriceResolver(db, ResolverOptions{})
	q := r.Resolve(context.Background(), models.GameYugioh, "46986414", models.VariantNormal)
	if q == nil {
		t.Fatal("expected quote")
	}
	if q.AmountCents != 125 {
		t.Errorf("expected 125, got %d", q.AmountCents)
	}
	if q.Confidence == nil || *q.Confidence != models.ConfidenceC {
		t.Errorf("expected confidence C for a 10 day old price, got %v", q.Confidence)
	}
}

func TestResolveCachesMisses(t *testing.T) {
	db := testutil.SetupTestDB(t)
	r := NewPriceResolver(db, ResolverOptions{CacheSize: 16, CacheTTL: time.Minute})
	ctx := context.Background()

	if q := r.Resolve(ctx, models.GamePokemon, "later", models.VariantNormal); q != nil {
		t.Fatalf("expected miss, got %+v", q)
	}

	testutil.CreateEffectiveRow(t, db, models.GamePokemon, "later", 500, nil, time.Now())

	if q := r.Resolve(ctx, models.GamePokemon, "later", models.VariantNormal); q != nil {
		t.Errorf("expected cached miss, got %+v", q)
	}

	uncached := NewPriceResolver(db, ResolverOptions{})
	if q := uncached.Resolve(ctx, models.GamePokemon, "later", models.VariantNormal); q == nil || q.AmountCents != 500 {
		t.Errorf("expected fresh lookup to find 500, got %+v", q)
	}
}

func TestLookupEffectivePrefersExactVariant(t *testing.T) {
	db := testutil.SetupTestDB(t)
	now := time.Now()

	testutil.CreateEffectiveRow(t, db, models.GamePokemon, "var-1", 100, nil, now)
	holo := models.EffectivePriceRow{
		Game:       models.GamePokemon,
		ExternalID: "var-1",
		Variant:    models.VariantHolofoil,
		PriceCents: 900,
		Currency:   models.CurrencyUSD,
		Confidence: testutil.ConfidencePtr(models.ConfidenceB),
		UpdatedAt:  now.Add(-time.Hour),
	}
	if err := db.Create(&holo).Error; err != nil {
		t.Fatalf("create effective row: %v", err)
	}

	r := NewPriceResolver(db, ResolverOptions{})
	ctx := context.Background()

	q, err := r.Lookup(ctx, models.VendorEffective, models.GamePokemon, "var-1", models.VariantHolofoil)
	testutil.AssertNoError(t, err)
	if q == nil || q.AmountCents != 900 {
		t.Fatalf("expected holofoil price 900, got %+v", q)
	}
	if q.Confidence == nil || *q.Confidence != models.ConfidenceB {
		t.Errorf("expected stored confidence B, got %v", q.Confidence)
	}

	q, err = r.Lookup(ctx, models.VendorEffective, models.GamePokemon, "var-1", models.VariantReverseHolofoil)
	testutil.AssertNoError(t, err)
	if q == nil || q.AmountCents != 100 {
		t.Errorf("expected normal fallback 100, got %+v", q)
	}
}
