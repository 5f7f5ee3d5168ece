package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/pricing"
	"github.com/codyseavey/tcg-valuation/internal/testutil"
	"github.com/codyseavey/tcg-valuation/internal/vendors"
)

func vendorOptions(url string) vendors.Options {
	return vendors.Options{BaseURL: url, RatePerSecond: 1000, InitialBackoff: time.Millisecond}
}

func TestSyncGamePokemonUpsertsRows(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()
	testutil.CreateCollectionItem(t, db, user, "Pokémon", "sv1-1", 1)
	testutil.CreateMarketItem(t, db, models.GamePokemon, models.VendorTCGPlayer, "sv1-2")

	var gotQuery string
	market := "5.00"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"data":[{"id":"sv1-1","name":"Sprigatito",
			"tcgplayer":{"updatedAt":"` + time.Now().UTC().Format("2006/01/02") + `","prices":{"normal":{"market":` + market + `}}},
			"cardmarket":{"updatedAt":"2024/01/14","prices":{"trendPrice":4.2}}}]}`))
	}))
	defer server.Close()

	svc := NewSyncService(db, SyncClients{PokemonTCG: vendors.NewPokemonTCGClient(vendorOptions(server.URL))}, 50)
	ctx := context.Background()

	res, err := svc.SyncGame(ctx, models.GamePokemon)
	testutil.AssertNoError(t, err)

	if gotQuery != "id:sv1-1 OR id:sv1-2" {
		t.Errorf("expected both collection and market ids in query, got %q", gotQuery)
	}
	if res.Requested != 2 || res.Fetched != 1 || res.Missing != 1 {
		t.Errorf("unexpected counts: %+v", res)
	}
	if res.RowsUpserted != 2 {
		t.Errorf("expected tcgplayer and cardmarket rows, got %d", res.RowsUpserted)
	}

	market = "6.00"
	if _, err := svc.SyncGame(ctx, models.GamePokemon); err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if n := testutil.CountRows(t, db, &models.TCGPlayerPriceRow{}); n != 1 {
		t.Errorf("expected sync to upsert a single tcgplayer row, got %d", n)
	}

	q := NewPriceResolver(db, ResolverOptions{}).Resolve(ctx, models.GamePokemon, "sv1-1", models.VariantNormal)
	if q == nil || q.AmountCents != 600 {
		t.Errorf("expected refreshed price 600, got %+v", q)
	}
}

func TestSyncGameYugiohAndScryfall(t *testing.T) {
	db := testutil.SetupTestDB(t)
	user := testutil.NewUserID()
	testutil.CreateCollectionItem(t, db, user, "yugioh", "46986414", 1)
	testutil.CreateCollectionItem(t, db, user, "mtg", "0000-aaaa", 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/cardinfo.php"):
			_, _ = w.Write([]byte(`{"data":[{"id":46986414,"name":"Dark Magician","card_prices":[{"tcgplayer_price":"1.10","cardmarket_price":"0.90"}]}]}`))
		case r.URL.Path == "/cards/collection":
			_, _ = w.Write([]byte(`{"data":[{"id":"0000-aaaa","name":"Bolt","prices":{"usd":"2.00","eur":null}}],"not_found":[]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	svc := NewSyncService(db, SyncClients{
		YGOPRODeck: vendors.NewYGOPRODeckClient(vendorOptions(server.URL)),
		Scryfall:   vendors.NewScryfallClient(vendorOptions(server.URL)),
	}, 50)

	results, err := svc.SyncAll(context.Background())
	testutil.AssertNoError(t, err)
	if len(results) != 2 {
		t.Fatalf("expected results for yugioh and mtg, got %d", len(results))
	}

	var ygo models.YGOPRODeckPriceRow
	if err := db.Where("external_id = ?", "46986414").First(&ygo).Error; err != nil {
		t.Fatalf("ygoprodeck row missing: %v", err)
	}
	if ygo.TCGPlayerPrice != "1.10" {
		t.Errorf("unexpected tcgplayer price %q", ygo.TCGPlayerPrice)
	}

	reval := NewRevaluationService(db, NewPriceResolver(db, ResolverOptions{}), pricing.NewFXTable(nil))
	res := reval.RevalueUser(context.Background(), user, jan1)
	if !res.OK || res.UpdatedItems != 2 {
		t.Errorf("expected both synced items to value, got %+v", res)
	}
}

func TestSyncGameUnsupported(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := NewSyncService(db, SyncClients{}, 0)

	_, err := svc.SyncGame(context.Background(), models.GameFunko)
	testutil.AssertAppError(t, err, "UNSUPPORTED_GAME")

	if games := svc.SyncableGames(); len(games) != 0 {
		t.Errorf("expected no syncable games without clients, got %v", games)
	}
}
