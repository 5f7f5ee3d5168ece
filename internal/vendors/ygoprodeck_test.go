package vendors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestYGOPRODeckGetCards(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "1" {
			http.Error(w, `{"error":"No card matching your query was found in the database."}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":46986414,"name":"Dark Magician","card_prices":[
			{"cardmarket_price":"0.12","tcgplayer_price":"0.25","ebay_price":"0.99","amazon_price":"1.50","coolstuffinc_price":"0.49"}]}]}`))
	}))
	defer server.Close()

	c := NewYGOPRODeckClient(testOptions(server.URL))

	cards, err := c.GetCards(context.Background(), []string{"46986414"}, 50)
	if err != nil || len(cards) != 1 {
		t.Fatalf("GetCards = (%v, %v)", cards, err)
	}
	row, ok := cards[0].Row(time.Now())
	if !ok || row.ExternalID != "46986414" || row.TCGPlayerPrice != "0.25" || row.CardmarketPrice != "0.12" {
		t.Errorf("row = %+v", row)
	}

	cards, err = c.GetCards(context.Background(), []string{"1"}, 50)
	if err != nil || len(cards) != 0 {
		t.Errorf("unknown id should give empty result, got (%v, %v)", cards, err)
	}
}

func TestScryfallGetCardsPostsIdentifiers(t *testing.T) {
	var received struct {
		Identifiers []struct {
			ID string `json:"id"`
		} `json:"identifiers"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/cards/collection" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		_, _ = w.Write([]byte(`{"data":[{"id":"a","prices":{"usd":null,"usd_foil":"4.00","eur":"3.10"}}],"not_found":[{"id":"b"}]}`))
	}))
	defer server.Close()

	cards, err := NewScryfallClient(testOptions(server.URL)).GetCards(context.Background(), []string{"a", "b"})
	if err != nil || len(cards) != 1 {
		t.Fatalf("GetCards = (%v, %v)", cards, err)
	}
	if len(received.Identifiers) != 2 {
		t.Errorf("posted %d identifiers, want 2", len(received.Identifiers))
	}
	row := cards[0].Row(time.Now())
	if row.USD != "" || row.USDFoil != "4.00" || row.EUR != "3.10" {
		t.Errorf("row = %+v", row)
	}
}
