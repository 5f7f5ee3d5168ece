package vendors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codyseavey/tcg-valuation/internal/models"
)

const ygoprodeckBaseURL = "https://db.ygoprodeck.com/api/v7"

// YGOPRODeckClient reads Yu-Gi-Oh! prices from YGOPRODeck.
type YGOPRODeckClient struct {
	*client
}

func NewYGOPRODeckClient(opts Options) *YGOPRODeckClient {
	// YGOPRODeck allows 20 requests per second
	return &YGOPRODeckClient{client: newClient(models.VendorYGOPRODeck, ygoprodeckBaseURL, 15, opts)}
}

// YGOCard is the subset of a YGOPRODeck card the sync needs.
type YGOCard struct {
	ID         int            `json:"id"`
	Name       string         `json:"name"`
	CardPrices []YGOCardPrice `json:"card_prices"`
}

// YGOCardPrice is YGOPRODeck's flat per-store block.
type YGOCardPrice struct {
	CardmarketPrice   string `json:"cardmarket_price"`
	TCGPlayerPrice    string `json:"tcgplayer_price"`
	EbayPrice         string `json:"ebay_price"`
	AmazonPrice       string `json:"amazon_price"`
	CoolstuffincPrice string `json:"coolstuffinc_price"`
}

type ygoResponse struct {
	Data []YGOCard `json:"data"`
}

// GetCards fetches cards by passcode. YGOPRODeck answers 400 when none of
// the ids exist; that is reported as an empty result.
func (c *YGOPRODeckClient) GetCards(ctx context.Context, ids []string, batchSize int) ([]YGOCard, error) {
	var cards []YGOCard
	for _, batch := range chunk(ids, batchSize) {
		reqURL := fmt.Sprintf("%s/cardinfo.php?id=%s", c.baseURL, url.QueryEscape(strings.Join(batch, ",")))

		var resp ygoResponse
		if err := c.getJSON(ctx, reqURL, &resp); err != nil {
			var statusErr *StatusError
			if errors.Is(err, ErrNotFound) || (errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest) {
				continue
			}
			return cards, fmt.Errorf("failed to fetch ygoprodeck cards: %w", err)
		}
		cards = append(cards, resp.Data...)
	}
	return cards, nil
}

// Row converts the card into a stored price row. ok is false when the card
// has no price block.
func (y YGOCard) Row(now time.Time) (models.YGOPRODeckPriceRow, bool) {
	if len(y.CardPrices) == 0 {
		return models.YGOPRODeckPriceRow{}, false
	}
	p := y.CardPrices[0]
	return models.YGOPRODeckPriceRow{
		ExternalID:        strconv.Itoa(y.ID),
		TCGPlayerPrice:    p.TCGPlayerPrice,
		CardmarketPrice:   p.CardmarketPrice,
		EbayPrice:         p.EbayPrice,
		AmazonPrice:       p.AmazonPrice,
		CoolstuffincPrice: p.CoolstuffincPrice,
		UpdatedAt:         now,
	}, true
}
