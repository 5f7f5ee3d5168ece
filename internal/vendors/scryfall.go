package vendors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codyseavey/tcg-valuation/internal/models"
)

const (
	scryfallBaseURL = "https://api.scryfall.com"
	// /cards/collection accepts at most 75 identifiers per request.
	scryfallCollectionLimit = 75
)

// ScryfallClient reads MTG prices from Scryfall.
type ScryfallClient struct {
	*client
}

func NewScryfallClient(opts Options) *ScryfallClient {
	return &ScryfallClient{client: newClient(models.VendorScryfall, scryfallBaseURL, 10, opts)}
}

// ScryfallCard is the subset of a Scryfall card the sync needs.
type ScryfallCard struct {
	Prices ScryfallPrices `json:"prices"`
	ID     string         `json:"id"`
	Name   string         `json:"name"`
}

// ScryfallPrices are decimal strings; null prices decode as "".
type ScryfallPrices struct {
	USD       string `json:"usd"`
	USDFoil   string `json:"usd_foil"`
	USDEtched string `json:"usd_etched"`
	EUR       string `json:"eur"`
	EURFoil   string `json:"eur_foil"`
}

type scryfallIdentifier struct {
	ID string `json:"id"`
}

type scryfallCollectionResponse struct {
	Data     []ScryfallCard       `json:"data"`
	NotFound []scryfallIdentifier `json:"not_found"`
}

// GetCard fetches one card by Scryfall id.
func (c *ScryfallClient) GetCard(ctx context.Context, id string) (*ScryfallCard, error) {
	var card ScryfallCard
	if err := c.getJSON(ctx, fmt.Sprintf("%s/cards/%s", c.baseURL, id), &card); err != nil {
		return nil, fmt.Errorf("failed to get scryfall card %s: %w", id, err)
	}
	return &card, nil
}

// GetCards fetches many cards through /cards/collection.
func (c *ScryfallClient) GetCards(ctx context.Context, ids []string) ([]ScryfallCard, error) {
	var cards []ScryfallCard
	for _, batch := range chunk(ids, scryfallCollectionLimit) {
		body := struct {
			Identifiers []scryfallIdentifier `json:"identifiers"`
		}{Identifiers: make([]scryfallIdentifier, len(batch))}
		for i, id := range batch {
			body.Identifiers[i] = scryfallIdentifier{ID: id}
		}

		var resp scryfallCollectionResponse
		if err := c.postJSON(ctx, c.baseURL+"/cards/collection", body, &resp); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return cards, fmt.Errorf("failed to fetch scryfall collection: %w", err)
		}
		cards = append(cards, resp.Data...)
	}
	return cards, nil
}

// Row converts the card into a stored price row.
func (s ScryfallCard) Row(now time.Time) models.ScryfallPriceRow {
	return models.ScryfallPriceRow{
		ExternalID: s.ID,
		USD:        s.Prices.USD,
		USDFoil:    s.Prices.USDFoil,
		USDEtched:  s.Prices.USDEtched,
		EUR:        s.Prices.EUR,
		EURFoil:    s.Prices.EURFoil,
		UpdatedAt:  now,
	}
}
