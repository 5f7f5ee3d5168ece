package vendors

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/pricing"
)

const pokemonTCGBaseURL = "https://api.pokemontcg.io/v2"

// PokemonTCGClient reads TCGplayer and Cardmarket price blocks from pokemontcg.io.
type PokemonTCGClient struct {
	*client
}

func NewPokemonTCGClient(opts Options) *PokemonTCGClient {
	c := newClient(models.VendorTCGPlayer, pokemonTCGBaseURL, 8, opts)
	if opts.APIKey != "" {
		c.headers["X-Api-Key"] = opts.APIKey
	}
	return &PokemonTCGClient{client: c}
}

type pokemonSearchResponse struct {
	Data       []PokemonCard `json:"data"`
	TotalCount int           `json:"totalCount"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	Count      int           `json:"count"`
}

// PokemonCard is the subset of a pokemontcg.io card the sync needs.
type PokemonCard struct {
	TCGPlayer  *pokemonTCGPlayer  `json:"tcgplayer"`
	Cardmarket *pokemonCardmarket `json:"cardmarket"`
	ID         string             `json:"id"`
	Name       string             `json:"name"`
}

type pokemonTCGPlayer struct {
	Prices    map[string]pokemonPriceSet `json:"prices"`
	UpdatedAt string                     `json:"updatedAt"`
}

type pokemonPriceSet struct {
	Low    float64 `json:"low"`
	Mid    float64 `json:"mid"`
	High   float64 `json:"high"`
	Market float64 `json:"market"`
}

type pokemonCardmarket struct {
	Prices    pokemonCardmarketPrices `json:"prices"`
	UpdatedAt string                  `json:"updatedAt"`
}

type pokemonCardmarketPrices struct {
	AverageSellPrice float64 `json:"averageSellPrice"`
	LowPrice         float64 `json:"lowPrice"`
	TrendPrice       float64 `json:"trendPrice"`
	ReverseHoloTrend float64 `json:"reverseHoloTrend"`
	Avg30            float64 `json:"avg30"`
}

// GetCard fetches one card. Unknown ids return ErrNotFound.
func (c *PokemonTCGClient) GetCard(ctx context.Context, id string) (*PokemonCard, error) {
	var response struct {
		Data PokemonCard `json:"data"`
	}
	reqURL := fmt.Sprintf("%s/cards/%s", c.baseURL, url.PathEscape(id))
	if err := c.getJSON(ctx, reqURL, &response); err != nil {
		return nil, fmt.Errorf("failed to get pokemon card %s: %w", id, err)
	}
	return &response.Data, nil
}

// GetCards fetches many cards with `id:a OR id:b` queries, batchSize ids per request.
// Ids the API does not know are simply absent from the result.
func (c *PokemonTCGClient) GetCards(ctx context.Context, ids []string, batchSize int) ([]PokemonCard, error) {
	var cards []PokemonCard
	for _, batch := range chunk(ids, batchSize) {
		terms := make([]string, len(batch))
		for i, id := range batch {
			terms[i] = "id:" + id
		}
		query := url.QueryEscape(strings.Join(terms, " OR "))
		reqURL := fmt.Sprintf("%s/cards?q=%s&pageSize=%d", c.baseURL, query, len(batch))

		var resp pokemonSearchResponse
		if err := c.getJSON(ctx, reqURL, &resp); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return cards, fmt.Errorf("failed to search pokemon cards: %w", err)
		}
		cards = append(cards, resp.Data...)
	}
	return cards, nil
}

// pokemonBucketNames maps pokemontcg.io price keys to stored bucket names.
var pokemonBucketNames = map[string]string{
	"normal":             "normal",
	"holofoil":           "holofoil",
	"reverseHolofoil":    "reverse-holofoil",
	"1stEditionHolofoil": "first_edition_holofoil",
	"1stEditionNormal":   "first_edition_normal",
	"unlimitedHolofoil":  "unlimited_holofoil",
	"1stEdition":         "first_edition_normal",
	"unlimited":          "unlimited_normal",
}

// flatPreference is the bucket order used to fill the flat generic fields.
var flatPreference = []string{
	"normal", "holofoil", "reverse-holofoil",
	"unlimited_holofoil", "unlimited_normal",
	"first_edition_holofoil", "first_edition_normal",
}

// TCGPlayerRow converts the card's TCGplayer block. ok is false when the
// card carries no TCGplayer prices at all.
func (p PokemonCard) TCGPlayerRow(now time.Time) (models.TCGPlayerPriceRow, bool) {
	if p.TCGPlayer == nil || len(p.TCGPlayer.Prices) == 0 {
		return models.TCGPlayerPriceRow{}, false
	}

	buckets := make(map[string]models.TCGPlayerBucket, len(p.TCGPlayer.Prices))
	for key, set := range p.TCGPlayer.Prices {
		name, known := pokemonBucketNames[key]
		if !known {
			name = strings.ToLower(key)
		}
		buckets[name] = models.TCGPlayerBucket{
			Low:    pricing.FormatAmount(set.Low),
			Mid:    pricing.FormatAmount(set.Mid),
			High:   pricing.FormatAmount(set.High),
			Market: pricing.FormatAmount(set.Market),
		}
	}

	row := models.TCGPlayerPriceRow{
		Game:       models.GamePokemon,
		ExternalID: p.ID,
		UpdatedAt:  parseVendorDate(p.TCGPlayer.UpdatedAt, now),
	}
	for _, name := range flatPreference {
		b, found := buckets[name]
		if !found {
			continue
		}
		if _, priced := pricing.SelectFirst(pricing.Bucket{Low: b.Low, Mid: b.Mid, High: b.High, Market: b.Market}, pricing.BucketChain...); priced {
			row.MarketPrice, row.MidPrice, row.LowPrice, row.HighPrice = b.Market, b.Mid, b.Low, b.High
			break
		}
	}
	row.Buckets = datatypes.NewJSONType(buckets)
	return row, true
}

// CardmarketRow converts the card's Cardmarket block (EUR).
func (p PokemonCard) CardmarketRow(now time.Time) (models.CardmarketPriceRow, bool) {
	if p.Cardmarket == nil {
		return models.CardmarketPriceRow{}, false
	}
	prices := p.Cardmarket.Prices
	return models.CardmarketPriceRow{
		Game:             models.GamePokemon,
		ExternalID:       p.ID,
		TrendPrice:       pricing.FormatAmount(prices.TrendPrice),
		AvgSellPrice:     pricing.FormatAmount(prices.AverageSellPrice),
		Avg30:            pricing.FormatAmount(prices.Avg30),
		LowPrice:         pricing.FormatAmount(prices.LowPrice),
		ReverseHoloTrend: pricing.FormatAmount(prices.ReverseHoloTrend),
		UpdatedAt:        parseVendorDate(p.Cardmarket.UpdatedAt, now),
	}, true
}

// parseVendorDate accepts the "2024/01/15" style pokemontcg.io uses and
// falls back to now.
func parseVendorDate(s string, now time.Time) time.Time {
	for _, layout := range []string{"2006/01/02", "2006-01-02", time.RFC3339} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t
		}
	}
	return now
}
