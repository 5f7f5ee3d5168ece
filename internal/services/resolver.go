package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/metrics"
	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/pricing"
)

// Quote is a resolved price for one item, in the vendor's native currency.
type Quote struct {
	AmountCents int64              `json:"amount_cents"`
	Currency    models.Currency    `json:"currency"`
	Source      models.Vendor      `json:"source"`
	Confidence  *models.Confidence `json:"confidence"`
	Field       string             `json:"field,omitempty"`
	SalesCount  *int               `json:"sales_count,omitempty"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// resolverChains lists, per game, the vendors tried in order. Games not
// listed have no supported vendor.
var resolverChains = map[models.Game][]models.Vendor{
	models.GamePokemon: {models.VendorTCGPlayer, models.VendorEffective, models.VendorCardmarket},
	models.GameYugioh:  {models.VendorYGOPRODeck, models.VendorEffective},
	models.GameMTG:     {models.VendorScryfall, models.VendorEbay},
}

type cachedQuote struct {
	quote *Quote
}

// PriceResolver answers "what is this item worth" from the vendor price
// tables. It never fails a lookup: vendor and database errors are logged and
// reported as "no price".
type PriceResolver struct {
	db         *gorm.DB
	cache      *expirable.LRU[string, cachedQuote]
	staleAfter time.Duration
	now        func() time.Time
}

// ResolverOptions configures a PriceResolver. CacheSize 0 disables caching.
type ResolverOptions struct {
	CacheSize  int
	CacheTTL   time.Duration
	StaleAfter time.Duration
}

func NewPriceResolver(db *gorm.DB, opts ResolverOptions) *PriceResolver {
	r := &PriceResolver{
		db:         db,
		staleAfter: opts.StaleAfter,
		now:        time.Now,
	}
	if r.staleAfter <= 0 {
		r.staleAfter = pricing.DefaultStaleAfter
	}
	if opts.CacheSize > 0 {
		r.cache = expirable.NewLRU[string, cachedQuote](opts.CacheSize, nil, opts.CacheTTL)
	}
	return r
}

// WithDB returns a copy of the resolver reading through db, sharing the cache.
func (r *PriceResolver) WithDB(db *gorm.DB) *PriceResolver {
	cp := *r
	cp.db = db
	return &cp
}

// Purge drops every cached quote and miss. Writers call it before a pass so
// rows changed since the last lookup are read fresh.
func (r *PriceResolver) Purge() {
	if r.cache != nil {
		r.cache.Purge()
	}
}

// SupportsGame reports whether any vendor prices game.
func (r *PriceResolver) SupportsGame(game models.Game) bool {
	_, ok := resolverChains[game]
	return ok
}

// Chain returns the vendors consulted for game, in order.
func (r *PriceResolver) Chain(game models.Game) []models.Vendor {
	return resolverChains[game]
}

// Resolve walks the game's vendor chain and returns the first usable quote.
// It returns nil for unsupported games, unknown ids and unpriced items.
func (r *PriceResolver) Resolve(ctx context.Context, game models.Game, externalID string, variant models.Variant) *Quote {
	chain, ok := resolverChains[game]
	if !ok || externalID == "" {
		return nil
	}

	key := fmt.Sprintf("%s|%s|%s", game, externalID, variant)
	if r.cache != nil {
		if cached, hit := r.cache.Get(key); hit {
			metrics.ResolverCacheHits.Inc()
			return cached.quote
		}
		metrics.ResolverCacheMisses.Inc()
	}

	var quote *Quote
	for _, vendor := range chain {
		q, err := r.Lookup(ctx, vendor, game, externalID, variant)
		if err != nil {
			metrics.ResolverLookupsTotal.WithLabelValues(string(vendor), "error").Inc()
			logger.Get().Warnw("Resolver: lookup failed",
				"vendor", vendor, "game", game, "external_id", externalID, "error", err)
			continue
		}
		if q == nil {
			metrics.ResolverLookupsTotal.WithLabelValues(string(vendor), "miss").Inc()
			continue
		}
		metrics.ResolverLookupsTotal.WithLabelValues(string(vendor), "hit").Inc()
		quote = q
		break
	}

	if quote == nil {
		logger.Get().Debugf("Resolver: no price for %s %s (%s)", game, externalID, variant)
	}
	if r.cache != nil {
		r.cache.Add(key, cachedQuote{quote: quote})
	}
	return quote
}

// Lookup reads one vendor's most recent row for the item. A nil quote with
// a nil error means the vendor has no usable price.
func (r *PriceResolver) Lookup(ctx context.Context, vendor models.Vendor, game models.Game, externalID string, variant models.Variant) (*Quote, error) {
	if vendor == models.VendorEffective {
		return r.lookupEffective(ctx, game, externalID, variant)
	}

	payload, err := r.loadPayload(ctx, vendor, game, externalID)
	if err != nil || payload == nil {
		return nil, err
	}

	price, ok := pricing.Normalize(payload, variant)
	if !ok {
		return nil, nil
	}

	confidence := pricing.GradePrice(price, r.now(), r.staleAfter)
	q := &Quote{
		AmountCents: price.AmountCents,
		Currency:    price.Currency,
		Source:      price.Source,
		Confidence:  &confidence,
		Field:       price.Field,
		UpdatedAt:   price.UpdatedAt,
	}
	if eb, ok := payload.(pricing.EbayPayload); ok && eb.SalesCount > 0 {
		n := eb.SalesCount
		q.SalesCount = &n
	}
	return q, nil
}

// latest loads the most recently updated row matching the conditions into
// dest. found is false when no row matches.
func (r *PriceResolver) latest(ctx context.Context, dest any, query string, args ...any) (found bool, err error) {
	err = r.db.WithContext(ctx).
		Where(query, args...).
		Order("updated_at DESC").
		Order("id DESC").
		First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *PriceResolver) loadPayload(ctx context.Context, vendor models.Vendor, game models.Game, externalID string) (pricing.Payload, error) {
	switch vendor {
	case models.VendorTCGPlayer:
		var row models.TCGPlayerPriceRow
		if found, err := r.latest(ctx, &row, "game = ? AND external_id = ?", game, externalID); !found || err != nil {
			return nil, err
		}
		return tcgplayerPayload(row), nil

	case models.VendorCardmarket:
		var row models.CardmarketPriceRow
		if found, err := r.latest(ctx, &row, "game = ? AND external_id = ?", game, externalID); !found || err != nil {
			return nil, err
		}
		return pricing.CardmarketPayload{
			Trend:            row.TrendPrice,
			AvgSell:          row.AvgSellPrice,
			Avg30:            row.Avg30,
			Low:              row.LowPrice,
			ReverseHoloTrend: row.ReverseHoloTrend,
			UpdatedAt:        row.UpdatedAt,
		}, nil

	case models.VendorYGOPRODeck:
		var row models.YGOPRODeckPriceRow
		if found, err := r.latest(ctx, &row, "external_id = ?", externalID); !found || err != nil {
			return nil, err
		}
		return pricing.YGOPRODeckPayload{
			TCGPlayer:    row.TCGPlayerPrice,
			Cardmarket:   row.CardmarketPrice,
			Ebay:         row.EbayPrice,
			Amazon:       row.AmazonPrice,
			Coolstuffinc: row.CoolstuffincPrice,
			UpdatedAt:    row.UpdatedAt,
		}, nil

	case models.VendorScryfall:
		var row models.ScryfallPriceRow
		if found, err := r.latest(ctx, &row, "external_id = ?", externalID); !found || err != nil {
			return nil, err
		}
		return pricing.ScryfallPayload{
			USD:       row.USD,
			USDFoil:   row.USDFoil,
			USDEtched: row.USDEtched,
			EUR:       row.EUR,
			EURFoil:   row.EURFoil,
			UpdatedAt: row.UpdatedAt,
		}, nil

	case models.VendorEbay:
		var row models.EbayPriceRow
		if found, err := r.latest(ctx, &row, "game = ? AND external_id = ?", game, externalID); !found || err != nil {
			return nil, err
		}
		return pricing.EbayPayload{
			MedianSold:    row.MedianSold,
			AverageSold:   row.AverageSold,
			LowestListing: row.LowestListing,
			SalesCount:    row.SalesCount,
			UpdatedAt:     row.UpdatedAt,
		}, nil

	case models.VendorPSA:
		var row models.PSAPriceRow
		if found, err := r.latest(ctx, &row, "cert_number = ?", externalID); !found || err != nil {
			return nil, err
		}
		return pricing.PSAPayload{
			EstimatedValue: row.EstimatedValue,
			LastSale:       row.LastSale,
			UpdatedAt:      row.UpdatedAt,
		}, nil
	}

	return nil, fmt.Errorf("unknown vendor %q", vendor)
}

// tcgplayerPayload converts a stored TCGplayer row into its normalizer payload.
func tcgplayerPayload(row models.TCGPlayerPriceRow) pricing.TCGPlayerPayload {
	stored := row.Buckets.Data()
	buckets := make(map[string]pricing.Bucket, len(stored))
	for name, b := range stored {
		buckets[name] = pricing.Bucket{Low: b.Low, Mid: b.Mid, High: b.High, Market: b.Market}
	}
	return pricing.TCGPlayerPayload{
		Buckets: buckets,
		Flat: pricing.Bucket{
			Low:    row.LowPrice,
			Mid:    row.MidPrice,
			High:   row.HighPrice,
			Market: row.MarketPrice,
		},
		UpdatedAt: row.UpdatedAt,
	}
}

// lookupEffective reads the unified table, preferring an exact variant match
// over the normal variant. Its confidence passes through unchanged.
func (r *PriceResolver) lookupEffective(ctx context.Context, game models.Game, externalID string, variant models.Variant) (*Quote, error) {
	variants := []models.Variant{variant}
	if variant != models.VariantNormal {
		variants = append(variants, models.VariantNormal)
	}

	for _, v := range variants {
		var row models.EffectivePriceRow
		found, err := r.latest(ctx, &row, "game = ? AND external_id = ? AND variant = ?", game, externalID, v)
		if err != nil {
			return nil, err
		}
		if !found || row.PriceCents <= 0 {
			continue
		}
		currency := row.Currency
		if currency == "" {
			currency = models.CurrencyUSD
		}
		return &Quote{
			AmountCents: row.PriceCents,
			Currency:    currency,
			Source:      models.VendorEffective,
			Confidence:  row.Confidence,
			Field:       row.Source,
			UpdatedAt:   row.UpdatedAt,
		}, nil
	}
	return nil, nil
}
