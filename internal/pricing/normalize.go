package pricing

import (
	"time"

	"github.com/codyseavey/tcg-valuation/internal/models"
)

// Price is a normalized vendor price.
type Price struct {
	AmountCents int64
	Currency    models.Currency
	Source      models.Vendor
	Field       string
	// Primary is true when the vendor's preferred field for the requested
	// variant supplied the amount, false when a fallback did.
	Primary   bool
	UpdatedAt time.Time
}

// Normalize converts one vendor payload into a price for the requested
// variant. ok is false when no field carries a usable amount.
func Normalize(p Payload, variant models.Variant) (Price, bool) {
	var (
		price Price
		ok    bool
	)

	switch v := p.(type) {
	case TCGPlayerPayload:
		price, ok = normalizeTCGPlayer(v, variant)
	case CardmarketPayload:
		price, ok = normalizeCardmarket(v, variant)
	case YGOPRODeckPayload:
		price, ok = normalizeYGOPRODeck(v)
	case ScryfallPayload:
		price, ok = normalizeScryfall(v, variant)
	case EbayPayload:
		price, ok = selectPrice(v, models.CurrencyUSD, ebayChain...)
	case PSAPayload:
		price, ok = selectPrice(v, models.CurrencyUSD, psaChain...)
	default:
		return Price{}, false
	}

	if !ok {
		return Price{}, false
	}
	price.Source = p.Vendor()
	price.UpdatedAt = p.Updated()
	return price, true
}

func selectPrice[T any](src T, cur models.Currency, fields ...Field[T]) (Price, bool) {
	sel, ok := SelectFirst(src, fields...)
	if !ok {
		return Price{}, false
	}
	return Price{AmountCents: sel.Cents, Currency: cur, Field: sel.Field, Primary: sel.Rank == 0}, true
}

// BucketCandidates maps a variant to the vendor's bucket names, most specific first.
func BucketCandidates(vendor models.Vendor, variant models.Variant) []string {
	if vendor != models.VendorTCGPlayer {
		return nil
	}
	switch variant {
	case models.VariantHolofoil:
		return []string{"holofoil"}
	case models.VariantReverseHolofoil:
		return []string{"reverse-holofoil", "reverse_holofoil"}
	case models.VariantFirstEdition:
		return []string{"first_edition_holofoil", "first_edition_normal"}
	case models.VariantPromo:
		return []string{"promo"}
	default:
		return []string{"normal"}
	}
}

func normalizeTCGPlayer(p TCGPlayerPayload, variant models.Variant) (Price, bool) {
	for i, name := range BucketCandidates(models.VendorTCGPlayer, variant) {
		bucket, found := p.Buckets[name]
		if !found {
			continue
		}
		if sel, ok := SelectFirst(bucket, BucketChain...); ok {
			field := name + "." + sel.Field
			return Price{AmountCents: sel.Cents, Currency: models.CurrencyUSD, Field: field, Primary: i == 0 && sel.Rank == 0}, true
		}
	}

	sel, ok := SelectFirst(p.Flat, BucketChain...)
	if !ok {
		return Price{}, false
	}
	return Price{AmountCents: sel.Cents, Currency: models.CurrencyUSD, Field: "flat." + sel.Field}, true
}

var cardmarketChain = []Field[CardmarketPayload]{
	{Name: "trend", Get: func(p CardmarketPayload) string { return p.Trend }},
	{Name: "avg_sell", Get: func(p CardmarketPayload) string { return p.AvgSell }},
	{Name: "avg30", Get: func(p CardmarketPayload) string { return p.Avg30 }},
	{Name: "low", Get: func(p CardmarketPayload) string { return p.Low }},
}

var cardmarketReverseChain = append([]Field[CardmarketPayload]{
	{Name: "reverse_holo_trend", Get: func(p CardmarketPayload) string { return p.ReverseHoloTrend }},
}, cardmarketChain...)

func normalizeCardmarket(p CardmarketPayload, variant models.Variant) (Price, bool) {
	chain := cardmarketChain
	if variant == models.VariantReverseHolofoil {
		chain = cardmarketReverseChain
	}
	return selectPrice(p, models.CurrencyEUR, chain...)
}

var ygoUSDChain = []Field[YGOPRODeckPayload]{
	{Name: "tcgplayer", Get: func(p YGOPRODeckPayload) string { return p.TCGPlayer }},
	{Name: "coolstuffinc", Get: func(p YGOPRODeckPayload) string { return p.Coolstuffinc }},
	{Name: "ebay", Get: func(p YGOPRODeckPayload) string { return p.Ebay }},
	{Name: "amazon", Get: func(p YGOPRODeckPayload) string { return p.Amazon }},
}

func normalizeYGOPRODeck(p YGOPRODeckPayload) (Price, bool) {
	if price, ok := selectPrice(p, models.CurrencyUSD, ygoUSDChain...); ok {
		return price, true
	}
	cents, ok := ParseAmount(p.Cardmarket)
	if !ok {
		return Price{}, false
	}
	return Price{AmountCents: cents, Currency: models.CurrencyEUR, Field: "cardmarket"}, true
}

var (
	scryUSD       = Field[ScryfallPayload]{Name: "usd", Get: func(p ScryfallPayload) string { return p.USD }}
	scryUSDFoil   = Field[ScryfallPayload]{Name: "usd_foil", Get: func(p ScryfallPayload) string { return p.USDFoil }}
	scryUSDEtched = Field[ScryfallPayload]{Name: "usd_etched", Get: func(p ScryfallPayload) string { return p.USDEtched }}
	scryEUR       = Field[ScryfallPayload]{Name: "eur", Get: func(p ScryfallPayload) string { return p.EUR }}
	scryEURFoil   = Field[ScryfallPayload]{Name: "eur_foil", Get: func(p ScryfallPayload) string { return p.EURFoil }}
)

func normalizeScryfall(p ScryfallPayload, variant models.Variant) (Price, bool) {
	usd := []Field[ScryfallPayload]{scryUSD, scryUSDFoil, scryUSDEtched}
	eur := []Field[ScryfallPayload]{scryEUR, scryEURFoil}
	if variant.IsFoil() {
		usd = []Field[ScryfallPayload]{scryUSDFoil, scryUSD, scryUSDEtched}
		eur = []Field[ScryfallPayload]{scryEURFoil, scryEUR}
	}

	if price, ok := selectPrice(p, models.CurrencyUSD, usd...); ok {
		return price, true
	}
	price, ok := selectPrice(p, models.CurrencyEUR, eur...)
	price.Primary = false
	return price, ok
}

var ebayChain = []Field[EbayPayload]{
	{Name: "median_sold", Get: func(p EbayPayload) string { return p.MedianSold }},
	{Name: "average_sold", Get: func(p EbayPayload) string { return p.AverageSold }},
	{Name: "lowest_listing", Get: func(p EbayPayload) string { return p.LowestListing }},
}

var psaChain = []Field[PSAPayload]{
	{Name: "estimated_value", Get: func(p PSAPayload) string { return p.EstimatedValue }},
	{Name: "last_sale", Get: func(p PSAPayload) string { return p.LastSale }},
}
