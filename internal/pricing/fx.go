package pricing

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/codyseavey/tcg-valuation/internal/models"
)

// FXTable holds fixed conversion rates expressed as USD per one unit of
// the keyed currency.
type FXTable struct {
	rates map[models.Currency]decimal.Decimal
}

// NewFXTable builds a table from config-style rates ({"EUR": 1.08}).
// Non-positive rates are ignored.
func NewFXTable(rates map[string]float64) FXTable {
	t := FXTable{rates: map[models.Currency]decimal.Decimal{
		models.CurrencyUSD: decimal.NewFromInt(1),
	}}
	for code, rate := range rates {
		if rate <= 0 {
			continue
		}
		t.rates[models.Currency(strings.ToUpper(code))] = decimal.NewFromFloat(rate)
	}
	return t
}

// Rate returns the USD value of one unit of cur.
func (t FXTable) Rate(cur models.Currency) (decimal.Decimal, bool) {
	r, ok := t.rates[cur]
	return r, ok
}

// Convert re-expresses p in the target currency. ok is false when either
// rate is unknown or the converted amount rounds to zero.
func (t FXTable) Convert(p Price, to models.Currency) (Price, bool) {
	if p.Currency == to {
		return p, true
	}
	from, ok := t.Rate(p.Currency)
	if !ok {
		return Price{}, false
	}
	target, ok := t.Rate(to)
	if !ok || target.IsZero() {
		return Price{}, false
	}

	cents := decimal.NewFromInt(p.AmountCents).Mul(from).Div(target).Round(0).IntPart()
	if cents <= 0 {
		return Price{}, false
	}

	out := p
	out.AmountCents = cents
	out.Currency = to
	return out, true
}
