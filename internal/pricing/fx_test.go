package pricing

import (
	"testing"

	"github.com/codyseavey/tcg-valuation/internal/models"
)

func TestFXConvert(t *testing.T) {
	table := NewFXTable(map[string]float64{"eur": 1.10, "JPY": 0})

	eur := Price{AmountCents: 1000, Currency: models.CurrencyEUR}
	usd, ok := table.Convert(eur, models.CurrencyUSD)
	if !ok || usd.AmountCents != 1100 || usd.Currency != models.CurrencyUSD {
		t.Errorf("EUR→USD = %+v, %v", usd, ok)
	}

	back, ok := table.Convert(usd, models.CurrencyEUR)
	if !ok || back.AmountCents != 1000 {
		t.Errorf("USD→EUR = %+v, %v", back, ok)
	}

	same, ok := table.Convert(usd, models.CurrencyUSD)
	if !ok || same.AmountCents != 1100 {
		t.Errorf("USD→USD = %+v, %v", same, ok)
	}

	if _, ok := table.Convert(Price{AmountCents: 100, Currency: "JPY"}, models.CurrencyUSD); ok {
		t.Error("non-positive rate should be ignored")
	}
	if _, ok := table.Convert(Price{AmountCents: 100, Currency: "GBP"}, models.CurrencyUSD); ok {
		t.Error("unknown currency should not convert")
	}
}
