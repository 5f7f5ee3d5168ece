package models

import (
	"testing"
)

func TestNormalizeGame(t *testing.T) {
	tests := []struct {
		raw    string
		want   Game
		wantOK bool
	}{
		{"pokemon", GamePokemon, true},
		{"Pokémon", GamePokemon, true},
		{" POKEMON ", GamePokemon, true},
		{"Yu-Gi-Oh!", GameYugioh, true},
		{"yugioh", GameYugioh, true},
		{"Magic: The Gathering", GameMTG, true},
		{"mtg", GameMTG, true},
		{"Funko Pop", GameFunko, true},
		{"lorcana", GameLorcana, true},
		{"digimon", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeGame(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("NormalizeGame(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizeVariant(t *testing.T) {
	tests := []struct {
		raw  string
		want Variant
	}{
		{"", VariantNormal},
		{"Normal", VariantNormal},
		{"holofoil", VariantHolofoil},
		{"Reverse Holofoil", VariantReverseHolofoil},
		{"reverse-holo", VariantReverseHolofoil},
		{"1st Edition", VariantFirstEdition},
		{"promo", VariantPromo},
		{"something-else", VariantNormal},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := NormalizeVariant(tt.raw); got != tt.want {
				t.Errorf("NormalizeVariant(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestVariantIsFoil(t *testing.T) {
	if !VariantHolofoil.IsFoil() || !VariantReverseHolofoil.IsFoil() {
		t.Error("holofoil finishes should be foil")
	}
	if VariantNormal.IsFoil() || VariantFirstEdition.IsFoil() {
		t.Error("normal and first edition should not be foil")
	}
}

func TestCostBasisTotalCents(t *testing.T) {
	cost := int64(250)
	item := CollectionItem{Quantity: 3, CostBasisCents: &cost}
	if got := item.CostBasisTotalCents(); got != 750 {
		t.Errorf("CostBasisTotalCents() = %d, want 750", got)
	}

	item.CostBasisCents = nil
	if got := item.CostBasisTotalCents(); got != 0 {
		t.Errorf("CostBasisTotalCents() with nil basis = %d, want 0", got)
	}
}
