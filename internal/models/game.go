package models

import (
	"strings"
)

// Game is the canonical id of a collectible line.
type Game string

const (
	GamePokemon Game = "pokemon"
	GameYugioh  Game = "yugioh"
	GameMTG     Game = "mtg"
	GameFunko   Game = "funko"
	GameLorcana Game = "lorcana"
)

// AllGames returns every game the catalog knows about, priced or not.
func AllGames() []Game {
	return []Game{GamePokemon, GameYugioh, GameMTG, GameFunko, GameLorcana}
}

// NormalizeGame maps the free-form game strings found on collection items
// ("Pokémon", "Yu-Gi-Oh!", "magic-the-gathering", ...) to a canonical Game.
// The second return value is false for strings that name no known game.
func NormalizeGame(raw string) (Game, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "é", "e")
	s = strings.NewReplacer("-", "", "_", "", " ", "", "!", "", ":", "").Replace(s)

	switch s {
	case "pokemon", "ptcg", "pokemontcg":
		return GamePokemon, true
	case "yugioh", "ygo", "yugiohtcg":
		return GameYugioh, true
	case "mtg", "magic", "magicthegathering":
		return GameMTG, true
	case "funko", "funkopop", "pop":
		return GameFunko, true
	case "lorcana", "disneylorcana":
		return GameLorcana, true
	default:
		return "", false
	}
}

// Variant is a printing or finish distinction for the same underlying card.
type Variant string

const (
	VariantNormal          Variant = "normal"
	VariantHolofoil        Variant = "holofoil"
	VariantReverseHolofoil Variant = "reverse_holofoil"
	VariantFirstEdition    Variant = "first_edition"
	VariantPromo           Variant = "promo"
)

// AllVariants returns all recognised variant types.
func AllVariants() []Variant {
	return []Variant{
		VariantNormal,
		VariantHolofoil,
		VariantReverseHolofoil,
		VariantFirstEdition,
		VariantPromo,
	}
}

// NormalizeVariant maps vendor and UI spellings to a Variant.
// Unknown or empty values default to VariantNormal.
func NormalizeVariant(raw string) Variant {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)

	switch s {
	case "holofoil", "holo", "foil":
		return VariantHolofoil
	case "reverse_holofoil", "reverse_holo", "reverseholofoil", "reverse":
		return VariantReverseHolofoil
	case "first_edition", "1st_edition", "1st_edition_holofoil", "1st_edition_normal", "firstedition":
		return VariantFirstEdition
	case "promo":
		return VariantPromo
	default:
		return VariantNormal
	}
}

// IsFoil reports whether the variant is a foil/holographic finish.
// 1st Edition is a print run, not a finish.
func (v Variant) IsFoil() bool {
	return v == VariantHolofoil || v == VariantReverseHolofoil
}

// Vendor identifies a pricing source.
type Vendor string

const (
	VendorTCGPlayer  Vendor = "tcgplayer"
	VendorCardmarket Vendor = "cardmarket"
	VendorYGOPRODeck Vendor = "ygoprodeck"
	VendorScryfall   Vendor = "scryfall"
	VendorEbay       Vendor = "ebay"
	VendorPSA        Vendor = "psa"
	VendorEffective  Vendor = "effective"
)

// Currency is an ISO 4217 code.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// Confidence is a coarse A/B/C grade on how trustworthy a price point is.
type Confidence string

const (
	ConfidenceA Confidence = "A"
	ConfidenceB Confidence = "B"
	ConfidenceC Confidence = "C"
)
