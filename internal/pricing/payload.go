package pricing

import (
	"time"

	"github.com/codyseavey/tcg-valuation/internal/models"
)

// Payload is the closed set of vendor price shapes. Each variant has exactly
// one normalizer; see Normalize.
type Payload interface {
	Vendor() models.Vendor
	Updated() time.Time
	payload()
}

// TCGPlayerPayload is a bucketed price block keyed by vendor bucket name,
// with a flat generic block used when the requested bucket has no price.
type TCGPlayerPayload struct {
	Buckets   map[string]Bucket
	Flat      Bucket
	UpdatedAt time.Time
}

// CardmarketPayload holds EUR trend-style fields.
type CardmarketPayload struct {
	Trend            string
	AvgSell          string
	Avg30            string
	Low              string
	ReverseHoloTrend string
	UpdatedAt        time.Time
}

// YGOPRODeckPayload is the flat per-store block. Cardmarket is EUR.
type YGOPRODeckPayload struct {
	TCGPlayer    string
	Cardmarket   string
	Ebay         string
	Amazon       string
	Coolstuffinc string
	UpdatedAt    time.Time
}

// ScryfallPayload mirrors the Scryfall prices object.
type ScryfallPayload struct {
	USD       string
	USDFoil   string
	USDEtched string
	EUR       string
	EURFoil   string
	UpdatedAt time.Time
}

// EbayPayload is a sold-listing summary.
type EbayPayload struct {
	MedianSold    string
	AverageSold   string
	LowestListing string
	SalesCount    int
	UpdatedAt     time.Time
}

// PSAPayload is a graded-card lookup.
type PSAPayload struct {
	EstimatedValue string
	LastSale       string
	UpdatedAt      time.Time
}

func (TCGPlayerPayload) Vendor() models.Vendor  { return models.VendorTCGPlayer }
func (CardmarketPayload) Vendor() models.Vendor { return models.VendorCardmarket }
func (YGOPRODeckPayload) Vendor() models.Vendor { return models.VendorYGOPRODeck }
func (ScryfallPayload) Vendor() models.Vendor   { return models.VendorScryfall }
func (EbayPayload) Vendor() models.Vendor       { return models.VendorEbay }
func (PSAPayload) Vendor() models.Vendor        { return models.VendorPSA }

func (p TCGPlayerPayload) Updated() time.Time  { return p.UpdatedAt }
func (p CardmarketPayload) Updated() time.Time { return p.UpdatedAt }
func (p YGOPRODeckPayload) Updated() time.Time { return p.UpdatedAt }
func (p ScryfallPayload) Updated() time.Time   { return p.UpdatedAt }
func (p EbayPayload) Updated() time.Time       { return p.UpdatedAt }
func (p PSAPayload) Updated() time.Time        { return p.UpdatedAt }

func (TCGPlayerPayload) payload()  {}
func (CardmarketPayload) payload() {}
func (YGOPRODeckPayload) payload() {}
func (ScryfallPayload) payload()   {}
func (EbayPayload) payload()       {}
func (PSAPayload) payload()        {}
