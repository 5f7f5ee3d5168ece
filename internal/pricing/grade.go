package pricing

import (
	"time"

	"github.com/codyseavey/tcg-valuation/internal/models"
)

const (
	freshWindow = 48 * time.Hour
	// DefaultStaleAfter is the age past which a price grades C.
	DefaultStaleAfter = 7 * 24 * time.Hour
)

// Grade assigns a confidence to a price: A for the preferred field updated
// within 48h, C for anything older than a week, B otherwise.
func Grade(primary bool, age time.Duration) models.Confidence {
	return GradeWithin(primary, age, DefaultStaleAfter)
}

// GradeWithin is Grade with a configurable staleness cutoff.
func GradeWithin(primary bool, age, staleAfter time.Duration) models.Confidence {
	switch {
	case age > staleAfter:
		return models.ConfidenceC
	case primary && age <= freshWindow:
		return models.ConfidenceA
	default:
		return models.ConfidenceB
	}
}

// GradePrice grades p as of now. A price with no timestamp grades C.
func GradePrice(p Price, now time.Time, staleAfter time.Duration) models.Confidence {
	if p.UpdatedAt.IsZero() {
		return models.ConfidenceC
	}
	return GradeWithin(p.Primary, now.Sub(p.UpdatedAt), staleAfter)
}
