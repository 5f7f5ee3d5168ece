package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/services"
)

type PriceHandler struct {
	resolver *services.PriceResolver
}

func NewPriceHandler(resolver *services.PriceResolver) *PriceHandler {
	return &PriceHandler{
		resolver: resolver,
	}
}

// PriceResponse is the live price of one item.
type PriceResponse struct {
	Game       models.Game     `json:"game"`
	ExternalID string          `json:"external_id"`
	Variant    models.Variant  `json:"variant"`
	Chain      []models.Vendor `json:"chain"`
	Quote      *services.Quote `json:"quote"`
}

// GetPrice resolves the current price of one item through its game's vendor chain.
func (h *PriceHandler) GetPrice(c *gin.Context) {
	game, ok := models.NormalizeGame(c.Param("game"))
	if !ok {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("unknown game %q", c.Param("game"))))
		return
	}
	if !h.resolver.SupportsGame(game) {
		respondWithError(c, apperrors.ErrUnsupportedGame)
		return
	}

	externalID := c.Param("externalId")
	variant := models.NormalizeVariant(c.Query("variant"))

	quote := h.resolver.Resolve(c.Request.Context(), game, externalID, variant)
	if quote == nil {
		respondWithError(c, apperrors.ErrPriceNotFound)
		return
	}

	c.JSON(http.StatusOK, PriceResponse{
		Game:       game,
		ExternalID: externalID,
		Variant:    variant,
		Chain:      h.resolver.Chain(game),
		Quote:      quote,
	})
}
