package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/models"
	"github.com/codyseavey/tcg-valuation/internal/services"
)

// MarketHandler serves catalog-wide and personal movers and the rollup trigger.
type MarketHandler struct {
	market *services.MarketService
}

func NewMarketHandler(market *services.MarketService) *MarketHandler {
	return &MarketHandler{market: market}
}

type moversQuery struct {
	Window int    `form:"window" binding:"omitempty,min=1,max=365"`
	Limit  int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Sort   string `form:"sort" binding:"omitempty,movers_sort"`
	Game   string `form:"game" binding:"omitempty,game"`
	AsOf   string `form:"as_of" binding:"omitempty,as_of_date"`
}

func bindMoversQuery(c *gin.Context) (services.MoversQuery, error) {
	var q moversQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return services.MoversQuery{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	asOf, err := parseOptionalDate(q.AsOf)
	if err != nil {
		return services.MoversQuery{}, err
	}

	var game models.Game
	if q.Game != "" {
		game, _ = models.NormalizeGame(q.Game)
	}
	return services.MoversQuery{
		WindowDays: q.Window,
		Limit:      q.Limit,
		Sort:       services.MoversSort(q.Sort),
		Game:       game,
		AsOf:       asOf,
	}, nil
}

// GetMovers ranks catalog-wide price changes.
func (h *MarketHandler) GetMovers(c *gin.Context) {
	q, err := bindMoversQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	movers, err := h.market.Movers(c.Request.Context(), q)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movers": movers})
}

// GetUserMovers ranks price changes of the user's holdings by held quantity.
func (h *MarketHandler) GetUserMovers(c *gin.Context) {
	q, err := bindMoversQuery(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	movers, err := h.market.UserMovers(c.Request.Context(), c.Param("userId"), q)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movers": movers})
}

// Rollup writes market snapshots for the requested date.
func (h *MarketHandler) Rollup(c *gin.Context) {
	asOf, err := bindAsOf(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	summary, err := h.market.SnapshotAll(c.Request.Context(), asOf)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
