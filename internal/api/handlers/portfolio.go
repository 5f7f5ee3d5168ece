package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/services"
)

// PortfolioHandler serves stored valuations and on-demand revaluation.
type PortfolioHandler struct {
	portfolio   *services.PortfolioService
	revaluation *services.RevaluationService
}

func NewPortfolioHandler(portfolio *services.PortfolioService, revaluation *services.RevaluationService) *PortfolioHandler {
	return &PortfolioHandler{portfolio: portfolio, revaluation: revaluation}
}

type historyQuery struct {
	Period string `form:"period" binding:"omitempty,history_period"`
}

// GetHistory returns daily portfolio snapshots for a period
// (week, month, 3month, year, all; default month).
func (h *PortfolioHandler) GetHistory(c *gin.Context) {
	var q historyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	resp, err := h.portfolio.History(c.Request.Context(), c.Param("userId"), q.Period)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetLatest returns the most recent portfolio snapshot.
func (h *PortfolioHandler) GetLatest(c *gin.Context) {
	pv, err := h.portfolio.Latest(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, pv)
}

type valuationsQuery struct {
	AsOf string `form:"as_of" binding:"omitempty,as_of_date"`
}

// GetValuations returns item valuations for one date, the latest by default.
func (h *PortfolioHandler) GetValuations(c *gin.Context) {
	var q valuationsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	date, err := parseOptionalDate(q.AsOf)
	if err != nil {
		respondWithError(c, err)
		return
	}

	vals, date, err := h.portfolio.Valuations(c.Request.Context(), c.Param("userId"), date)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"as_of_date": date,
		"valuations": vals,
	})
}

// Revalue recomputes the user's portfolio for the requested date.
func (h *PortfolioHandler) Revalue(c *gin.Context) {
	asOf, err := bindAsOf(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result := h.revaluation.RevalueUser(c.Request.Context(), c.Param("userId"), asOf)
	if !result.OK {
		respondWithError(c, result.Err())
		return
	}
	c.JSON(http.StatusOK, result)
}
