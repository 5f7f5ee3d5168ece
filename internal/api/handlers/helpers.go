package handlers

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/models"
)

// asOfRequest is the optional body of endpoints that act on one date.
type asOfRequest struct {
	AsOf string `json:"as_of" binding:"omitempty,as_of_date"`
}

// bindAsOf reads an optional {"as_of": "YYYY-MM-DD"} body. A missing body
// or date yields the zero Date, which services treat as today.
func bindAsOf(c *gin.Context) (models.Date, error) {
	var req asOfRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return models.Date{}, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return parseOptionalDate(req.AsOf)
}

func parseOptionalDate(s string) (models.Date, error) {
	if s == "" {
		return models.Date{}, nil
	}
	return models.ParseDate(s)
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, gin.H{
		"error": gin.H{
			"code":    apperrors.ErrInternalServer.Code,
			"message": apperrors.ErrInternalServer.Message,
		},
	})
}
