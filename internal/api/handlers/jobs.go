package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/codyseavey/tcg-valuation/internal/errors"
	"github.com/codyseavey/tcg-valuation/internal/services"
)

// JobHandler exposes nightly pipeline runs.
type JobHandler struct {
	pipeline *services.Pipeline
}

func NewJobHandler(pipeline *services.Pipeline) *JobHandler {
	return &JobHandler{pipeline: pipeline}
}

type jobsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ListJobs returns recent job runs, newest first.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var q jobsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	runs, err := h.pipeline.RecentRuns(c.Request.Context(), q.Limit)
	if err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"running": h.pipeline.IsRunning(),
		"steps":   h.pipeline.Steps(),
		"jobs":    runs,
	})
}

// RunPipeline runs the nightly steps for the requested date.
func (h *JobHandler) RunPipeline(c *gin.Context) {
	asOf, err := bindAsOf(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	runs, err := h.pipeline.Run(c.Request.Context(), asOf)
	if err != nil && runs == nil {
		respondWithError(c, err)
		return
	}
	resp := gin.H{"jobs": runs}
	if err != nil {
		resp["error"] = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
