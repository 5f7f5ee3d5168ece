// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/codyseavey/tcg-valuation/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("game", validateGame)
		_ = v.RegisterValidation("as_of_date", validateAsOfDate)
		_ = v.RegisterValidation("movers_sort", validateMoversSort)
		_ = v.RegisterValidation("history_period", validateHistoryPeriod)
	}
}

func validateGame(fl validator.FieldLevel) bool {
	_, ok := models.NormalizeGame(fl.Field().String())
	return ok
}

func validateAsOfDate(fl validator.FieldLevel) bool {
	_, err := models.ParseDate(fl.Field().String())
	return err == nil
}

func validateMoversSort(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "impact", "percent":
		return true
	}
	return false
}

func validateHistoryPeriod(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "week", "month", "3month", "year", "all":
		return true
	}
	return false
}
