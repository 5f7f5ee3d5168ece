package database

import (
	"gorm.io/gorm"

	"github.com/codyseavey/tcg-valuation/internal/logger"
)

// cleanupDuplicateValuations removes duplicate item_valuations and
// daily_portfolio_valuations rows before the unique indexes are added.
// This runs BEFORE AutoMigrate to prevent constraint violations.
func cleanupDuplicateValuations(db *gorm.DB) error {
	log := logger.Get()

	dedupe := []struct {
		table   string
		groupBy string
	}{
		{"item_valuations", "user_id, collection_item_id, as_of_date, source"},
		{"daily_portfolio_valuations", "user_id, as_of_date"},
		{"market_price_snapshots", "market_item_id, as_of_date"},
	}

	for _, d := range dedupe {
		if !db.Migrator().HasTable(d.table) {
			continue
		}
		// Keep the newest row of each group
		result := db.Exec(`
			DELETE FROM ` + d.table + `
			WHERE id NOT IN (
				SELECT MAX(id)
				FROM ` + d.table + `
				GROUP BY ` + d.groupBy + `
			)
		`)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			log.Infof("Cleaned up %d duplicate %s entries", result.RowsAffected, d.table)
		}
	}

	return nil
}

// RunDataMigrations normalizes legacy rows after schema changes.
// It is safe to run on every start.
func RunDataMigrations(db *gorm.DB) error {
	if err := migrateVariantField(db); err != nil {
		return err
	}
	return nil
}

// migrateVariantField rewrites legacy variant spellings to the canonical
// snake_case values used by pricing.
func migrateVariantField(db *gorm.DB) error {
	log := logger.Get()

	legacy := map[string]string{
		"":                 "normal",
		"Normal":           "normal",
		"Holofoil":         "holofoil",
		"Foil":             "holofoil",
		"Reverse Holofoil": "reverse_holofoil",
		"reverse-holofoil": "reverse_holofoil",
		"1st Edition":      "first_edition",
	}

	for _, table := range []string{"collection_items", "effective_price_rows", "market_items"} {
		if !db.Migrator().HasColumn(table, "variant") {
			continue
		}
		for from, to := range legacy {
			result := db.Exec(`UPDATE `+table+` SET variant = ? WHERE variant = ?`, to, from)
			if result.Error != nil {
				log.Warnf("Warning: failed to migrate %s variant %q: %v", table, from, result.Error)
				continue
			}
			if result.RowsAffected > 0 {
				log.Infof("Migrated %d %s rows from variant %q to %q", result.RowsAffected, table, from, to)
			}
		}
		result := db.Exec(`UPDATE ` + table + ` SET variant = 'normal' WHERE variant IS NULL`)
		if result.Error != nil {
			log.Warnf("Warning: failed to default %s variant: %v", table, result.Error)
		}
	}

	return nil
}
