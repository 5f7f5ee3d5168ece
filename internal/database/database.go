package database

import (
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/codyseavey/tcg-valuation/internal/config"
	"github.com/codyseavey/tcg-valuation/internal/logger"
	"github.com/codyseavey/tcg-valuation/internal/models"
)

var DB *gorm.DB

// Initialize opens the configured database and brings its schema up to date.
// SQLite is migrated with AutoMigrate; Postgres with the embedded SQL migrations.
func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}

	logger.Get().Infof("Database connected successfully (%s)", cfg.Driver)

	switch cfg.Driver {
	case "postgres":
		if err := RunMigrations(cfg.MigrateURL()); err != nil {
			return nil, err
		}
	default:
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
	}

	if err := RunDataMigrations(db); err != nil {
		return nil, err
	}

	logger.Get().Info("Database migration completed")
	DB = db
	return db, nil
}

// Open connects without touching the schema.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.LogSQL {
		level = gormlogger.Info
	}
	gormCfg := &gorm.Config{Logger: gormlogger.Default.LogMode(level)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		db, err = gorm.Open(postgres.New(postgres.Config{
			DSN:                  cfg.DSN(),
			PreferSimpleProtocol: true,
		}), gormCfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying DB: %w", err)
	}
	if cfg.Driver == "postgres" {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(50)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return db, nil
}

// AutoMigrate creates or updates every table from the gorm models.
func AutoMigrate(db *gorm.DB) error {
	if err := cleanupDuplicateValuations(db); err != nil {
		return fmt.Errorf("failed to clean duplicate valuations: %w", err)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

func GetDB() *gorm.DB {
	return DB
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
