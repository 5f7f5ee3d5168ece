package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds application configuration
type Config struct {
	Env  string `toml:"env"`
	Port string `toml:"port"`

	Database DatabaseConfig `toml:"database"`
	Resolver ResolverConfig `toml:"resolver"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Vendors  VendorConfig   `toml:"vendors"`

	// FX holds fixed conversion rates to USD keyed by ISO 4217 code.
	FX map[string]float64 `toml:"fx"`

	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	Driver   string `toml:"driver"` // "sqlite" or "postgres"
	Path     string `toml:"path"`
	Host     string `toml:"host"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Name     string `toml:"name"`
	SSLMode  string `toml:"sslmode"`
	LogSQL   bool   `toml:"log_sql"`
}

// DSN returns the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// MigrateURL returns the postgres:// URL golang-migrate expects.
func (d DatabaseConfig) MigrateURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

// ResolverConfig tunes the live price resolver.
type ResolverConfig struct {
	CacheSize  int    `toml:"cache_size"`
	CacheTTL   string `toml:"cache_ttl"`   // e.g. "10m"
	StaleAfter string `toml:"stale_after"` // e.g. "168h"
}

// CacheTTLDuration parses CacheTTL, falling back to 10 minutes.
func (r ResolverConfig) CacheTTLDuration() time.Duration {
	return parseDuration(r.CacheTTL, 10*time.Minute)
}

// StaleAfterDuration parses StaleAfter, falling back to one week.
func (r ResolverConfig) StaleAfterDuration() time.Duration {
	return parseDuration(r.StaleAfter, 7*24*time.Hour)
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// PipelineConfig controls the nightly job sequence.
type PipelineConfig struct {
	Schedule         string   `toml:"schedule"`
	SchedulerEnabled bool     `toml:"scheduler_enabled"`
	Steps            []string `toml:"steps"`
	MoversWindows    []int    `toml:"movers_windows"`
}

// VendorConfig holds credentials and request pacing for vendor APIs.
type VendorConfig struct {
	PokemonTCGAPIKey string  `toml:"pokemontcg_api_key"`
	RatePerSecond    float64 `toml:"rate_per_second"`
	BatchSize        int     `toml:"batch_size"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	return &Config{
		Env:  "development",
		Port: "8080",
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Path:    "./tcg_valuation.db",
			Host:    "localhost",
			Port:    "5432",
			User:    "valuation",
			Name:    "valuation",
			SSLMode: "disable",
		},
		Resolver: ResolverConfig{
			CacheSize:  4096,
			CacheTTL:   "10m",
			StaleAfter: "168h",
		},
		Pipeline: PipelineConfig{
			Schedule:         "0 4 * * *",
			SchedulerEnabled: true,
			Steps:            []string{"sync", "rollup", "revalue"},
			MoversWindows:    []int{7, 30},
		},
		Vendors: VendorConfig{
			RatePerSecond: 8,
			BatchSize:     100,
		},
		FX: map[string]float64{
			"EUR": 1.08,
		},
		CORSAllowedOrigins: []string{"http://localhost:5173", "http://localhost:3000"},
	}
}

var appConfig *Config

// Load reads .env, then the optional TOML file named by CONFIG_FILE, then
// environment overrides.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	cfg := Default()

	path := getEnv("CONFIG_FILE", "./valuation.toml")
	if err := loadFile(path, cfg); err != nil {
		return nil, err
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appConfig = cfg
	return cfg, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// Parse decodes TOML into a copy of the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = getEnv("ENV", cfg.Env)
	cfg.Port = getEnv("PORT", cfg.Port)

	cfg.Database.Driver = getEnv("DB_DRIVER", cfg.Database.Driver)
	cfg.Database.Path = getEnv("DB_PATH", cfg.Database.Path)
	cfg.Database.Host = getEnv("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnv("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnv("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnv("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Name = getEnv("DB_NAME", cfg.Database.Name)
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", cfg.Database.SSLMode)
	cfg.Database.LogSQL = getEnvBool("DB_LOG_SQL", cfg.Database.LogSQL)

	cfg.Resolver.CacheSize = getEnvInt("RESOLVER_CACHE_SIZE", cfg.Resolver.CacheSize)
	cfg.Resolver.CacheTTL = getEnv("RESOLVER_CACHE_TTL", cfg.Resolver.CacheTTL)

	cfg.Pipeline.Schedule = getEnv("NIGHTLY_SCHEDULE", cfg.Pipeline.Schedule)
	cfg.Pipeline.SchedulerEnabled = getEnvBool("SCHEDULER_ENABLED", cfg.Pipeline.SchedulerEnabled)

	cfg.Vendors.PokemonTCGAPIKey = getEnv("POKEMONTCG_API_KEY", cfg.Vendors.PokemonTCGAPIKey)
	if v := os.Getenv("VENDOR_RATE_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Vendors.RatePerSecond = f
		} else {
			log.Printf("Warning: invalid VENDOR_RATE_PER_SECOND value '%s', keeping %.2f", v, cfg.Vendors.RatePerSecond)
		}
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = strings.Split(origins, ",")
	}
}

// Validate rejects configurations the services cannot run with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	for code, rate := range c.FX {
		if len(code) != 3 {
			return fmt.Errorf("fx rate key %q is not an ISO 4217 code", code)
		}
		if rate <= 0 {
			return fmt.Errorf("fx rate for %s must be positive", code)
		}
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d", key, v, defaultValue)
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}
