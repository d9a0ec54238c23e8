package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Source drivers.
const (
	DriverCSV    = "csv"
	DriverSQLite = "sqlite"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Record source.
	DataPath       string
	SourceDriver   string
	SQLiteTable    string
	MaxRows        int
	Location       *time.Location
	SourceCacheTTL time.Duration

	// Rendering defaults.
	LocaleFile string
	MapStyle   string

	// Optional view snapshot publishing.
	KafkaBrokers   []string
	KafkaViewTopic string
	KafkaEnabled   bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	maxRows, err := parseMaxRows()
	if err != nil {
		return nil, err
	}

	tz := sharedcfg.EnvOrDefault("TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", tz, err)
	}

	cacheTTL, err := time.ParseDuration(sharedcfg.EnvOrDefault("SOURCE_CACHE_TTL", "10m"))
	if err != nil || cacheTTL <= 0 {
		return nil, errors.New("invalid SOURCE_CACHE_TTL")
	}

	brokers := sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		DataPath:       sharedcfg.EnvOrDefault("DATA_PATH", "./data/full_col.csv"),
		SourceDriver:   strings.ToLower(sharedcfg.EnvOrDefault("SOURCE_DRIVER", DriverCSV)),
		SQLiteTable:    sharedcfg.EnvOrDefault("SQLITE_TABLE", "tickets"),
		MaxRows:        maxRows,
		Location:       loc,
		SourceCacheTTL: cacheTTL,

		LocaleFile: os.Getenv("LOCALE_FILE"),
		MapStyle:   strings.ToLower(sharedcfg.EnvOrDefault("MAP_STYLE", "dark")),

		KafkaBrokers:   brokers,
		KafkaViewTopic: sharedcfg.EnvOrDefault("KAFKA_VIEW_TOPIC", "civic-map-views"),
		KafkaEnabled:   kafkaEnabled,
	}

	if cfg.DataPath == "" {
		return nil, errors.New("DATA_PATH is required")
	}
	if cfg.SourceDriver != DriverCSV && cfg.SourceDriver != DriverSQLite {
		return nil, fmt.Errorf("invalid SOURCE_DRIVER %q: want csv or sqlite", cfg.SourceDriver)
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

// parseMaxRows bounds the working set so clustering stays interactive.
func parseMaxRows() (int, error) {
	s := os.Getenv("MAX_ROWS")
	if s == "" {
		return 5000, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 100000 {
		return 0, fmt.Errorf("invalid MAX_ROWS %q: must be between 1 and 100000", s)
	}
	return n, nil
}
