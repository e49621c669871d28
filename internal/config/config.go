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

const dateLayout = "2006-01-02"

// Config holds all run settings, populated from environment variables.
type Config struct {
	// Acquisition period, inclusive.
	StartDate time.Time
	EndDate   time.Time

	// Provider request policy.
	ChunkYears      int
	MaxAttempts     int
	RetryDelay      time.Duration
	RequestInterval time.Duration
	StateInterval   time.Duration
	RequestTimeout  time.Duration
	Workers         int
	SkipHealthCheck bool

	States       []string
	ZonesFile    string
	PowerBaseURL string
	CO2URL       string
	CO2Enabled   bool

	// Sinks.
	OutputDir      string
	ParquetEnabled bool
	SQLitePath     string
	KafkaBrokers   []string
	KafkaTopic     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		PowerBaseURL:    sharedcfg.EnvOrDefault("POWER_BASE_URL", "https://power.larc.nasa.gov"),
		CO2URL:          sharedcfg.EnvOrDefault("CO2_URL", "https://gml.noaa.gov/webdata/ccgg/trends/co2/co2_mm_mlo.txt"),
		ZonesFile:       os.Getenv("ZONES_FILE"),
		OutputDir:       sharedcfg.EnvOrDefault("OUTPUT_DIR", "project_data/raw_data/climate"),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "climate-monthly-records"),
		HTTPAddr:        os.Getenv("HTTP_ADDR"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		States:          parseList(os.Getenv("STATES")),
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(v)
	}

	if cfg.StartDate, err = parseDate("START_DATE", "1990-01-01"); err != nil {
		return nil, err
	}
	if cfg.EndDate, err = parseDate("END_DATE", "2023-12-31"); err != nil {
		return nil, err
	}
	if cfg.ChunkYears, err = parseInt("CHUNK_YEARS", 3, 1, 10); err != nil {
		return nil, err
	}
	if cfg.MaxAttempts, err = parseInt("MAX_ATTEMPTS", 3, 1, 20); err != nil {
		return nil, err
	}
	if cfg.Workers, err = parseInt("WORKERS", 1, 1, 64); err != nil {
		return nil, err
	}
	if cfg.RetryDelay, err = parseDuration("RETRY_DELAY", "10s", true); err != nil {
		return nil, err
	}
	if cfg.RequestInterval, err = parseDuration("REQUEST_INTERVAL", "1s", true); err != nil {
		return nil, err
	}
	if cfg.StateInterval, err = parseDuration("STATE_INTERVAL", "3s", true); err != nil {
		return nil, err
	}
	if cfg.RequestTimeout, err = parseDuration("REQUEST_TIMEOUT", "180s", false); err != nil {
		return nil, err
	}
	if cfg.CO2Enabled, err = parseBool("CO2_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.ParquetEnabled, err = parseBool("PARQUET_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.SkipHealthCheck, err = parseBool("SKIP_HEALTHCHECK", false); err != nil {
		return nil, err
	}

	if cfg.EndDate.Before(cfg.StartDate) {
		return nil, errors.New("END_DATE must not be before START_DATE")
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("OUTPUT_DIR is required")
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func parseDate(key, def string) (time.Time, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", key, s)
	}
	return t, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s %q: must be an integer in [%d, %d]", key, s, lo, hi)
	}
	return n, nil
}

func parseDuration(key, def string, allowZero bool) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: must be true or false", key, s)
	}
	return b, nil
}

func parseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
