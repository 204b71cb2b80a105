package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries everything the binaries need besides the database
// settings, which live with the database package.
type Config struct {
	// CoinMarketCap upstream
	CMCAPIKey   string
	CMCBaseURL  string
	AssetIDs    []string
	FetchTimeout time.Duration

	// Servers
	HTTPPort    int
	MetricsPort int

	// Snapshot cache
	RedisURL    string
	SnapshotTTL time.Duration

	// Collector / archival schedules
	PollInterval  time.Duration
	RetentionDays int
}

// The original tracker's fixed watchlist: BTC, ETH, XRP, ADA, TRX, SOL,
// USDT, TRUMP-adjacent alts, DASH, TON, LTC, MNT by CoinMarketCap ID.
const defaultAssetIDs = "1,1027,52,825,1839,5426,3408,1958,74,2010,2,6636"

// Load reads environment variables and application flags (via a local
// FlagSet), strips out any -test.* flags, and validates required fields.
func Load() (*Config, error) {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)

	var httpPort, metricsPort int
	var redisURL string
	fs.IntVar(&httpPort, "port", 8080, "HTTP listen port")
	fs.IntVar(&metricsPort, "metrics-port", 8082, "Metrics server port")
	fs.StringVar(&redisURL, "redis", os.Getenv("REDIS_URL"), "Redis connection URL")

	var appArgs []string
	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, "-test.") {
			continue
		}
		appArgs = append(appArgs, arg)
	}
	if err := fs.Parse(appArgs); err != nil {
		return nil, err
	}

	cfg := &Config{
		CMCAPIKey:     os.Getenv("CMC_API_KEY"),
		CMCBaseURL:    getEnvOrDefault("CMC_BASE_URL", "https://pro-api.coinmarketcap.com"),
		AssetIDs:      splitAndTrim(getEnvOrDefault("ASSET_IDS", defaultAssetIDs), ","),
		FetchTimeout:  getDurationEnvOrDefault("FETCH_TIMEOUT", 10*time.Second),
		HTTPPort:      httpPort,
		MetricsPort:   metricsPort,
		RedisURL:      redisURL,
		SnapshotTTL:   getDurationEnvOrDefault("SNAPSHOT_TTL", time.Minute),
		PollInterval:  getDurationEnvOrDefault("POLL_INTERVAL", 5*time.Minute),
		RetentionDays: getEnvIntOrDefault("RETENTION_DAYS", 90),
	}

	// PORT env overrides the flag, matching container conventions.
	if portEnv := os.Getenv("PORT"); portEnv != "" {
		portVal, err := strconv.Atoi(portEnv)
		if err != nil {
			return nil, fmt.Errorf("invalid PORT env var: %v", err)
		}
		cfg.HTTPPort = portVal
	}

	if cfg.CMCAPIKey == "" {
		return nil, fmt.Errorf("missing required config: CMC_API_KEY")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("missing required config: REDIS_URL or -redis")
	}
	if len(cfg.AssetIDs) == 0 {
		return nil, fmt.Errorf("no asset IDs configured")
	}
	if cfg.RetentionDays <= 0 {
		return nil, fmt.Errorf("RETENTION_DAYS must be positive")
	}

	return cfg, nil
}

// splitAndTrim splits s on sep, trims spaces, and drops empty entries.
func splitAndTrim(s, sep string) []string {
	parts := []string{}
	for _, p := range strings.Split(s, sep) {
		if t := strings.TrimSpace(p); t != "" {
			parts = append(parts, t)
		}
	}
	return parts
}

// getEnvOrDefault returns environment variable value or default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvIntOrDefault returns environment variable as int or default
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnvOrDefault returns environment variable as duration or default
func getDurationEnvOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
