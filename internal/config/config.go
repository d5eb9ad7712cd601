package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/erenuysaldev/Erotify/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port                string
	DBPath              string
	OutputDir           string
	CatalogURL          string
	SpotDLPath          string
	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyAuthURL      string
	SpotifyAPIURL       string
	LogLevel            string
	LogFormat           string
	CORSOrigins         []string
	Workers             int
	DownloadTimeout     time.Duration
	ScanWindow          time.Duration
	CatalogTimeout      time.Duration
	SearchCacheTTL      time.Duration

	parseErrors []string
}

// Load loads configuration from environment variables with defaults.
// A .env file in the working directory is applied first when present;
// variables already set in the environment take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", constants.DefaultPort),
		DBPath:              getEnv("DB_PATH", constants.DefaultDBPath),
		OutputDir:           getEnv("OUTPUT_DIR", constants.DefaultOutputDir),
		CatalogURL:          strings.TrimRight(getEnv("CATALOG_URL", constants.DefaultCatalogURL), "/"),
		SpotDLPath:          getEnv("SPOTDL_PATH", constants.DefaultSpotDLPath),
		SpotifyClientID:     getEnv("SPOTIFY_CLIENT_ID", ""),
		SpotifyClientSecret: getEnv("SPOTIFY_CLIENT_SECRET", ""),
		SpotifyAuthURL:      getEnv("SPOTIFY_AUTH_URL", constants.DefaultSpotifyAuthURL),
		SpotifyAPIURL:       strings.TrimRight(getEnv("SPOTIFY_API_URL", constants.DefaultSpotifyAPIURL), "/"),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		CORSOrigins:         splitList(getEnv("CORS_ORIGINS", constants.DefaultCORSOrigins)),
	}

	cfg.Workers = cfg.getEnvInt("WORKERS", constants.DefaultWorkers)
	cfg.DownloadTimeout = cfg.getEnvDuration("DOWNLOAD_TIMEOUT", constants.DefaultDownloadTimeout)
	cfg.ScanWindow = cfg.getEnvDuration("SCAN_WINDOW", constants.DefaultScanWindow)
	cfg.CatalogTimeout = cfg.getEnvDuration("CATALOG_TIMEOUT", constants.DefaultCatalogTimeout)
	cfg.SearchCacheTTL = cfg.getEnvDuration("SEARCH_CACHE_TTL", constants.DefaultCacheTTL)

	return cfg
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	errors := append([]string(nil), c.parseErrors...)

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	if c.DBPath == "" {
		errors = append(errors, "DB_PATH cannot be empty")
	}

	if c.OutputDir == "" {
		errors = append(errors, "OUTPUT_DIR cannot be empty")
	}

	if c.SpotDLPath == "" {
		errors = append(errors, "SPOTDL_PATH cannot be empty")
	}

	for name, raw := range map[string]string{
		"CATALOG_URL":      c.CatalogURL,
		"SPOTIFY_AUTH_URL": c.SpotifyAuthURL,
		"SPOTIFY_API_URL":  c.SpotifyAPIURL,
	} {
		if raw == "" {
			errors = append(errors, fmt.Sprintf("%s cannot be empty", name))
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, fmt.Sprintf("%s is not a valid URL: %s", name, raw))
		}
	}

	// Credentials are optional, but half a pair is a mistake.
	if (c.SpotifyClientID == "") != (c.SpotifyClientSecret == "") {
		errors = append(errors, "SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET must be set together")
	}

	if c.Workers < 1 {
		errors = append(errors, fmt.Sprintf("WORKERS must be at least 1, got: %d", c.Workers))
	}

	if c.DownloadTimeout <= 0 {
		errors = append(errors, "DOWNLOAD_TIMEOUT must be positive")
	}
	if c.ScanWindow <= 0 {
		errors = append(errors, "SCAN_WINDOW must be positive")
	}
	if c.CatalogTimeout <= 0 {
		errors = append(errors, "CATALOG_TIMEOUT must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func (c *Config) getEnvInt(key string, fallback int) int {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a valid number, got: %s", key, raw))
		return fallback
	}
	return n
}

// getEnvDuration accepts Go durations ("5m") or a bare number of seconds ("300").
func (c *Config) getEnvDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a duration, got: %s", key, raw))
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
