package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// TMDB
	TMDBAPIKey       string // empty disables enrichment
	TMDBBaseURL      string
	TMDBImageBaseURL string
	TMDBLanguage     string
	TMDBCacheTTL     time.Duration
	TMDBRateLimit    float64 // requests per second
	TMDBTimeout      time.Duration

	// Enrichment
	EnrichCooldown       time.Duration
	EnrichMaxCooldown    time.Duration
	EnrichConcurrency    int
	EnrichBatchSize      int
	EnrichMatchThreshold float64
	EnrichRefreshAfter   time.Duration // 0 disables refreshing resolved media
	EnrichPendingTimeout time.Duration
	EnrichSchedule       string // cron spec
	MaintenanceSchedule  string // cron spec

	// Resume & home
	ResumeCompletionThreshold float64 // percent
	HomeContinueLimit         int
	HomeRecentLimit           int
	HomeNewWindow             time.Duration
	DefaultProfile            string

	// Ingestion
	IngestWorkers int

	// Server
	ServerPort string

	// Paths
	ExcludeFile  string // $CONFIG_DIR/enrich-exclude.txt
	DatabaseFile string // $CONFIG_DIR/catalogarr.db

	// Logging
	LogLevel  string
	LogFormat string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	// Setup viper FIRST to load .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	// Set defaults
	v.SetDefault("TMDB_BASE_URL", "https://api.themoviedb.org/3")
	v.SetDefault("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p")
	v.SetDefault("TMDB_LANGUAGE", "en-US")
	v.SetDefault("TMDB_CACHE_TTL", "6h")
	v.SetDefault("TMDB_RATE_LIMIT", 20)
	v.SetDefault("TMDB_TIMEOUT", "15s")
	v.SetDefault("ENRICH_COOLDOWN", "6h")
	v.SetDefault("ENRICH_MAX_COOLDOWN", "168h")
	v.SetDefault("ENRICH_CONCURRENCY", 3)
	v.SetDefault("ENRICH_BATCH_SIZE", 50)
	v.SetDefault("ENRICH_MATCH_THRESHOLD", 0.8)
	v.SetDefault("ENRICH_REFRESH_AFTER", "720h")
	v.SetDefault("ENRICH_PENDING_TIMEOUT", "30m")
	v.SetDefault("ENRICH_SCHEDULE", "*/15 * * * *")
	v.SetDefault("MAINTENANCE_SCHEDULE", "0 4 * * *")
	v.SetDefault("RESUME_COMPLETION_THRESHOLD", 95)
	v.SetDefault("HOME_CONTINUE_LIMIT", 30)
	v.SetDefault("HOME_RECENT_LIMIT", 60)
	v.SetDefault("HOME_NEW_WINDOW", "168h")
	v.SetDefault("DEFAULT_PROFILE", "default")
	v.SetDefault("INGEST_WORKERS", 4)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	// NOW read CONFIG_DIR from viper (which has loaded .env file)
	configDir := v.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "catalogarr")
	} else {
		// Convert relative path to absolute path
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	databaseFile := v.GetString("DATABASE_FILE")
	if databaseFile == "" {
		databaseFile = filepath.Join(configDir, "catalogarr.db")
	}
	excludeFile := v.GetString("ENRICH_EXCLUDE_FILE")
	if excludeFile == "" {
		excludeFile = filepath.Join(configDir, "enrich-exclude.txt")
	}

	config := &Config{
		// TMDB
		TMDBAPIKey:       v.GetString("TMDB_API_KEY"),
		TMDBBaseURL:      v.GetString("TMDB_BASE_URL"),
		TMDBImageBaseURL: v.GetString("TMDB_IMAGE_BASE_URL"),
		TMDBLanguage:     v.GetString("TMDB_LANGUAGE"),
		TMDBCacheTTL:     v.GetDuration("TMDB_CACHE_TTL"),
		TMDBRateLimit:    v.GetFloat64("TMDB_RATE_LIMIT"),
		TMDBTimeout:      v.GetDuration("TMDB_TIMEOUT"),

		// Enrichment
		EnrichCooldown:       v.GetDuration("ENRICH_COOLDOWN"),
		EnrichMaxCooldown:    v.GetDuration("ENRICH_MAX_COOLDOWN"),
		EnrichConcurrency:    v.GetInt("ENRICH_CONCURRENCY"),
		EnrichBatchSize:      v.GetInt("ENRICH_BATCH_SIZE"),
		EnrichMatchThreshold: v.GetFloat64("ENRICH_MATCH_THRESHOLD"),
		EnrichRefreshAfter:   v.GetDuration("ENRICH_REFRESH_AFTER"),
		EnrichPendingTimeout: v.GetDuration("ENRICH_PENDING_TIMEOUT"),
		EnrichSchedule:       v.GetString("ENRICH_SCHEDULE"),
		MaintenanceSchedule:  v.GetString("MAINTENANCE_SCHEDULE"),

		// Resume & home
		ResumeCompletionThreshold: v.GetFloat64("RESUME_COMPLETION_THRESHOLD"),
		HomeContinueLimit:         v.GetInt("HOME_CONTINUE_LIMIT"),
		HomeRecentLimit:           v.GetInt("HOME_RECENT_LIMIT"),
		HomeNewWindow:             v.GetDuration("HOME_NEW_WINDOW"),
		DefaultProfile:            v.GetString("DEFAULT_PROFILE"),

		// Ingestion
		IngestWorkers: v.GetInt("INGEST_WORKERS"),

		// Server
		ServerPort: v.GetString("SERVER_PORT"),

		// Paths
		ExcludeFile:  excludeFile,
		DatabaseFile: databaseFile,

		// Logging
		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.ResumeCompletionThreshold <= 0 || c.ResumeCompletionThreshold > 100 {
		return fmt.Errorf("RESUME_COMPLETION_THRESHOLD must be in (0, 100], got %v", c.ResumeCompletionThreshold)
	}
	if c.EnrichMatchThreshold <= 0 || c.EnrichMatchThreshold > 1 {
		return fmt.Errorf("ENRICH_MATCH_THRESHOLD must be in (0, 1], got %v", c.EnrichMatchThreshold)
	}
	if c.EnrichCooldown <= 0 {
		return fmt.Errorf("ENRICH_COOLDOWN must be positive")
	}
	if c.EnrichMaxCooldown < c.EnrichCooldown {
		return fmt.Errorf("ENRICH_MAX_COOLDOWN must not be shorter than ENRICH_COOLDOWN")
	}
	if c.EnrichPendingTimeout <= 0 {
		return fmt.Errorf("ENRICH_PENDING_TIMEOUT must be positive")
	}
	if c.EnrichRefreshAfter < 0 {
		return fmt.Errorf("ENRICH_REFRESH_AFTER must not be negative")
	}
	if c.EnrichConcurrency < 1 {
		return fmt.Errorf("ENRICH_CONCURRENCY must be at least 1")
	}
	if c.EnrichBatchSize < 1 {
		return fmt.Errorf("ENRICH_BATCH_SIZE must be at least 1")
	}
	if c.HomeContinueLimit < 1 || c.HomeRecentLimit < 1 {
		return fmt.Errorf("HOME_CONTINUE_LIMIT and HOME_RECENT_LIMIT must be at least 1")
	}
	if c.HomeNewWindow <= 0 {
		return fmt.Errorf("HOME_NEW_WINDOW must be positive")
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be at least 1")
	}
	if c.TMDBRateLimit <= 0 {
		return fmt.Errorf("TMDB_RATE_LIMIT must be positive")
	}
	if c.DefaultProfile == "" {
		return fmt.Errorf("DEFAULT_PROFILE is required")
	}
	return nil
}

// EnrichmentEnabled reports whether a TMDB credential is configured
func (c *Config) EnrichmentEnabled() bool {
	return c.TMDBAPIKey != ""
}
