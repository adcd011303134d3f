package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

// PlacesConfig configures the canonical places provider.
type PlacesConfig struct {
	APIKey        string
	BaseURL       string
	Region        string
	DefaultCity   string
	RadiusMeters  int
	Timeout       time.Duration
	PhotoMaxWidth int
	CacheTTL      time.Duration
}

// MetadataConfig configures the social link metadata fetcher.
type MetadataConfig struct {
	MicrolinkURL string
	Timeout      time.Duration
}

// AIConfig configures caption extraction through Gemini.
type AIConfig struct {
	GeminiAPIKey string
	Model        string
	Timeout      time.Duration
}

type AuthConfig struct {
	JWTSecret string
}

// BackfillConfig configures the periodic refresh of missing photos and hours.
// A zero Interval disables the background loop.
type BackfillConfig struct {
	Interval  time.Duration
	Delay     time.Duration
	BatchSize int
}

type Config struct {
	Repositories RepositoriesConfig
	ServerPort   string
	MetricsAddr  string
	PprofAddr    string
	OTLPEndpoint string
	LogLevel     string
	Places       PlacesConfig
	Metadata     MetadataConfig
	AI           AIConfig
	Auth         AuthConfig
	Backfill     BackfillConfig
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5454"),
				DB:       getEnvOrDefault("POSTGRES_DB", "radar"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: int32(getIntOrDefault("POSTGRES_MAX_CONNS", 30)),
				MinConns: int32(getIntOrDefault("POSTGRES_MIN_CONNS", 5)),
			},
		},
		ServerPort:   getEnvOrDefault("SERVER_PORT", "8091"),
		MetricsAddr:  getEnvOrDefault("METRICS_ADDR", ":9092"),
		PprofAddr:    getEnvOrDefault("PPROF_ADDR", ":6060"),
		OTLPEndpoint: getEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
		Places: PlacesConfig{
			APIKey:        getEnvOrDefault("GOOGLE_PLACES_API_KEY", ""),
			BaseURL:       getEnvOrDefault("GOOGLE_PLACES_BASE_URL", "https://maps.googleapis.com/maps/api/place"),
			Region:        getEnvOrDefault("GOOGLE_PLACES_REGION", "hk"),
			DefaultCity:   getEnvOrDefault("DEFAULT_CITY", "Hong Kong"),
			RadiusMeters:  getIntOrDefault("PLACES_BIAS_RADIUS_METERS", 500),
			Timeout:       getDurationOrDefault("PLACES_TIMEOUT", 10*time.Second),
			PhotoMaxWidth: getIntOrDefault("PLACES_PHOTO_MAX_WIDTH", 800),
			CacheTTL:      getDurationOrDefault("PLACES_CACHE_TTL", 10*time.Minute),
		},
		Metadata: MetadataConfig{
			MicrolinkURL: getEnvOrDefault("MICROLINK_URL", "https://api.microlink.io"),
			Timeout:      getDurationOrDefault("METADATA_TIMEOUT", 15*time.Second),
		},
		AI: AIConfig{
			GeminiAPIKey: getEnvOrDefault("GEMINI_API_KEY", ""),
			Model:        getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash"),
			Timeout:      getDurationOrDefault("AI_TIMEOUT", 20*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnvOrDefault("JWT_SECRET_KEY", ""),
		},
		Backfill: BackfillConfig{
			Interval:  getDurationOrDefault("BACKFILL_INTERVAL", 0),
			Delay:     getDurationOrDefault("BACKFILL_DELAY", 200*time.Millisecond),
			BatchSize: getIntOrDefault("BACKFILL_BATCH_SIZE", 100),
		},
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
