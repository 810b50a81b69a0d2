// Package config centralises configuration parsing for the Strava export and reporting tools.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Environment variable names for the Strava application secrets.
const (
	EnvClientID     = "STRAVA_CLIENT_ID"
	EnvClientSecret = "STRAVA_CLIENT_SECRET"
	EnvRefreshToken = "STRAVA_REFRESH_TOKEN"
	EnvCode         = "STRAVA_CODE"
)

// MaxPageSize is the largest per_page value the activities endpoint accepts.
const MaxPageSize = 200

// Config captures runtime configuration values.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AuthCode     string

	TokenURL          string
	ActivitiesURL     string
	PageSize          int
	RequestsPerMinute int
	HTTPTimeout       time.Duration
	BaseDir           string
	DataDir           string
	LogDir            string
	SnapshotPrefix    string
	CorosFitDir       string
	CorosPrefix       string
	LogLevel          string
	LogToFile         bool
	TracesToStdout    bool
	HTTPAddress       string
	MetricsAddress    string
	PostgresURL       string
	KafkaBrokers      []string
	SnapshotTopic     string
	SchemaRegistryURL string
	ConsumerGroupID   string
	PushgatewayURL    string
	JWTSecret         string
	JWTIssuer         string
}

// Load reads environment variables into Config, applying sensible defaults for local runs.
func Load() Config {
	base := getEnv("BASE_DIR", ".")
	cfg := Config{
		ClientID:          strings.TrimSpace(os.Getenv(EnvClientID)),
		ClientSecret:      strings.TrimSpace(os.Getenv(EnvClientSecret)),
		RefreshToken:      strings.TrimSpace(os.Getenv(EnvRefreshToken)),
		AuthCode:          strings.TrimSpace(os.Getenv(EnvCode)),
		TokenURL:          getEnv("STRAVA_TOKEN_URL", "https://www.strava.com/oauth/token"),
		ActivitiesURL:     getEnv("STRAVA_ACTIVITIES_URL", "https://www.strava.com/api/v3/athlete/activities"),
		PageSize:          clampPageSize(getIntEnv("STRAVA_PAGE_SIZE", MaxPageSize)),
		RequestsPerMinute: getIntEnv("STRAVA_REQUESTS_PER_MINUTE", 0),
		HTTPTimeout:       getDurationEnv("STRAVA_HTTP_TIMEOUT", 0),
		BaseDir:           base,
		DataDir:           getEnv("DATA_DIR", "data"),
		LogDir:            getEnv("LOG_DIR", "logs"),
		SnapshotPrefix:    getEnv("SNAPSHOT_PREFIX", "strava_export"),
		CorosFitDir:       getEnv("COROS_FIT_DIR", "coros_data"),
		CorosPrefix:       getEnv("COROS_PREFIX", "coros_data"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogToFile:         getBoolEnv("LOG_TO_FILE", false),
		TracesToStdout:    getBoolEnv("OTEL_TRACES_STDOUT", false),
		HTTPAddress:       getEnv("HTTP_ADDRESS", ":8080"),
		MetricsAddress:    getEnv("METRICS_ADDRESS", ":9102"),
		PostgresURL:       getEnv("POSTGRES_URL", ""),
		SnapshotTopic:     getEnv("SNAPSHOT_TOPIC", "strava_snapshots"),
		SchemaRegistryURL: getEnv("SCHEMA_REGISTRY_URL", ""),
		ConsumerGroupID:   getEnv("CONSUMER_GROUP_ID", "strava-warehouse-loader"),
		PushgatewayURL:    getEnv("PUSHGATEWAY_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:         getEnv("JWT_ISSUER", "strava-activities"),
	}

	cfg.KafkaBrokers = splitAndTrim(getEnv("KAFKA_BROKERS", ""))
	return cfg
}

// Credentials holds the Strava application secrets needed for a token refresh.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// MissingEnvError reports required environment variables that were unset or empty.
type MissingEnvError struct {
	Keys []string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Keys, ", "))
}

// Credentials returns the refresh-grant secrets, or a *MissingEnvError naming every absent one.
func (c Config) Credentials() (Credentials, error) {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if c.RefreshToken == "" {
		missing = append(missing, EnvRefreshToken)
	}
	if len(missing) > 0 {
		return Credentials{}, &MissingEnvError{Keys: missing}
	}
	return Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RefreshToken: c.RefreshToken,
	}, nil
}

// Paths returns the directory layout derived from the configuration. Relative data and log
// directories are resolved against the base directory.
func (c Config) Paths() Paths {
	p := Paths{Base: c.BaseDir}
	p.Data = p.Resolve(c.DataDir)
	p.Logs = p.Resolve(c.LogDir)
	p.CorosFit = p.Resolve(c.CorosFitDir)
	p.CorosData = filepath.Join(p.Data, "coros")
	return p
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func clampPageSize(n int) int {
	if n <= 0 || n > MaxPageSize {
		return MaxPageSize
	}
	return n
}
