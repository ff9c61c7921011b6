package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultAppName        = "SangoID"
	defaultAppEnv         = "development"
	defaultPort           = "8080"
	defaultLogLevel       = "info"
	defaultLevelName      = "basic-kyc-level"
	defaultProviderURL    = "https://api.sandbox.sumsub.com"
	defaultRequestTimeout = 30 * time.Second
	defaultShutdownDelay  = 10 * time.Second
	defaultIdempotencyTTL = 24 * time.Hour

	requestSecondsEnvVar   = "REQUEST_TIMEOUT_SECONDS"
	requestDurationEnvVar  = "REQUEST_TIMEOUT"
	idemTTLSecondsEnvVar   = "IDEMPOTENCY_TTL_SECONDS"
	idemTTLDurEnvVar       = "IDEMPOTENCY_TTL"
	shutdownSecondsEnvVar  = "SHUTDOWN_TIMEOUT_SECONDS"
	shutdownDurationEnvVar = "SHUTDOWN_TIMEOUT"
)

// Config captures application runtime configuration loaded from environment variables.
type Config struct {
	AppName  string
	AppEnv   string
	Port     string
	LogLevel string

	MongoURL      string
	MongoDatabase string
	RedisURL      string

	// APIKey authenticates inbound callers on protected routes.
	APIKey string

	// Remote verification provider settings.
	ProviderBaseURL       string
	ProviderAppToken      string
	ProviderSecretKey     string
	ProviderWebhookSecret string
	ProviderLevelName     string

	RequestTimeout time.Duration
	ShutdownPeriod time.Duration
	IdempotencyTTL time.Duration
}

// Load reads configuration values from the environment and populates a Config instance.
func Load() (Config, error) {
	cfg := Config{
		AppName:               getEnv("APP_NAME", defaultAppName),
		AppEnv:                getEnv("APP_ENV", defaultAppEnv),
		Port:                  getEnv("PORT", defaultPort),
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		MongoURL:              os.Getenv("MONGO_URL"),
		MongoDatabase:         getEnv("MONGO_DATABASE", "verification_db"),
		RedisURL:              os.Getenv("REDIS_URL"),
		APIKey:                os.Getenv("API_KEY"),
		ProviderBaseURL:       strings.TrimRight(getEnv("PROVIDER_BASE_URL", defaultProviderURL), "/"),
		ProviderAppToken:      os.Getenv("PROVIDER_APP_TOKEN"),
		ProviderSecretKey:     os.Getenv("PROVIDER_SECRET_KEY"),
		ProviderWebhookSecret: os.Getenv("PROVIDER_WEBHOOK_SECRET"),
		ProviderLevelName:     getEnv("PROVIDER_LEVEL_NAME", defaultLevelName),
	}

	var err error
	if cfg.RequestTimeout, err = durationFromEnv(requestSecondsEnvVar, requestDurationEnvVar, defaultRequestTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ShutdownPeriod, err = durationFromEnv(shutdownSecondsEnvVar, shutdownDurationEnvVar, defaultShutdownDelay); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = durationFromEnv(idemTTLSecondsEnvVar, idemTTLDurEnvVar, defaultIdempotencyTTL); err != nil {
		return Config{}, err
	}

	if cfg.MongoURL == "" {
		return Config{}, fmt.Errorf("MONGO_URL must be set")
	}
	if cfg.ProviderAppToken == "" {
		return Config{}, fmt.Errorf("PROVIDER_APP_TOKEN must be set")
	}
	if cfg.ProviderSecretKey == "" {
		return Config{}, fmt.Errorf("PROVIDER_SECRET_KEY must be set")
	}

	return cfg, nil
}

// Address returns the listen address in the format Fiber expects.
func (c Config) Address() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return fmt.Sprintf(":%s", c.Port)
}

func durationFromEnv(secondsVar, durationVar string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(secondsVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", secondsVar, err)
		}
		return time.Duration(seconds) * time.Second, nil
	}
	if v := os.Getenv(durationVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", durationVar, err)
		}
		return d, nil
	}
	return fallback, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
