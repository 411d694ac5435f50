package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type AppConfig struct {
	Env      string `validate:"required"`
	LogLevel string `validate:"required,oneof=trace debug info warn warning error fatal panic"`
	Port     string `validate:"required,numeric"`

	OpenWeatherAPIKey  string        `validate:"required"`
	OpenWeatherBaseURL string        `validate:"required,url"`
	HTTPTimeout        time.Duration `validate:"gt=0"`

	// PollInterval controls how often the selected city is refreshed.
	PollInterval time.Duration `validate:"gt=0"`
	DefaultCity  string        `validate:"required"`

	ReachabilityAddr     string        `validate:"required,hostname_port"`
	ReachabilityInterval time.Duration `validate:"gt=0"`
	ReachabilityTimeout  time.Duration `validate:"gt=0"`

	// BreakerEnabled lets repeated failures short-circuit requests. Off by
	// default so every fetch and retry reaches the provider.
	BreakerEnabled     bool
	BreakerMaxFailures uint32        `validate:"gt=0"`
	BreakerOpenTimeout time.Duration `validate:"gt=0"`
}

// Load reads configuration from the environment (and an optional .env file)
// with sensible defaults.
func Load() (*AppConfig, error) {
	// A missing .env file is fine; the environment may carry everything.
	_ = godotenv.Load()

	cfg := &AppConfig{
		Env:                getenvDefault("APP_ENV", "development"),
		LogLevel:           getenvDefault("LOG_LEVEL", "info"),
		Port:               getenvDefault("PORT", "8080"),
		OpenWeatherAPIKey:  os.Getenv("OPENWEATHER_API_KEY"),
		OpenWeatherBaseURL: getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		DefaultCity:        getenvDefault("DEFAULT_CITY", "london"),
		ReachabilityAddr:   getenvDefault("REACHABILITY_ADDR", "api.openweathermap.org:443"),
	}

	var err error
	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"POLL_INTERVAL", "60s", &cfg.PollInterval},
		{"REACHABILITY_INTERVAL", "5s", &cfg.ReachabilityInterval},
		{"REACHABILITY_TIMEOUT", "3s", &cfg.ReachabilityTimeout},
		{"BREAKER_OPEN_TIMEOUT", "30s", &cfg.BreakerOpenTimeout},
	}
	for _, d := range durations {
		if *d.dst, err = getenvDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if cfg.BreakerEnabled, err = getenvBool("BREAKER_ENABLED", false); err != nil {
		return nil, err
	}
	maxFailures, err := getenvInt("BREAKER_MAX_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	if maxFailures < 0 {
		return nil, fmt.Errorf("invalid BREAKER_MAX_FAILURES: must not be negative")
	}
	cfg.BreakerMaxFailures = uint32(maxFailures)

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
