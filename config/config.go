package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	perrors "sjsage522/pricemonitor/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Monitoring configuration
	CheckInterval    time.Duration
	RandomDelayMin   time.Duration
	RandomDelayMax   time.Duration
	RecoveryInterval time.Duration

	// Target site configuration
	WarmupURL      string
	AllowedHost    string
	AcceptLanguage string
	SessionCookies map[string]string

	// Debug configuration
	DebugMode         bool
	DebugResponseFile string

	// Product store
	DataFile string

	// AdminAddr is where the running monitor serves product management
	AdminAddr string

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache configuration
	MemcacheAddr   string
	ResultCacheTTL time.Duration

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		CheckInterval:        getSeconds("CHECK_INTERVAL", 3600),
		RandomDelayMin:       getSeconds("RANDOM_DELAY_MIN", 10),
		RandomDelayMax:       getSeconds("RANDOM_DELAY_MAX", 20),
		RecoveryInterval:     getSeconds("RECOVERY_INTERVAL", 60),
		WarmupURL:            getEnv("WARMUP_URL", "https://www.zalando.nl/"),
		AllowedHost:          getEnv("ALLOWED_HOST", "www.zalando.nl"),
		AcceptLanguage:       getEnv("ACCEPT_LANGUAGE", "nl-NL,nl;q=0.9,en-US;q=0.8,en;q=0.7"),
		SessionCookies:       getCookies("SESSION_COOKIES", "frsx-enabled=false;language=nl;country=NL"),
		DebugMode:            strings.ToLower(getEnv("DEBUG_MODE", "false")) == "true",
		DebugResponseFile:    getEnv("DEBUG_RESPONSE_FILE", "debug_response.html"),
		DataFile:             getEnv("DATA_FILE", "data/products.json"),
		AdminAddr:            getEnv("ADMIN_ADDR", "127.0.0.1:8085"),
		RedisAddr:            getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:              getInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "price_alerts"),
		RedisStreamMaxLength: getInt("REDIS_STREAM_MAX_LENGTH", 1000),
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", "localhost:11211"),
		ResultCacheTTL:       getSeconds("RESULT_CACHE_TTL_SECONDS", 300),
		Environment:          getEnv("PRICEMONITOR_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the monitor cannot run with
func (c *Config) Validate() error {
	if c.CheckInterval <= 0 {
		return perrors.NewConfiguration("CHECK_INTERVAL must be positive", nil)
	}
	if c.RandomDelayMin < 0 {
		return perrors.NewConfiguration("RANDOM_DELAY_MIN cannot be negative", nil)
	}
	if c.RandomDelayMin > c.RandomDelayMax {
		return perrors.NewConfiguration("RANDOM_DELAY_MIN cannot be greater than RANDOM_DELAY_MAX", nil)
	}
	if c.DataFile == "" {
		return perrors.NewConfiguration("DATA_FILE is required", nil)
	}
	if c.AdminAddr == "" {
		return perrors.NewConfiguration("ADMIN_ADDR is required", nil)
	}
	if c.RedisStream == "" {
		return perrors.NewConfiguration("REDIS_STREAM is required", nil)
	}
	return nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getInt(key string, defaultValue int) int {
	if i, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return i
	}
	return defaultValue
}

// getSeconds reads an integer number of seconds
func getSeconds(key string, defaultValue int) time.Duration {
	return time.Duration(getInt(key, defaultValue)) * time.Second
}

// getCookies parses "name=value;name=value" pairs
func getCookies(key, defaultValue string) map[string]string {
	cookies := make(map[string]string)
	for _, pair := range strings.Split(getEnv(key, defaultValue), ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || name == "" {
			continue
		}
		cookies[name] = value
	}
	return cookies
}
