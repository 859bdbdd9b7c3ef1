package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/dealbridge/pkg/errors"
)

// DefaultCPQBaseURL is the destination the deal fields are forwarded to
const DefaultCPQBaseURL = "https://your-cpq-website.com/hubspot-cpq-setup"

// Config represents the application configuration
type Config struct {
	// CPQ destination
	CPQBaseURL string

	// Page driving
	DealPageURL    string
	DealPageCookie string
	ChromeAddr     string
	ChromeHeadless bool
	RecheckDelay   time.Duration
	ButtonLabel    string

	// Redis launch events (disabled when RedisAddr is empty)
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamMaxLength int

	// Memcache duplicate-launch suppression (disabled when MemcacheAddr is empty)
	MemcacheAddr string
	LaunchBlock  time.Duration

	// HubSpot API enrichment (disabled when HubSpotAPIKey is empty)
	HubSpotAPIKey  string
	HubSpotBaseURL string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	redisMaxLen, _ := strconv.Atoi(getEnv("REDIS_STREAM_MAX_LENGTH", "1000"))
	recheckMs, _ := strconv.Atoi(getEnv("BUTTON_RECHECK_MS", "2000"))
	blockSeconds, _ := strconv.Atoi(getEnv("LAUNCH_BLOCK_SECONDS", "0"))
	headless, _ := strconv.ParseBool(getEnv("CHROME_HEADLESS", "false"))

	return &Config{
		CPQBaseURL:           getEnv("CPQ_BASE_URL", DefaultCPQBaseURL),
		DealPageURL:          getEnv("DEAL_PAGE_URL", ""),
		DealPageCookie:       getEnv("DEAL_PAGE_COOKIE", ""),
		ChromeAddr:           getEnv("CHROME_ADDR", ""),
		ChromeHeadless:       headless,
		RecheckDelay:         time.Duration(recheckMs) * time.Millisecond,
		ButtonLabel:          getEnv("BUTTON_LABEL", "🚀 Open CPQ Tool"),
		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              redisDB,
		RedisStream:          getEnv("REDIS_STREAM", "dealbridge:launches"),
		RedisStreamMaxLength: redisMaxLen,
		MemcacheAddr:         getEnv("MEMCACHE_ADDR", ""),
		LaunchBlock:          time.Duration(blockSeconds) * time.Second,
		HubSpotAPIKey:        getEnv("HUBSPOT_API_KEY", ""),
		HubSpotBaseURL:       getEnv("HUBSPOT_BASE_URL", "https://api.hubapi.com"),
		Environment:          getEnv("DEALBRIDGE_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration for values the bridge cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.CPQBaseURL)
	if err != nil {
		return errors.NewConfiguration("invalid CPQ_BASE_URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return errors.NewConfiguration("CPQ_BASE_URL must be an absolute http(s) URL", nil)
	}
	if c.RecheckDelay <= 0 {
		return errors.NewConfiguration("BUTTON_RECHECK_MS must be positive", nil)
	}
	if c.MemcacheAddr != "" && c.LaunchBlock <= 0 {
		return errors.NewConfiguration("LAUNCH_BLOCK_SECONDS must be positive when MEMCACHE_ADDR is set", nil)
	}
	if c.RedisAddr != "" && strings.TrimSpace(c.RedisStream) == "" {
		return errors.NewConfiguration("REDIS_STREAM must not be empty when REDIS_ADDR is set", nil)
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
