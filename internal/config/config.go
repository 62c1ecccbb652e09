package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Site     SiteConfig
	Crawler  CrawlerConfig
	Database DatabaseConfig
	Events   EventsConfig
	Status   StatusConfig
	Logging  LoggingConfig
}

type SiteConfig struct {
	BaseURL        string
	SearchPath     string
	QueryParam     string
	SearchTerm     string
	UserAgent      string
	AcceptLanguage string
	HTTPTimeout    time.Duration
}

type CrawlerConfig struct {
	CourtesyDelay       time.Duration
	RateLimitShortDelay time.Duration
	RateLimitLongDelay  time.Duration
	RateLimitThreshold  int
	MaxPages            int
	RespectRobots       bool
	RobotsAgent         string
}

type DatabaseConfig struct {
	URL         string
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	MaxConns    int32
	MaxConnLife time.Duration
	Migrate     bool
}

type EventsConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	Stream        string
}

type StatusConfig struct {
	Addr           string
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

const DefaultUserAgent = "Mozilla/5.0 (Linux x86_64; rv:115.0) Gecko/20100101 Firefox/115.0"

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real environment variables win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Site: SiteConfig{
			BaseURL:        getEnvOrDefault("SITE_BASE_URL", "https://www.amazon.com"),
			SearchPath:     getEnvOrDefault("SEARCH_PATH", "/s"),
			QueryParam:     getEnvOrDefault("SEARCH_QUERY_PARAM", "k"),
			SearchTerm:     getEnvOrDefault("SEARCH_TERM", "raspberry pi"),
			UserAgent:      getEnvOrDefault("USER_AGENT", DefaultUserAgent),
			AcceptLanguage: getEnvOrDefault("ACCEPT_LANGUAGE", ""),
			HTTPTimeout:    getDurationOrDefault("HTTP_TIMEOUT", 0),
		},
		Crawler: CrawlerConfig{
			CourtesyDelay:       getDurationOrDefault("COURTESY_DELAY", 20*time.Second),
			RateLimitShortDelay: getDurationOrDefault("RATE_LIMIT_SHORT_DELAY", 15*time.Second),
			RateLimitLongDelay:  getDurationOrDefault("RATE_LIMIT_LONG_DELAY", time.Hour),
			RateLimitThreshold:  getIntOrDefault("RATE_LIMIT_THRESHOLD", 10),
			MaxPages:            getIntOrDefault("MAX_PAGES", 0),
			RespectRobots:       getBoolOrDefault("RESPECT_ROBOTS", false),
			RobotsAgent:         getEnvOrDefault("ROBOTS_AGENT", "*"),
		},
		Database: DatabaseConfig{
			URL:         getEnvOrDefault("DATABASE_URL", ""),
			Host:        getEnvOrDefault("DB_HOST", "localhost"),
			Port:        getIntOrDefault("DB_PORT", 5432),
			User:        getEnvOrDefault("DB_USER", "postgres"),
			Password:    getEnvOrDefault("DB_PASSWORD", ""),
			DBName:      getEnvOrDefault("DB_NAME", "price_tracker"),
			SSLMode:     getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns:    int32(getIntOrDefault("DB_MAX_CONNS", 4)),
			MaxConnLife: getDurationOrDefault("DB_MAX_CONN_LIFE", time.Hour),
			Migrate:     getBoolOrDefault("DB_MIGRATE", true),
		},
		Events: EventsConfig{
			RedisAddr:     getEnvOrDefault("REDIS_ADDR", ""),
			RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
			RedisDB:       getIntOrDefault("REDIS_DB", 0),
			Stream:        getEnvOrDefault("EVENTS_STREAM", "stream:price_observations"),
		},
		Status: StatusConfig{
			Addr:           getEnvOrDefault("STATUS_ADDR", ""),
			AllowedOrigins: getStringSliceOrDefault("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*"}),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("SITE_BASE_URL must be an absolute URL, got %q", c.Site.BaseURL)
	}

	if strings.TrimSpace(c.Site.SearchTerm) == "" {
		return fmt.Errorf("SEARCH_TERM is required")
	}

	if c.Site.UserAgent == "" {
		return fmt.Errorf("USER_AGENT is required")
	}

	if c.Crawler.CourtesyDelay < 0 {
		return fmt.Errorf("COURTESY_DELAY cannot be negative")
	}

	if c.Crawler.RateLimitShortDelay <= 0 || c.Crawler.RateLimitLongDelay <= 0 {
		return fmt.Errorf("rate limit delays must be positive")
	}

	if c.Crawler.RateLimitShortDelay > c.Crawler.RateLimitLongDelay {
		return fmt.Errorf("RATE_LIMIT_SHORT_DELAY cannot be greater than RATE_LIMIT_LONG_DELAY")
	}

	if c.Crawler.RateLimitThreshold < 1 {
		return fmt.Errorf("RATE_LIMIT_THRESHOLD must be at least 1")
	}

	if c.Crawler.MaxPages < 0 {
		return fmt.Errorf("MAX_PAGES cannot be negative")
	}

	if c.Database.URL == "" && c.Database.Host == "" {
		return fmt.Errorf("either DATABASE_URL or DB_HOST is required")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
