package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no stray .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://www.amazon.com", cfg.Site.BaseURL)
	assert.Equal(t, "raspberry pi", cfg.Site.SearchTerm)
	assert.Equal(t, DefaultUserAgent, cfg.Site.UserAgent)
	assert.Equal(t, 20*time.Second, cfg.Crawler.CourtesyDelay)
	assert.Equal(t, 15*time.Second, cfg.Crawler.RateLimitShortDelay)
	assert.Equal(t, time.Hour, cfg.Crawler.RateLimitLongDelay)
	assert.Equal(t, 10, cfg.Crawler.RateLimitThreshold)
	assert.Zero(t, cfg.Crawler.MaxPages)
	assert.False(t, cfg.Crawler.RespectRobots)
	assert.True(t, cfg.Database.Migrate)
	assert.Empty(t, cfg.Events.RedisAddr)
	assert.Empty(t, cfg.Status.Addr)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SITE_BASE_URL", "https://example.com")
	t.Setenv("SEARCH_PATH", "/search")
	t.Setenv("SEARCH_QUERY_PARAM", "query")
	t.Setenv("SEARCH_TERM", "pi zero")
	t.Setenv("COURTESY_DELAY", "5s")
	t.Setenv("RATE_LIMIT_THRESHOLD", "3")
	t.Setenv("MAX_PAGES", "12")
	t.Setenv("RESPECT_ROBOTS", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("DB_MAX_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", cfg.Site.BaseURL)
	assert.Equal(t, "/search", cfg.Site.SearchPath)
	assert.Equal(t, "query", cfg.Site.QueryParam)
	assert.Equal(t, "pi zero", cfg.Site.SearchTerm)
	assert.Equal(t, 5*time.Second, cfg.Crawler.CourtesyDelay)
	assert.Equal(t, 3, cfg.Crawler.RateLimitThreshold)
	assert.Equal(t, 12, cfg.Crawler.MaxPages)
	assert.True(t, cfg.Crawler.RespectRobots)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Status.AllowedOrigins)
	assert.Equal(t, int32(4), cfg.Database.MaxConns, "invalid values fall back to the default")
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SEARCH_TERM=arduino\nMAX_PAGES=2\n"), 0o644))
	t.Setenv("MAX_PAGES", "5")
	// godotenv sets SEARCH_TERM for the whole process
	t.Cleanup(func() { os.Unsetenv("SEARCH_TERM") })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "arduino", cfg.Site.SearchTerm)
	assert.Equal(t, 5, cfg.Crawler.MaxPages, "environment wins over .env")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Site: SiteConfig{BaseURL: "https://example.com", SearchTerm: "pi", UserAgent: DefaultUserAgent},
			Crawler: CrawlerConfig{
				CourtesyDelay:       time.Second,
				RateLimitShortDelay: time.Second,
				RateLimitLongDelay:  time.Minute,
				RateLimitThreshold:  10,
			},
			Database: DatabaseConfig{Host: "localhost"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative base url", func(c *Config) { c.Site.BaseURL = "example.com" }},
		{"blank search term", func(c *Config) { c.Site.SearchTerm = "  " }},
		{"missing user agent", func(c *Config) { c.Site.UserAgent = "" }},
		{"negative courtesy delay", func(c *Config) { c.Crawler.CourtesyDelay = -time.Second }},
		{"zero short delay", func(c *Config) { c.Crawler.RateLimitShortDelay = 0 }},
		{"short above long", func(c *Config) { c.Crawler.RateLimitShortDelay = time.Hour }},
		{"zero threshold", func(c *Config) { c.Crawler.RateLimitThreshold = 0 }},
		{"negative max pages", func(c *Config) { c.Crawler.MaxPages = -1 }},
		{"no database", func(c *Config) { c.Database.Host = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
