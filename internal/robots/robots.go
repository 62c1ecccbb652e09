package robots

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/temoto/robotstxt"
)

// Checker decides whether the search path may be crawled according to the
// site's robots.txt. Network and parse failures allow the crawl; a 4xx
// response allows everything and a 5xx response disallows everything.
type Checker struct {
	client    *http.Client
	baseURL   string
	userAgent string
	agent     string
	logger    *slog.Logger
}

// NewChecker builds a checker. userAgent is sent with the robots.txt request;
// agent selects the robots.txt group to test against.
func NewChecker(client *http.Client, baseURL, userAgent, agent string, logger *slog.Logger) *Checker {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		client:    client,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		agent:     agent,
		logger:    logger.With("component", "robots"),
	}
}

func (c *Checker) Allowed(ctx context.Context, path string) bool {
	data, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("robots.txt unavailable, assuming allowed", "error", err)
		return true
	}
	return data.TestAgent(path, c.agent)
}

func (c *Checker) fetch(ctx context.Context) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to parse robots.txt: %w", err)
	}

	return data, nil
}
