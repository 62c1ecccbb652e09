package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/maltedev/search-price-tracker/internal/models"
	"github.com/maltedev/search-price-tracker/internal/parser"
	"github.com/maltedev/search-price-tracker/internal/ratelimit"
)

type StopReason string

const (
	StopEmpty     StopReason = "empty_page"
	StopTransport StopReason = "transport_error"
	StopParse     StopReason = "parse_error"
	StopMaxPages  StopReason = "max_pages"
	StopCanceled  StopReason = "canceled"
)

type CrawlOptions struct {
	CourtesyDelay time.Duration
	Backoff       ratelimit.Backoff
	// MaxPages caps the pages taken per sweep. Zero means no cap.
	MaxPages int
}

// SweepResult is what one pagination sweep collected.
type SweepResult struct {
	Batch       models.Batch
	Pages       int
	RateLimited int
	LongRests   int
	Skipped     int
	StopReason  StopReason
	LastError   error
}

// Crawler walks search result pages in order, backing off when the site
// refuses load, until a page comes back empty or a transport error occurs.
type Crawler struct {
	fetcher   Fetcher
	extractor parser.Extractor
	sleeper   ratelimit.Sleeper
	opts      CrawlOptions
	logger    *slog.Logger
}

func NewCrawler(f Fetcher, e parser.Extractor, s ratelimit.Sleeper, opts CrawlOptions, logger *slog.Logger) *Crawler {
	if s == nil {
		s = ratelimit.TimerSleeper{}
	}
	if opts.CourtesyDelay < 0 {
		opts.CourtesyDelay = 0
	}
	if opts.Backoff.Threshold < 1 {
		opts.Backoff = ratelimit.DefaultBackoff()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Crawler{
		fetcher:   f,
		extractor: e,
		sleeper:   s,
		opts:      opts,
		logger:    logger.With("component", "crawler"),
	}
}

type crawlState struct {
	Page    int
	Retries int
	Fetched int
}

type outcome int

const (
	outcomeEntries outcome = iota
	outcomeEmpty
	outcomeRateLimited
	outcomeTransport
	outcomeParse
)

type transition struct {
	Next crawlState
	Wait time.Duration
	Long bool
	Stop StopReason
}

func initialState() crawlState {
	return crawlState{Page: 1}
}

// next is the pagination and backoff state machine. It performs no I/O.
func (c *Crawler) next(s crawlState, o outcome) transition {
	switch o {
	case outcomeEntries:
		fetched := s.Fetched + 1
		if c.opts.MaxPages > 0 && fetched >= c.opts.MaxPages {
			return transition{Next: crawlState{Page: s.Page, Fetched: fetched}, Stop: StopMaxPages}
		}
		return transition{
			Next: crawlState{Page: s.Page + 1, Retries: 0, Fetched: fetched},
			Wait: c.opts.CourtesyDelay,
		}
	case outcomeEmpty:
		return transition{Next: s, Stop: StopEmpty}
	case outcomeRateLimited:
		retries := s.Retries + 1
		kind, wait := c.opts.Backoff.Next(retries)
		return transition{
			Next: crawlState{Page: s.Page, Retries: retries, Fetched: s.Fetched},
			Wait: wait,
			Long: kind == ratelimit.WaitLong,
		}
	case outcomeParse:
		return transition{Next: s, Stop: StopParse}
	default:
		return transition{Next: s, Stop: StopTransport}
	}
}

func (c *Crawler) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{Batch: models.Batch{}}
	state := initialState()

	for {
		o := c.visit(ctx, state, result)
		if err := ctx.Err(); err != nil {
			result.StopReason = StopCanceled
			return result, err
		}

		t := c.next(state, o)
		if t.Stop != "" {
			result.StopReason = t.Stop
			c.logger.Info("sweep finished",
				"reason", t.Stop,
				"pages", result.Pages,
				"products", len(result.Batch),
				"skipped", result.Skipped)
			return result, nil
		}

		if o == outcomeRateLimited {
			if t.Long {
				result.LongRests++
				c.logger.Error("target site appears to be blocking us, resting",
					"page", state.Page, "consecutive", t.Next.Retries, "rest", t.Wait)
			} else {
				c.logger.Warn("rate limited, backing off",
					"page", state.Page, "consecutive", t.Next.Retries, "delay", t.Wait)
			}
		}

		if err := c.sleeper.Sleep(ctx, t.Wait); err != nil {
			result.StopReason = StopCanceled
			result.LastError = err
			return result, err
		}

		state = t.Next
	}
}

// visit fetches and extracts one page, folding its products into result.
func (c *Crawler) visit(ctx context.Context, s crawlState, result *SweepResult) outcome {
	markup, err := c.fetcher.Fetch(ctx, s.Page)
	if err != nil {
		if IsRateLimited(err) {
			result.RateLimited++
			return outcomeRateLimited
		}
		result.LastError = err
		if ctx.Err() == nil {
			c.logger.Error("page fetch failed, ending sweep", "page", s.Page, "error", err)
		}
		return outcomeTransport
	}

	c.logger.Debug("page fetched", "page", s.Page, "bytes", len(markup))

	extraction, err := c.extractor.Extract(markup)
	if err != nil {
		result.LastError = err
		c.logger.Error("page could not be parsed, ending sweep", "page", s.Page, "error", err)
		return outcomeParse
	}

	if extraction.Empty {
		c.logger.Info("no results on page", "page", s.Page)
		return outcomeEmpty
	}

	for _, fault := range extraction.Faults() {
		result.Skipped++
		c.logger.Warn("skipping malformed listing", "page", s.Page, "error", fault)
	}

	products := extraction.Products()
	result.Batch = append(result.Batch, products...)
	result.Pages++

	c.logger.Info("page scraped", "page", s.Page, "products", len(products), "total", len(result.Batch))
	return outcomeEntries
}
