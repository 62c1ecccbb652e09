package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/search-price-tracker/internal/events"
	"github.com/maltedev/search-price-tracker/internal/models"
	"github.com/maltedev/search-price-tracker/internal/ratelimit"
	"github.com/maltedev/search-price-tracker/internal/schedule"
	"github.com/maltedev/search-price-tracker/internal/scraper"
)

// shutdownGrace bounds the persist and publish of a cycle interrupted by shutdown.
const shutdownGrace = 30 * time.Second

// Sweeper runs one pagination sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (*scraper.SweepResult, error)
}

// BatchPersister writes a sweep's batch and reports how many rows landed.
type BatchPersister interface {
	Persist(ctx context.Context, batch models.Batch) (int, error)
}

// Gate decides whether the search path may be crawled this cycle.
type Gate interface {
	Allowed(ctx context.Context, path string) bool
}

type Options struct {
	SearchTerm string
	SearchPath string
}

// CycleReport represents the outcome of one crawl cycle
type CycleReport struct {
	CycleID     string    `json:"cycle_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Pages       int       `json:"pages"`
	Products    int       `json:"products"`
	Inserted    int       `json:"inserted"`
	Skipped     int       `json:"skipped"`
	RateLimited int       `json:"rate_limited"`
	LongRests   int       `json:"long_rests"`
	StopReason  string    `json:"stop_reason"`
	Blocked     bool      `json:"blocked_by_robots,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Status is a snapshot of the runner for the status API.
type Status struct {
	Running   bool         `json:"running"`
	Cycles    int          `json:"cycles"`
	LastCycle *CycleReport `json:"last_cycle,omitempty"`
	NextRun   *time.Time   `json:"next_run,omitempty"`
}

// Runner drives the daily crawl, persist, publish and sleep loop.
type Runner struct {
	sweeper   Sweeper
	persister BatchPersister
	publisher events.Publisher
	gate      Gate
	sleeper   ratelimit.Sleeper
	opts      Options
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	running bool
	cycles  int
	last    *CycleReport
	nextRun time.Time
}

// NewRunner wires a runner. publisher, gate and sleeper may be nil.
func NewRunner(sweeper Sweeper, persister BatchPersister, publisher events.Publisher, gate Gate, sleeper ratelimit.Sleeper, opts Options, logger *slog.Logger) *Runner {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if sleeper == nil {
		sleeper = ratelimit.TimerSleeper{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		sweeper:   sweeper,
		persister: persister,
		publisher: publisher,
		gate:      gate,
		sleeper:   sleeper,
		opts:      opts,
		logger:    logger.With("component", "runner"),
		now:       time.Now,
	}
}

// Run crawls immediately, then once per calendar day after local midnight.
// It returns only when ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("runner started", "search_term", r.opts.SearchTerm)

	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.logger.Error("cycle finished with error", "error", err)
		}
		if err := ctx.Err(); err != nil {
			r.logger.Info("runner stopping")
			return err
		}

		delay := schedule.DelayUntilNextRun(r.now())
		r.setNextRun(r.now().Add(delay))
		r.logger.Info("sleeping until next run", "delay", delay.String(), "next_run", r.NextRun())

		if err := r.sleeper.Sleep(ctx, delay); err != nil {
			r.logger.Info("runner stopping")
			return err
		}
	}
}

// RunOnce executes a single cycle. The returned error is the cycle's fault,
// if any; the report is always non-nil and already recorded in Status.
func (r *Runner) RunOnce(ctx context.Context) (*CycleReport, error) {
	report := &CycleReport{
		CycleID:   uuid.New().String(),
		StartedAt: r.now(),
	}
	log := r.logger.With("cycle_id", report.CycleID)

	r.mu.Lock()
	r.running = true
	r.mu.Unlock()

	err := r.cycle(ctx, report, log)

	report.FinishedAt = r.now()
	if err != nil {
		report.Error = err.Error()
	}

	r.record(report)
	r.publish(ctx, report, log)

	log.Info("cycle completed",
		"pages", report.Pages,
		"products", report.Products,
		"inserted", report.Inserted,
		"skipped", report.Skipped,
		"rate_limited", report.RateLimited,
		"stop_reason", report.StopReason,
		"duration", report.FinishedAt.Sub(report.StartedAt).String())

	return report, err
}

func (r *Runner) cycle(ctx context.Context, report *CycleReport, log *slog.Logger) error {
	log.Info("cycle started", "search_term", r.opts.SearchTerm)

	if r.gate != nil && !r.gate.Allowed(ctx, r.opts.SearchPath) {
		log.Warn("search path disallowed by robots.txt, skipping cycle", "path", r.opts.SearchPath)
		report.Blocked = true
		report.StopReason = "robots_disallowed"
		return nil
	}

	result, sweepErr := r.sweeper.Sweep(ctx)
	if result == nil {
		return sweepErr
	}

	report.Pages = result.Pages
	report.Products = len(result.Batch)
	report.Skipped = result.Skipped
	report.RateLimited = result.RateLimited
	report.LongRests = result.LongRests
	report.StopReason = string(result.StopReason)

	persistCtx := ctx
	if sweepErr != nil {
		// shutdown: keep what the sweep already collected
		var cancel context.CancelFunc
		persistCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
	}

	inserted, persistErr := r.persister.Persist(persistCtx, result.Batch)
	report.Inserted = inserted
	if persistErr != nil {
		log.Error("batch persisted partially", "inserted", inserted, "total", len(result.Batch), "error", persistErr)
	}

	switch {
	case sweepErr != nil:
		return errors.Join(sweepErr, persistErr)
	case persistErr != nil:
		return persistErr
	default:
		return result.LastError
	}
}

func (r *Runner) publish(ctx context.Context, report *CycleReport, log *slog.Logger) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
	}

	payload := &events.CycleCompletedPayload{
		CycleID:     report.CycleID,
		SearchTerm:  r.opts.SearchTerm,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		Pages:       report.Pages,
		Products:    report.Products,
		Inserted:    report.Inserted,
		Skipped:     report.Skipped,
		RateLimited: report.RateLimited,
		StopReason:  report.StopReason,
		Error:       report.Error,
	}

	if err := r.publisher.PublishCycleCompleted(ctx, payload); err != nil {
		log.Error("failed to publish cycle event", "error", err)
	}
}

func (r *Runner) record(report *CycleReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	r.cycles++
	r.last = report
}

func (r *Runner) setNextRun(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextRun = t
}

func (r *Runner) NextRun() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextRun
}

func (r *Runner) LastReport() *CycleReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.last == nil {
		return nil
	}
	report := *r.last
	return &report
}

func (r *Runner) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := Status{Running: r.running, Cycles: r.cycles}
	if r.last != nil {
		report := *r.last
		status.LastCycle = &report
	}
	if !r.nextRun.IsZero() {
		next := r.nextRun
		status.NextRun = &next
	}
	return status
}
