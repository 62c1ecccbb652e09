package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/maltedev/search-price-tracker/internal/api"
	"github.com/maltedev/search-price-tracker/internal/config"
	"github.com/maltedev/search-price-tracker/internal/database"
	"github.com/maltedev/search-price-tracker/internal/events"
	"github.com/maltedev/search-price-tracker/internal/jobs"
	"github.com/maltedev/search-price-tracker/internal/parser"
	"github.com/maltedev/search-price-tracker/internal/ratelimit"
	"github.com/maltedev/search-price-tracker/internal/robots"
	"github.com/maltedev/search-price-tracker/internal/scraper"
	"github.com/maltedev/search-price-tracker/internal/storage"
	"github.com/maltedev/search-price-tracker/pkg/logger"
	"github.com/redis/go-redis/v9"
)

func main() {
	once := flag.Bool("once", false, "run a single crawl cycle and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(log)

	// Setup context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Info("shutdown signal received")
		cancel()
	}()

	// Database connection
	db, err := database.New(ctx, database.Config{
		URL:         cfg.Database.URL,
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.DBName,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MaxConnLife: cfg.Database.MaxConnLife,
	})
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	client := &http.Client{Timeout: cfg.Site.HTTPTimeout}

	fetcher, err := scraper.NewPageFetcher(client, scraper.FetcherOptions{
		BaseURL:        cfg.Site.BaseURL,
		SearchPath:     cfg.Site.SearchPath,
		QueryParam:     cfg.Site.QueryParam,
		SearchTerm:     cfg.Site.SearchTerm,
		UserAgent:      cfg.Site.UserAgent,
		AcceptLanguage: cfg.Site.AcceptLanguage,
	})
	if err != nil {
		log.Error("failed to create page fetcher", "error", err)
		os.Exit(1)
	}

	extractor, err := parser.NewSearchParser(cfg.Site.BaseURL, parser.DefaultSelectors())
	if err != nil {
		log.Error("failed to create search parser", "error", err)
		os.Exit(1)
	}

	sleeper := ratelimit.TimerSleeper{}

	crawler := scraper.NewCrawler(fetcher, extractor, sleeper, scraper.CrawlOptions{
		CourtesyDelay: cfg.Crawler.CourtesyDelay,
		Backoff: ratelimit.NewBackoff(
			cfg.Crawler.RateLimitShortDelay,
			cfg.Crawler.RateLimitLongDelay,
			cfg.Crawler.RateLimitThreshold,
		),
		MaxPages: cfg.Crawler.MaxPages,
	}, log)

	persister := storage.NewPersister(database.NewProductRepository(db), log)

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Events.RedisAddr,
			Password: cfg.Events.RedisPassword,
			DB:       cfg.Events.RedisDB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, cycle events may be lost", "addr", cfg.Events.RedisAddr, "error", err)
		}
		publisher = events.NewStreamPublisher(redisClient, cfg.Events.Stream, log)
	}

	var gate jobs.Gate
	if cfg.Crawler.RespectRobots {
		gate = robots.NewChecker(client, cfg.Site.BaseURL, cfg.Site.UserAgent, cfg.Crawler.RobotsAgent, log)
	}

	runner := jobs.NewRunner(crawler, persister, publisher, gate, sleeper, jobs.Options{
		SearchTerm: cfg.Site.SearchTerm,
		SearchPath: cfg.Site.SearchPath,
	}, log)

	if cfg.Status.Addr != "" && !*once {
		server := &http.Server{
			Addr:         cfg.Status.Addr,
			Handler:      api.NewRouter(api.NewHandlers(db, runner, log), cfg.Status.AllowedOrigins),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.Info("status server starting", "addr", cfg.Status.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("status server failed", "error", err)
			}
		}()

		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				log.Error("status server shutdown failed", "error", err)
			}
		}()
	}

	if *once {
		report, err := runner.RunOnce(ctx)
		if err != nil {
			log.Error("cycle finished with error", "cycle_id", report.CycleID, "error", err)
		}
		return
	}

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("runner stopped with error", "error", err)
	}

	log.Info("price tracker stopped")
}
