package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypeCrawlCycleCompleted is published after every crawl cycle, successful or not
	EventTypeCrawlCycleCompleted EventType = "CRAWL_CYCLE_COMPLETED"

	DefaultStream = "stream:price_observations"
	source        = "search-price-tracker"
)

// CycleCompletedPayload summarises one crawl cycle
type CycleCompletedPayload struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	CycleID     string    `json:"cycle_id"`
	SearchTerm  string    `json:"search_term"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Pages       int       `json:"pages"`
	Products    int       `json:"products"`
	Inserted    int       `json:"inserted"`
	Skipped     int       `json:"skipped"`
	RateLimited int       `json:"rate_limited"`
	StopReason  string    `json:"stop_reason"`
	Error       string    `json:"error,omitempty"`
	Source      string    `json:"source"`
}

// Publisher announces completed crawl cycles.
type Publisher interface {
	PublishCycleCompleted(ctx context.Context, payload *CycleCompletedPayload) error
}

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// StreamPublisher appends events to a Redis stream.
type StreamPublisher struct {
	redis  RedisClient
	stream string
	logger *slog.Logger
}

func NewStreamPublisher(client RedisClient, stream string, logger *slog.Logger) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamPublisher{
		redis:  client,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func (p *StreamPublisher) PublishCycleCompleted(ctx context.Context, payload *CycleCompletedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeCrawlCycleCompleted)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}
	if payload.Source == "" {
		payload.Source = source
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"data":         string(data),
			"type":         payload.EventType,
			"event_id":     payload.EventID,
			"aggregate_id": payload.CycleID,
			"timestamp":    fmt.Sprintf("%d", payload.Timestamp.UnixNano()),
		},
	}

	id, err := p.redis.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}

	p.logger.Info("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"cycle_id", payload.CycleID,
		"stream", p.stream,
		"stream_id", id,
	)

	return nil
}

// NopPublisher drops events; used when no stream is configured.
type NopPublisher struct{}

func (NopPublisher) PublishCycleCompleted(context.Context, *CycleCompletedPayload) error {
	return nil
}
