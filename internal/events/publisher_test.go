package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1234567890-0")
	}
	return cmd
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublishCycleCompleted(t *testing.T) {
	ctx := context.Background()

	t.Run("fills metadata and publishes to the stream", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		var captured *redis.XAddArgs
		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			captured = args
			return args.Stream == "stream:test" &&
				args.Values.(map[string]interface{})["type"] == string(EventTypeCrawlCycleCompleted)
		})).Return(nil).Once()

		payload := &CycleCompletedPayload{
			CycleID:    "cycle-1",
			SearchTerm: "raspberry pi",
			Pages:      3,
			Products:   48,
			Inserted:   48,
			StopReason: "empty_page",
		}

		publisher := NewStreamPublisher(mockRedis, "stream:test", testLogger())
		require.NoError(t, publisher.PublishCycleCompleted(ctx, payload))

		_, err := uuid.Parse(payload.EventID)
		assert.NoError(t, err)
		assert.Equal(t, "search-price-tracker", payload.Source)
		assert.False(t, payload.Timestamp.IsZero())

		require.NotNil(t, captured)
		values := captured.Values.(map[string]interface{})
		assert.Equal(t, "cycle-1", values["aggregate_id"])

		var decoded CycleCompletedPayload
		require.NoError(t, json.Unmarshal([]byte(values["data"].(string)), &decoded))
		assert.Equal(t, 48, decoded.Inserted)
		assert.Equal(t, "empty_page", decoded.StopReason)

		mockRedis.AssertExpectations(t)
	})

	t.Run("keeps caller supplied metadata", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(nil).Once()

		ts := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
		payload := &CycleCompletedPayload{EventID: "fixed", Timestamp: ts, Source: "test"}

		require.NoError(t, NewStreamPublisher(mockRedis, "", testLogger()).PublishCycleCompleted(ctx, payload))
		assert.Equal(t, "fixed", payload.EventID)
		assert.Equal(t, ts, payload.Timestamp)
		assert.Equal(t, "test", payload.Source)

		args := mockRedis.Calls[0].Arguments.Get(1).(*redis.XAddArgs)
		assert.Equal(t, DefaultStream, args.Stream)
	})

	t.Run("returns redis errors", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("connection refused")).Once()

		err := NewStreamPublisher(mockRedis, "", testLogger()).PublishCycleCompleted(ctx, &CycleCompletedPayload{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to publish to redis")
	})
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.PublishCycleCompleted(context.Background(), &CycleCompletedPayload{}))
}
