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
	// EventTypeSearchCompleted is published after every search that reached
	// the extraction step.
	EventTypeSearchCompleted EventType = "SEARCH_COMPLETED"
)

const DefaultStream = "stream:product_search"

// SearchCompletedPayload represents the payload for SEARCH_COMPLETED event
type SearchCompletedPayload struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
	Keyword      string    `json:"keyword"`
	URL          string    `json:"url"`
	Status       string    `json:"status"`
	Reason       string    `json:"reason,omitempty"`
	ProductCount int       `json:"product_count"`
	ItemsSeen    int       `json:"items_seen"`
	Discarded    int       `json:"discarded"`
}

// RedisClient interface for Redis operations (for testing)
type RedisClient interface {
	XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd
}

// Publisher appends search events to a Redis stream.
type Publisher struct {
	redis  RedisClient
	stream string
	maxLen int64
	logger *slog.Logger
}

func NewPublisher(client RedisClient, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &Publisher{
		redis:  client,
		stream: stream,
		maxLen: 10000,
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishSearchCompleted fills in event metadata and appends the payload.
func (p *Publisher) PublishSearchCompleted(ctx context.Context, payload *SearchCompletedPayload) error {
	if payload.EventID == "" {
		payload.EventID = uuid.New().String()
	}
	if payload.EventType == "" {
		payload.EventType = string(EventTypeSearchCompleted)
	}
	if payload.Timestamp.IsZero() {
		payload.Timestamp = time.Now()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	id, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"event_id":   payload.EventID,
			"event_type": payload.EventType,
			"payload":    string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"stream_id", id,
	)
	return nil
}
