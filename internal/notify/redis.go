package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultStream is the Redis stream events are appended to.
const DefaultStream = "honeycomb:events"

// RedisStream appends events to a Redis stream.
type RedisStream struct {
	rdb    *redis.Client
	stream string
	logger *zap.Logger
}

// NewRedisStream connects to Redis and verifies the connection.
func NewRedisStream(redisURL string, logger *zap.Logger) (*RedisStream, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStream{rdb: rdb, stream: DefaultStream, logger: logger}, nil
}

func (s *RedisStream) Name() string { return "redis" }

// Notify appends ev as a JSON "data" field.
func (s *RedisStream) Notify(ctx context.Context, ev *Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"type": string(ev.Type),
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.stream, err)
	}
	s.logger.Debug("published event",
		zap.String("stream", s.stream),
		zap.String("type", string(ev.Type)))
	return nil
}

// Recent reads up to count events from the stream, newest first.
func (s *RedisStream) Recent(ctx context.Context, count int64) ([]Event, error) {
	msgs, err := s.rdb.XRevRangeN(ctx, s.stream, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.stream, err)
	}
	events := make([]Event, 0, len(msgs))
	for _, m := range msgs {
		data, ok := m.Values["data"].(string)
		if !ok {
			continue
		}
		var ev Event
		if json.Unmarshal([]byte(data), &ev) == nil {
			events = append(events, ev)
		}
	}
	return events, nil
}

// Close shuts down the Redis connection.
func (s *RedisStream) Close() error {
	return s.rdb.Close()
}
