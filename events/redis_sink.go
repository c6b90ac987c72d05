package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher is the part of a Redis client the sink uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Channel is the pub/sub channel carrying a call's events.
func Channel(sessionID string) string {
	return "call-events:" + sessionID
}

// RedisSink publishes events to the call's pub/sub channel.
type RedisSink struct {
	client  Publisher
	channel string
}

// NewRedisSink returns a sink for sessionID.
func NewRedisSink(client Publisher, sessionID string) *RedisSink {
	return &RedisSink{client: client, channel: Channel(sessionID)}
}

func (s *RedisSink) Send(ctx context.Context, e Event) error {
	payload, err := e.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", s.channel, err)
	}
	return nil
}
