package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Publisher publishes JSON messages to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Close() error
}

type redisPublisher struct {
	client redis.UniversalClient
}

// NewRedisPublisher creates a Redis pub/sub publisher on an existing client.
// Closing the publisher does not close the client.
func NewRedisPublisher(client redis.UniversalClient) Publisher {
	return &redisPublisher{client: client}
}

// Publish marshals message to JSON and publishes it on channel.
func (r *redisPublisher) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

func (r *redisPublisher) Close() error {
	return nil
}
