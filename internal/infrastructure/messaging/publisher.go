// Package messaging selects where payment status changes are announced.
package messaging

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/wekeepgrowing/settlement-service/internal/config"
	"github.com/wekeepgrowing/settlement-service/internal/domain/event"
	"github.com/wekeepgrowing/settlement-service/internal/infrastructure/messaging/kafka"
	pkgmessaging "github.com/wekeepgrowing/settlement-service/pkg/messaging"
	"go.uber.org/zap"
)

// NewEventPublisher builds the publisher selected by events.publisher.
// redisClient may be nil unless the redis publisher is selected.
func NewEventPublisher(cfg *config.Config, redisClient redis.UniversalClient, logger *zap.Logger) (event.Publisher, error) {
	switch cfg.Events.Publisher {
	case config.EventPublisherKafka:
		return kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	case config.EventPublisherRedis:
		return NewPubSubPublisher(pkgmessaging.NewRedisPublisher(redisClient), cfg.Events.Channel), nil
	default:
		logger.Info("Payment event publishing disabled")
		return event.NewNoopPublisher(), nil
	}
}

type pubSubPublisher struct {
	publisher pkgmessaging.Publisher
	channel   string
}

// NewPubSubPublisher announces status changes on a pub/sub channel
func NewPubSubPublisher(publisher pkgmessaging.Publisher, channel string) event.Publisher {
	return &pubSubPublisher{publisher: publisher, channel: channel}
}

func (p *pubSubPublisher) Publish(ctx context.Context, evt *event.StatusChanged) error {
	return p.publisher.Publish(ctx, p.channel, evt)
}

func (p *pubSubPublisher) Close() error {
	return p.publisher.Close()
}
