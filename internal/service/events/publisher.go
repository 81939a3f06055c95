package events

import (
	"context"

	"github.com/Domenick1991/pickupslots/internal/kafka"
	"go.uber.org/zap"
)

type Producer interface {
	Publish(ctx context.Context, topic, key string, payload any) error
}

// Publisher fans slot events out to the slot events topic and, when set, the
// notifications topic. Publish failures are logged and never fail the caller.
type Publisher struct {
	producer           Producer
	topic              string
	notificationsTopic string
	logger             *zap.Logger
}

type Option func(*Publisher)

func WithNotificationsTopic(topic string) Option {
	return func(p *Publisher) {
		p.notificationsTopic = topic
	}
}

func NewPublisher(producer Producer, topic string, logger *zap.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		producer: producer,
		topic:    topic,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) Publish(ctx context.Context, event kafka.SlotEvent) {
	if p == nil || p.producer == nil || p.topic == "" {
		return
	}

	if err := p.producer.Publish(ctx, p.topic, event.Key(), event); err != nil {
		p.logger.Warn("failed to publish slot event",
			zap.String("type", string(event.Type)),
			zap.String("slot", event.Key()),
			zap.Error(err))
		return
	}

	if p.notificationsTopic != "" && event.IsOrderEvent() {
		if err := p.producer.Publish(ctx, p.notificationsTopic, event.OrderID, event); err != nil {
			p.logger.Warn("failed to publish notification",
				zap.String("type", string(event.Type)),
				zap.String("order_id", event.OrderID),
				zap.Error(err))
		}
	}
}
