package services

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stayprivate/internal/kafka"
	"stayprivate/internal/models"
)

// EventPublisher 发布关系变更事件。发布是尽力而为的：失败只记录日志，不影响已完成的状态变更。
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.RelationshipEvent)
}

type kafkaEventPublisher struct {
	producer kafka.MessageProducer
	topic    string
	log      *zap.Logger
}

// NewKafkaEventPublisher 创建一个基于 Kafka 的事件发布器，消息键为用户对的规范键。
func NewKafkaEventPublisher(producer kafka.MessageProducer, topic string, log *zap.Logger) EventPublisher {
	return &kafkaEventPublisher{producer: producer, topic: topic, log: log}
}

func (p *kafkaEventPublisher) Publish(ctx context.Context, event kafka.RelationshipEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	fields := []zap.Field{
		zap.String("type", string(event.Type)),
		zap.String("requestId", event.RequestID),
		zap.String("senderId", event.SenderID),
		zap.String("receiverId", event.ReceiverID),
	}

	payload, err := event.Encode()
	if err != nil {
		p.log.Error("relationship event encode failed", append(fields, zap.Error(err))...)
		return
	}
	key := []byte(models.PairKey(event.SenderID, event.ReceiverID))
	if err := p.producer.SendMessage(ctx, p.topic, key, payload); err != nil {
		p.log.Warn("relationship event publish failed", append(fields, zap.Error(err))...)
		return
	}
	p.log.Debug("relationship event published", fields...)
}
