package kafka

import (
	"context"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stayprivate/internal/config"
)

// MessageHandler processes one consumed message. Returning nil commits the offset.
type MessageHandler func(ctx context.Context, msg *kafka.Message) error

// MessageConsumer defines the interface for a Kafka message consumer.
type MessageConsumer interface {
	Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error
	Close()
}

// confluentKafkaConsumer is an implementation of MessageConsumer using confluent-kafka-go.
type confluentKafkaConsumer struct {
	consumer *kafka.Consumer
	cfg      config.KafkaConfig
	groupID  string
	log      *zap.Logger
}

// NewConfluentKafkaConsumer prepares a consumer. The underlying client is created by Consume,
// once the group id is known.
func NewConfluentKafkaConsumer(cfg config.KafkaConfig, log *zap.Logger) MessageConsumer {
	return &confluentKafkaConsumer{cfg: cfg, log: log}
}

// Consume polls the topics until ctx is canceled or a fatal error occurs.
// Offsets are committed only after the handler succeeds.
func (c *confluentKafkaConsumer) Consume(ctx context.Context, topics []string, groupID string, handler MessageHandler) error {
	if len(topics) == 0 {
		return errors.New("kafka consumer: no topics specified")
	}
	c.groupID = groupID
	log := c.log.With(zap.String("group", groupID))

	configMap := &kafka.ConfigMap{
		"bootstrap.servers":  strings.Join(c.cfg.Brokers, ","),
		"group.id":           groupID,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": "false",
		"security.protocol":  c.cfg.Protocol,
	}
	if c.cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", c.cfg.ClientID)
	}

	consumer, err := kafka.NewConsumer(configMap)
	if err != nil {
		return errors.Wrapf(err, "failed to create Kafka consumer for group %s", groupID)
	}
	c.consumer = consumer

	if err := c.consumer.SubscribeTopics(topics, nil); err != nil {
		_ = c.consumer.Close()
		c.consumer = nil
		return errors.Wrapf(err, "failed to subscribe to topics %v", topics)
	}

	log.Info("kafka consumer started", zap.Strings("topics", topics))

	for {
		select {
		case <-ctx.Done():
			log.Info("kafka consumer stopping")
			return nil
		default:
		}

		ev := c.consumer.Poll(1000)
		if ev == nil {
			continue
		}

		switch e := ev.(type) {
		case *kafka.Message:
			fields := []zap.Field{
				zap.String("topic", *e.TopicPartition.Topic),
				zap.Int32("partition", e.TopicPartition.Partition),
				zap.String("offset", e.TopicPartition.Offset.String()),
			}
			if err := handler(ctx, e); err != nil {
				log.Error("kafka message handling failed", append(fields, zap.Error(err))...)
				continue
			}
			if _, err := c.consumer.CommitMessage(e); err != nil {
				log.Error("kafka offset commit failed", append(fields, zap.Error(err))...)
			}
		case kafka.Error:
			log.Error("kafka consumer error",
				zap.Error(e),
				zap.Bool("fatal", e.IsFatal()),
				zap.Bool("retriable", e.IsRetriable()))
			if e.IsFatal() {
				return e
			}
		case kafka.AssignedPartitions:
			log.Info("partitions assigned", zap.Int("count", len(e.Partitions)))
			_ = c.consumer.Assign(e.Partitions)
		case kafka.RevokedPartitions:
			log.Info("partitions revoked", zap.Int("count", len(e.Partitions)))
			_ = c.consumer.Unassign()
		}
	}
}

// Close closes the Kafka consumer.
func (c *confluentKafkaConsumer) Close() {
	if c.consumer == nil {
		return
	}
	if err := c.consumer.Close(); err != nil {
		c.log.Error("error closing kafka consumer", zap.String("group", c.groupID), zap.Error(err))
	}
	c.consumer = nil
}
