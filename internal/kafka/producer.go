package kafka

import (
	"context"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"stayprivate/internal/config"
)

// MessageProducer defines the interface for a Kafka message producer.
type MessageProducer interface {
	SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error
	Close()
}

// confluentKafkaProducer is an implementation of MessageProducer using confluent-kafka-go.
type confluentKafkaProducer struct {
	producer *kafka.Producer
	log      *zap.Logger
}

// NewConfluentKafkaProducer creates a new Kafka producer instance using confluent-kafka-go.
func NewConfluentKafkaProducer(cfg config.KafkaConfig, log *zap.Logger) (MessageProducer, error) {
	configMap := &kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"security.protocol": cfg.Protocol,
		"acks":              "all",
	}
	if cfg.ClientID != "" {
		_ = configMap.SetKey("client.id", cfg.ClientID)
	}

	p, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Kafka producer")
	}
	return &confluentKafkaProducer{producer: p, log: log}, nil
}

// SendMessage sends a single message and waits for its delivery report.
func (p *confluentKafkaProducer) SendMessage(ctx context.Context, topic string, key []byte, payload []byte) error {
	deliveryChan := make(chan kafka.Event, 1)

	kafkaMsg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            key,
		Value:          payload,
		Timestamp:      time.Now(),
	}

	if err := p.producer.Produce(kafkaMsg, deliveryChan); err != nil {
		// local failure, e.g. the producer queue is full
		return errors.Wrapf(err, "kafka producer failed to enqueue message for topic %s", topic)
	}

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return errors.Errorf("kafka producer: unexpected event on delivery channel: %T %v", e, e)
		}
		if m.TopicPartition.Error != nil {
			return errors.Wrapf(m.TopicPartition.Error, "kafka producer: delivery failed for topic %s", topic)
		}
		return nil
	case <-ctx.Done():
		// the message may still be delivered
		return errors.Wrapf(ctx.Err(), "kafka producer: gave up waiting for delivery report for topic %s", topic)
	}
}

// Close flushes any outstanding messages and closes the Kafka producer.
func (p *confluentKafkaProducer) Close() {
	if p.producer == nil {
		return
	}
	if remaining := p.producer.Flush(15 * 1000); remaining > 0 {
		p.log.Warn("kafka producer closing with outstanding messages", zap.Int("remaining", remaining))
	}
	p.producer.Close()
	p.log.Info("kafka producer closed")
}

type noopProducer struct{}

// NewNoopProducer returns a producer that drops every message. Used when KAFKA.ENABLED is false.
func NewNoopProducer() MessageProducer {
	return noopProducer{}
}

func (noopProducer) SendMessage(context.Context, string, []byte, []byte) error { return nil }

func (noopProducer) Close() {}
