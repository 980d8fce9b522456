package kafkahandlers

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"

	appkafka "stayprivate/internal/kafka"
)

// Reconciler repairs the friends sets of a pair whose request is accepted.
type Reconciler interface {
	ReconcilePair(ctx context.Context, userA, userB string) error
}

// RelationshipEventHandler consumes relationship events and re-applies the
// friends-set insertions for accepted requests, so a partially failed accept
// converges without waiting for the users to retry.
type RelationshipEventHandler struct {
	reconciler Reconciler
	log        *zap.Logger
}

// NewRelationshipEventHandler creates a new RelationshipEventHandler.
func NewRelationshipEventHandler(reconciler Reconciler, log *zap.Logger) *RelationshipEventHandler {
	return &RelationshipEventHandler{reconciler: reconciler, log: log.Named("relationship-consumer")}
}

// Handle is the MessageHandler passed to the Kafka consumer. Returning an error
// leaves the offset uncommitted so the event is seen again after a restart or rebalance.
func (h *RelationshipEventHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	event, err := appkafka.DecodeRelationshipEvent(msg.Value)
	if err != nil {
		// Malformed payloads will never decode; skip them.
		h.log.Warn("skipping malformed relationship event",
			zap.ByteString("key", msg.Key),
			zap.Error(err))
		return nil
	}

	if event.Type != appkafka.EventRequestAccepted {
		h.log.Debug("relationship event ignored", zap.String("type", string(event.Type)))
		return nil
	}

	if err := h.reconciler.ReconcilePair(ctx, event.SenderID, event.ReceiverID); err != nil {
		h.log.Error("reconcile pair failed",
			zap.String("requestId", event.RequestID),
			zap.String("senderId", event.SenderID),
			zap.String("receiverId", event.ReceiverID),
			zap.Error(err))
		return err
	}
	h.log.Debug("pair reconciled", zap.String("requestId", event.RequestID))
	return nil
}
