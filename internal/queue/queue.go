package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/config"
	appErrors "github.com/unclebandit/crm-backend/internal/errors"
)

// Topics carried by the pipeline.
const (
	TopicCustomer        = "customer-queue"
	TopicOrder           = "order-queue"
	TopicCampaign        = "campaign-queue"
	TopicDeliveryReceipt = "delivery-receipt-queue"
)

// Handler processes one message body. Its error decides the message's fate,
// see Classify.
type Handler func(ctx context.Context, body []byte) error

// Queue is the durable, at-least-once substrate between pipeline stages.
type Queue interface {
	// Publish JSON-encodes payload onto topic. []byte and json.RawMessage
	// payloads are sent as-is.
	Publish(ctx context.Context, topic string, payload any) error

	// Consume delivers topic messages to h one at a time until ctx is done.
	Consume(ctx context.Context, topic string, h Handler) error

	Close() error
}

// Outcome is what an adapter does with a handled message.
type Outcome string

const (
	OutcomeAck        Outcome = "ack"
	OutcomeRequeue    Outcome = "requeue"
	OutcomeDeadLetter Outcome = "dead_letter"
)

// Classify maps a handler error to an Outcome: nil acks, validation errors
// dead-letter, anything else is redelivered.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAck
	case appErrors.IsValidation(err):
		return OutcomeDeadLetter
	default:
		return OutcomeRequeue
	}
}

// New builds the adapter selected by cfg.Type.
func New(cfg config.QueueConfig, log zerolog.Logger) (Queue, error) {
	switch cfg.Type {
	case "rabbitmq", "":
		return NewRabbitMQQueue(cfg.RabbitMQURL, cfg.Prefetch, log)
	case "redis":
		return NewRedisQueue(RedisOptions{
			Addr:              cfg.RedisAddr,
			Password:          cfg.RedisPassword,
			DB:                cfg.RedisDB,
			BlockTimeout:      cfg.BlockTimeout,
			RedeliveryTimeout: cfg.RedeliveryTimeout,
		}, log), nil
	case "memory":
		return NewMemoryQueue(cfg.MaxRedeliveries, log), nil
	default:
		return nil, fmt.Errorf("unknown queue type: %s", cfg.Type)
	}
}

func encode(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return body, nil
}

// handle runs h and records the outcome.
func handle(ctx context.Context, log zerolog.Logger, topic string, h Handler, body []byte) Outcome {
	start := time.Now()
	err := h(ctx, body)
	outcome := Classify(err)

	HandlerDuration.WithLabelValues(topic).Observe(time.Since(start).Seconds())
	MessagesConsumedTotal.WithLabelValues(topic, string(outcome)).Inc()

	if err != nil {
		log.Warn().
			Err(err).
			Str("topic", topic).
			Str("outcome", string(outcome)).
			Msg("message handling failed")
	}
	return outcome
}
