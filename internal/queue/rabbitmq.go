package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
)

// RabbitMQQueue maps each topic to a durable queue with a fanout dead-letter
// exchange named "<topic>.dlx".
type RabbitMQQueue struct {
	conn     *amqp.Connection
	prefetch int
	log      zerolog.Logger

	mu       sync.Mutex // guards pubCh and declared
	pubCh    *amqp.Channel
	declared map[string]bool
}

func NewRabbitMQQueue(url string, prefetch int, log zerolog.Logger) (*RabbitMQQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &RabbitMQQueue{
		conn:     conn,
		prefetch: prefetch,
		log:      log,
		pubCh:    ch,
		declared: make(map[string]bool),
	}, nil
}

func declareTopic(ch *amqp.Channel, topic string) error {
	dlx := topic + ".dlx"
	if err := ch.ExchangeDeclare(dlx, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", dlx, err)
	}
	if _, err := ch.QueueDeclare(dlx, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue %s: %w", dlx, err)
	}
	if err := ch.QueueBind(dlx, "", dlx, false, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", dlx, err)
	}

	_, err := ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-dead-letter-exchange": dlx},
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", topic, err)
	}
	return nil
}

func (q *RabbitMQQueue) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := encode(payload)
	if err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.declared[topic] {
		if err := declareTopic(q.pubCh, topic); err != nil {
			return err
		}
		q.declared[topic] = true
	}

	err = q.pubCh.Publish("", topic, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	MessagesPublishedTotal.WithLabelValues(topic).Inc()
	return nil
}

// Consume opens a dedicated channel with the configured prefetch and acks
// manually according to the handler's outcome.
func (q *RabbitMQQueue) Consume(ctx context.Context, topic string, h Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declareTopic(ch, topic); err != nil {
		return err
	}
	if q.prefetch > 0 {
		if err := ch.Qos(q.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}
	}

	msgs, err := ch.Consume(
		topic,
		"",
		false, // autoAck = false for reliability
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer on %s: %w", topic, err)
	}

	q.log.Info().Str("topic", topic).Msg("consuming")

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			q.settle(d, handle(ctx, q.log, topic, h, d.Body))
		}
	}
}

func (q *RabbitMQQueue) settle(d amqp.Delivery, outcome Outcome) {
	var err error
	switch outcome {
	case OutcomeAck:
		err = d.Ack(false)
	case OutcomeDeadLetter:
		err = d.Nack(false, false)
	default:
		err = d.Nack(false, true) // requeue
	}
	if err != nil {
		q.log.Error().Err(err).Str("outcome", string(outcome)).Msg("failed to settle delivery")
	}
}

func (q *RabbitMQQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pubCh.Close()
	return q.conn.Close()
}

var _ Queue = (*RabbitMQQueue)(nil)
