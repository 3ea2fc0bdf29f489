package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisGroup = "crm-workers"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int

	// BlockTimeout bounds each XREADGROUP call.
	BlockTimeout time.Duration
	// RedeliveryTimeout is how long a failed entry stays pending before
	// another read reclaims it.
	RedeliveryTimeout time.Duration
}

// RedisQueue stores each topic in a stream consumed through a single
// consumer group. Failed entries stay pending and are reclaimed with
// XAUTOCLAIM; validation failures move to "dlq:<topic>".
type RedisQueue struct {
	client            *redis.Client
	blockTimeout      time.Duration
	redeliveryTimeout time.Duration
	log               zerolog.Logger
}

func NewRedisQueue(opts RedisOptions, log zerolog.Logger) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisQueueWithClient(client, opts.BlockTimeout, opts.RedeliveryTimeout, log)
}

func NewRedisQueueWithClient(client *redis.Client, blockTimeout, redeliveryTimeout time.Duration, log zerolog.Logger) *RedisQueue {
	if blockTimeout <= 0 {
		blockTimeout = 5 * time.Second
	}
	if redeliveryTimeout <= 0 {
		redeliveryTimeout = 30 * time.Second
	}
	return &RedisQueue{
		client:            client,
		blockTimeout:      blockTimeout,
		redeliveryTimeout: redeliveryTimeout,
		log:               log,
	}
}

func streamKey(topic string) string {
	return "stream:" + topic
}

func dlqStreamKey(topic string) string {
	return "dlq:" + topic
}

func (q *RedisQueue) Publish(ctx context.Context, topic string, payload any) error {
	body, err := encode(payload)
	if err != nil {
		return err
	}

	err = q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(topic),
		Values: map[string]interface{}{"data": string(body)},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd to stream %s: %w", streamKey(topic), err)
	}

	MessagesPublishedTotal.WithLabelValues(topic).Inc()
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, topic string, h Handler) error {
	key := streamKey(topic)
	if err := q.client.XGroupCreateMkStream(ctx, key, redisGroup, "0").Err(); err != nil &&
		!strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group on stream %s: %w", key, err)
	}

	consumer := "consumer-" + uuid.NewString()[:8]
	q.log.Info().Str("topic", topic).Str("consumer", consumer).Msg("consuming")

	for {
		if ctx.Err() != nil {
			return nil
		}

		q.reclaim(ctx, topic, consumer, h)

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    redisGroup,
			Consumer: consumer,
			Streams:  []string{key, ">"},
			Count:    10,
			Block:    q.blockTimeout,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || ctx.Err() != nil {
				continue
			}
			q.log.Error().Err(err).Str("topic", topic).Msg("xreadgroup error")
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.process(ctx, topic, h, msg)
			}
		}
	}
}

// reclaim takes over entries left pending longer than the redelivery timeout.
func (q *RedisQueue) reclaim(ctx context.Context, topic, consumer string, h Handler) {
	msgs, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   streamKey(topic),
		Group:    redisGroup,
		Consumer: consumer,
		MinIdle:  q.redeliveryTimeout,
		Start:    "0-0",
		Count:    10,
	}).Result()
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, redis.Nil) {
			q.log.Error().Err(err).Str("topic", topic).Msg("xautoclaim error")
		}
		return
	}

	for _, msg := range msgs {
		q.process(ctx, topic, h, msg)
	}
}

func (q *RedisQueue) process(ctx context.Context, topic string, h Handler, msg redis.XMessage) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		q.log.Error().Str("entry_id", msg.ID).Msg("invalid message data type")
		q.deadLetter(ctx, topic, msg.ID, "")
		return
	}

	switch handle(ctx, q.log, topic, h, []byte(data)) {
	case OutcomeAck:
		q.ack(ctx, topic, msg.ID)
	case OutcomeDeadLetter:
		q.deadLetter(ctx, topic, msg.ID, data)
	}
	// requeue: leave the entry pending for reclaim
}

func (q *RedisQueue) ack(ctx context.Context, topic, id string) {
	if err := q.client.XAck(ctx, streamKey(topic), redisGroup, id).Err(); err != nil {
		q.log.Error().Err(err).Str("entry_id", id).Msg("xack failed")
	}
}

func (q *RedisQueue) deadLetter(ctx context.Context, topic, id, data string) {
	err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: dlqStreamKey(topic),
		Values: map[string]interface{}{
			"data":      data,
			"source_id": id,
			"moved_at":  time.Now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		// keep it pending so it is retried rather than lost
		q.log.Error().Err(err).Str("entry_id", id).Msg("failed to move message to dlq")
		return
	}
	q.ack(ctx, topic, id)
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var _ Queue = (*RedisQueue)(nil)
