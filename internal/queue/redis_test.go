package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
)

func setupRedisQueue(t *testing.T) (*RedisQueue, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	q := NewRedisQueueWithClient(client, 20*time.Millisecond, 30*time.Millisecond, zerolog.Nop())
	t.Cleanup(func() { q.Close() })
	return q, client
}

func pendingCount(t *testing.T, client *redis.Client, topic string) int64 {
	t.Helper()
	p, err := client.XPending(context.Background(), streamKey(topic), redisGroup).Result()
	if err != nil {
		return -1
	}
	return p.Count
}

func TestRedisQueue_AckOnSuccess(t *testing.T) {
	q, client := setupRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, TopicDeliveryReceipt, map[string]string{"status": "SENT"}))

	got := make(chan string, 1)
	go q.Consume(ctx, TopicDeliveryReceipt, func(_ context.Context, body []byte) error {
		got <- string(body)
		return nil
	})

	select {
	case body := <-got:
		assert.JSONEq(t, `{"status":"SENT"}`, body)
	case <-time.After(2 * time.Second):
		t.Fatal("message not delivered")
	}

	assert.Eventually(t, func() bool {
		return pendingCount(t, client, TopicDeliveryReceipt) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRedisQueue_FailedEntryIsReclaimed(t *testing.T) {
	q, client := setupRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, TopicCampaign, []byte(`{"logId":"l1"}`)))

	var calls atomic.Int32
	done := make(chan struct{})
	go q.Consume(ctx, TopicCampaign, func(context.Context, []byte) error {
		if calls.Add(1) == 1 {
			return errors.New("vendor unavailable")
		}
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("entry was not redelivered, calls=%d", calls.Load())
	}

	assert.Equal(t, int32(2), calls.Load())
	assert.Eventually(t, func() bool {
		return pendingCount(t, client, TopicCampaign) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestRedisQueue_ValidationFailureMovesToDLQ(t *testing.T) {
	q, client := setupRedisQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, TopicOrder, []byte(`{"total":-1}`)))

	var calls atomic.Int32
	go q.Consume(ctx, TopicOrder, func(context.Context, []byte) error {
		calls.Add(1)
		return appErrors.NewValidation("total", "must be greater than 0")
	})

	assert.Eventually(t, func() bool {
		n, err := client.XLen(context.Background(), dlqStreamKey(TopicOrder)).Result()
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return pendingCount(t, client, TopicOrder) == 0
	}, time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	entries, err := client.XRange(context.Background(), dlqStreamKey(TopicOrder), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, `{"total":-1}`, entries[0].Values["data"])
}
