package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/unclebandit/crm-backend/internal/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil acks", nil, OutcomeAck},
		{"validation dead-letters", appErrors.NewValidation("email", "is required"), OutcomeDeadLetter},
		{"wrapped validation dead-letters", fmt.Errorf("decode: %w", appErrors.NewValidation("", "bad")), OutcomeDeadLetter},
		{"not found requeues", appErrors.NewNotFound("user", "u1"), OutcomeRequeue},
		{"transient requeues", errors.New("connection refused"), OutcomeRequeue},
		{"cancellation requeues", context.Canceled, OutcomeRequeue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func newTestMemoryQueue(maxRedeliveries int) *MemoryQueue {
	q := NewMemoryQueue(maxRedeliveries, zerolog.Nop())
	q.Backoff = time.Millisecond
	return q
}

func TestMemoryQueue_PublishBeforeConsume(t *testing.T) {
	q := newTestMemoryQueue(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := q.Publish(ctx, TopicCampaign, map[string]string{"hello": "world"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if q.Len(TopicCampaign) != 1 {
		t.Fatalf("expected 1 buffered message, got %d", q.Len(TopicCampaign))
	}

	got := make(chan string, 1)
	go q.Consume(ctx, TopicCampaign, func(_ context.Context, body []byte) error {
		got <- string(body)
		return nil
	})

	select {
	case body := <-got:
		if body != `{"hello":"world"}` {
			t.Errorf("unexpected body %s", body)
		}
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestMemoryQueue_RedeliversUntilSuccess(t *testing.T) {
	q := newTestMemoryQueue(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan struct{})
	go q.Consume(ctx, TopicCampaign, func(context.Context, []byte) error {
		if calls.Add(1) < 3 {
			return errors.New("vendor timeout")
		}
		close(done)
		return nil
	})

	if err := q.Publish(ctx, TopicCampaign, []byte(`{}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected success on third attempt, got %d calls", calls.Load())
	}
	if len(q.DeadLetters(TopicCampaign)) != 0 {
		t.Error("nothing should be dead-lettered")
	}
}

func TestMemoryQueue_ValidationFailureDeadLettersImmediately(t *testing.T) {
	q := newTestMemoryQueue(3)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go q.Consume(ctx, TopicCustomer, func(context.Context, []byte) error {
		calls.Add(1)
		return appErrors.NewValidation("email", "is required")
	})

	if err := q.Publish(ctx, TopicCustomer, []byte(`{"name":"x"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(q.DeadLetters(TopicCustomer)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(q.DeadLetters(TopicCustomer)) != 1 {
		t.Fatal("expected message in dead letters")
	}
	time.Sleep(20 * time.Millisecond)
	if calls.Load() != 1 {
		t.Errorf("validation failures must not be redelivered, got %d calls", calls.Load())
	}
}

func TestMemoryQueue_ExhaustedRedeliveriesDeadLetter(t *testing.T) {
	q := newTestMemoryQueue(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	go q.Consume(ctx, TopicOrder, func(context.Context, []byte) error {
		calls.Add(1)
		return errors.New("db down")
	})

	if err := q.Publish(ctx, TopicOrder, []byte(`{}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(q.DeadLetters(TopicOrder)) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if len(q.DeadLetters(TopicOrder)) != 1 {
		t.Fatal("expected message in dead letters")
	}
	if calls.Load() != 3 {
		t.Errorf("expected 1 delivery + 2 redeliveries, got %d", calls.Load())
	}
}

func TestMemoryQueue_PublishAfterClose(t *testing.T) {
	q := newTestMemoryQueue(1)
	q.Close()
	if err := q.Publish(context.Background(), TopicOrder, []byte(`{}`)); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("expected ErrQueueClosed, got %v", err)
	}
}
