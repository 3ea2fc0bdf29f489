package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const memoryTopicBuffer = 1024

// ErrQueueClosed is returned by Publish after Close.
var ErrQueueClosed = errors.New("queue closed")

type memoryMessage struct {
	body     []byte
	attempts int
}

// MemoryQueue is an in-process queue. Failed messages are redelivered up to
// MaxRedeliveries times with a linear backoff, then dead-lettered.
type MemoryQueue struct {
	MaxRedeliveries int
	Backoff         time.Duration

	mu          sync.Mutex
	topics      map[string]chan memoryMessage
	deadLetters map[string][][]byte
	closed      bool
	log         zerolog.Logger
}

// NewMemoryQueue creates a new queue
func NewMemoryQueue(maxRedeliveries int, log zerolog.Logger) *MemoryQueue {
	return &MemoryQueue{
		MaxRedeliveries: maxRedeliveries,
		Backoff:         500 * time.Millisecond,
		topics:          make(map[string]chan memoryMessage),
		deadLetters:     make(map[string][][]byte),
		log:             log,
	}
}

func (q *MemoryQueue) topic(name string) chan memoryMessage {
	q.mu.Lock()
	defer q.mu.Unlock()

	ch, ok := q.topics[name]
	if !ok {
		ch = make(chan memoryMessage, memoryTopicBuffer)
		q.topics[name] = ch
	}
	return ch
}

// Publish buffers the message until a consumer takes it; it blocks when the
// topic buffer is full.
func (q *MemoryQueue) Publish(ctx context.Context, topic string, payload any) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrQueueClosed
	}

	body, err := encode(payload)
	if err != nil {
		return err
	}

	select {
	case q.topic(topic) <- memoryMessage{body: body}:
		MessagesPublishedTotal.WithLabelValues(topic).Inc()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, topic string, h Handler) error {
	ch := q.topic(topic)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-ch:
			q.process(ctx, topic, ch, h, msg)
		}
	}
}

func (q *MemoryQueue) process(ctx context.Context, topic string, ch chan memoryMessage, h Handler, msg memoryMessage) {
	switch handle(ctx, q.log, topic, h, msg.body) {
	case OutcomeAck:
		return
	case OutcomeDeadLetter:
		q.deadLetter(topic, msg.body)
		return
	}

	msg.attempts++
	if msg.attempts > q.MaxRedeliveries {
		q.log.Warn().
			Str("topic", topic).
			Int("attempts", msg.attempts).
			Msg("redeliveries exhausted, dead-lettering message")
		q.deadLetter(topic, msg.body)
		return
	}

	go func() {
		timer := time.NewTimer(time.Duration(msg.attempts) * q.Backoff)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return
		}
		select {
		case ch <- msg:
		case <-ctx.Done():
		}
	}()
}

func (q *MemoryQueue) deadLetter(topic string, body []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deadLetters[topic] = append(q.deadLetters[topic], body)
}

// DeadLetters returns the bodies dead-lettered on topic.
func (q *MemoryQueue) DeadLetters(topic string) [][]byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([][]byte(nil), q.deadLetters[topic]...)
}

// Len reports the number of messages waiting on topic.
func (q *MemoryQueue) Len(topic string) int {
	return len(q.topic(topic))
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

var _ Queue = (*MemoryQueue)(nil)
