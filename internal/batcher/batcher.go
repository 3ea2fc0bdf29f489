// Package batcher accumulates delivery receipts and writes them to the
// communication logs in transactional batches.
//
// A batch is flushed when it reaches Size receipts or when Timeout has passed
// since its first receipt, whichever comes first. The timeout is a fixed
// deadline: later receipts never push it back. A failed flush puts its
// receipts back at the front of the buffer and they are retried on the next
// trigger.
package batcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/unclebandit/crm-backend/internal/model"
)

const (
	DefaultSize    = 50
	DefaultTimeout = 5 * time.Second
)

// ErrStopped is returned by OnReceipt after Stop.
var ErrStopped = errors.New("batcher stopped")

type State int

const (
	Idle State = iota
	Accumulating
	Flushing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Accumulating:
		return "ACCUMULATING"
	case Flushing:
		return "FLUSHING"
	default:
		return "UNKNOWN"
	}
}

// Store applies a batch of receipts atomically.
type Store interface {
	ApplyReceipts(ctx context.Context, receipts []model.DeliveryReceipt) error
}

type Options struct {
	Size    int
	Timeout time.Duration
	Clock   Clock

	// OnFlushed runs after every successful flush with the applied batch.
	OnFlushed func(ctx context.Context, receipts []model.DeliveryReceipt)

	Log zerolog.Logger
}

type Batcher struct {
	store     Store
	size      int
	timeout   time.Duration
	clock     Clock
	onFlushed func(ctx context.Context, receipts []model.DeliveryReceipt)
	log       zerolog.Logger

	mu         sync.Mutex
	buffer     []model.DeliveryReceipt
	timer      Timer
	generation uint64 // bumped on every arm and disarm; stale timer callbacks compare against it
	inFlight   int
	stopped    bool
	flushes    sync.WaitGroup
}

func New(store Store, opts Options) *Batcher {
	if opts.Size < 1 {
		opts.Size = DefaultSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	return &Batcher{
		store:     store,
		size:      opts.Size,
		timeout:   opts.Timeout,
		clock:     opts.Clock,
		onFlushed: opts.OnFlushed,
		log:       opts.Log,
	}
}

// OnReceipt buffers r. When the buffer reaches the batch size the flush runs
// on the caller's goroutine before OnReceipt returns. Flush failures are
// handled internally and never returned.
func (b *Batcher) OnReceipt(ctx context.Context, r model.DeliveryReceipt) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}

	b.buffer = append(b.buffer, r)
	BufferReceipts.Set(float64(len(b.buffer)))

	if len(b.buffer) >= b.size {
		snapshot := b.takeLocked()
		b.mu.Unlock()
		b.flush(ctx, snapshot, "size")
		return nil
	}

	if b.timer == nil {
		b.armLocked()
	}
	b.mu.Unlock()
	return nil
}

// onTimerFire handles expiry of the timer armed as generation gen.
func (b *Batcher) onTimerFire(gen uint64) {
	b.mu.Lock()
	if b.stopped || gen != b.generation {
		b.mu.Unlock()
		return
	}
	b.timer = nil

	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return
	}

	snapshot := b.takeLocked()
	b.mu.Unlock()
	b.flush(context.Background(), snapshot, "timeout")
}

func (b *Batcher) flush(ctx context.Context, snapshot []model.DeliveryReceipt, trigger string) {
	start := b.clock.Now()
	err := b.store.ApplyReceipts(ctx, snapshot)
	FlushDuration.Observe(b.clock.Now().Sub(start).Seconds())
	b.onFlushComplete(ctx, snapshot, trigger, err)
}

// onFlushComplete settles a flush: on failure the snapshot goes back in front
// of whatever accumulated meanwhile and the timer is re-armed.
func (b *Batcher) onFlushComplete(ctx context.Context, snapshot []model.DeliveryReceipt, trigger string, err error) {
	defer b.flushes.Done()

	b.mu.Lock()
	b.inFlight--

	if err != nil {
		requeued := make([]model.DeliveryReceipt, 0, len(snapshot)+len(b.buffer))
		requeued = append(requeued, snapshot...)
		b.buffer = append(requeued, b.buffer...)
		if b.timer == nil && !b.stopped {
			b.armLocked()
		}
		buffered := len(b.buffer)
		b.mu.Unlock()

		BufferReceipts.Set(float64(buffered))
		FlushesTotal.WithLabelValues(trigger, "failure").Inc()
		b.log.Error().
			Err(err).
			Str("trigger", trigger).
			Int("batch_size", len(snapshot)).
			Int("buffered", buffered).
			Msg("receipt flush failed, batch requeued")
		return
	}
	b.mu.Unlock()

	FlushesTotal.WithLabelValues(trigger, "success").Inc()
	FlushSize.Observe(float64(len(snapshot)))
	b.log.Debug().
		Str("trigger", trigger).
		Int("batch_size", len(snapshot)).
		Msg("receipts flushed")

	if b.onFlushed != nil {
		b.onFlushed(ctx, snapshot)
	}
}

// takeLocked claims the whole buffer for a flush and disarms the timer.
func (b *Batcher) takeLocked() []model.DeliveryReceipt {
	snapshot := b.buffer
	b.buffer = nil
	b.disarmLocked()
	b.inFlight++
	b.flushes.Add(1)
	BufferReceipts.Set(0)
	return snapshot
}

func (b *Batcher) armLocked() {
	b.generation++
	gen := b.generation
	b.timer = b.clock.AfterFunc(b.timeout, func() { b.onTimerFire(gen) })
}

func (b *Batcher) disarmLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.generation++
}

// State reports FLUSHING while any flush is in progress, otherwise IDLE for an
// empty buffer and ACCUMULATING for a non-empty one.
func (b *Batcher) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.inFlight > 0:
		return Flushing
	case len(b.buffer) == 0:
		return Idle
	default:
		return Accumulating
	}
}

// Len returns the number of buffered receipts.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer)
}

// Stop rejects further receipts, waits for in-flight flushes and makes one
// final flush attempt. Receipts that still cannot be written stay buffered and
// the error is returned.
func (b *Batcher) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.disarmLocked()
	b.mu.Unlock()

	done := make(chan struct{})
	go func() {
		b.flushes.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.mu.Lock()
	if len(b.buffer) == 0 {
		b.mu.Unlock()
		return nil
	}
	snapshot := b.takeLocked()
	b.mu.Unlock()

	err := b.store.ApplyReceipts(ctx, snapshot)
	b.onFlushComplete(ctx, snapshot, "stop", err)
	return err
}
