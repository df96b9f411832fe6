package reconciler

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/davebream/rpswatch/internal/signals"
)

// ErrQueueClosed is returned by SubmitWait after Close.
var ErrQueueClosed = errors.New("reconciler: queue closed")

// Queue runs intents one at a time, in submission order, on a single
// goroutine.
type Queue struct {
	ctx    context.Context
	apply  func(context.Context, signals.Intent)
	logger *slog.Logger

	mu      sync.Mutex
	pending []queueEntry
	notify  chan struct{}
	closed  chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

type queueEntry struct {
	intent signals.Intent
	done   chan struct{}
}

// NewQueue starts the worker. apply receives ctx, which should outlive the
// queue.
func NewQueue(ctx context.Context, apply func(context.Context, signals.Intent), logger *slog.Logger) *Queue {
	q := &Queue{
		ctx:    ctx,
		apply:  apply,
		logger: logger,
		notify: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		q.processLoop()
	}()
	return q
}

// Submit enqueues in without waiting. Intents submitted after Close are
// dropped.
func (q *Queue) Submit(in signals.Intent) {
	q.enqueue(in, nil)
}

// SubmitWait enqueues in and waits until it has been applied.
func (q *Queue) SubmitWait(ctx context.Context, in signals.Intent) error {
	done := make(chan struct{})
	if !q.enqueue(in, done) {
		return ErrQueueClosed
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closed:
		return ErrQueueClosed
	}
}

// Len reports intents waiting to run.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) enqueue(in signals.Intent, done chan struct{}) bool {
	select {
	case <-q.closed:
		return false
	default:
	}
	q.mu.Lock()
	q.pending = append(q.pending, queueEntry{intent: in, done: done})
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

func (q *Queue) processLoop() {
	for {
		select {
		case <-q.closed:
			return
		case <-q.notify:
		}

		for {
			select {
			case <-q.closed:
				return
			default:
			}

			q.mu.Lock()
			if len(q.pending) == 0 {
				q.mu.Unlock()
				break
			}
			entry := q.pending[0]
			q.pending[0] = queueEntry{}
			q.pending = q.pending[1:]
			q.mu.Unlock()

			q.run(entry)
		}
	}
}

func (q *Queue) run(entry queueEntry) {
	defer func() {
		if entry.done != nil {
			close(entry.done)
		}
		if r := recover(); r != nil {
			q.logger.Error("intent panicked", "kind", entry.intent.Kind.String(), "panic", r)
		}
	}()
	q.logger.Debug("applying intent", "kind", entry.intent.Kind.String(), "source", entry.intent.Source)
	q.apply(q.ctx, entry.intent)
}

// Close stops the worker after the running intent finishes. Pending intents
// are discarded.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
	q.wg.Wait()
}
