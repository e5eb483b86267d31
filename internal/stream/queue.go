// internal/stream/queue.go
package stream

import (
	"sync/atomic"

	"github.com/rovshanmuradov/mirror-bot/internal/domain"
)

// Queue is a bounded event queue between the ingest reader and the trading
// pipeline. When full, the oldest event is dropped in favor of the newest:
// stale observations are worthless for mirroring.
type Queue struct {
	ch      chan *domain.TransactionEvent
	dropped atomic.Uint64
}

// NewQueue creates a queue holding at most size events.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{ch: make(chan *domain.TransactionEvent, size)}
}

// Push enqueues an event, evicting the oldest entry when the queue is full.
// It reports whether an eviction happened. Push is meant for a single
// producer goroutine.
func (q *Queue) Push(ev *domain.TransactionEvent) bool {
	select {
	case q.ch <- ev:
		return false
	default:
	}

	// Full: evict one, then retry once.
	select {
	case <-q.ch:
	default:
	}
	select {
	case q.ch <- ev:
	default:
	}
	q.dropped.Add(1)
	return true
}

// C returns the consumer side of the queue.
func (q *Queue) C() <-chan *domain.TransactionEvent {
	return q.ch
}

// Dropped returns the total number of evicted events.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
