package monitor

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrIdle is returned by Pull when nothing arrived within the timeout.
var ErrIdle = errors.New("no output within timeout")

// Item is one queue element: a decoded character or the end-of-stream marker.
type Item struct {
	Char rune
	EOF  bool
}

// Queue is an unbounded FIFO of Items. Push never blocks, so a producer can
// always finish even when the consumer has gone away.
type Queue struct {
	mu    sync.Mutex
	items []Item
	ready chan struct{}
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(chan struct{}, 1)}
}

// Push appends it and wakes a waiting consumer.
func (q *Queue) Push(it Item) {
	q.mu.Lock()
	q.items = append(q.items, it)
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// Pull removes the oldest item. It waits at most timeout for one to arrive
// (timeout <= 0 waits indefinitely) and returns ErrIdle when it expires, or
// ctx.Err() when ctx is done first.
func (q *Queue) Pull(ctx context.Context, timeout time.Duration) (Item, error) {
	if it, ok := q.pop(); ok {
		return it, nil
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-q.ready:
			if it, ok := q.pop(); ok {
				return it, nil
			}
		case <-expired:
			return Item{}, ErrIdle
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) pop() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return it, true
}
