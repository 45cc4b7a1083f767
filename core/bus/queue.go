package bus

import "sync"

// eventQueue is an unbounded FIFO of envelopes shared by publishers and
// workers. push never blocks and never fails; pop blocks until an item is
// available. Multiple workers may pop concurrently - each item is handed to
// exactly one of them.
//
// Shutdown is expressed purely through sentinel values: Stop pushes one nil
// envelope per worker, so no popper is ever left blocked forever.
type eventQueue struct {
	mu    sync.Mutex
	ready *sync.Cond
	items []*envelope
}

func newEventQueue() *eventQueue {
	q := &eventQueue{}
	q.ready = sync.NewCond(&q.mu)
	return q
}

// push appends an envelope (nil included - it is the worker sentinel) to the
// tail and wakes one blocked popper.
func (q *eventQueue) push(e *envelope) {
	q.mu.Lock()
	q.items = append(q.items, e)
	q.mu.Unlock()
	q.ready.Signal()
}

// pop removes and returns the head, blocking until an item is available.
func (q *eventQueue) pop() *envelope {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		q.ready.Wait()
	}

	head := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Release the drifted backing array once drained.
		q.items = nil
	}
	return head
}

// len reports the number of pending items, sentinels included.
func (q *eventQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
