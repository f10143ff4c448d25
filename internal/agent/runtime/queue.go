package runtime

import (
	"sync"

	"github.com/remoteclaw/remoteclaw/internal/agent/events"
)

// eventQueue bridges the push-style stdout pipeline to the pull-style
// consumer channel. Push never blocks, whatever the consumer is doing, so a
// stalled caller can never back up into the stdout reader and trip the
// watchdog. Single producer, single consumer.
type eventQueue struct {
	mu     sync.Mutex
	items  []events.AgentEvent
	wake   chan struct{}
	closed bool
	out    chan events.AgentEvent
}

func newEventQueue() *eventQueue {
	q := &eventQueue{
		wake: make(chan struct{}, 1),
		out:  make(chan events.AgentEvent),
	}
	go q.pump()
	return q
}

// Push appends an event. Events pushed after Close are dropped.
func (q *eventQueue) Push(ev events.AgentEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Close ends the stream; the consumer channel closes once buffered events
// have been delivered.
func (q *eventQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Events returns the consumer side of the queue.
func (q *eventQueue) Events() <-chan events.AgentEvent { return q.out }

func (q *eventQueue) pump() {
	defer close(q.out)
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			ev := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			q.out <- ev
			continue
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return
		}
		<-q.wake
	}
}
