// Package events implements C5, the Event Stream Multiplexer: it merges
// narrative tokens, dispatcher events, loading signals, errors, and abort
// notices into a single monotonically ordered event stream per turn.
package events

import (
	"sync"

	"github.com/orakle-run/orakle"
)

// Queue is a per-turn, concurrency-safe sink. Every producer goroutine
// (the stream-parser's narrative emitter, and one per in-flight dispatch)
// calls Push; a single consumer drains via Next/Close. Sequence numbers are
// assigned at Push time under a single mutex, so ordering across
// goroutines is well-defined even though producers run concurrently.
type Queue struct {
	mu       sync.Mutex
	cond     *sync.Cond
	items    []orakle.Event
	nextSeq  int
	closed   bool
	aborted  bool
}

// NewQueue creates an empty Queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues e, assigning it the next sequence number. Pushes after
// Abort are silently dropped: "no further events from aborted dispatches"
// (SPEC_FULL.md §4.4).
func (q *Queue) Push(e orakle.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.aborted || q.closed {
		return
	}
	e.Sequence = q.nextSeq
	q.nextSeq++
	q.items = append(q.items, e)
	q.cond.Broadcast()
}

// Abort drains and discards all queued events, enqueues exactly one abort
// event, and marks the queue closed to further pushes other than the abort
// event itself.
func (q *Queue) Abort() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.aborted {
		return
	}
	q.items = nil
	q.aborted = true
	abortEvent := orakle.NewSignalEvent(orakle.EventAbort, struct{}{})
	abortEvent.Sequence = q.nextSeq
	q.nextSeq++
	q.items = append(q.items, abortEvent)
	q.cond.Broadcast()
}

// Close signals that no further events will be pushed (the turn ended
// normally). Consumers observe Close once all items already queued have
// been drained via Next.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Next blocks until an event is available, the queue is closed with
// nothing left to drain, or the queue was aborted and the abort event (and
// everything after it, none by construction) has been drained.
func (q *Queue) Next() (orakle.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		if q.closed || q.aborted {
			return orakle.Event{}, false
		}
		q.cond.Wait()
	}
	e := q.items[0]
	q.items = q.items[1:]
	return e, true
}
