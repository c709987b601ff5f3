package events

import (
	"testing"

	"github.com/orakle-run/orakle"
)

func TestQueuePushOrdering(t *testing.T) {
	q := NewQueue()
	q.Push(orakle.NewSignalEvent(orakle.EventLoading, map[string]string{"state": "start"}))
	q.Push(orakle.NewStreamEvent("hello", orakle.StreamFlags{}))
	q.Close()

	first, ok := q.Next()
	if !ok || first.Sequence != 0 {
		t.Fatalf("expected first event with sequence 0, got %+v ok=%v", first, ok)
	}
	second, ok := q.Next()
	if !ok || second.Sequence != 1 {
		t.Fatalf("expected second event with sequence 1, got %+v ok=%v", second, ok)
	}
	_, ok = q.Next()
	if ok {
		t.Fatal("expected queue drained after close")
	}
}

func TestQueueAbortDiscardsQueuedAndSendsOne(t *testing.T) {
	q := NewQueue()
	q.Push(orakle.NewStreamEvent("one", orakle.StreamFlags{}))
	q.Push(orakle.NewStreamEvent("two", orakle.StreamFlags{}))
	q.Abort()
	q.Push(orakle.NewStreamEvent("three", orakle.StreamFlags{}))

	event, ok := q.Next()
	if !ok {
		t.Fatal("expected an abort event")
	}
	if event.Event != orakle.EventAbort {
		t.Fatalf("expected abort event, got %+v", event)
	}
	_, ok = q.Next()
	if ok {
		t.Fatal("expected nothing after the abort event")
	}
}

func TestQueueNextBlocksUntilPush(t *testing.T) {
	q := NewQueue()
	done := make(chan orakle.Event, 1)
	go func() {
		event, _ := q.Next()
		done <- event
	}()

	q.Push(orakle.NewSignalEvent(orakle.EventCompleted, map[string]any{}))

	event := <-done
	if event.Event != orakle.EventCompleted {
		t.Fatalf("unexpected event: %+v", event)
	}
}
