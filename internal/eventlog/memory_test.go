package eventlog

import (
	"context"
	"testing"
	"time"

	"billpool/internal/domain"
)

func TestMemoryAppendAssignsDenseSequence(t *testing.T) {
	log := NewMemory()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		seq, err := log.Append(ctx, domain.Event{Kind: domain.EventContributed, BillID: 1})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if seq != uint64(i) {
			t.Fatalf("seq: got %d, want %d", seq, i)
		}
	}

	head, err := log.Head(ctx)
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if head != 3 {
		t.Fatalf("head: got %d, want 3", head)
	}
}

func TestMemoryRangeClampsToLog(t *testing.T) {
	log := NewMemory()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		log.Append(ctx, domain.Event{Kind: domain.EventContributed, BillID: 1})
	}

	events, err := log.Range(ctx, 2, 100)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(events) != 4 {
		t.Fatalf("range length: got %d, want 4", len(events))
	}
	if events[0].Seq != 2 || events[3].Seq != 5 {
		t.Fatalf("range bounds: got %d..%d", events[0].Seq, events[3].Seq)
	}

	if events, _ := log.Range(ctx, 9, 10); events != nil {
		t.Fatalf("range past head: got %d events", len(events))
	}
}

func TestMemorySubscribeDeliversLiveEvents(t *testing.T) {
	log := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, stop := log.Subscribe(ctx)
	defer stop()

	if _, err := log.Append(ctx, domain.Event{Kind: domain.EventBillCreated, BillID: 7}); err != nil {
		t.Fatalf("append: %v", err)
	}

	select {
	case ev := <-events:
		if ev.BillID != 7 || ev.Kind != domain.EventBillCreated {
			t.Fatalf("delivered event: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestMemorySubscribeCancelClosesChannel(t *testing.T) {
	log := NewMemory()
	events, stop := log.Subscribe(context.Background())

	stop()
	stop() // repeat cancels are safe

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}

	// Appends after cancel must not panic on the removed subscriber.
	if _, err := log.Append(context.Background(), domain.Event{Kind: domain.EventContributed, BillID: 1}); err != nil {
		t.Fatalf("append after cancel: %v", err)
	}
}
