package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"billpool/internal/domain"
	"billpool/internal/eventlog"
)

func seedLog(t *testing.T, n int) *eventlog.Memory {
	t.Helper()
	log := eventlog.NewMemory()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		billID := uint64(i%3 + 1)
		ev := domain.Event{Kind: domain.EventContributed, BillID: billID, Actor: fmt.Sprintf("addr-%d", i%5), Amount: 10}
		if i%10 == 0 {
			ev = domain.Event{Kind: domain.EventBillCreated, BillID: billID, Actor: "addr-creator", Payee: "addr-payee", Target: 100}
		}
		if _, err := log.Append(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	return log
}

func TestBackfillChunksWholeLog(t *testing.T) {
	// More events than one chunk, so Backfill must iterate.
	log := seedLog(t, ChunkSize*2+37)
	ix := New(log, zerolog.Nop())

	if err := ix.Backfill(context.Background(), 1); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	ids := ix.BillIDs()
	if len(ids) != 3 {
		t.Fatalf("bill ids: got %v, want 3 bills", ids)
	}
	if got := ix.Checkpoint(); got != uint64(ChunkSize*2+37) {
		t.Fatalf("checkpoint: got %d, want head", got)
	}
	for _, id := range ids {
		if len(ix.Contributors(id)) == 0 {
			t.Fatalf("bill %d has no contributors", id)
		}
	}
}

func TestBackfillDefaultsToRecentWindow(t *testing.T) {
	log := seedLog(t, DefaultWindow+200)
	ix := New(log, zerolog.Nop())

	if err := ix.Backfill(context.Background(), 0); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	head, _ := log.Head(context.Background())
	if got := ix.Checkpoint(); got != head {
		t.Fatalf("checkpoint: got %d, want %d", got, head)
	}
}

func TestBackfillHonorsConfiguredWindow(t *testing.T) {
	log := seedLog(t, 100)
	ix := New(log, zerolog.Nop())
	ix.Window = 10

	if err := ix.Backfill(context.Background(), 0); err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if got := ix.Checkpoint(); got != 100 {
		t.Fatalf("checkpoint: got %d, want head", got)
	}
	// Only the last 10 events were scanned, so at most 10 contributor
	// entries can exist across all bills.
	total := 0
	for _, id := range ix.BillIDs() {
		total += len(ix.Contributors(id))
	}
	if total > 10 {
		t.Fatalf("window ignored: %d contributors indexed from 10 events", total)
	}
}

func TestBackfillResumesFromCheckpoint(t *testing.T) {
	log := seedLog(t, 50)
	ix := New(log, zerolog.Nop())
	ctx := context.Background()
	if err := ix.Backfill(ctx, 1); err != nil {
		t.Fatalf("first backfill: %v", err)
	}

	// New events after the checkpoint; a from=0 backfill picks up there.
	log.Append(ctx, domain.Event{Kind: domain.EventBillCreated, BillID: 9, Actor: "addr-creator", Payee: "addr-payee", Target: 50})
	if err := ix.Backfill(ctx, 0); err != nil {
		t.Fatalf("second backfill: %v", err)
	}
	found := false
	for _, id := range ix.BillIDs() {
		if id == 9 {
			found = true
		}
	}
	if !found {
		t.Fatalf("bill 9 not indexed after resumed backfill: %v", ix.BillIDs())
	}
}

type failingSource struct {
	*eventlog.Memory
	failAfter uint64
}

func (f *failingSource) Range(ctx context.Context, from, to uint64) ([]domain.Event, error) {
	if from > f.failAfter {
		return nil, errors.New("range query failed")
	}
	return f.Memory.Range(ctx, from, to)
}

func TestBackfillAbortsOnRangeError(t *testing.T) {
	log := seedLog(t, ChunkSize*2)
	ix := New(&failingSource{Memory: log, failAfter: ChunkSize}, zerolog.Nop())

	err := ix.Backfill(context.Background(), 1)
	if err == nil {
		t.Fatal("backfill with failing source: want error")
	}
	// First chunk still applied.
	if got := ix.Checkpoint(); got != ChunkSize {
		t.Fatalf("checkpoint after abort: got %d, want %d", got, ChunkSize)
	}
}

func TestRunAppliesLiveEvents(t *testing.T) {
	log := eventlog.NewMemory()
	ix := New(log, zerolog.Nop())

	var mu sync.Mutex
	var seen []domain.EventKind
	ix.OnEvent = func(ev domain.Event) {
		mu.Lock()
		seen = append(seen, ev.Kind)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		ix.Run(ctx)
		close(done)
	}()

	// Give Run a moment to subscribe before appending.
	time.Sleep(20 * time.Millisecond)
	log.Append(ctx, domain.Event{Kind: domain.EventBillCreated, BillID: 1, Payee: "addr-payee", Target: 100})
	log.Append(ctx, domain.Event{Kind: domain.EventContributed, BillID: 1, Actor: "addr-a", Amount: 60})

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for live events, saw %d", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	if got := ix.Contributors(1); len(got) != 1 || got[0] != "addr-a" {
		t.Fatalf("contributors: got %v", got)
	}
	cancel()
	<-done
}

func TestConcurrentInsertionIsSafe(t *testing.T) {
	ix := New(eventlog.NewMemory(), zerolog.Nop())
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				ix.EnsureBill(uint64(i % 7))
				ix.AddContributor(uint64(i%7+1), fmt.Sprintf("addr-%d-%d", g, i%11))
			}
		}(g)
	}
	wg.Wait()
	if len(ix.BillIDs()) == 0 {
		t.Fatal("no bills indexed")
	}
}
