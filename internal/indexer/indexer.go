package indexer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"billpool/internal/domain"
	"billpool/internal/eventlog"
)

const (
	// ChunkSize caps each backfill range query; it stays under the event
	// source's per-query window limit.
	ChunkSize = 500
	// DefaultWindow is how far back a backfill reaches when no checkpoint
	// or explicit starting height is supplied.
	DefaultWindow = 5000
)

// Indexer rebuilds the set of known bill ids and each bill's observed
// contributor set from the event log. The index is advisory: it may lag the
// log and is never consulted for amounts, which are re-read from the ledger
// at decision time.
type Indexer struct {
	log    zerolog.Logger
	source eventlog.Stream

	// OnEvent, when set, is invoked for every live event applied by Run.
	OnEvent func(domain.Event)

	// Window overrides DefaultWindow for checkpoint-less backfills.
	Window uint64

	mu         sync.Mutex
	bills      map[uint64]map[string]struct{}
	checkpoint uint64
}

func New(source eventlog.Stream, logger zerolog.Logger) *Indexer {
	return &Indexer{
		log:    logger.With().Str("component", "indexer").Logger(),
		source: source,
		bills:  make(map[uint64]map[string]struct{}),
	}
}

// Backfill scans the log from the given height (or, when zero, from the
// checkpoint, or a recent window as last resort) up to the current head in
// ChunkSize slices, ascending. A failed range query aborts the attempt; the
// index merely under-populates until the next run.
func (ix *Indexer) Backfill(ctx context.Context, from uint64) error {
	head, err := ix.source.Head(ctx)
	if err != nil {
		return fmt.Errorf("backfill head: %w", err)
	}
	if from == 0 {
		window := ix.Window
		if window == 0 {
			window = DefaultWindow
		}
		switch cp := ix.Checkpoint(); {
		case cp > 0:
			from = cp + 1
		case head > window:
			from = head - window + 1
		default:
			from = 1
		}
	}
	if from > head {
		return nil
	}
	ix.log.Info().Uint64("from", from).Uint64("to", head).Msg("backfill started")
	for start := from; start <= head; start += ChunkSize {
		end := start + ChunkSize - 1
		if end > head {
			end = head
		}
		events, err := ix.source.Range(ctx, start, end)
		if err != nil {
			return fmt.Errorf("backfill range %d-%d: %w", start, end, err)
		}
		for _, ev := range events {
			ix.apply(ev)
		}
	}
	ix.log.Info().Uint64("head", head).Int("bills", len(ix.BillIDs())).Msg("backfill done")
	return nil
}

// Run consumes the live subscription until the context is cancelled,
// applying each event in arrival order.
func (ix *Indexer) Run(ctx context.Context) {
	events, cancel := ix.source.Subscribe(ctx)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			ix.apply(ev)
			if ix.OnEvent != nil {
				ix.OnEvent(ev)
			}
		}
	}
}

func (ix *Indexer) apply(ev domain.Event) {
	switch ev.Kind {
	case domain.EventBillCreated:
		ix.EnsureBill(ev.BillID)
	case domain.EventContributed:
		ix.AddContributor(ev.BillID, ev.Actor)
	case domain.EventWithdrawn, domain.EventRefunded, domain.EventRewardPaid:
		ix.EnsureBill(ev.BillID)
	}
	ix.mu.Lock()
	if ev.Seq > ix.checkpoint {
		ix.checkpoint = ev.Seq
	}
	ix.mu.Unlock()
}

// EnsureBill registers a bill id. Idempotent.
func (ix *Indexer) EnsureBill(billID uint64) {
	if billID == 0 {
		return
	}
	ix.mu.Lock()
	if _, ok := ix.bills[billID]; !ok {
		ix.bills[billID] = make(map[string]struct{})
	}
	ix.mu.Unlock()
}

// AddContributor records an address as having contributed to a bill.
// Idempotent set insertion; safe under concurrent backfill and live paths.
func (ix *Indexer) AddContributor(billID uint64, addr string) {
	if billID == 0 || addr == "" {
		return
	}
	ix.mu.Lock()
	set, ok := ix.bills[billID]
	if !ok {
		set = make(map[string]struct{})
		ix.bills[billID] = set
	}
	set[addr] = struct{}{}
	ix.mu.Unlock()
}

// BillIDs returns every known bill id in ascending order.
func (ix *Indexer) BillIDs() []uint64 {
	ix.mu.Lock()
	out := make([]uint64, 0, len(ix.bills))
	for id := range ix.bills {
		out = append(out, id)
	}
	ix.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Contributors returns the observed contributor set for a bill, sorted.
func (ix *Indexer) Contributors(billID uint64) []string {
	ix.mu.Lock()
	set := ix.bills[billID]
	out := make([]string, 0, len(set))
	for addr := range set {
		out = append(out, addr)
	}
	ix.mu.Unlock()
	sort.Strings(out)
	return out
}

// Checkpoint is the highest sequence number applied so far.
func (ix *Indexer) Checkpoint() uint64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.checkpoint
}
