package ledger

import (
	"context"
	"fmt"
	"sync"
)

// Treasury moves value out of the ledger: surplus returns, payouts, refunds
// and reward payments all go through it. A failed transfer aborts the
// transition that requested it.
type Treasury interface {
	Transfer(ctx context.Context, to string, amount uint64) error
}

// MemoryTreasury records outbound transfers per recipient. It stands in for
// the real settlement rail in tests and single-process deployments.
type MemoryTreasury struct {
	mu   sync.Mutex
	paid map[string]uint64
}

func NewMemoryTreasury() *MemoryTreasury {
	return &MemoryTreasury{paid: make(map[string]uint64)}
}

func (t *MemoryTreasury) Transfer(_ context.Context, to string, amount uint64) error {
	if to == "" {
		return fmt.Errorf("transfer: empty recipient")
	}
	t.mu.Lock()
	t.paid[to] += amount
	t.mu.Unlock()
	return nil
}

// Paid returns the total amount transferred to a recipient so far.
func (t *MemoryTreasury) Paid(to string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.paid[to]
}
