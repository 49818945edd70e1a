package ledger

import (
	"fmt"
	"sync"
)

// ReceiptIssuer mints receipt tokens for accepted contributions and burns
// them back on refunds. Units are derived from amounts by integer division
// with the configured unit size; amounts below one unit move no receipts.
type ReceiptIssuer interface {
	Mint(holder string, units uint64) error
	Burn(holder string, units uint64) error
}

// MemoryReceipts keeps per-holder receipt balances in memory.
type MemoryReceipts struct {
	mu       sync.Mutex
	balances map[string]uint64
}

func NewMemoryReceipts() *MemoryReceipts {
	return &MemoryReceipts{balances: make(map[string]uint64)}
}

func (r *MemoryReceipts) Mint(holder string, units uint64) error {
	r.mu.Lock()
	r.balances[holder] += units
	r.mu.Unlock()
	return nil
}

func (r *MemoryReceipts) Burn(holder string, units uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[holder] < units {
		return fmt.Errorf("burn %d receipts from %s: balance %d", units, holder, r.balances[holder])
	}
	r.balances[holder] -= units
	return nil
}

// Balance returns the holder's current receipt balance.
func (r *MemoryReceipts) Balance(holder string) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[holder]
}
