package eventlog

import (
	"context"
	"sync"
	"time"

	"billpool/internal/domain"
)

const subscriberBuffer = 256

// Memory is an in-process event log. It backs tests and single-process
// deployments where the API and the keeper share one ledger.
type Memory struct {
	mu     sync.Mutex
	events []domain.Event
	subs   map[int]chan domain.Event
	nextID int
}

func NewMemory() *Memory {
	return &Memory{subs: make(map[int]chan domain.Event)}
}

func (m *Memory) Append(_ context.Context, ev domain.Event) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.Seq = uint64(len(m.events)) + 1
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	m.events = append(m.events, ev)
	for _, ch := range m.subs {
		select {
		case ch <- ev:
		default: // subscriber lagging, it will catch up via Range
		}
	}
	return ev.Seq, nil
}

func (m *Memory) Head(context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.events)), nil
}

func (m *Memory) Range(_ context.Context, from, to uint64) ([]domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if from < 1 {
		from = 1
	}
	if max := uint64(len(m.events)); to > max {
		to = max
	}
	if from > to {
		return nil, nil
	}
	out := make([]domain.Event, to-from+1)
	copy(out, m.events[from-1:to])
	return out, nil
}

func (m *Memory) Subscribe(ctx context.Context) (<-chan domain.Event, func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	ch := make(chan domain.Event, subscriberBuffer)
	m.subs[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
		m.mu.Unlock()
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

var _ Log = (*Memory)(nil)
