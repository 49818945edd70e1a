package eventlog

import (
	"context"
	"time"

	"billpool/internal/domain"
)

// Appender is the write side of the event log. Append assigns the next
// sequence number and returns it.
type Appender interface {
	Append(ctx context.Context, ev domain.Event) (uint64, error)
}

// Source is the read side consumers backfill from. Range returns events with
// from <= seq <= to in ascending order; callers are expected to keep their
// windows under the source's query limit.
type Source interface {
	Head(ctx context.Context) (uint64, error)
	Range(ctx context.Context, from, to uint64) ([]domain.Event, error)
}

// Stream is a Source with live delivery. Subscribe returns a channel of
// events appended after the call and a cancel func that releases it. Slow
// subscribers may miss events; they are expected to reconcile via Range.
type Stream interface {
	Source
	Subscribe(ctx context.Context) (<-chan domain.Event, func())
}

// Log combines the write side with the full read surface.
type Log interface {
	Appender
	Stream
}

const tailPollInterval = 2 * time.Second

// tailSubscribe turns any Source into a subscription by polling the head and
// draining new rows in order. Delivery lag is bounded by the poll interval,
// which is fine for advisory consumers.
func tailSubscribe(ctx context.Context, src Source) (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, subscriberBuffer)
	tailCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(ch)
		// Seed the cursor at the head observed around subscribe time. A
		// failed read only delays seeding to a later tick; the
		// subscription must survive transient source errors.
		last, seeded := uint64(0), false
		if head, err := src.Head(tailCtx); err == nil {
			last, seeded = head, true
		}
		ticker := time.NewTicker(tailPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-tailCtx.Done():
				return
			case <-ticker.C:
			}
			if !seeded {
				if head, err := src.Head(tailCtx); err == nil {
					last, seeded = head, true
				}
				continue
			}
			head, err := src.Head(tailCtx)
			if err != nil || head <= last {
				continue
			}
			events, err := src.Range(tailCtx, last+1, head)
			if err != nil {
				continue
			}
			for _, ev := range events {
				select {
				case ch <- ev:
				case <-tailCtx.Done():
					return
				}
			}
			last = head
		}
	}()
	return ch, cancel
}
