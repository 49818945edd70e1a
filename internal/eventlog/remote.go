package eventlog

import (
	"context"

	"billpool/internal/domain"
)

// Remote exposes an event Source that only offers head and range reads, such
// as the ledger API, as a Stream. It is how the keeper follows events when it
// has no direct event-store access.
type Remote struct {
	src Source
}

func NewRemote(src Source) *Remote {
	return &Remote{src: src}
}

func (r *Remote) Head(ctx context.Context) (uint64, error) {
	return r.src.Head(ctx)
}

func (r *Remote) Range(ctx context.Context, from, to uint64) ([]domain.Event, error) {
	return r.src.Range(ctx, from, to)
}

func (r *Remote) Subscribe(ctx context.Context) (<-chan domain.Event, func()) {
	return tailSubscribe(ctx, r.src)
}

var _ Stream = (*Remote)(nil)
