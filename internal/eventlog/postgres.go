package eventlog

import (
	"context"
	"fmt"
	"time"

	"billpool/internal/domain"
	"billpool/internal/infra"
	"billpool/internal/sqlinline"
)

// Postgres persists the event log in a ledger_events table. Sequence numbers
// come from the table's bigserial primary key, so the log stays append-only
// and densely numbered across processes.
type Postgres struct {
	sql infra.SQLExecutor
}

func NewPostgres(sql infra.SQLExecutor) *Postgres {
	return &Postgres{sql: sql}
}

// EnsureSchema creates the events table when it does not exist yet.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.sql.Exec(ctx, sqlinline.QCreateEventsTable); err != nil {
		return fmt.Errorf("ensure events schema: %w", err)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, ev domain.Event) (uint64, error) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	row := p.sql.QueryRow(ctx, sqlinline.QInsertEvent,
		string(ev.Kind), int64(ev.BillID), ev.Actor, int64(ev.Amount),
		int64(ev.Total), ev.Payee, int64(ev.Target), ev.Deadline, ev.At)
	var seq int64
	if err := row.Scan(&seq); err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	return uint64(seq), nil
}

func (p *Postgres) Head(ctx context.Context) (uint64, error) {
	var head int64
	if err := p.sql.QueryRow(ctx, sqlinline.QEventsHead).Scan(&head); err != nil {
		return 0, fmt.Errorf("event head: %w", err)
	}
	return uint64(head), nil
}

func (p *Postgres) Range(ctx context.Context, from, to uint64) ([]domain.Event, error) {
	if from < 1 {
		from = 1
	}
	if from > to {
		return nil, nil
	}
	rows, err := p.sql.Query(ctx, sqlinline.QEventsRange, int64(from), int64(to))
	if err != nil {
		return nil, fmt.Errorf("event range: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var ev domain.Event
		var seq, billID, amount, total, target int64
		var kind string
		if err := rows.Scan(&seq, &kind, &billID, &ev.Actor, &amount, &total, &ev.Payee, &target, &ev.Deadline, &ev.At); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		ev.Seq = uint64(seq)
		ev.Kind = domain.EventKind(kind)
		ev.BillID = uint64(billID)
		ev.Amount = uint64(amount)
		ev.Total = uint64(total)
		ev.Target = uint64(target)
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Subscribe tails the table: it polls for rows past the head observed at
// subscribe time and pushes them in sequence order.
func (p *Postgres) Subscribe(ctx context.Context) (<-chan domain.Event, func()) {
	return tailSubscribe(ctx, p)
}

var _ Log = (*Postgres)(nil)
