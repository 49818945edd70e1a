package sqlinline

const QCreateEventsTable = `--sql c31ae042-cff2-48b3-8b13-df70995f6d27
create table if not exists ledger_events (
    seq      bigserial primary key,
    kind     text not null,
    bill_id  bigint not null,
    actor    text not null,
    amount   bigint not null default 0,
    total    bigint not null default 0,
    payee    text not null default '',
    target   bigint not null default 0,
    deadline bigint not null default 0,
    at       timestamptz not null default now()
);
`

const QInsertEvent = `--sql 1e6c66d6-70e5-4f4f-b2b2-2efd50b5047f
insert into ledger_events(kind, bill_id, actor, amount, total, payee, target, deadline, at)
values ($1::text, $2::bigint, $3::text, $4::bigint, $5::bigint, $6::text, $7::bigint, $8::bigint, $9::timestamptz)
returning seq;
`

const QEventsHead = `--sql 3529513b-b2cb-4505-9dcc-406504655c3e
select coalesce(max(seq), 0)
from ledger_events;
`

const QEventsRange = `--sql fc56434f-686c-48f5-869b-cb806656ccc7
select seq, kind, bill_id, actor, amount, total, payee, target, deadline, at
from ledger_events
where seq >= $1::bigint and seq <= $2::bigint
order by seq asc;
`
