package domain

import "time"

// EventKind names one of the ledger's append-only event types.
type EventKind string

const (
	EventBillCreated  EventKind = "bill_created"
	EventContributed  EventKind = "contributed"
	EventWithdrawn    EventKind = "withdrawn"
	EventRefunded     EventKind = "refunded"
	EventRewardPaid   EventKind = "reward_paid"
	EventAgentAdded   EventKind = "agent_added"
	EventAgentRemoved EventKind = "agent_removed"
)

// Event is one entry of the ledger's event log. Seq is assigned by the log
// at append time and increases monotonically; it is the height consumers
// checkpoint against. Fields beyond Kind/Seq are populated per kind:
// BillCreated carries payee/target/deadline, Contributed carries the
// accepted amount and the running total, transfers carry actor and amount.
type Event struct {
	Seq      uint64    `json:"seq"`
	Kind     EventKind `json:"kind"`
	BillID   uint64    `json:"bill_id,omitempty"`
	Actor    string    `json:"actor,omitempty"`
	Amount   uint64    `json:"amount,omitempty"`
	Total    uint64    `json:"total,omitempty"`
	Payee    string    `json:"payee,omitempty"`
	Target   uint64    `json:"target,omitempty"`
	Deadline int64     `json:"deadline,omitempty"`
	At       time.Time `json:"at"`
}
