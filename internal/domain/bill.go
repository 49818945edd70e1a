package domain

// Bill is a funding goal with a target amount, an optional deadline and a
// designated payee. Amounts are in the currency's smallest unit.
type Bill struct {
	ID         uint64 `json:"id"`
	Creator    string `json:"creator"`
	Payee      string `json:"payee"`
	Target     uint64 `json:"target"`
	TotalPaid  uint64 `json:"total_paid"`
	Deadline   int64  `json:"deadline"` // unix seconds, 0 means no deadline
	Withdrawn  bool   `json:"withdrawn"`
	RewardPool uint64 `json:"reward_pool"`
}

// Exists reports whether the bill is a real record. A zero target is the
// sentinel for "no such bill".
func (b Bill) Exists() bool { return b.Target > 0 }

// Funded reports whether contributions have reached the target.
func (b Bill) Funded() bool { return b.TotalPaid >= b.Target }

// DeadlinePassed reports whether the bill has a deadline and now is beyond
// it. Bills without a deadline never pass.
func (b Bill) DeadlinePassed(now int64) bool {
	return b.Deadline != 0 && now > b.Deadline
}

// Contribution is the balance held for one contributor toward one bill.
type Contribution struct {
	BillID      uint64 `json:"bill_id"`
	Contributor string `json:"contributor"`
	Amount      uint64 `json:"amount"`
}
