package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"billpool/internal/domain"
	"billpool/internal/eventlog"
)

// Config carries the ledger's fixed parameters.
type Config struct {
	// Owner may manage agents, seed reward pools, configure receipts and
	// rescue stray funds.
	Owner string
	// IncentiveRecipient receives every distributed reward pool.
	IncentiveRecipient string
	// UnitSize divides accepted/refunded amounts into receipt units.
	// Defaults to 1 when zero.
	UnitSize uint64
}

// Service is the authoritative bill ledger. It owns all funds-accounting
// state and enforces atomic, all-or-nothing transitions. Every state change
// on a bill runs under that bill's gate, so transitions on the same bill
// never interleave while independent bills proceed concurrently.
type Service struct {
	log      zerolog.Logger
	events   eventlog.Appender
	treasury Treasury

	owner              string
	incentiveRecipient string

	mu       sync.Mutex
	bills    map[uint64]*domain.Bill
	contribs map[uint64]map[string]uint64
	agents   map[string]struct{}
	nextID   uint64
	receipts ReceiptIssuer
	unitSize uint64

	gates sync.Map // bill id -> *sync.Mutex

	now func() int64
}

// gateKey marks a context as belonging to an in-flight transition on a bill.
// Key values are bill ids, so reentrancy detection stays per bill.
type gateKey uint64

func New(cfg Config, treasury Treasury, events eventlog.Appender, logger zerolog.Logger) *Service {
	unit := cfg.UnitSize
	if unit == 0 {
		unit = 1
	}
	return &Service{
		log:                logger.With().Str("component", "ledger").Logger(),
		events:             events,
		treasury:           treasury,
		owner:              cfg.Owner,
		incentiveRecipient: cfg.IncentiveRecipient,
		bills:              make(map[uint64]*domain.Bill),
		contribs:           make(map[uint64]map[string]uint64),
		agents:             make(map[string]struct{}),
		unitSize:           unit,
		now:                func() int64 { return time.Now().Unix() },
	}
}

func (s *Service) gate(billID uint64) *sync.Mutex {
	v, _ := s.gates.LoadOrStore(billID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// enter serializes transitions on one bill: concurrent callers queue on the
// gate and run one at a time. The returned context carries the bill's
// in-flight mark; a call re-entering the ledger from inside the transition
// (a payout callback) presents that mark and is refused instead of
// deadlocking on its own gate.
func (s *Service) enter(ctx context.Context, billID uint64) (context.Context, func(), error) {
	if ctx.Value(gateKey(billID)) != nil {
		return nil, nil, domain.ErrReentrantCall
	}
	mu := s.gate(billID)
	mu.Lock()
	return context.WithValue(ctx, gateKey(billID), struct{}{}), mu.Unlock, nil
}

func (s *Service) snapshot(billID uint64) (domain.Bill, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bills[billID]
	if !ok {
		return domain.Bill{}, false
	}
	return *b, true
}

func (s *Service) emit(ctx context.Context, ev domain.Event) {
	if s.events == nil {
		return
	}
	if _, err := s.events.Append(ctx, ev); err != nil {
		// The log feeds the advisory index only; the transition itself
		// has already committed.
		s.log.Error().Err(err).Str("kind", string(ev.Kind)).Uint64("bill_id", ev.BillID).Msg("event append failed")
	}
}

// CreateBill allocates the next bill id and stores a fresh bill. Deadlines
// are not validated: a past deadline or zero ("none") is accepted.
func (s *Service) CreateBill(ctx context.Context, creator, payee string, target uint64, deadline int64) (uint64, error) {
	if payee == "" {
		return 0, domain.ErrInvalidPayee
	}
	if target == 0 {
		return 0, domain.ErrInvalidAmount
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.bills[id] = &domain.Bill{ID: id, Creator: creator, Payee: payee, Target: target, Deadline: deadline}
	s.contribs[id] = make(map[string]uint64)
	s.mu.Unlock()

	s.log.Info().Uint64("bill_id", id).Str("payee", payee).Uint64("target", target).Msg("bill created")
	s.emit(ctx, domain.Event{Kind: domain.EventBillCreated, BillID: id, Actor: creator, Payee: payee, Target: target, Deadline: deadline})
	return id, nil
}

// Contribute applies amount toward the bill. At most the remaining unfunded
// amount is accepted; the rest is surplus and is returned to the payer in
// the same transition, even when nothing is accepted.
func (s *Service) Contribute(ctx context.Context, billID uint64, payer string, amount uint64) (accepted, surplus uint64, err error) {
	if amount == 0 {
		return 0, 0, domain.ErrInvalidAmount
	}
	ctx, done, err := s.enter(ctx, billID)
	if err != nil {
		return 0, 0, err
	}
	defer done()

	b, ok := s.snapshot(billID)
	if !ok {
		return 0, 0, domain.ErrBillNotFound
	}
	if b.Withdrawn {
		return 0, 0, domain.ErrAlreadyWithdrawn
	}

	var remaining uint64
	if b.Target > b.TotalPaid {
		remaining = b.Target - b.TotalPaid
	}
	accepted = amount
	if accepted > remaining {
		accepted = remaining
	}
	surplus = amount - accepted

	if surplus > 0 {
		if err := s.treasury.Transfer(ctx, payer, surplus); err != nil {
			return 0, 0, fmt.Errorf("return surplus: %w", err)
		}
	}
	if accepted == 0 {
		s.log.Info().Uint64("bill_id", billID).Str("payer", payer).Uint64("surplus", surplus).Msg("contribution fully returned")
		return 0, surplus, nil
	}
	if units := accepted / s.unitSize; units > 0 && s.receipts != nil {
		if err := s.receipts.Mint(payer, units); err != nil {
			s.log.Warn().Err(err).Str("payer", payer).Msg("receipt mint failed")
		}
	}

	var total uint64
	s.mu.Lock()
	bill := s.bills[billID]
	bill.TotalPaid += accepted
	s.contribs[billID][payer] += accepted
	total = bill.TotalPaid
	s.mu.Unlock()

	s.log.Info().Uint64("bill_id", billID).Str("payer", payer).Uint64("accepted", accepted).Uint64("surplus", surplus).Uint64("total_paid", total).Msg("contribution accepted")
	s.emit(ctx, domain.Event{Kind: domain.EventContributed, BillID: billID, Actor: payer, Amount: accepted, Total: total})
	return accepted, surplus, nil
}

// Withdraw pays the full balance out to the payee once the target is met.
func (s *Service) Withdraw(ctx context.Context, billID uint64, caller string) error {
	return s.withdraw(ctx, billID, caller, true)
}

// WithdrawFor is the agent-gated variant: any registered agent may trigger
// the payout on the payee's behalf.
func (s *Service) WithdrawFor(ctx context.Context, billID uint64, agent string) error {
	if !s.IsAgent(agent) {
		return domain.ErrNotAgent
	}
	return s.withdraw(ctx, billID, agent, false)
}

func (s *Service) withdraw(ctx context.Context, billID uint64, caller string, enforcePayee bool) error {
	ctx, done, err := s.enter(ctx, billID)
	if err != nil {
		return err
	}
	defer done()

	b, ok := s.snapshot(billID)
	if !ok {
		return domain.ErrBillNotFound
	}
	if b.Withdrawn {
		return domain.ErrAlreadyWithdrawn
	}
	if enforcePayee && caller != b.Payee {
		return domain.ErrNotPayee
	}
	if !b.Funded() {
		return domain.ErrNotFunded
	}

	amount := b.TotalPaid
	if err := s.treasury.Transfer(ctx, b.Payee, amount); err != nil {
		// Nothing committed: the bill stays withdrawable.
		return fmt.Errorf("payout: %w", err)
	}

	s.mu.Lock()
	bill := s.bills[billID]
	bill.Withdrawn = true
	bill.TotalPaid = 0
	// Contributor balances are cleared alongside the total: they are
	// unreachable through refund once withdrawn and would otherwise
	// linger as stale nonzero rows.
	s.contribs[billID] = make(map[string]uint64)
	s.mu.Unlock()

	s.log.Info().Uint64("bill_id", billID).Str("payee", b.Payee).Uint64("amount", amount).Str("caller", caller).Msg("withdrawn")
	s.emit(ctx, domain.Event{Kind: domain.EventWithdrawn, BillID: billID, Actor: b.Payee, Amount: amount})
	return nil
}

// Refund returns a contributor's full balance after an unfunded bill's
// deadline has passed. Refunds are per contributor and idempotent: a second
// call fails with ErrNoContribution.
func (s *Service) Refund(ctx context.Context, billID uint64, contributor string) error {
	ctx, done, err := s.enter(ctx, billID)
	if err != nil {
		return err
	}
	defer done()
	return s.refundLocked(ctx, billID, contributor)
}

// RefundFor is the agent-gated variant of Refund.
func (s *Service) RefundFor(ctx context.Context, billID uint64, contributor, agent string) error {
	if !s.IsAgent(agent) {
		return domain.ErrNotAgent
	}
	ctx, done, err := s.enter(ctx, billID)
	if err != nil {
		return err
	}
	defer done()
	return s.refundLocked(ctx, billID, contributor)
}

func (s *Service) refundLocked(ctx context.Context, billID uint64, contributor string) error {
	b, ok := s.snapshot(billID)
	if !ok {
		return domain.ErrBillNotFound
	}
	if b.Withdrawn {
		return domain.ErrAlreadyWithdrawn
	}
	if !b.DeadlinePassed(s.now()) {
		return domain.ErrDeadlineNotPassed
	}
	if b.Funded() {
		return domain.ErrBillFunded
	}

	s.mu.Lock()
	balance := s.contribs[billID][contributor]
	s.mu.Unlock()
	if balance == 0 {
		return domain.ErrNoContribution
	}

	if err := s.treasury.Transfer(ctx, contributor, balance); err != nil {
		return fmt.Errorf("refund transfer: %w", err)
	}
	if units := balance / s.unitSize; units > 0 && s.receipts != nil {
		if err := s.receipts.Burn(contributor, units); err != nil {
			s.log.Warn().Err(err).Str("contributor", contributor).Msg("receipt burn failed")
		}
	}

	s.mu.Lock()
	delete(s.contribs[billID], contributor)
	s.bills[billID].TotalPaid -= balance
	s.mu.Unlock()

	s.log.Info().Uint64("bill_id", billID).Str("contributor", contributor).Uint64("amount", balance).Msg("refunded")
	s.emit(ctx, domain.Event{Kind: domain.EventRefunded, BillID: billID, Actor: contributor, Amount: balance})
	return nil
}

// SeedRewardPool adds to a bill's reward pool. Owner only; no cap and no
// funding-state requirement.
func (s *Service) SeedRewardPool(ctx context.Context, billID uint64, caller string, amount uint64) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	_, done, err := s.enter(ctx, billID)
	if err != nil {
		return err
	}
	defer done()

	s.mu.Lock()
	b, ok := s.bills[billID]
	if ok {
		b.RewardPool += amount
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrBillNotFound
	}
	s.log.Info().Uint64("bill_id", billID).Uint64("amount", amount).Msg("reward pool seeded")
	return nil
}

// DistributeRewards releases the whole reward pool to the incentive
// recipient once the bill is funded. One-shot: the pool zeroes and a second
// call fails with ErrNoRewardPool.
func (s *Service) DistributeRewards(ctx context.Context, billID uint64) error {
	ctx, done, err := s.enter(ctx, billID)
	if err != nil {
		return err
	}
	defer done()
	return s.distributeLocked(ctx, billID)
}

// DistributeRewardsFor is the agent-gated variant of DistributeRewards.
func (s *Service) DistributeRewardsFor(ctx context.Context, billID uint64, agent string) error {
	if !s.IsAgent(agent) {
		return domain.ErrNotAgent
	}
	ctx, done, err := s.enter(ctx, billID)
	if err != nil {
		return err
	}
	defer done()
	return s.distributeLocked(ctx, billID)
}

func (s *Service) distributeLocked(ctx context.Context, billID uint64) error {
	b, ok := s.snapshot(billID)
	if !ok {
		return domain.ErrBillNotFound
	}
	if b.Withdrawn {
		return domain.ErrAlreadyWithdrawn
	}
	if !b.Funded() {
		return domain.ErrNotFunded
	}
	if b.RewardPool == 0 {
		return domain.ErrNoRewardPool
	}

	if err := s.treasury.Transfer(ctx, s.incentiveRecipient, b.RewardPool); err != nil {
		return fmt.Errorf("reward transfer: %w", err)
	}
	s.mu.Lock()
	s.bills[billID].RewardPool = 0
	s.mu.Unlock()

	s.log.Info().Uint64("bill_id", billID).Str("recipient", s.incentiveRecipient).Uint64("amount", b.RewardPool).Msg("rewards distributed")
	s.emit(ctx, domain.Event{Kind: domain.EventRewardPaid, BillID: billID, Actor: s.incentiveRecipient, Amount: b.RewardPool})
	return nil
}

// AddAgent registers an address as a privileged transition caller.
func (s *Service) AddAgent(ctx context.Context, caller, agent string) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	s.mu.Lock()
	s.agents[agent] = struct{}{}
	s.mu.Unlock()
	s.log.Info().Str("agent", agent).Msg("agent added")
	s.emit(ctx, domain.Event{Kind: domain.EventAgentAdded, Actor: agent})
	return nil
}

// RemoveAgent revokes an agent's privileges.
func (s *Service) RemoveAgent(ctx context.Context, caller, agent string) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	s.mu.Lock()
	delete(s.agents, agent)
	s.mu.Unlock()
	s.log.Info().Str("agent", agent).Msg("agent removed")
	s.emit(ctx, domain.Event{Kind: domain.EventAgentRemoved, Actor: agent})
	return nil
}

// IsAgent reports registry membership.
func (s *Service) IsAgent(addr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.agents[addr]
	return ok
}

// SetReceiptIssuer configures the receipt side-channel. Owner only.
func (s *Service) SetReceiptIssuer(caller string, issuer ReceiptIssuer) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	s.mu.Lock()
	s.receipts = issuer
	s.mu.Unlock()
	return nil
}

// SetUnitSize configures receipt unit granularity. Owner only.
func (s *Service) SetUnitSize(caller string, unit uint64) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	if unit == 0 {
		return domain.ErrInvalidAmount
	}
	s.mu.Lock()
	s.unitSize = unit
	s.mu.Unlock()
	return nil
}

// Rescue sweeps funds that reached the ledger outside contribute. Owner
// only; the amount is whatever the operator established out of band.
func (s *Service) Rescue(ctx context.Context, caller, to string, amount uint64) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	if amount == 0 {
		return domain.ErrInvalidAmount
	}
	if err := s.treasury.Transfer(ctx, to, amount); err != nil {
		return fmt.Errorf("rescue transfer: %w", err)
	}
	s.log.Info().Str("to", to).Uint64("amount", amount).Msg("stray funds rescued")
	return nil
}

// GetBill returns a copy of the bill record.
func (s *Service) GetBill(_ context.Context, billID uint64) (domain.Bill, error) {
	b, ok := s.snapshot(billID)
	if !ok {
		return domain.Bill{}, domain.ErrBillNotFound
	}
	return b, nil
}

// IsFunded reports whether contributions reached the target.
func (s *Service) IsFunded(_ context.Context, billID uint64) (bool, error) {
	b, ok := s.snapshot(billID)
	if !ok {
		return false, domain.ErrBillNotFound
	}
	return b.Funded(), nil
}

// Contribution returns one contributor's live balance for a bill.
func (s *Service) Contribution(_ context.Context, billID uint64, contributor string) (uint64, error) {
	if _, ok := s.snapshot(billID); !ok {
		return 0, domain.ErrBillNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contribs[billID][contributor], nil
}

// Contributions returns all live balances for a bill.
func (s *Service) Contributions(_ context.Context, billID uint64) ([]domain.Contribution, error) {
	if _, ok := s.snapshot(billID); !ok {
		return nil, domain.ErrBillNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Contribution, 0, len(s.contribs[billID]))
	for addr, amount := range s.contribs[billID] {
		out = append(out, domain.Contribution{BillID: billID, Contributor: addr, Amount: amount})
	}
	return out, nil
}
