package reconciler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"billpool/internal/domain"
	"billpool/internal/eventlog"
	"billpool/internal/indexer"
	"billpool/internal/ledger"
)

const (
	testOwner     = "addr-owner"
	testPayee     = "addr-payee"
	testIncentive = "addr-incentive"
	testAgent     = "addr-keeper"
)

type recordingNotifier struct {
	mu    sync.Mutex
	lines []string
}

func (n *recordingNotifier) Post(_ context.Context, text string) {
	n.mu.Lock()
	n.lines = append(n.lines, text)
	n.mu.Unlock()
}

func (n *recordingNotifier) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.lines...)
}

type fixture struct {
	svc      *ledger.Service
	treasury *ledger.MemoryTreasury
	index    *indexer.Indexer
	notes    *recordingNotifier
	rec      *Reconciler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	treasury := ledger.NewMemoryTreasury()
	log := eventlog.NewMemory()
	svc := ledger.New(ledger.Config{Owner: testOwner, IncentiveRecipient: testIncentive}, treasury, log, zerolog.Nop())
	if err := svc.AddAgent(context.Background(), testOwner, testAgent); err != nil {
		t.Fatalf("add agent: %v", err)
	}
	ix := indexer.New(log, zerolog.Nop())
	notes := &recordingNotifier{}
	rec := New(ledger.NewAgentCaller(svc, testAgent), ix, notes, time.Second, zerolog.Nop())
	return &fixture{svc: svc, treasury: treasury, index: ix, notes: notes, rec: rec}
}

func (f *fixture) refresh(t *testing.T) {
	t.Helper()
	if err := f.index.Backfill(context.Background(), 0); err != nil {
		t.Fatalf("backfill: %v", err)
	}
}

func TestFundedBillDistributesThenWithdrawsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Target 100, reward pool 10, contributions 60 then 50 (10 surplus).
	id, _ := f.svc.CreateBill(ctx, "addr-creator", testPayee, 100, time.Now().Add(time.Hour).Unix())
	if err := f.svc.SeedRewardPool(ctx, id, testOwner, 10); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.svc.Contribute(ctx, id, "addr-a", 60)
	accepted, surplus, _ := f.svc.Contribute(ctx, id, "addr-b", 50)
	if accepted != 40 || surplus != 10 {
		t.Fatalf("straddling contribution: accepted=%d surplus=%d", accepted, surplus)
	}
	f.refresh(t)

	for i := 0; i < 3; i++ {
		f.rec.Cycle(ctx)
	}

	if got := f.treasury.Paid(testIncentive); got != 10 {
		t.Fatalf("reward paid: got %d, want 10 exactly once", got)
	}
	if got := f.treasury.Paid(testPayee); got != 100 {
		t.Fatalf("withdrawal: got %d, want 100 exactly once", got)
	}

	// Reward distribution reported before the withdrawal.
	lines := f.notes.all()
	var distributeAt, withdrawAt = -1, -1
	for i, line := range lines {
		if strings.Contains(line, "distributed reward") && distributeAt == -1 {
			distributeAt = i
		}
		if strings.Contains(line, "withdrew") && withdrawAt == -1 {
			withdrawAt = i
		}
	}
	if distributeAt == -1 || withdrawAt == -1 || distributeAt > withdrawAt {
		t.Fatalf("ordering: distribute at %d, withdraw at %d, lines %v", distributeAt, withdrawAt, lines)
	}
}

func TestExpiredBillRefundsContributors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Deadline already in the past; 40 contributed, target never met.
	id, _ := f.svc.CreateBill(ctx, "addr-creator", testPayee, 100, 1)
	f.svc.Contribute(ctx, id, "addr-a", 40)
	f.refresh(t)

	for i := 0; i < 2; i++ {
		f.rec.Cycle(ctx)
	}

	if got := f.treasury.Paid("addr-a"); got != 40 {
		t.Fatalf("refund: got %d, want 40 exactly once", got)
	}
	if got := f.treasury.Paid(testPayee); got != 0 {
		t.Fatalf("no withdrawal expected, payee got %d", got)
	}
	if got := f.treasury.Paid(testIncentive); got != 0 {
		t.Fatalf("no reward expected, incentive got %d", got)
	}
	b, _ := f.svc.GetBill(ctx, id)
	if b.TotalPaid != 0 || b.Withdrawn {
		t.Fatalf("post-refund state: totalPaid=%d withdrawn=%v", b.TotalPaid, b.Withdrawn)
	}
}

func TestUnexpiredUnfundedBillIsLeftAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id, _ := f.svc.CreateBill(ctx, "addr-creator", testPayee, 100, time.Now().Add(time.Hour).Unix())
	f.svc.Contribute(ctx, id, "addr-a", 40)
	f.refresh(t)

	f.rec.Cycle(ctx)

	if bal, _ := f.svc.Contribution(ctx, id, "addr-a"); bal != 40 {
		t.Fatalf("balance disturbed: %d", bal)
	}
	if len(f.notes.all()) != 0 {
		t.Fatalf("unexpected notifications: %v", f.notes.all())
	}
}

// flakyDistributeLedger fails a number of distribution attempts, then
// recovers.
type flakyDistributeLedger struct {
	Ledger
	failures int
}

func (s *flakyDistributeLedger) DistributeRewardsFor(ctx context.Context, billID uint64) error {
	if s.failures > 0 {
		s.failures--
		return errPoisoned
	}
	return s.Ledger.DistributeRewardsFor(ctx, billID)
}

func TestFailedDistributionHoldsBackWithdrawal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id, _ := f.svc.CreateBill(ctx, "addr-creator", testPayee, 100, 0)
	if err := f.svc.SeedRewardPool(ctx, id, testOwner, 10); err != nil {
		t.Fatalf("seed: %v", err)
	}
	f.svc.Contribute(ctx, id, "addr-a", 100)
	f.refresh(t)

	rec := New(&flakyDistributeLedger{Ledger: ledger.NewAgentCaller(f.svc, testAgent), failures: 1}, f.index, f.notes, time.Second, zerolog.Nop())

	// First cycle: distribution fails. Withdrawing now would lock the
	// pool behind the withdrawn guard for good.
	rec.Cycle(ctx)
	if got := f.treasury.Paid(testPayee); got != 0 {
		t.Fatalf("withdrew before rewards went out: payee got %d", got)
	}
	b, _ := f.svc.GetBill(ctx, id)
	if b.Withdrawn || b.RewardPool != 10 {
		t.Fatalf("state after failed distribution: withdrawn=%v pool=%d", b.Withdrawn, b.RewardPool)
	}

	// Next cycle retries distribution, then withdraws.
	rec.Cycle(ctx)
	if got := f.treasury.Paid(testIncentive); got != 10 {
		t.Fatalf("reward after retry: got %d, want 10", got)
	}
	if got := f.treasury.Paid(testPayee); got != 100 {
		t.Fatalf("withdrawal after retry: got %d, want 100", got)
	}
}

// scriptedLedger fails every call for one bill id and delegates the rest.
type scriptedLedger struct {
	Ledger
	poison uint64
}

var errPoisoned = errors.New("simulated outage")

func (s *scriptedLedger) GetBill(ctx context.Context, billID uint64) (domain.Bill, error) {
	if billID == s.poison {
		return domain.Bill{}, errPoisoned
	}
	return s.Ledger.GetBill(ctx, billID)
}

func TestOneBillFailureDoesNotBlockOthers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad, _ := f.svc.CreateBill(ctx, "addr-creator", testPayee, 100, 0)
	good, _ := f.svc.CreateBill(ctx, "addr-creator", testPayee, 50, 0)
	f.svc.Contribute(ctx, good, "addr-a", 50)
	f.refresh(t)

	rec := New(&scriptedLedger{Ledger: ledger.NewAgentCaller(f.svc, testAgent), poison: bad}, f.index, f.notes, time.Second, zerolog.Nop())
	rec.Cycle(ctx)

	if got := f.treasury.Paid(testPayee); got != 50 {
		t.Fatalf("healthy bill not driven: payee got %d, want 50", got)
	}
	var sawFailure bool
	for _, line := range f.notes.all() {
		if strings.Contains(line, "failed") {
			sawFailure = true
		}
	}
	if !sawFailure {
		t.Fatalf("expected a failure notification, got %v", f.notes.all())
	}
}
