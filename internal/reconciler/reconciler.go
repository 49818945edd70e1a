package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"billpool/internal/domain"
)

// DefaultInterval is the pause between reconciliation cycles.
const DefaultInterval = 30 * time.Second

// Ledger is the privileged transition surface the reconciler drives. State
// reads and transition calls alike go to the authoritative ledger; the
// advisory index only tells the reconciler where to look.
type Ledger interface {
	GetBill(ctx context.Context, billID uint64) (domain.Bill, error)
	Contribution(ctx context.Context, billID uint64, contributor string) (uint64, error)
	DistributeRewardsFor(ctx context.Context, billID uint64) error
	WithdrawFor(ctx context.Context, billID uint64) error
	RefundFor(ctx context.Context, billID uint64, contributor string) error
}

// Index is the view of the advisory bill/contributor index.
type Index interface {
	BillIDs() []uint64
	Contributors(billID uint64) []string
}

// Notifier receives one human-readable line per action outcome.
type Notifier interface {
	Post(ctx context.Context, text string)
}

// Reconciler drives every indexed bill toward a terminal state. Each cycle
// re-reads ledger state and issues at most the next required transition per
// bill, ordered distribute → withdraw → refund. Every call is treated as
// at-least-once; the ledger's guards make repeats no-ops with named errors.
type Reconciler struct {
	log      zerolog.Logger
	ledger   Ledger
	index    Index
	notifier Notifier
	interval time.Duration
	now      func() int64
}

func New(ledger Ledger, index Index, notifier Notifier, interval time.Duration, logger zerolog.Logger) *Reconciler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reconciler{
		log:      logger.With().Str("component", "reconciler").Logger(),
		ledger:   ledger,
		index:    index,
		notifier: notifier,
		interval: interval,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// Run executes cycles at the configured interval until the context is
// cancelled. A cycle's outcome never stops rescheduling.
func (r *Reconciler) Run(ctx context.Context) {
	r.log.Info().Dur("interval", r.interval).Msg("reconciler started")
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.Cycle(ctx)
		select {
		case <-ctx.Done():
			r.log.Info().Msg("reconciler stopped")
			return
		case <-ticker.C:
		}
	}
}

// Cycle evaluates every known bill once. Errors are isolated per bill and
// per action: one bill's failure never blocks the rest.
func (r *Reconciler) Cycle(ctx context.Context) {
	for _, billID := range r.index.BillIDs() {
		if ctx.Err() != nil {
			return
		}
		r.evaluate(ctx, billID)
	}
}

func (r *Reconciler) evaluate(ctx context.Context, billID uint64) {
	bill, err := r.ledger.GetBill(ctx, billID)
	if err != nil {
		r.fail(ctx, billID, "read", err)
		return
	}
	if bill.Withdrawn {
		return
	}

	if bill.Funded() {
		// Rewards go out before the withdrawal zeroes totalPaid;
		// afterwards "was this bill ever funded" is no longer
		// answerable from live state.
		if bill.RewardPool > 0 {
			if err := r.ledger.DistributeRewardsFor(ctx, billID); err != nil {
				// Withdrawing now would strand the pool behind the
				// withdrawn guard forever; leave the bill for the
				// next cycle to retry distribution first.
				r.fail(ctx, billID, "distribute", err)
				return
			}
			r.report(ctx, billID, fmt.Sprintf("distributed reward pool of %d for bill %d", bill.RewardPool, billID))
		}
		if err := r.ledger.WithdrawFor(ctx, billID); err != nil {
			r.fail(ctx, billID, "withdraw", err)
		} else {
			r.report(ctx, billID, fmt.Sprintf("withdrew %d to payee %s for bill %d", bill.TotalPaid, bill.Payee, billID))
		}
		return
	}

	if !bill.DeadlinePassed(r.now()) {
		return
	}
	// Expired and unfunded: refund whoever still holds a balance. Each
	// contributor is independent; partial failures leave the others
	// refundable next cycle.
	for _, contributor := range r.index.Contributors(billID) {
		balance, err := r.ledger.Contribution(ctx, billID, contributor)
		if err != nil {
			r.fail(ctx, billID, "read contribution", err)
			continue
		}
		if balance == 0 {
			continue
		}
		if err := r.ledger.RefundFor(ctx, billID, contributor); err != nil {
			r.fail(ctx, billID, "refund", err)
			continue
		}
		r.report(ctx, billID, fmt.Sprintf("refunded %d to %s for expired bill %d", balance, contributor, billID))
	}
}

func (r *Reconciler) fail(ctx context.Context, billID uint64, action string, err error) {
	r.log.Error().Err(err).Uint64("bill_id", billID).Str("action", action).Msg("reconcile action failed")
	if r.notifier != nil {
		r.notifier.Post(ctx, fmt.Sprintf("bill %d: %s failed: %v", billID, action, err))
	}
}

func (r *Reconciler) report(ctx context.Context, billID uint64, text string) {
	r.log.Info().Uint64("bill_id", billID).Msg(text)
	if r.notifier != nil {
		r.notifier.Post(ctx, text)
	}
}
