package ledger

import (
	"context"

	"billpool/internal/domain"
)

// AgentCaller binds a registered agent address to the service's privileged
// surface, so in-process callers (the keeper in single-binary mode) present
// the same shape as the HTTP client.
type AgentCaller struct {
	svc   *Service
	agent string
}

func NewAgentCaller(svc *Service, agent string) *AgentCaller {
	return &AgentCaller{svc: svc, agent: agent}
}

func (c *AgentCaller) GetBill(ctx context.Context, billID uint64) (domain.Bill, error) {
	return c.svc.GetBill(ctx, billID)
}

func (c *AgentCaller) Contribution(ctx context.Context, billID uint64, contributor string) (uint64, error) {
	return c.svc.Contribution(ctx, billID, contributor)
}

func (c *AgentCaller) DistributeRewardsFor(ctx context.Context, billID uint64) error {
	return c.svc.DistributeRewardsFor(ctx, billID, c.agent)
}

func (c *AgentCaller) WithdrawFor(ctx context.Context, billID uint64) error {
	return c.svc.WithdrawFor(ctx, billID, c.agent)
}

func (c *AgentCaller) RefundFor(ctx context.Context, billID uint64, contributor string) error {
	return c.svc.RefundFor(ctx, billID, contributor, c.agent)
}
