package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"billpool/internal/domain"
	"billpool/internal/middleware"
)

// Client drives the ledger API over HTTP as a registered agent. It mirrors
// the in-process agent caller, translating wire error codes back into the
// ledger's sentinel errors so callers keep using errors.Is.
type Client struct {
	baseURL string
	agent   string
	http    *http.Client
}

func New(baseURL, agent string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		agent:   agent,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) GetBill(ctx context.Context, billID uint64) (domain.Bill, error) {
	var bill domain.Bill
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/bills/%d", billID), nil, &bill)
	return bill, err
}

func (c *Client) Contribution(ctx context.Context, billID uint64, contributor string) (uint64, error) {
	var payload struct {
		Items []domain.Contribution `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/bills/%d/contributions", billID), nil, &payload); err != nil {
		return 0, err
	}
	for _, item := range payload.Items {
		if item.Contributor == contributor {
			return item.Amount, nil
		}
	}
	return 0, nil
}

func (c *Client) DistributeRewardsFor(ctx context.Context, billID uint64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/agent/bills/%d/rewards/distribute", billID), struct{}{}, nil)
}

func (c *Client) WithdrawFor(ctx context.Context, billID uint64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/agent/bills/%d/withdraw", billID), struct{}{}, nil)
}

func (c *Client) RefundFor(ctx context.Context, billID uint64, contributor string) error {
	body := map[string]string{"contributor": contributor}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/v1/agent/bills/%d/refunds", billID), body, nil)
}

// Head and Range let the keeper backfill through the API when it has no
// direct event-store access.
func (c *Client) Head(ctx context.Context) (uint64, error) {
	var payload struct {
		Head uint64 `json:"head"`
	}
	err := c.do(ctx, http.MethodGet, "/v1/events/head", nil, &payload)
	return payload.Head, err
}

func (c *Client) Range(ctx context.Context, from, to uint64) ([]domain.Event, error) {
	var payload struct {
		Items []domain.Event `json:"items"`
	}
	path := fmt.Sprintf("/v1/events/?from=%d&to=%d", from, to)
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(middleware.CallerHeader, c.agent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var werr struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		raw, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(raw, &werr) == nil && werr.Error != "" {
			if sentinel := domain.ErrorFromCode(werr.Error); sentinel != nil {
				return sentinel
			}
			return fmt.Errorf("%s %s: %s (%s)", method, path, werr.Message, werr.Error)
		}
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
