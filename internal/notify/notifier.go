package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"billpool/internal/domain"
)

// Notifier turns events and action outcomes into timestamped human-readable
// lines. Every line is logged; when a webhook URL is configured it is also
// POSTed as {"text": "..."} fire-and-forget: delivery failures are logged
// and otherwise ignored, with no retry.
type Notifier struct {
	log        zerolog.Logger
	webhookURL string
	client     *http.Client
	printer    *message.Printer
	now        func() time.Time
}

func New(webhookURL string, logger zerolog.Logger) *Notifier {
	return &Notifier{
		log:        logger.With().Str("component", "notify").Logger(),
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		printer:    message.NewPrinter(language.English),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Post delivers one message line.
func (n *Notifier) Post(ctx context.Context, text string) {
	line := n.now().Format(time.RFC3339) + " " + text
	n.log.Info().Msg(line)
	if n.webhookURL == "" {
		return
	}
	body, err := json.Marshal(map[string]string{"text": line})
	if err != nil {
		n.log.Error().Err(err).Msg("marshal webhook payload")
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		n.log.Error().Err(err).Msg("build webhook request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(req)
	if err != nil {
		n.log.Warn().Err(err).Msg("webhook delivery failed")
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		n.log.Warn().Int("status", resp.StatusCode).Msg("webhook delivery rejected")
	}
}

// PostEvent renders and delivers a line for an observed ledger event.
func (n *Notifier) PostEvent(ctx context.Context, ev domain.Event) {
	n.Post(ctx, n.EventMessage(ev))
}

// EventMessage renders one event as prose. Amounts use grouped digits for
// readability.
func (n *Notifier) EventMessage(ev domain.Event) string {
	amount := n.printer.Sprintf("%d", ev.Amount)
	switch ev.Kind {
	case domain.EventBillCreated:
		target := n.printer.Sprintf("%d", ev.Target)
		if ev.Deadline == 0 {
			return fmt.Sprintf("bill %d created by %s: target %s to %s, no deadline", ev.BillID, ev.Actor, target, ev.Payee)
		}
		return fmt.Sprintf("bill %d created by %s: target %s to %s, due %s",
			ev.BillID, ev.Actor, target, ev.Payee, time.Unix(ev.Deadline, 0).UTC().Format(time.RFC3339))
	case domain.EventContributed:
		total := n.printer.Sprintf("%d", ev.Total)
		return fmt.Sprintf("bill %d: %s contributed %s (total %s)", ev.BillID, ev.Actor, amount, total)
	case domain.EventWithdrawn:
		return fmt.Sprintf("bill %d: %s withdrew %s", ev.BillID, ev.Actor, amount)
	case domain.EventRefunded:
		return fmt.Sprintf("bill %d: refunded %s to %s", ev.BillID, amount, ev.Actor)
	case domain.EventRewardPaid:
		return fmt.Sprintf("bill %d: reward of %s paid to %s", ev.BillID, amount, ev.Actor)
	case domain.EventAgentAdded:
		return fmt.Sprintf("agent %s added", ev.Actor)
	case domain.EventAgentRemoved:
		return fmt.Sprintf("agent %s removed", ev.Actor)
	default:
		return fmt.Sprintf("event %s on bill %d", ev.Kind, ev.BillID)
	}
}
