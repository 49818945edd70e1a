package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"billpool/internal/domain"
)

func TestPostDeliversWebhookPayload(t *testing.T) {
	var got struct {
		Text string `json:"text"`
	}
	received := make(chan struct{}, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("payload not json: %v", err)
		}
		received <- struct{}{}
	}))
	defer srv.Close()

	n := New(srv.URL, zerolog.Nop())
	n.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	n.Post(context.Background(), "bill 1: refunded 40 to addr-a")

	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("webhook never called")
	}
	if !strings.HasPrefix(got.Text, "2025-06-01T12:00:00Z ") {
		t.Fatalf("missing timestamp prefix: %q", got.Text)
	}
	if !strings.Contains(got.Text, "refunded 40") {
		t.Fatalf("unexpected text: %q", got.Text)
	}
}

func TestPostSurvivesDeadEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // endpoint gone: delivery must fail silently

	n := New(srv.URL, zerolog.Nop())
	n.Post(context.Background(), "should not panic or block")
}

func TestEventMessages(t *testing.T) {
	n := New("", zerolog.Nop())

	msg := n.EventMessage(domain.Event{Kind: domain.EventBillCreated, BillID: 7, Actor: "addr-c", Payee: "addr-p", Target: 25000})
	if !strings.Contains(msg, "25,000") || !strings.Contains(msg, "no deadline") {
		t.Fatalf("created message: %q", msg)
	}

	msg = n.EventMessage(domain.Event{Kind: domain.EventContributed, BillID: 7, Actor: "addr-a", Amount: 1500, Total: 2000})
	if !strings.Contains(msg, "contributed 1,500") || !strings.Contains(msg, "total 2,000") {
		t.Fatalf("contributed message: %q", msg)
	}

	msg = n.EventMessage(domain.Event{Kind: domain.EventRewardPaid, BillID: 7, Actor: "addr-i", Amount: 10})
	if !strings.Contains(msg, "reward of 10 paid to addr-i") {
		t.Fatalf("reward message: %q", msg)
	}
}
