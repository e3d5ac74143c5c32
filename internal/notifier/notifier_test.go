package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"qms/queue-core/internal/models"
)

func TestNewFallsBackToLog(t *testing.T) {
	for _, kind := range []string{"", "stub", "log", "unknown-provider"} {
		n := New(kind)
		if err := n.Send(context.Background(), models.Ticket{TicketNumber: "A-001"}, "Branch A"); err != nil {
			t.Fatalf("kind %q: %v", kind, err)
		}
	}
}

func TestFailNotifier(t *testing.T) {
	n := New("fail")
	if err := n.Send(context.Background(), models.Ticket{}, "Branch A"); err == nil {
		t.Fatal("want error from fail notifier")
	}
}

func TestWebhookNotifier(t *testing.T) {
	var received map[string]string
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := webhookNotifier{url: srv.URL, token: "secret"}
	ticket := models.Ticket{
		TicketID:     "t1",
		BusinessID:   "biz-1",
		TicketNumber: "A-007",
		JoinedAt:     time.Now(),
	}
	if err := n.Send(context.Background(), ticket, "Branch A"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer secret" {
		t.Fatalf("auth header = %q", auth)
	}
	if received["ticket_number"] != "A-007" {
		t.Fatalf("payload = %v", received)
	}
}

func TestWebhookNotifierRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	n := webhookNotifier{url: srv.URL}
	if err := n.Send(context.Background(), models.Ticket{}, "Branch A"); err == nil {
		t.Fatal("want error on non-2xx response")
	}
}
