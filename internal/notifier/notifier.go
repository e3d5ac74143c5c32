package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"
)

// New picks a notifier implementation by kind. Unknown kinds fall back to the
// log notifier so a misconfigured provider never blocks the queue.
func New(kind string) store.Notifier {
	switch kind {
	case "", "stub", "log":
		return logNotifier{}
	case "noop":
		return noopNotifier{}
	case "fail":
		return failNotifier{}
	case "webhook":
		url := os.Getenv("NOTIFY_WEBHOOK_URL")
		token := os.Getenv("NOTIFY_WEBHOOK_TOKEN")
		if url == "" {
			return logNotifier{}
		}
		return webhookNotifier{url: url, token: token}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return webhookNotifier{url: kind}
		}
		return logNotifier{}
	}
}

func message(ticket models.Ticket, businessName string) string {
	return fmt.Sprintf("Ticket %s: it's your turn at %s.", ticket.TicketNumber, businessName)
}

type logNotifier struct{}

func (logNotifier) Send(ctx context.Context, ticket models.Ticket, businessName string) error {
	log.Printf("notify ticket=%s number=%s: %s", ticket.TicketID, ticket.TicketNumber, message(ticket, businessName))
	return nil
}

type noopNotifier struct{}

func (noopNotifier) Send(ctx context.Context, ticket models.Ticket, businessName string) error {
	return nil
}

type failNotifier struct{}

func (failNotifier) Send(ctx context.Context, ticket models.Ticket, businessName string) error {
	return errors.New("provider failure")
}

type webhookNotifier struct {
	url   string
	token string
}

func (n webhookNotifier) Send(ctx context.Context, ticket models.Ticket, businessName string) error {
	payload := map[string]string{
		"ticket_id":     ticket.TicketID,
		"ticket_number": ticket.TicketNumber,
		"business_id":   ticket.BusinessID,
		"message":       message(ticket, businessName),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return errors.New("provider rejected request")
	}
	return nil
}
