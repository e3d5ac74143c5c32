package queue

import (
	"context"
	"time"

	"qms/queue-core/internal/models"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type fakeNotifier struct {
	sendFn func(ctx context.Context, ticket models.Ticket, businessName string) error
	calls  int
}

func (n *fakeNotifier) Send(ctx context.Context, ticket models.Ticket, businessName string) error {
	n.calls++
	if n.sendFn != nil {
		return n.sendFn(ctx, ticket, businessName)
	}
	return nil
}

type fakeTicketStore struct {
	createFn func(ctx context.Context, ticket models.Ticket) error
	getFn    func(ctx context.Context, ticketID string) (models.Ticket, error)
	casFn    func(ctx context.Context, ticketID, expectedStatus string, updated models.Ticket) (models.Ticket, error)
}

func (s *fakeTicketStore) Create(ctx context.Context, ticket models.Ticket) error {
	return s.createFn(ctx, ticket)
}

func (s *fakeTicketStore) Get(ctx context.Context, ticketID string) (models.Ticket, error) {
	return s.getFn(ctx, ticketID)
}

func (s *fakeTicketStore) CompareAndSwapStatus(ctx context.Context, ticketID, expectedStatus string, updated models.Ticket) (models.Ticket, error) {
	return s.casFn(ctx, ticketID, expectedStatus, updated)
}

func (s *fakeTicketStore) ListWaiting(ctx context.Context, businessID, queuePointID string) ([]models.Ticket, error) {
	return nil, nil
}

func (s *fakeTicketStore) QueryByBusinessAndWindow(ctx context.Context, businessID string, start, end time.Time) ([]models.Ticket, error) {
	return nil, nil
}

func (s *fakeTicketStore) ListOverdueAlerted(ctx context.Context, cutoff time.Time, limit int) ([]models.Ticket, error) {
	return nil, nil
}
