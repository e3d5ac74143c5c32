package store

import (
	"context"
	"time"

	"qms/queue-core/internal/models"
)

// TicketStore persists tickets. CompareAndSwapStatus must only apply the update
// when the stored status still equals expectedStatus, so that two concurrent
// transitions on the same ticket cannot both succeed.
type TicketStore interface {
	Create(ctx context.Context, ticket models.Ticket) error
	Get(ctx context.Context, ticketID string) (models.Ticket, error)
	CompareAndSwapStatus(ctx context.Context, ticketID, expectedStatus string, updated models.Ticket) (models.Ticket, error)
	ListWaiting(ctx context.Context, businessID, queuePointID string) ([]models.Ticket, error)
	QueryByBusinessAndWindow(ctx context.Context, businessID string, start, end time.Time) ([]models.Ticket, error)
	ListOverdueAlerted(ctx context.Context, cutoff time.Time, limit int) ([]models.Ticket, error)
}

// SequenceStore issues the next ticket ordinal for a (business, day) key in a
// single atomic round trip.
type SequenceStore interface {
	AtomicIncrement(ctx context.Context, businessID, dayKey string) (uint32, error)
}

type BusinessDirectory interface {
	Resolve(ctx context.Context, businessID string) (models.Business, error)
}

type Notifier interface {
	Send(ctx context.Context, ticket models.Ticket, businessName string) error
}
