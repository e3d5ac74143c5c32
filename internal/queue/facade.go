package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"

	"github.com/google/uuid"
)

// EventSink receives every committed ticket mutation, for realtime boards.
// Implementations must not block.
type EventSink interface {
	TicketChanged(ticket models.Ticket, eventType string)
}

type EnqueueInput struct {
	BusinessID   string
	QueuePointID string
	ServiceType  string
	Priority     bool
}

// Facade is the single entry point external callers use. It owns call
// ordering and error translation only; queue rules live in the components it
// composes.
type Facade struct {
	directory store.BusinessDirectory
	tickets   store.TicketStore
	allocator *SequenceAllocator
	machine   *StateMachine
	alerts    *AlertDispatcher
	clock     Clock
	sink      EventSink
}

type FacadeOptions struct {
	NotifyTimeout time.Duration
	Sink          EventSink
}

func NewFacade(directory store.BusinessDirectory, tickets store.TicketStore, sequences store.SequenceStore, notifier store.Notifier, clock Clock, options FacadeOptions) *Facade {
	if clock == nil {
		clock = SystemClock{}
	}
	machine := NewStateMachine(tickets, clock)
	return &Facade{
		directory: directory,
		tickets:   tickets,
		allocator: NewSequenceAllocator(directory, sequences),
		machine:   machine,
		alerts:    NewAlertDispatcher(machine, notifier, options.NotifyTimeout),
		clock:     clock,
		sink:      options.Sink,
	}
}

func (f *Facade) Enqueue(ctx context.Context, input EnqueueInput) (models.Ticket, error) {
	now := f.clock.Now()
	seq, business, err := f.allocator.Next(ctx, input.BusinessID, now)
	if err != nil {
		return models.Ticket{}, err
	}

	ticket := models.Ticket{
		TicketID:     uuid.NewString(),
		BusinessID:   input.BusinessID,
		QueuePointID: input.QueuePointID,
		TicketNumber: FormatTicketNumber(business.BranchCode, seq),
		ServiceType:  input.ServiceType,
		Priority:     input.Priority,
		Status:       models.StatusWaiting,
		JoinedAt:     now,
		Version:      1,
	}
	if err := f.tickets.Create(ctx, ticket); err != nil {
		return models.Ticket{}, &DependencyError{Op: "ticket store", Err: err}
	}
	f.publish(ticket, "ticket.created")
	return ticket, nil
}

func (f *Facade) Get(ctx context.Context, ticketID string) (models.Ticket, error) {
	ticket, err := f.tickets.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			return models.Ticket{}, fmt.Errorf("%w: ticket %s", ErrNotFound, ticketID)
		}
		return models.Ticket{}, &DependencyError{Op: "ticket store", Err: err}
	}
	return ticket, nil
}

func (f *Facade) Serve(ctx context.Context, ticketID string) (models.Ticket, error) {
	return f.apply(ctx, ticketID, TriggerServe, "ticket.serving")
}

func (f *Facade) Complete(ctx context.Context, ticketID string) (models.Ticket, error) {
	return f.apply(ctx, ticketID, TriggerComplete, "ticket.completed")
}

func (f *Facade) Cancel(ctx context.Context, ticketID string) (models.Ticket, error) {
	return f.apply(ctx, ticketID, TriggerCancel, "ticket.cancelled")
}

func (f *Facade) Skip(ctx context.Context, ticketID string) (models.Ticket, error) {
	return f.apply(ctx, ticketID, TriggerSkip, "ticket.skipped")
}

func (f *Facade) Requeue(ctx context.Context, ticketID string) (models.Ticket, error) {
	return f.apply(ctx, ticketID, TriggerRequeue, "ticket.requeued")
}

func (f *Facade) MarkNoShow(ctx context.Context, ticketID string) (models.Ticket, error) {
	return f.apply(ctx, ticketID, TriggerNoShow, "ticket.no_show")
}

func (f *Facade) apply(ctx context.Context, ticketID string, trigger Trigger, eventType string) (models.Ticket, error) {
	ticket, err := f.machine.Apply(ctx, ticketID, trigger)
	if err != nil {
		return models.Ticket{}, err
	}
	f.publish(ticket, eventType)
	return ticket, nil
}

// Alert checks eligibility, promotes a waiting ticket into service, and hands
// the notification to the external notifier. Delivery failure is downgraded to
// a warning here: the transition has already committed.
func (f *Facade) Alert(ctx context.Context, ticketID string) (models.Ticket, error) {
	ticket, err := f.Get(ctx, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	business, err := f.directory.Resolve(ctx, ticket.BusinessID)
	if err != nil {
		if errors.Is(err, store.ErrBusinessNotFound) {
			return models.Ticket{}, fmt.Errorf("%w: business %s", ErrNotFound, ticket.BusinessID)
		}
		return models.Ticket{}, &DependencyError{Op: "business directory", Err: err}
	}

	updated, err := f.alerts.Alert(ctx, ticket, business.Name)
	if err != nil {
		if errors.Is(err, ErrDependency) {
			log.Printf("alert delivery failed ticket=%s number=%s err=%v", updated.TicketID, updated.TicketNumber, err)
			err = nil
		} else {
			return models.Ticket{}, err
		}
	}
	f.publish(updated, "ticket.alerted")
	return updated, nil
}

func (f *Facade) ListWaiting(ctx context.Context, businessID, queuePointID string) ([]models.Ticket, error) {
	if _, err := f.directory.Resolve(ctx, businessID); err != nil {
		if errors.Is(err, store.ErrBusinessNotFound) {
			return nil, fmt.Errorf("%w: business %s", ErrNotFound, businessID)
		}
		return nil, &DependencyError{Op: "business directory", Err: err}
	}
	tickets, err := f.tickets.ListWaiting(ctx, businessID, queuePointID)
	if err != nil {
		return nil, &DependencyError{Op: "ticket store", Err: err}
	}
	return tickets, nil
}

// GetMetrics computes dashboard statistics over a snapshot of the window
// [start, end). The read path takes no locks and tolerates slightly stale
// data.
func (f *Facade) GetMetrics(ctx context.Context, businessID string, start, end time.Time) (MetricsReport, error) {
	business, err := f.directory.Resolve(ctx, businessID)
	if err != nil {
		if errors.Is(err, store.ErrBusinessNotFound) {
			return MetricsReport{}, fmt.Errorf("%w: business %s", ErrNotFound, businessID)
		}
		return MetricsReport{}, &DependencyError{Op: "business directory", Err: err}
	}

	tickets, err := f.tickets.QueryByBusinessAndWindow(ctx, businessID, start, end)
	if err != nil {
		return MetricsReport{}, &DependencyError{Op: "ticket store", Err: err}
	}
	return Report(tickets, start, end, f.clock.Now(), BusinessLocation(business)), nil
}

// SweepOverdueAlerts marks tickets stuck in alerted past the grace period as
// no-shows, in batches. Races with operator actions are skipped, not errors.
func (f *Facade) SweepOverdueAlerts(ctx context.Context, grace time.Duration, batchSize int) (int, error) {
	if grace <= 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	cutoff := f.clock.Now().Add(-grace)
	overdue, err := f.tickets.ListOverdueAlerted(ctx, cutoff, batchSize)
	if err != nil {
		return 0, &DependencyError{Op: "ticket store", Err: err}
	}

	processed := 0
	for _, ticket := range overdue {
		updated, err := f.machine.Apply(ctx, ticket.TicketID, TriggerNoShow)
		if err != nil {
			if errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrNotFound) {
				continue
			}
			return processed, err
		}
		f.publish(updated, "ticket.no_show")
		processed++
	}
	return processed, nil
}

func (f *Facade) publish(ticket models.Ticket, eventType string) {
	if f.sink == nil {
		return
	}
	f.sink.TicketChanged(ticket, eventType)
}
