package queue

import (
	"context"
	"errors"
	"fmt"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"
)

type Trigger string

const (
	TriggerAlert    Trigger = "alert"
	TriggerServe    Trigger = "serve"
	TriggerComplete Trigger = "complete"
	TriggerCancel   Trigger = "cancel"
	TriggerSkip     Trigger = "skip"
	TriggerRequeue  Trigger = "requeue"
	TriggerNoShow   Trigger = "no_show"
)

var transitionMap = map[Trigger][]string{
	TriggerAlert:    {models.StatusWaiting},
	TriggerServe:    {models.StatusWaiting, models.StatusAlerted},
	TriggerComplete: {models.StatusInService},
	TriggerCancel:   {models.StatusWaiting, models.StatusAlerted, models.StatusInService},
	TriggerSkip:     {models.StatusWaiting, models.StatusAlerted},
	TriggerRequeue:  {models.StatusSkipped},
	TriggerNoShow:   {models.StatusWaiting, models.StatusAlerted},
}

func ValidTransition(trigger Trigger, fromStatus string) bool {
	allowed, ok := transitionMap[trigger]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// StateMachine is the only mutator of ticket status and timestamps. Apply
// either fully commits a transition or fails before any field is touched;
// concurrent transitions on one ticket are serialized by the store's
// compare-and-swap on status.
type StateMachine struct {
	tickets store.TicketStore
	clock   Clock
}

func NewStateMachine(tickets store.TicketStore, clock Clock) *StateMachine {
	return &StateMachine{tickets: tickets, clock: clock}
}

func (m *StateMachine) Apply(ctx context.Context, ticketID string, trigger Trigger) (models.Ticket, error) {
	current, err := m.tickets.Get(ctx, ticketID)
	if err != nil {
		if errors.Is(err, store.ErrTicketNotFound) {
			return models.Ticket{}, fmt.Errorf("%w: ticket %s", ErrNotFound, ticketID)
		}
		return models.Ticket{}, &DependencyError{Op: "ticket store", Err: err}
	}

	// Re-applying a non-terminal trigger to a ticket already in the target
	// state is a no-op success.
	if (trigger == TriggerAlert && current.Status == models.StatusAlerted) ||
		(trigger == TriggerSkip && current.Status == models.StatusSkipped) ||
		(trigger == TriggerRequeue && current.Status == models.StatusWaiting) {
		return current, nil
	}

	if !ValidTransition(trigger, current.Status) {
		return models.Ticket{}, &TransitionError{Current: current.Status, Trigger: trigger}
	}

	now := m.clock.Now()
	updated := current
	switch trigger {
	case TriggerAlert:
		updated.Status = models.StatusAlerted
		updated.AlertedAt = &now
	case TriggerServe:
		updated.Status = models.StatusInService
		updated.ServedAt = &now
	case TriggerComplete:
		if current.ServedAt == nil {
			return models.Ticket{}, fmt.Errorf("%w: ticket %s completed without served_at", ErrIntegrity, ticketID)
		}
		if now.Before(*current.ServedAt) {
			return models.Ticket{}, fmt.Errorf("%w: completion at %s precedes service start %s", ErrIntegrity, now, *current.ServedAt)
		}
		updated.Status = models.StatusCompleted
		updated.CompletedAt = &now
	case TriggerCancel:
		if now.Before(current.JoinedAt) {
			return models.Ticket{}, fmt.Errorf("%w: cancellation at %s precedes joined_at %s", ErrIntegrity, now, current.JoinedAt)
		}
		updated.Status = models.StatusCanceled
		updated.CompletedAt = &now
	case TriggerNoShow:
		if now.Before(current.JoinedAt) {
			return models.Ticket{}, fmt.Errorf("%w: no-show at %s precedes joined_at %s", ErrIntegrity, now, current.JoinedAt)
		}
		updated.Status = models.StatusNoShow
		updated.CompletedAt = &now
	case TriggerSkip:
		updated.Status = models.StatusSkipped
	case TriggerRequeue:
		updated.Status = models.StatusWaiting
	}
	updated.Version = current.Version + 1

	saved, err := m.tickets.CompareAndSwapStatus(ctx, ticketID, current.Status, updated)
	if err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// Another transition won the race; report against the fresh status.
			fresh, getErr := m.tickets.Get(ctx, ticketID)
			if getErr != nil {
				return models.Ticket{}, &TransitionError{Current: current.Status, Trigger: trigger}
			}
			return models.Ticket{}, &TransitionError{Current: fresh.Status, Trigger: trigger}
		}
		if errors.Is(err, store.ErrTicketNotFound) {
			return models.Ticket{}, fmt.Errorf("%w: ticket %s", ErrNotFound, ticketID)
		}
		return models.Ticket{}, &DependencyError{Op: "ticket store", Err: err}
	}
	return saved, nil
}
