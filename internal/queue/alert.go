package queue

import (
	"context"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"
)

const defaultNotifyTimeout = 5 * time.Second

// AlertDispatcher decides "your turn" eligibility and hands the message off to
// the external notifier. It never sends mail itself, and a delivery failure
// never rolls back the ticket's status: the queue reflects operational
// reality, not notification reliability.
type AlertDispatcher struct {
	machine  *StateMachine
	notifier store.Notifier
	timeout  time.Duration
}

func NewAlertDispatcher(machine *StateMachine, notifier store.Notifier, timeout time.Duration) *AlertDispatcher {
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	return &AlertDispatcher{machine: machine, notifier: notifier, timeout: timeout}
}

func (d *AlertDispatcher) ShouldAlert(ticket models.Ticket) bool {
	return ticket.Status == models.StatusWaiting || ticket.Status == models.StatusAlerted
}

// Alert marks the ticket alerted and, on first alert of a waiting ticket,
// promotes it into service. Alerting an ineligible ticket fails with
// NotAlertable before any state is touched. A notifier failure is returned as
// a DependencyError alongside the already-committed ticket.
func (d *AlertDispatcher) Alert(ctx context.Context, ticket models.Ticket, businessName string) (models.Ticket, error) {
	if !d.ShouldAlert(ticket) {
		return models.Ticket{}, &NotAlertableError{Status: ticket.Status}
	}

	wasWaiting := ticket.Status == models.StatusWaiting
	updated, err := d.machine.Apply(ctx, ticket.TicketID, TriggerAlert)
	if err != nil {
		return models.Ticket{}, err
	}
	if wasWaiting {
		updated, err = d.machine.Apply(ctx, updated.TicketID, TriggerServe)
		if err != nil {
			return models.Ticket{}, err
		}
	}

	nctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.notifier.Send(nctx, updated, businessName); err != nil {
		return updated, &DependencyError{Op: "notifier", Err: err}
	}
	return updated, nil
}
