package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store/memory"
)

func TestAlertPromotesWaitingIntoService(t *testing.T) {
	joined := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	mem := memory.NewStore()
	seeded := seedTicket(t, mem, models.StatusWaiting, joined)
	clock := &fakeClock{now: joined.Add(10 * time.Minute)}
	notifier := &fakeNotifier{}
	dispatcher := NewAlertDispatcher(NewStateMachine(mem, clock), notifier, 0)

	updated, err := dispatcher.Alert(context.Background(), seeded, "Branch A")
	if err != nil {
		t.Fatalf("Alert: %v", err)
	}
	if updated.Status != models.StatusInService {
		t.Fatalf("status = %s, want in_service", updated.Status)
	}
	if updated.AlertedAt == nil || updated.ServedAt == nil {
		t.Fatalf("alerted_at=%v served_at=%v, want both set", updated.AlertedAt, updated.ServedAt)
	}
	if notifier.calls != 1 {
		t.Fatalf("notifier called %d times, want 1", notifier.calls)
	}
}

func TestAlertOnTerminalTicketRejected(t *testing.T) {
	joined := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	mem := memory.NewStore()
	seeded := seedTicket(t, mem, models.StatusCompleted, joined)
	notifier := &fakeNotifier{}
	dispatcher := NewAlertDispatcher(NewStateMachine(mem, &fakeClock{now: joined.Add(time.Hour)}), notifier, 0)

	_, err := dispatcher.Alert(context.Background(), seeded, "Branch A")
	if !errors.Is(err, ErrNotAlertable) {
		t.Fatalf("err = %v, want ErrNotAlertable", err)
	}
	var nae *NotAlertableError
	if !errors.As(err, &nae) || nae.Status != models.StatusCompleted {
		t.Fatalf("err = %v, want NotAlertableError with completed status", err)
	}
	if notifier.calls != 0 {
		t.Fatalf("notifier called %d times on rejected alert", notifier.calls)
	}

	stored, getErr := mem.Get(context.Background(), seeded.TicketID)
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if stored.Status != models.StatusCompleted || stored.Version != seeded.Version {
		t.Fatalf("rejected alert mutated ticket: %+v", stored)
	}
}

func TestAlertDeliveryFailureKeepsTransition(t *testing.T) {
	joined := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	mem := memory.NewStore()
	seeded := seedTicket(t, mem, models.StatusWaiting, joined)
	notifier := &fakeNotifier{
		sendFn: func(ctx context.Context, ticket models.Ticket, businessName string) error {
			return errors.New("smtp down")
		},
	}
	dispatcher := NewAlertDispatcher(NewStateMachine(mem, &fakeClock{now: joined.Add(time.Minute)}), notifier, 0)

	updated, err := dispatcher.Alert(context.Background(), seeded, "Branch A")
	if !errors.Is(err, ErrDependency) {
		t.Fatalf("err = %v, want ErrDependency", err)
	}
	if updated.Status != models.StatusInService {
		t.Fatalf("returned status = %s, want in_service despite delivery failure", updated.Status)
	}

	stored, getErr := mem.Get(context.Background(), seeded.TicketID)
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if stored.Status != models.StatusInService {
		t.Fatalf("stored status = %s, want in_service", stored.Status)
	}
}

func TestShouldAlert(t *testing.T) {
	cases := []struct {
		status string
		want   bool
	}{
		{models.StatusWaiting, true},
		{models.StatusAlerted, true},
		{models.StatusInService, false},
		{models.StatusCompleted, false},
		{models.StatusCanceled, false},
		{models.StatusNoShow, false},
		{models.StatusSkipped, false},
	}
	dispatcher := NewAlertDispatcher(nil, nil, 0)
	for _, tc := range cases {
		if got := dispatcher.ShouldAlert(models.Ticket{Status: tc.status}); got != tc.want {
			t.Errorf("ShouldAlert(%s) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
