package models

import "time"

type Ticket struct {
	TicketID     string     `json:"ticket_id"`
	BusinessID   string     `json:"business_id"`
	QueuePointID string     `json:"queue_point_id"`
	TicketNumber string     `json:"ticket_number"`
	ServiceType  string     `json:"service_type,omitempty"`
	Priority     bool       `json:"priority,omitempty"`
	Status       string     `json:"status"`
	JoinedAt     time.Time  `json:"joined_at"`
	AlertedAt    *time.Time `json:"alerted_at,omitempty"`
	ServedAt     *time.Time `json:"served_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Version      int64      `json:"version"`
}

const (
	StatusWaiting   = "waiting"
	StatusAlerted   = "alerted"
	StatusInService = "in_service"
	StatusCompleted = "completed"
	StatusCanceled  = "canceled"
	StatusNoShow    = "no_show"
	StatusSkipped   = "skipped"
)

// WaitTime is the elapsed time from joining the queue to being served, or to
// now for tickets not yet served. Never negative.
func (t Ticket) WaitTime(now time.Time) time.Duration {
	end := now
	if t.ServedAt != nil {
		end = *t.ServedAt
	}
	d := end.Sub(t.JoinedAt)
	if d < 0 {
		return 0
	}
	return d
}

// ServiceTime is defined only once both served_at and completed_at are set.
func (t Ticket) ServiceTime() (time.Duration, bool) {
	if t.ServedAt == nil || t.CompletedAt == nil {
		return 0, false
	}
	return t.CompletedAt.Sub(*t.ServedAt), true
}

func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusCanceled, StatusNoShow:
		return true
	default:
		return false
	}
}
