package queue

import (
	"math"
	"sort"
	"time"

	"qms/queue-core/internal/models"
)

type ServiceCount struct {
	ServiceType string `json:"service_type"`
	Count       int    `json:"count"`
}

type MetricsReport struct {
	AverageWaitMinutes  float64        `json:"average_wait_minutes"`
	CompletedInWindow   int            `json:"completed_in_window"`
	CancelledOrNoShow   int            `json:"cancelled_or_no_show"`
	WeeklyVolume        [7]int         `json:"weekly_volume"`
	PeakHours           map[int]int    `json:"peak_hours"`
	ServiceDistribution []ServiceCount `json:"service_distribution"`
}

// AverageWaitTime is the mean wait in minutes over tickets that have been
// served, rounded to one decimal. Tickets never served are excluded rather
// than counted as zero. Empty input yields 0.
func AverageWaitTime(tickets []models.Ticket) float64 {
	var sum time.Duration
	count := 0
	for _, t := range tickets {
		if t.ServedAt == nil {
			continue
		}
		sum += t.WaitTime(*t.ServedAt)
		count++
	}
	if count == 0 {
		return 0
	}
	mean := sum.Minutes() / float64(count)
	return math.Round(mean*10) / 10
}

// CompletedInWindow counts completed tickets whose completed_at falls in
// [start, end).
func CompletedInWindow(tickets []models.Ticket, start, end time.Time) int {
	count := 0
	for _, t := range tickets {
		if t.Status != models.StatusCompleted || t.CompletedAt == nil {
			continue
		}
		at := *t.CompletedAt
		if at.Before(start) || !at.Before(end) {
			continue
		}
		count++
	}
	return count
}

func CancelledOrNoShow(tickets []models.Ticket) int {
	count := 0
	for _, t := range tickets {
		if t.Status == models.StatusCanceled || t.Status == models.StatusNoShow {
			count++
		}
	}
	return count
}

// WeeklyVolume buckets joins by weekday over the 7 calendar days ending at
// reference. Indexing is fixed Sun=0..Sat=6.
func WeeklyVolume(tickets []models.Ticket, reference time.Time) [7]int {
	dayStart := time.Date(reference.Year(), reference.Month(), reference.Day(), 0, 0, 0, 0, reference.Location())
	windowStart := dayStart.AddDate(0, 0, -6)
	windowEnd := dayStart.AddDate(0, 0, 1)

	var buckets [7]int
	for _, t := range tickets {
		joined := t.JoinedAt.In(reference.Location())
		if joined.Before(windowStart) || !joined.Before(windowEnd) {
			continue
		}
		buckets[int(joined.Weekday())]++
	}
	return buckets
}

// PeakHours buckets joins by hour-of-day in the given location. Only hours
// with at least one ticket appear as keys.
func PeakHours(tickets []models.Ticket, loc *time.Location) map[int]int {
	if loc == nil {
		loc = time.UTC
	}
	hours := make(map[int]int)
	for _, t := range tickets {
		hours[t.JoinedAt.In(loc).Hour()]++
	}
	return hours
}

// ServiceDistribution groups tickets by declared service type, ordered by
// first appearance in queue-arrival order. Grouping over arrival order rather
// than slice order keeps the result identical across re-orderings of the
// input. Tickets without a service type are excluded.
func ServiceDistribution(tickets []models.Ticket) []ServiceCount {
	ordered := make([]models.Ticket, len(tickets))
	copy(ordered, tickets)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].JoinedAt.Equal(ordered[j].JoinedAt) {
			return ordered[i].JoinedAt.Before(ordered[j].JoinedAt)
		}
		return ordered[i].TicketID < ordered[j].TicketID
	})

	index := make(map[string]int)
	var out []ServiceCount
	for _, t := range ordered {
		if t.ServiceType == "" {
			continue
		}
		i, ok := index[t.ServiceType]
		if !ok {
			index[t.ServiceType] = len(out)
			out = append(out, ServiceCount{ServiceType: t.ServiceType})
			i = len(out) - 1
		}
		out[i].Count++
	}
	return out
}

// Report assembles the full dashboard view for one snapshot and window.
func Report(tickets []models.Ticket, start, end, reference time.Time, loc *time.Location) MetricsReport {
	if loc == nil {
		loc = time.UTC
	}
	return MetricsReport{
		AverageWaitMinutes:  AverageWaitTime(tickets),
		CompletedInWindow:   CompletedInWindow(tickets, start, end),
		CancelledOrNoShow:   CancelledOrNoShow(tickets),
		WeeklyVolume:        WeeklyVolume(tickets, reference.In(loc)),
		PeakHours:           PeakHours(tickets, loc),
		ServiceDistribution: ServiceDistribution(tickets),
	}
}
