package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"
)

// Store is a mutex-guarded in-memory implementation of the collaborator
// interfaces, used when no database is configured and by tests. Increment and
// compare-and-swap run under one lock, so the same linearizability guarantees
// hold as for the SQL store.
type Store struct {
	mu         sync.Mutex
	tickets    map[string]models.Ticket
	sequences  map[string]uint32
	businesses map[string]models.Business
}

func NewStore() *Store {
	return &Store{
		tickets:    make(map[string]models.Ticket),
		sequences:  make(map[string]uint32),
		businesses: make(map[string]models.Business),
	}
}

func (s *Store) AddBusiness(business models.Business) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.businesses[business.BusinessID] = business
}

func (s *Store) Resolve(ctx context.Context, businessID string) (models.Business, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	business, ok := s.businesses[businessID]
	if !ok {
		return models.Business{}, store.ErrBusinessNotFound
	}
	return business, nil
}

func (s *Store) AtomicIncrement(ctx context.Context, businessID, dayKey string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := businessID + "|" + dayKey
	s.sequences[key]++
	return s.sequences[key], nil
}

func (s *Store) Create(ctx context.Context, ticket models.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.TicketID]; ok {
		return store.ErrDuplicateTicket
	}
	s.tickets[ticket.TicketID] = ticket
	return nil
}

func (s *Store) Get(ctx context.Context, ticketID string) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *Store) CompareAndSwapStatus(ctx context.Context, ticketID, expectedStatus string, updated models.Ticket) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if current.Status != expectedStatus {
		return models.Ticket{}, store.ErrVersionConflict
	}
	s.tickets[ticketID] = updated
	return updated, nil
}

func (s *Store) ListWaiting(ctx context.Context, businessID, queuePointID string) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, ticket := range s.tickets {
		if ticket.BusinessID != businessID || ticket.Status != models.StatusWaiting {
			continue
		}
		if queuePointID != "" && ticket.QueuePointID != queuePointID {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority
		}
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].TicketID < out[j].TicketID
	})
	return out, nil
}

func (s *Store) QueryByBusinessAndWindow(ctx context.Context, businessID string, start, end time.Time) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, ticket := range s.tickets {
		if ticket.BusinessID != businessID {
			continue
		}
		if ticket.JoinedAt.Before(start) || !ticket.JoinedAt.Before(end) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].JoinedAt.Equal(out[j].JoinedAt) {
			return out[i].JoinedAt.Before(out[j].JoinedAt)
		}
		return out[i].TicketID < out[j].TicketID
	})
	return out, nil
}

func (s *Store) ListOverdueAlerted(ctx context.Context, cutoff time.Time, limit int) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, ticket := range s.tickets {
		if ticket.Status != models.StatusAlerted || ticket.AlertedAt == nil {
			continue
		}
		if ticket.AlertedAt.After(cutoff) {
			continue
		}
		out = append(out, ticket)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].AlertedAt.Before(*out[j].AlertedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
