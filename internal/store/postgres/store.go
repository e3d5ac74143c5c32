package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"qms/queue-core/internal/models"
	"qms/queue-core/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const ticketColumns = `ticket_id, business_id, queue_point_id, ticket_number, service_type, priority, status, joined_at, alerted_at, served_at, completed_at, version`

func (s *Store) Resolve(ctx context.Context, businessID string) (models.Business, error) {
	var business models.Business
	var tzNull sql.NullString
	row := s.pool.QueryRow(ctx, `
		SELECT business_id, kind, name, branch_code, timezone
		FROM businesses
		WHERE business_id = $1
	`, businessID)
	if err := row.Scan(&business.BusinessID, &business.Kind, &business.Name, &business.BranchCode, &tzNull); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Business{}, store.ErrBusinessNotFound
		}
		return models.Business{}, err
	}
	if tzNull.Valid {
		business.Timezone = tzNull.String
	}
	return business, nil
}

// AtomicIncrement performs the upsert-and-increment in one round trip so two
// concurrent callers can never observe the same value.
func (s *Store) AtomicIncrement(ctx context.Context, businessID, dayKey string) (uint32, error) {
	var next int64
	row := s.pool.QueryRow(ctx, `
		INSERT INTO ticket_sequences (business_id, day_key, next_number)
		VALUES ($1, $2, 1)
		ON CONFLICT (business_id, day_key)
		DO UPDATE SET next_number = ticket_sequences.next_number + 1
		RETURNING next_number
	`, businessID, dayKey)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return uint32(next), nil
}

func (s *Store) Create(ctx context.Context, ticket models.Ticket) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO tickets (
			ticket_id, business_id, queue_point_id, ticket_number, service_type,
			priority, status, joined_at, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (ticket_id) DO NOTHING
	`, ticket.TicketID, ticket.BusinessID, nullIfEmpty(ticket.QueuePointID), ticket.TicketNumber,
		nullIfEmpty(ticket.ServiceType), ticket.Priority, ticket.Status, ticket.JoinedAt, ticket.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDuplicateTicket
	}
	return nil
}

func (s *Store) Get(ctx context.Context, ticketID string) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

// CompareAndSwapStatus applies the update only while the stored status still
// matches. A no-row result is disambiguated into not-found versus conflict.
func (s *Store) CompareAndSwapStatus(ctx context.Context, ticketID, expectedStatus string, updated models.Ticket) (models.Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE tickets
		SET status = $1,
			alerted_at = $2,
			served_at = $3,
			completed_at = $4,
			version = $5
		WHERE ticket_id = $6 AND status = $7
		RETURNING `+ticketColumns+`
	`, updated.Status, updated.AlertedAt, updated.ServedAt, updated.CompletedAt, updated.Version, ticketID, expectedStatus)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var exists bool
			check := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE ticket_id = $1)`, ticketID)
			if err := check.Scan(&exists); err != nil {
				return models.Ticket{}, err
			}
			if !exists {
				return models.Ticket{}, store.ErrTicketNotFound
			}
			return models.Ticket{}, store.ErrVersionConflict
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) ListWaiting(ctx context.Context, businessID, queuePointID string) ([]models.Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM tickets
		WHERE business_id = $1 AND status = 'waiting'
	`
	args := []interface{}{businessID}
	if queuePointID != "" {
		query += " AND queue_point_id = $2"
		args = append(args, queuePointID)
	}
	query += " ORDER BY priority DESC, joined_at ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (s *Store) QueryByBusinessAndWindow(ctx context.Context, businessID string, start, end time.Time) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE business_id = $1 AND joined_at >= $2 AND joined_at < $3
		ORDER BY joined_at ASC
	`, businessID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (s *Store) ListOverdueAlerted(ctx context.Context, cutoff time.Time, limit int) ([]models.Ticket, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE status = 'alerted' AND alerted_at <= $1
		ORDER BY alerted_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner) (models.Ticket, error) {
	var ticket models.Ticket
	var queuePointNull sql.NullString
	var serviceTypeNull sql.NullString
	var alertedAtNull sql.NullTime
	var servedAtNull sql.NullTime
	var completedAtNull sql.NullTime
	if err := row.Scan(&ticket.TicketID, &ticket.BusinessID, &queuePointNull, &ticket.TicketNumber,
		&serviceTypeNull, &ticket.Priority, &ticket.Status, &ticket.JoinedAt,
		&alertedAtNull, &servedAtNull, &completedAtNull, &ticket.Version); err != nil {
		return models.Ticket{}, err
	}
	if queuePointNull.Valid {
		ticket.QueuePointID = queuePointNull.String
	}
	if serviceTypeNull.Valid {
		ticket.ServiceType = serviceTypeNull.String
	}
	ticket.AlertedAt = nullTimePtr(alertedAtNull)
	ticket.ServedAt = nullTimePtr(servedAtNull)
	ticket.CompletedAt = nullTimePtr(completedAtNull)
	return ticket, nil
}

func scanTickets(rows pgx.Rows) ([]models.Ticket, error) {
	var tickets []models.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}
