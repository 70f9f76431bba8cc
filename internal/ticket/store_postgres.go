package ticket

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

const (
	ticketColumns  = `id, requester_id, assignee_id, subject, status, priority, created_at, updated_at`
	messageColumns = `id, ticket_id, author_id, body, created_at`
)

var pgIdentRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool   *pgxpool.Pool
	schema string
}

// PostgresOption customizes a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithSchema overrides the schema the store reads and writes. Used by
// integration tests to isolate runs in throwaway schemas.
func WithSchema(schema string) PostgresOption {
	return func(s *PostgresStore) {
		s.schema = schema
	}
}

// NewPostgresStore creates a Postgres-backed ticket store.
func NewPostgresStore(pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, schema: "ticketd"}
	for _, opt := range opts {
		opt(s)
	}
	if s.pool == nil {
		return nil, errors.New("nil pool")
	}
	if !pgIdentRe.MatchString(s.schema) {
		return nil, fmt.Errorf("invalid schema name %q", s.schema)
	}
	return s, nil
}

func (s *PostgresStore) tickets() string {
	return pgx.Identifier{s.schema, "tickets"}.Sanitize()
}

func (s *PostgresStore) messages() string {
	return pgx.Identifier{s.schema, "messages"}.Sanitize()
}

// CreateTicket inserts a new open ticket.
func (s *PostgresStore) CreateTicket(ctx context.Context, in CreateTicketInput) (Ticket, error) {
	subject := strings.TrimSpace(in.Subject)
	if in.RequesterID == "" || subject == "" || !in.Priority.Valid() {
		return Ticket{}, ErrInvalidInput
	}

	id := ulid.Make().String()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO `+s.tickets()+` (
			id, requester_id, assignee_id, subject, status, priority, created_at, updated_at
		) VALUES ($1, $2, NULL, $3, $4, $5, $6, $6)
	`, id, in.RequesterID, subject, string(StatusOpen), string(in.Priority), in.Now)
	if err != nil {
		return Ticket{}, err
	}

	return Ticket{
		ID:          id,
		RequesterID: in.RequesterID,
		Subject:     subject,
		Status:      StatusOpen,
		Priority:    in.Priority,
		CreatedAt:   in.Now,
		UpdatedAt:   in.Now,
	}, nil
}

// GetTicketByID loads a ticket by id.
func (s *PostgresStore) GetTicketByID(ctx context.Context, id string) (Ticket, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM `+s.tickets()+`
		WHERE id = $1
	`, id)
	return scanTicket(row)
}

// ListTickets returns tickets newest first, optionally narrowed to a requester.
func (s *PostgresStore) ListTickets(ctx context.Context, requesterID string) ([]Ticket, error) {
	query := `
		SELECT ` + ticketColumns + `
		FROM ` + s.tickets() + `
	`
	args := []any{}
	if requesterID != "" {
		query += ` WHERE requester_id = $1`
		args = append(args, requesterID)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		tk, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tk)
	}
	return out, rows.Err()
}

// CreateMessage appends a message to an existing ticket and bumps the
// ticket's updated_at.
func (s *PostgresStore) CreateMessage(ctx context.Context, in CreateMessageInput) (Message, error) {
	body := strings.TrimSpace(in.Body)
	if in.TicketID == "" || in.AuthorID == "" || body == "" {
		return Message{}, ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
		UPDATE `+s.tickets()+`
		SET updated_at = $2
		WHERE id = $1
	`, in.TicketID, in.Now)
	if err != nil {
		return Message{}, err
	}
	if tag.RowsAffected() == 0 {
		return Message{}, ErrNotFound
	}

	id := ulid.Make().String()
	_, err = tx.Exec(ctx, `
		INSERT INTO `+s.messages()+` (
			id, ticket_id, author_id, body, created_at
		) VALUES ($1, $2, $3, $4, $5)
	`, id, in.TicketID, in.AuthorID, body, in.Now)
	if err != nil {
		return Message{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, err
	}

	return Message{
		ID:        id,
		TicketID:  in.TicketID,
		AuthorID:  in.AuthorID,
		Body:      body,
		CreatedAt: in.Now,
	}, nil
}

// ListMessages returns a ticket's messages oldest first.
func (s *PostgresStore) ListMessages(ctx context.Context, ticketID string) ([]Message, error) {
	if _, err := s.GetTicketByID(ctx, ticketID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM `+s.messages()+`
		WHERE ticket_id = $1
		ORDER BY created_at ASC, id ASC
	`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.TicketID, &m.AuthorID, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanTicket(row pgx.Row) (Ticket, error) {
	var (
		tk       Ticket
		status   string
		priority string
	)
	err := row.Scan(
		&tk.ID,
		&tk.RequesterID,
		&tk.AssigneeID,
		&tk.Subject,
		&status,
		&priority,
		&tk.CreatedAt,
		&tk.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Ticket{}, ErrNotFound
	}
	if err != nil {
		return Ticket{}, err
	}
	tk.Status = Status(status)
	tk.Priority = Priority(priority)
	return tk, nil
}

var _ Store = (*PostgresStore)(nil)
