package ticket

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
)

// InMemoryStore is the dev-only fallback used when no database is
// configured. Data does not survive a restart.
type InMemoryStore struct {
	mu       sync.RWMutex
	tickets  map[string]*Ticket
	messages map[string][]Message
}

// NewInMemoryStore creates an empty in-memory ticket store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tickets:  make(map[string]*Ticket),
		messages: make(map[string][]Message),
	}
}

func (s *InMemoryStore) CreateTicket(ctx context.Context, in CreateTicketInput) (Ticket, error) {
	if err := ctx.Err(); err != nil {
		return Ticket{}, err
	}
	subject := strings.TrimSpace(in.Subject)
	if in.RequesterID == "" || subject == "" || !in.Priority.Valid() {
		return Ticket{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tk := Ticket{
		ID:          ulid.Make().String(),
		RequesterID: in.RequesterID,
		Subject:     subject,
		Status:      StatusOpen,
		Priority:    in.Priority,
		CreatedAt:   in.Now,
		UpdatedAt:   in.Now,
	}
	s.tickets[tk.ID] = &tk
	return tk, nil
}

func (s *InMemoryStore) GetTicketByID(ctx context.Context, id string) (Ticket, error) {
	if err := ctx.Err(); err != nil {
		return Ticket{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	tk, ok := s.tickets[id]
	if !ok {
		return Ticket{}, ErrNotFound
	}
	return *tk, nil
}

func (s *InMemoryStore) ListTickets(ctx context.Context, requesterID string) ([]Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Ticket
	for _, tk := range s.tickets {
		if requesterID != "" && tk.RequesterID != requesterID {
			continue
		}
		out = append(out, *tk)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CreateMessage(ctx context.Context, in CreateMessageInput) (Message, error) {
	if err := ctx.Err(); err != nil {
		return Message{}, err
	}
	body := strings.TrimSpace(in.Body)
	if in.TicketID == "" || in.AuthorID == "" || body == "" {
		return Message{}, ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tk, ok := s.tickets[in.TicketID]
	if !ok {
		return Message{}, ErrNotFound
	}
	tk.UpdatedAt = in.Now

	m := Message{
		ID:        ulid.Make().String(),
		TicketID:  in.TicketID,
		AuthorID:  in.AuthorID,
		Body:      body,
		CreatedAt: in.Now,
	}
	s.messages[in.TicketID] = append(s.messages[in.TicketID], m)
	return m, nil
}

func (s *InMemoryStore) ListMessages(ctx context.Context, ticketID string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.tickets[ticketID]; !ok {
		return nil, ErrNotFound
	}
	msgs := s.messages[ticketID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

var _ Store = (*InMemoryStore)(nil)
