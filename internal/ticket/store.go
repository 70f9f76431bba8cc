package ticket

import (
	"context"
	"time"
)

// Ticket is a support request opened by a customer.
type Ticket struct {
	ID          string
	RequesterID string
	AssigneeID  *string
	Subject     string
	Status      Status
	Priority    Priority
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Message is a single entry in a ticket's conversation thread.
type Message struct {
	ID        string
	TicketID  string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

// CreateTicketInput is a normalized ticket insert payload.
type CreateTicketInput struct {
	RequesterID string
	Subject     string
	Priority    Priority
	Now         time.Time
}

// CreateMessageInput is a normalized message insert payload.
type CreateMessageInput struct {
	TicketID string
	AuthorID string
	Body     string
	Now      time.Time
}

// Store is the persistence boundary for tickets and their messages.
type Store interface {
	CreateTicket(ctx context.Context, in CreateTicketInput) (Ticket, error)
	GetTicketByID(ctx context.Context, id string) (Ticket, error)
	// ListTickets returns all tickets, newest first. requesterID narrows the
	// result to a single requester when non-empty.
	ListTickets(ctx context.Context, requesterID string) ([]Ticket, error)

	CreateMessage(ctx context.Context, in CreateMessageInput) (Message, error)
	// ListMessages returns a ticket's messages, oldest first. The ticket
	// must exist.
	ListMessages(ctx context.Context, ticketID string) ([]Message, error)
}
