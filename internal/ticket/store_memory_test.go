package ticket

import (
	"context"
	"testing"
	"time"
)

func TestCreateAndListTickets(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	first, err := store.CreateTicket(ctx, CreateTicketInput{
		RequesterID: "user-1", Subject: "printer on fire", Priority: PriorityHigh, Now: now,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}
	if first.Status != StatusOpen {
		t.Fatalf("new tickets must be open, got %q", first.Status)
	}

	if _, err := store.CreateTicket(ctx, CreateTicketInput{
		RequesterID: "user-2", Subject: "cannot log in", Priority: PriorityNormal, Now: now.Add(time.Minute),
	}); err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	all, err := store.ListTickets(ctx, "")
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 tickets, got %d", len(all))
	}
	if !all[0].CreatedAt.After(all[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}

	mine, err := store.ListTickets(ctx, "user-1")
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != first.ID {
		t.Fatalf("expected only user-1's ticket, got %+v", mine)
	}
}

func TestCreateTicketValidation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	cases := []CreateTicketInput{
		{RequesterID: "", Subject: "s", Priority: PriorityLow, Now: now},
		{RequesterID: "u", Subject: "   ", Priority: PriorityLow, Now: now},
		{RequesterID: "u", Subject: "s", Priority: Priority("urgent"), Now: now},
	}
	for i, in := range cases {
		if _, err := store.CreateTicket(ctx, in); err != ErrInvalidInput {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestMessagesFollowTicket(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	tk, err := store.CreateTicket(ctx, CreateTicketInput{
		RequesterID: "user-1", Subject: "help", Priority: PriorityNormal, Now: now,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	if _, err := store.CreateMessage(ctx, CreateMessageInput{
		TicketID: "missing", AuthorID: "user-1", Body: "hello", Now: now,
	}); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown ticket, got %v", err)
	}

	later := now.Add(time.Minute)
	msg, err := store.CreateMessage(ctx, CreateMessageInput{
		TicketID: tk.ID, AuthorID: "agent-1", Body: "on it", Now: later,
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if msg.TicketID != tk.ID {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// Posting a message bumps the ticket's updated_at.
	got, err := store.GetTicketByID(ctx, tk.ID)
	if err != nil {
		t.Fatalf("GetTicketByID: %v", err)
	}
	if !got.UpdatedAt.Equal(later) {
		t.Fatalf("expected updated_at %v, got %v", later, got.UpdatedAt)
	}

	msgs, err := store.ListMessages(ctx, tk.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != msg.ID {
		t.Fatalf("unexpected messages: %+v", msgs)
	}

	if _, err := store.ListMessages(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
