package ticket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// Integration tests are enabled when TICKETD_TEST_DATABASE_URL is set.
// Each test run works in a throwaway schema so parallel runs never collide.
// In non-CI runs, unreachable Postgres skips these tests to keep local runs fast.

func TestPostgresTicketStore_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool, schema := mustTicketSchema(ctx, t)
	defer pool.Close()

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	requester := ulid.Make().String()

	tk, err := store.CreateTicket(ctx, CreateTicketInput{
		RequesterID: requester, Subject: "vpn drops hourly", Priority: PriorityHigh, Now: now,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	got, err := store.GetTicketByID(ctx, tk.ID)
	if err != nil {
		t.Fatalf("GetTicketByID: %v", err)
	}
	if got.RequesterID != requester || got.Status != StatusOpen || got.Priority != PriorityHigh {
		t.Fatalf("unexpected row: %+v", got)
	}

	if _, err := store.GetTicketByID(ctx, ulid.Make().String()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	other, err := store.CreateTicket(ctx, CreateTicketInput{
		RequesterID: ulid.Make().String(), Subject: "other", Priority: PriorityLow, Now: now.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	all, err := store.ListTickets(ctx, "")
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(all) != 2 || all[0].ID != other.ID {
		t.Fatalf("expected 2 tickets newest first, got %+v", all)
	}

	mine, err := store.ListTickets(ctx, requester)
	if err != nil {
		t.Fatalf("ListTickets: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != tk.ID {
		t.Fatalf("expected requester's ticket only, got %+v", mine)
	}
}

func TestPostgresTicketStore_Messages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	pool, schema := mustTicketSchema(ctx, t)
	defer pool.Close()

	store, err := NewPostgresStore(pool, WithSchema(schema))
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	requester := ulid.Make().String()

	tk, err := store.CreateTicket(ctx, CreateTicketInput{
		RequesterID: requester, Subject: "help", Priority: PriorityNormal, Now: now,
	})
	if err != nil {
		t.Fatalf("CreateTicket: %v", err)
	}

	if _, err := store.CreateMessage(ctx, CreateMessageInput{
		TicketID: ulid.Make().String(), AuthorID: requester, Body: "hi", Now: now,
	}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ticket, got %v", err)
	}

	later := now.Add(time.Minute)
	first, err := store.CreateMessage(ctx, CreateMessageInput{
		TicketID: tk.ID, AuthorID: requester, Body: "it is broken", Now: later,
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	second, err := store.CreateMessage(ctx, CreateMessageInput{
		TicketID: tk.ID, AuthorID: "agent-1", Body: "restart it", Now: later.Add(time.Second),
	})
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	msgs, err := store.ListMessages(ctx, tk.ID)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].ID != first.ID || msgs[1].ID != second.ID {
		t.Fatalf("unexpected thread order: %+v", msgs)
	}

	// The bookkeeping column follows the newest message.
	got, err := store.GetTicketByID(ctx, tk.ID)
	if err != nil {
		t.Fatalf("GetTicketByID: %v", err)
	}
	if !got.UpdatedAt.Equal(later.Add(time.Second)) {
		t.Fatalf("expected updated_at bumped, got %v", got.UpdatedAt)
	}
}

func mustTicketSchema(ctx context.Context, t *testing.T) (*pgxpool.Pool, string) {
	t.Helper()

	dbURL := os.Getenv("TICKETD_TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TICKETD_TEST_DATABASE_URL is not set; skipping Postgres integration test")
	}

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("pgxpool.ParseConfig: %v", err)
	}
	cfg.MaxConns = 4
	cfg.MaxConnLifetime = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pgxpool.NewWithConfig: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		if shouldSkipIntegration(err) {
			t.Skipf("integration test skipped: Postgres unreachable (TICKETD_TEST_DATABASE_URL set): %v", err)
		}
		t.Fatalf("pool.Ping: %v", err)
	}

	schema := fmt.Sprintf("ticketd_test_%s", strings.ToLower(ulid.Make().String()))
	ddl := fmt.Sprintf(`
		CREATE SCHEMA %[1]s;
		CREATE TABLE %[1]s.tickets (
			id           text PRIMARY KEY,
			requester_id text NOT NULL,
			assignee_id  text,
			subject      text NOT NULL,
			status       text NOT NULL,
			priority     text NOT NULL,
			created_at   timestamptz NOT NULL,
			updated_at   timestamptz NOT NULL
		);
		CREATE TABLE %[1]s.messages (
			id         text PRIMARY KEY,
			ticket_id  text NOT NULL REFERENCES %[1]s.tickets(id) ON DELETE CASCADE,
			author_id  text NOT NULL,
			body       text NOT NULL,
			created_at timestamptz NOT NULL
		);
	`, schema)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		t.Fatalf("create schema: %v", err)
	}

	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), fmt.Sprintf("DROP SCHEMA %s CASCADE", schema))
	})

	return pool, schema
}

func shouldSkipIntegration(err error) bool {
	if err == nil {
		return false
	}
	if os.Getenv("CI") != "" {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "dial tcp") ||
		strings.Contains(msg, "no such host")
}
