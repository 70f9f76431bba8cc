package ticket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	authapi "ticketd/internal/auth/api"
	"ticketd/internal/identity"
)

// asIdentity stands in for the auth gateway: it stamps a fixed identity
// onto every request.
func asIdentity(id authapi.Identity) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(authapi.ContextWithIdentity(r.Context(), id)))
		})
	}
}

func newTicketMux(t *testing.T, store Store, id authapi.Identity) *http.ServeMux {
	t.Helper()
	h, err := NewHandler(nil, store, 0)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	mux := http.NewServeMux()
	h.Register(mux, asIdentity(id))
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndFetchTicket(t *testing.T) {
	store := NewInMemoryStore()
	mux := newTicketMux(t, store, authapi.Identity{ID: "user-1", Role: identity.RoleCustomer})

	rec := doJSON(t, mux, http.MethodPost, "/tickets", `{"subject":"printer on fire","priority":"high"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created ticketResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.RequesterID != "user-1" || created.Status != "open" || created.Priority != "high" {
		t.Fatalf("unexpected ticket: %+v", created)
	}

	rec = doJSON(t, mux, http.MethodGet, "/tickets/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, mux, http.MethodGet, "/tickets/01HZZZZZZZZZZZZZZZZZZZZZZZ", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown: expected 404, got %d", rec.Code)
	}
}

func TestCreateTicketDefaultsPriority(t *testing.T) {
	store := NewInMemoryStore()
	mux := newTicketMux(t, store, authapi.Identity{ID: "user-1", Role: identity.RoleCustomer})

	rec := doJSON(t, mux, http.MethodPost, "/tickets", `{"subject":"slow laptop"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	var created ticketResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Priority != "normal" {
		t.Fatalf("expected default priority normal, got %q", created.Priority)
	}
}

func TestTicketVisibilityByRole(t *testing.T) {
	store := NewInMemoryStore()

	asCustomer1 := newTicketMux(t, store, authapi.Identity{ID: "user-1", Role: identity.RoleCustomer})
	asCustomer2 := newTicketMux(t, store, authapi.Identity{ID: "user-2", Role: identity.RoleCustomer})
	asAgent := newTicketMux(t, store, authapi.Identity{ID: "agent-1", Role: identity.RoleAgent})

	rec := doJSON(t, asCustomer1, http.MethodPost, "/tickets", `{"subject":"mine"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", rec.Code)
	}
	var created ticketResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// Another customer cannot see it, and cannot tell it exists.
	rec = doJSON(t, asCustomer2, http.MethodGet, "/tickets/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("foreign get: expected 404, got %d", rec.Code)
	}

	var listed ticketListResponse
	rec = doJSON(t, asCustomer2, http.MethodGet, "/tickets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Tickets) != 0 {
		t.Fatalf("foreign list must be empty, got %d", len(listed.Tickets))
	}

	// Agents see the full queue.
	rec = doJSON(t, asAgent, http.MethodGet, "/tickets", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("agent list: expected 200, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(listed.Tickets) != 1 {
		t.Fatalf("agent must see 1 ticket, got %d", len(listed.Tickets))
	}

	rec = doJSON(t, asAgent, http.MethodGet, "/tickets/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("agent get: expected 200, got %d", rec.Code)
	}
}

func TestMessageThread(t *testing.T) {
	store := NewInMemoryStore()
	asCustomer := newTicketMux(t, store, authapi.Identity{ID: "user-1", Role: identity.RoleCustomer})
	asAgent := newTicketMux(t, store, authapi.Identity{ID: "agent-1", Role: identity.RoleAgent})

	rec := doJSON(t, asCustomer, http.MethodPost, "/tickets", `{"subject":"help"}`)
	var created ticketResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	path := fmt.Sprintf("/tickets/%s/messages", created.ID)

	rec = doJSON(t, asCustomer, http.MethodPost, path, `{"body":"it is broken"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("customer message: expected 201, got %d (%s)", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, asAgent, http.MethodPost, path, `{"body":"restart it"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("agent message: expected 201, got %d", rec.Code)
	}

	rec = doJSON(t, asCustomer, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list messages: expected 200, got %d", rec.Code)
	}
	var msgs messageListResponse
	if err := json.NewDecoder(rec.Body).Decode(&msgs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(msgs.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs.Messages))
	}
	if msgs.Messages[0].Body != "it is broken" || msgs.Messages[1].AuthorID != "agent-1" {
		t.Fatalf("unexpected thread: %+v", msgs.Messages)
	}

	rec = doJSON(t, asCustomer, http.MethodPost, path, `{"body":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank body: expected 400, got %d", rec.Code)
	}
}

func TestForeignThreadLooksMissing(t *testing.T) {
	store := NewInMemoryStore()
	asCustomer1 := newTicketMux(t, store, authapi.Identity{ID: "user-1", Role: identity.RoleCustomer})
	asCustomer2 := newTicketMux(t, store, authapi.Identity{ID: "user-2", Role: identity.RoleCustomer})

	rec := doJSON(t, asCustomer1, http.MethodPost, "/tickets", `{"subject":"secret"}`)
	var created ticketResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}

	path := fmt.Sprintf("/tickets/%s/messages", created.ID)
	if rec := doJSON(t, asCustomer2, http.MethodGet, path, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if rec := doJSON(t, asCustomer2, http.MethodPost, path, `{"body":"hi"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
