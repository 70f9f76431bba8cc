package ticket

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	authapi "ticketd/internal/auth/api"
	"ticketd/internal/httpx"
	"ticketd/internal/identity"
)

const (
	maxSubjectLength = 200
	maxBodyLength    = 10000
)

// Handler serves the ticket endpoints. Every route sits behind the auth
// gateway, so an authenticated identity is always present in the context.
type Handler struct {
	log          *slog.Logger
	store        Store
	maxBodyBytes int64
}

// NewHandler constructs the ticket Handler.
func NewHandler(log *slog.Logger, store Store, maxBodyBytes int64) (*Handler, error) {
	if log == nil {
		log = slog.Default()
	}
	if store == nil {
		return nil, errors.New("ticket: missing store")
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = 64 << 10
	}
	return &Handler{log: log, store: store, maxBodyBytes: maxBodyBytes}, nil
}

// Register wires the ticket routes onto the mux. authed is the gateway
// middleware that authenticates requests and fills the identity context.
func (h *Handler) Register(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	mux.Handle("/tickets", authed(http.HandlerFunc(h.handleTickets)))
	mux.Handle("/tickets/", authed(http.HandlerFunc(h.handleTicketSubtree)))
}

type createTicketRequest struct {
	Subject  string `json:"subject"`
	Priority string `json:"priority"`
}

type createMessageRequest struct {
	Body string `json:"body"`
}

type ticketResponse struct {
	ID          string    `json:"id"`
	RequesterID string    `json:"requester_id"`
	AssigneeID  *string   `json:"assignee_id,omitempty"`
	Subject     string    `json:"subject"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type messageResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	AuthorID  string    `json:"author_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

type ticketListResponse struct {
	Tickets []ticketResponse `json:"tickets"`
}

type messageListResponse struct {
	Messages []messageResponse `json:"messages"`
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createTicket(w, r)
	case http.MethodGet:
		h.listTickets(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleTicketSubtree routes /tickets/{id} and /tickets/{id}/messages.
func (h *Handler) handleTicketSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/tickets/"), "/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.getTicket(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "messages":
		switch r.Method {
		case http.MethodPost:
			h.createMessage(w, r, parts[0])
		case http.MethodGet:
			h.listMessages(w, r, parts[0])
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) createTicket(w http.ResponseWriter, r *http.Request) {
	who, ok := authapi.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req createTicketRequest
	if err := httpx.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	subject := strings.TrimSpace(req.Subject)
	if subject == "" || len(subject) > maxSubjectLength {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "subject is required")
		return
	}

	priority := Priority(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = PriorityNormal
	}
	if !priority.Valid() {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown priority")
		return
	}

	tk, err := h.store.CreateTicket(r.Context(), CreateTicketInput{
		RequesterID: who.ID,
		Subject:     subject,
		Priority:    priority,
		Now:         time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid input")
			return
		}
		h.log.Error("ticket.create.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toTicketResponse(tk))
}

func (h *Handler) listTickets(w http.ResponseWriter, r *http.Request) {
	who, ok := authapi.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	// Customers see their own tickets; agents and admins see the queue.
	requesterID := who.ID
	if who.Role == identity.RoleAgent || who.Role == identity.RoleAdmin {
		requesterID = ""
	}

	tickets, err := h.store.ListTickets(r.Context(), requesterID)
	if err != nil {
		h.log.Error("ticket.list.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]ticketResponse, 0, len(tickets))
	for _, tk := range tickets {
		out = append(out, toTicketResponse(tk))
	}
	httpx.WriteJSON(w, http.StatusOK, ticketListResponse{Tickets: out})
}

func (h *Handler) getTicket(w http.ResponseWriter, r *http.Request, id string) {
	who, ok := authapi.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	tk, ok2 := h.loadVisible(w, r, who, id)
	if !ok2 {
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toTicketResponse(tk))
}

func (h *Handler) createMessage(w http.ResponseWriter, r *http.Request, ticketID string) {
	who, ok := authapi.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	if _, ok := h.loadVisible(w, r, who, ticketID); !ok {
		return
	}

	var req createMessageRequest
	if err := httpx.DecodeJSON(w, r, h.maxBodyBytes, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_json", "invalid request body")
		return
	}

	body := strings.TrimSpace(req.Body)
	if body == "" || len(body) > maxBodyLength {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "body is required")
		return
	}

	msg, err := h.store.CreateMessage(r.Context(), CreateMessageInput{
		TicketID: ticketID,
		AuthorID: who.ID,
		Body:     body,
		Now:      time.Now().UTC(),
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		if errors.Is(err, ErrInvalidInput) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid input")
			return
		}
		h.log.Error("ticket.message.create.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, toMessageResponse(msg))
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request, ticketID string) {
	who, ok := authapi.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	if _, ok := h.loadVisible(w, r, who, ticketID); !ok {
		return
	}

	msgs, err := h.store.ListMessages(r.Context(), ticketID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "ticket not found")
			return
		}
		h.log.Error("ticket.message.list.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}

	out := make([]messageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	httpx.WriteJSON(w, http.StatusOK, messageListResponse{Messages: out})
}

// loadVisible fetches a ticket and enforces visibility: requester, agent,
// or admin. A ticket outside the caller's scope is indistinguishable from
// a missing one.
func (h *Handler) loadVisible(w http.ResponseWriter, r *http.Request, who authapi.Identity, id string) (Ticket, bool) {
	tk, err := h.store.GetTicketByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "ticket not found")
			return Ticket{}, false
		}
		h.log.Error("ticket.lookup.fail", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
		return Ticket{}, false
	}

	if tk.RequesterID != who.ID && who.Role != identity.RoleAgent && who.Role != identity.RoleAdmin {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "ticket not found")
		return Ticket{}, false
	}
	return tk, true
}

func toTicketResponse(tk Ticket) ticketResponse {
	return ticketResponse{
		ID:          tk.ID,
		RequesterID: tk.RequesterID,
		AssigneeID:  tk.AssigneeID,
		Subject:     tk.Subject,
		Status:      string(tk.Status),
		Priority:    string(tk.Priority),
		CreatedAt:   tk.CreatedAt,
		UpdatedAt:   tk.UpdatedAt,
	}
}

func toMessageResponse(m Message) messageResponse {
	return messageResponse{
		ID:        m.ID,
		TicketID:  m.TicketID,
		AuthorID:  m.AuthorID,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
	}
}
