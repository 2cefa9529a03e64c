package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/storage"
)

type TicketHandler struct {
	repo   *storage.TicketRepository
	logger *slog.Logger
}

func NewTicketHandler(repo *storage.TicketRepository, logger *slog.Logger) *TicketHandler {
	return &TicketHandler{repo: repo, logger: logger}
}

type createTicketRequest struct {
	CompanyID   string `json:"company_id"`
	Subject     string `json:"subject"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

type ticketItem struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	Subject     string `json:"subject"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

var ticketPriorities = map[string]bool{"low": true, "normal": true, "high": true}
var ticketStatuses = map[string]bool{"open": true, "in_progress": true, "closed": true}

func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.CompanyID = resolveCompanyID(r, req.CompanyID)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Priority = strings.TrimSpace(req.Priority)
	if req.CompanyID == "" || req.Subject == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company_id and subject are required")
		return
	}
	if req.Priority == "" {
		req.Priority = "normal"
	}
	if !ticketPriorities[req.Priority] {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "priority must be low, normal or high")
		return
	}

	id, err := h.repo.Create(r.Context(), &model.Ticket{
		CompanyID:   req.CompanyID,
		Subject:     req.Subject,
		Description: strings.TrimSpace(req.Description),
		Priority:    req.Priority,
		Status:      "open",
	})
	if err != nil {
		h.logger.Error("create ticket failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"ticket_id": id})
}

func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	companyID := resolveCompanyID(r, r.URL.Query().Get("company_id"))
	if companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company_id is required")
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status != "" && !ticketStatuses[status] {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "unknown status filter")
		return
	}

	tickets, err := h.repo.ListByCompany(r.Context(), companyID, status, queryLimit(r, 100))
	if err != nil {
		h.logger.Error("list tickets failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	items := make([]ticketItem, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, ticketItem{
			ID:          t.ID,
			CompanyID:   t.CompanyID,
			Subject:     t.Subject,
			Description: t.Description,
			Priority:    t.Priority,
			Status:      t.Status,
			CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type ticketStatusRequest struct {
	TicketID string `json:"ticket_id"`
	Status   string `json:"status"`
}

func (h *TicketHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req ticketStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.TicketID = strings.TrimSpace(req.TicketID)
	req.Status = strings.TrimSpace(req.Status)
	companyID := resolveCompanyID(r, "")
	if req.TicketID == "" || companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "ticket_id is required")
		return
	}
	if !ticketStatuses[req.Status] {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "status must be open, in_progress or closed")
		return
	}

	if err := h.repo.SetStatus(r.Context(), companyID, req.TicketID, req.Status); err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "ticket not found")
			return
		}
		h.logger.Error("set ticket status failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"ticket_id": req.TicketID,
		"status":    req.Status,
	})
}
