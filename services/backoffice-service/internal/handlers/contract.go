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

type ContractHandler struct {
	repo   *storage.ContractRepository
	logger *slog.Logger
}

func NewContractHandler(repo *storage.ContractRepository, logger *slog.Logger) *ContractHandler {
	return &ContractHandler{repo: repo, logger: logger}
}

type createContractRequest struct {
	CompanyID   string `json:"company_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	RenewalDate string `json:"renewal_date"`
}

type contractItem struct {
	ID          string `json:"id"`
	CompanyID   string `json:"company_id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	RenewalDate string `json:"renewal_date,omitempty"`
	Status      string `json:"status"`
	CreatedAt   string `json:"created_at"`
}

// Terminal statuses never transition back to active.
var allowedContractTransitions = map[string]map[string]bool{
	"active":   {"inactive": true, "terminated": true, "expired": true},
	"inactive": {"active": true, "terminated": true},
}

func (h *ContractHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.CompanyID = resolveCompanyID(r, req.CompanyID)
	req.Name = strings.TrimSpace(req.Name)
	req.Type = strings.TrimSpace(req.Type)
	if req.CompanyID == "" || req.Name == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company_id and name are required")
		return
	}
	if req.Type == "" {
		req.Type = "membership"
	}

	startDate, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.StartDate), time.UTC)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "start_date must be YYYY-MM-DD")
		return
	}
	endDate, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(req.EndDate), time.UTC)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "end_date must be YYYY-MM-DD")
		return
	}
	if !endDate.After(startDate) {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "end_date must be after start_date")
		return
	}

	contract := &model.Contract{
		CompanyID: req.CompanyID,
		Name:      req.Name,
		Type:      req.Type,
		StartDate: startDate,
		EndDate:   endDate,
		Status:    "active",
	}
	if raw := strings.TrimSpace(req.RenewalDate); raw != "" {
		renewal, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
		if err != nil {
			httpx.WriteError(w, http.StatusUnprocessableEntity, "renewal_date must be YYYY-MM-DD")
			return
		}
		contract.RenewalDate = &renewal
	}

	id, err := h.repo.Create(r.Context(), contract)
	if err != nil {
		h.logger.Error("create contract failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"contract_id": id})
}

func (h *ContractHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	companyID := resolveCompanyID(r, r.URL.Query().Get("company_id"))
	if companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company_id is required")
		return
	}

	contracts, err := h.repo.ListByCompany(r.Context(), companyID, queryLimit(r, 100))
	if err != nil {
		h.logger.Error("list contracts failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	items := make([]contractItem, 0, len(contracts))
	for _, c := range contracts {
		items = append(items, contractToItem(c))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type contractStatusRequest struct {
	ContractID string `json:"contract_id"`
	Status     string `json:"status"`
}

func (h *ContractHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req contractStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.ContractID = strings.TrimSpace(req.ContractID)
	req.Status = strings.TrimSpace(req.Status)
	companyID := resolveCompanyID(r, "")
	if req.ContractID == "" || req.Status == "" || companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "contract_id and status are required")
		return
	}

	current, err := h.repo.Get(r.Context(), companyID, req.ContractID)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "contract not found")
			return
		}
		h.logger.Error("get contract failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	if !allowedContractTransitions[current.Status][req.Status] {
		httpx.WriteError(w, http.StatusConflict, "invalid status transition")
		return
	}

	if err := h.repo.SetStatus(r.Context(), companyID, req.ContractID, req.Status); err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "contract not found")
			return
		}
		h.logger.Error("set contract status failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{
		"contract_id": req.ContractID,
		"status":      req.Status,
	})
}

type deleteContractRequest struct {
	ContractID string `json:"contract_id"`
}

func (h *ContractHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req deleteContractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.ContractID = strings.TrimSpace(req.ContractID)
	companyID := resolveCompanyID(r, "")
	if req.ContractID == "" || companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "contract_id is required")
		return
	}

	if err := h.repo.Delete(r.Context(), companyID, req.ContractID); err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "contract not found")
			return
		}
		h.logger.Error("delete contract failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "contract deleted")
}

func contractToItem(c model.Contract) contractItem {
	item := contractItem{
		ID:        c.ID,
		CompanyID: c.CompanyID,
		Name:      c.Name,
		Type:      c.Type,
		StartDate: c.StartDate.UTC().Format("2006-01-02"),
		EndDate:   c.EndDate.UTC().Format("2006-01-02"),
		Status:    c.Status,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
	if c.RenewalDate != nil {
		item.RenewalDate = c.RenewalDate.UTC().Format("2006-01-02")
	}
	return item
}
