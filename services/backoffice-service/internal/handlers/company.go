package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/model"
	"github.com/deskhive/deskhive/services/backoffice-service/internal/storage"
)

type CompanyHandler struct {
	repo   *storage.CompanyRepository
	logger *slog.Logger
}

func NewCompanyHandler(repo *storage.CompanyRepository, logger *slog.Logger) *CompanyHandler {
	return &CompanyHandler{repo: repo, logger: logger}
}

type createCompanyRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type companyItem struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

func (h *CompanyHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createCompanyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "name and email are required")
		return
	}

	id, err := h.repo.Create(r.Context(), &model.Company{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  strings.TrimSpace(req.Phone),
		Status: "active",
	})
	if err != nil {
		if storage.IsDuplicate(err) {
			httpx.WriteError(w, http.StatusConflict, "company with this email already exists")
			return
		}
		h.logger.Error("create company failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"company_id": id})
}

func (h *CompanyHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "id is required")
		return
	}

	c, err := h.repo.Get(r.Context(), id)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "company not found")
			return
		}
		h.logger.Error("get company failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, companyToItem(c))
}

func (h *CompanyHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	companies, err := h.repo.List(r.Context(), queryLimit(r, 100))
	if err != nil {
		h.logger.Error("list companies failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	items := make([]companyItem, 0, len(companies))
	for _, c := range companies {
		items = append(items, companyToItem(c))
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type createMemberRequest struct {
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type memberItem struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

func (h *CompanyHandler) CreateMember(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.CompanyID = resolveCompanyID(r, req.CompanyID)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Role = strings.TrimSpace(req.Role)
	if req.CompanyID == "" || req.Name == "" || req.Email == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company_id, name and email are required")
		return
	}
	if req.Role == "" {
		req.Role = "member"
	}

	id, err := h.repo.CreateMember(r.Context(), &model.Member{
		CompanyID: req.CompanyID,
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
	})
	if err != nil {
		if storage.IsDuplicate(err) {
			httpx.WriteError(w, http.StatusConflict, "member with this email already exists")
			return
		}
		h.logger.Error("create member failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"member_id": id})
}

func (h *CompanyHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	companyID := resolveCompanyID(r, r.URL.Query().Get("company_id"))
	if companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company_id is required")
		return
	}

	members, err := h.repo.ListMembers(r.Context(), companyID, queryLimit(r, 100))
	if err != nil {
		h.logger.Error("list members failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	items := make([]memberItem, 0, len(members))
	for _, m := range members {
		items = append(items, memberItem{
			ID:        m.ID,
			CompanyID: m.CompanyID,
			Name:      m.Name,
			Email:     m.Email,
			Role:      m.Role,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	httpx.WriteJSON(w, http.StatusOK, items)
}

type createAccessCardRequest struct {
	MemberID   string `json:"member_id"`
	CardNumber string `json:"card_number"`
	Pin        string `json:"pin"`
}

func (h *CompanyHandler) CreateAccessCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req createAccessCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.MemberID = strings.TrimSpace(req.MemberID)
	req.CardNumber = strings.TrimSpace(req.CardNumber)
	if req.MemberID == "" || req.CardNumber == "" || req.Pin == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "member_id, card_number and pin are required")
		return
	}
	if len(req.Pin) < 4 {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "pin must be at least 4 characters")
		return
	}

	// Non-staff callers can only issue cards inside their own company.
	role := strings.TrimSpace(r.Header.Get("X-Role"))
	if role != "staff" && role != "admin" {
		companyID := strings.TrimSpace(r.Header.Get("X-Company-Id"))
		ok, err := h.repo.MemberBelongsToCompany(r.Context(), req.MemberID, companyID)
		if err != nil {
			h.logger.Error("member lookup failed", "err", err)
			httpx.WriteInternalError(w)
			return
		}
		if !ok {
			httpx.WriteError(w, http.StatusNotFound, "member not found")
			return
		}
	}

	pinHash, err := bcrypt.GenerateFromPassword([]byte(req.Pin), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("pin hash failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	id, err := h.repo.CreateAccessCard(r.Context(), &model.AccessCard{
		MemberID:   req.MemberID,
		CardNumber: req.CardNumber,
		PinHash:    string(pinHash),
		Active:     true,
	})
	if err != nil {
		if storage.IsDuplicate(err) {
			httpx.WriteError(w, http.StatusConflict, "card number already assigned")
			return
		}
		h.logger.Error("create access card failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"card_id": id})
}

type deactivateAccessCardRequest struct {
	CardID string `json:"card_id"`
}

func (h *CompanyHandler) DeactivateAccessCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req deactivateAccessCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.CardID = strings.TrimSpace(req.CardID)
	if req.CardID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "card_id is required")
		return
	}

	if err := h.repo.DeactivateAccessCard(r.Context(), req.CardID); err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "card not found")
			return
		}
		h.logger.Error("deactivate access card failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "card deactivated")
}

type verifyAccessCardRequest struct {
	CardNumber string `json:"card_number"`
	Pin        string `json:"pin"`
}

// VerifyAccessCard checks a card/PIN pair for door controllers. A
// deactivated card or bad PIN both answer 403 without distinguishing.
func (h *CompanyHandler) VerifyAccessCard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req verifyAccessCardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.CardNumber = strings.TrimSpace(req.CardNumber)
	if req.CardNumber == "" || req.Pin == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "card_number and pin are required")
		return
	}

	card, err := h.repo.GetAccessCardByNumber(r.Context(), req.CardNumber)
	if err != nil {
		if storage.IsNotFound(err) {
			httpx.WriteError(w, http.StatusForbidden, "access denied")
			return
		}
		h.logger.Error("access card lookup failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	if !card.Active {
		httpx.WriteError(w, http.StatusForbidden, "access denied")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(card.PinHash), []byte(req.Pin)); err != nil {
		httpx.WriteError(w, http.StatusForbidden, "access denied")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"member_id": card.MemberID})
}

func companyToItem(c model.Company) companyItem {
	return companyItem{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		Status:    c.Status,
		CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// resolveCompanyID prefers the gateway-set identity header; staff roles
// may act on behalf of another company via the explicit field.
func resolveCompanyID(r *http.Request, explicit string) string {
	explicit = strings.TrimSpace(explicit)
	role := strings.TrimSpace(r.Header.Get("X-Role"))
	if explicit != "" && (role == "staff" || role == "admin") {
		return explicit
	}
	if v := strings.TrimSpace(r.Header.Get("X-Company-Id")); v != "" {
		return v
	}
	return explicit
}

func queryLimit(r *http.Request, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > 500 {
		return fallback
	}
	return n
}
