package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/services/billing-service/internal/storage"
)

type localWebhookRequest struct {
	EventID    string `json:"event_id"`
	Type       string `json:"type"` // membership.activated | membership.canceled
	CompanyID  string `json:"company_id"`
	Plan       string `json:"plan"`
	OccurredAt string `json:"occurred_at"`
}

// LocalWebhook applies membership transitions without Stripe. It keeps local
// and CI environments usable when no Stripe account is wired up.
func (h *Handler) LocalWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req localWebhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}

	req.EventID = strings.TrimSpace(req.EventID)
	req.Type = strings.TrimSpace(req.Type)
	req.CompanyID = strings.TrimSpace(req.CompanyID)
	req.Plan = strings.TrimSpace(strings.ToLower(req.Plan))
	req.OccurredAt = strings.TrimSpace(req.OccurredAt)

	if req.EventID == "" || req.Type == "" || req.CompanyID == "" || req.OccurredAt == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "missing required fields")
		return
	}

	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid occurred_at")
		return
	}

	h.logger.Info("billing provider event received",
		"provider", "local",
		"provider_event_id", req.EventID,
		"event_type", req.Type,
		"company_id", req.CompanyID,
		"plan", req.Plan,
		"occurred_at", occurredAt.UTC().Format(time.RFC3339),
	)

	role := r.Header.Get("X-Role")
	callerCompanyID := r.Header.Get("X-Company-Id")
	if role != "admin" && role != "staff" && callerCompanyID != "" && callerCompanyID != req.CompanyID {
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	payloadRaw, _ := json.Marshal(req)

	tx, err := h.repo.Begin(r.Context())
	if err != nil {
		h.logger.Error("begin tx failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	if err := h.repo.InsertProviderEvent(r.Context(), tx, storage.ProviderEvent{
		Provider:        "local",
		ProviderEventID: req.EventID,
		EventType:       req.Type,
		Payload:         payloadRaw,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			h.logger.Info("billing provider event duplicate ignored", "provider", "local", "provider_event_id", req.EventID, "event_type", req.Type)
			_ = tx.Commit(r.Context())
			httpx.WriteMessage(w, http.StatusOK, "duplicate")
			return
		}
		h.logger.Error("failed to record provider event", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	switch req.Type {
	case "membership.activated":
		if req.Plan == "" {
			httpx.WriteError(w, http.StatusUnprocessableEntity, "plan is required for membership.activated")
			return
		}
		if err := h.svc.ApplyActivated(r.Context(), tx, req.CompanyID, req.Plan, occurredAt, "local", "", "", nil, nil); err != nil {
			h.logger.Error("failed to apply activation", "err", err)
			httpx.WriteInternalError(w)
			return
		}
	case "membership.canceled":
		if err := h.svc.ApplyCanceled(r.Context(), tx, req.CompanyID, occurredAt, "local", "", "", nil, nil); err != nil {
			h.logger.Error("failed to apply cancellation", "err", err)
			httpx.WriteInternalError(w)
			return
		}
	default:
		httpx.WriteError(w, http.StatusUnprocessableEntity, "unsupported type")
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.logger.Error("commit failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "ok")
}
