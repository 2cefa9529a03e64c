package handlers

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"

	"github.com/deskhive/deskhive/libs/events"
	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/services/billing-service/internal/memberships"
	"github.com/deskhive/deskhive/services/billing-service/internal/plans"
	"github.com/deskhive/deskhive/services/billing-service/internal/storage"
)

type Handler struct {
	repo                   *storage.Repository
	svc                    *memberships.Service
	logger                 *slog.Logger
	stripeWebhookSecret    string
	stripeWebhookTolerance time.Duration
	stripeSecretKey        string
	stripePriceFlex        string
	stripePriceResident    string
	stripePriceOffice      string
	checkoutSuccessURL     string
	checkoutCancelURL      string
}

type Config struct {
	StripeWebhookSecret           string
	StripeWebhookToleranceSeconds int
	StripeSecretKey               string
	StripePriceFlex               string
	StripePriceResident           string
	StripePriceOffice             string
	CheckoutSuccessURL            string
	CheckoutCancelURL             string
}

func New(repo *storage.Repository, outbox *events.Outbox, logger *slog.Logger, cfg Config) *Handler {
	tolSeconds := cfg.StripeWebhookToleranceSeconds
	if tolSeconds <= 0 {
		tolSeconds = 300
	}
	return &Handler{
		repo:                   repo,
		svc:                    memberships.New(repo, outbox),
		logger:                 logger,
		stripeWebhookSecret:    strings.TrimSpace(cfg.StripeWebhookSecret),
		stripeWebhookTolerance: time.Duration(tolSeconds) * time.Second,
		stripeSecretKey:        strings.TrimSpace(cfg.StripeSecretKey),
		stripePriceFlex:        strings.TrimSpace(cfg.StripePriceFlex),
		stripePriceResident:    strings.TrimSpace(cfg.StripePriceResident),
		stripePriceOffice:      strings.TrimSpace(cfg.StripePriceOffice),
		checkoutSuccessURL:     strings.TrimSpace(cfg.CheckoutSuccessURL),
		checkoutCancelURL:      strings.TrimSpace(cfg.CheckoutCancelURL),
	}
}

type checkoutRequest struct {
	Plan       string `json:"plan"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.stripeSecretKey == "" {
		httpx.WriteError(w, http.StatusNotImplemented, "stripe checkout not configured")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	plan := strings.TrimSpace(strings.ToLower(req.Plan))
	if plan == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "plan is required")
		return
	}

	companyID := strings.TrimSpace(r.Header.Get("X-Company-Id"))
	if companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "missing company context")
		return
	}

	priceID := ""
	switch plan {
	case "flex":
		priceID = h.stripePriceFlex
	case "resident":
		priceID = h.stripePriceResident
	case "office":
		priceID = h.stripePriceOffice
	default:
		httpx.WriteError(w, http.StatusUnprocessableEntity, "unsupported plan")
		return
	}
	if priceID == "" {
		httpx.WriteError(w, http.StatusNotImplemented, "stripe price id not configured for plan")
		return
	}

	successURL := strings.TrimSpace(req.SuccessURL)
	if successURL == "" {
		successURL = h.checkoutSuccessURL
	}
	cancelURL := strings.TrimSpace(req.CancelURL)
	if cancelURL == "" {
		cancelURL = h.checkoutCancelURL
	}
	if successURL == "" || cancelURL == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "success_url and cancel_url are required (or configure default URLs)")
		return
	}

	// Protect the public return pages from session-id guessing / tampering.
	returnToken := newReturnToken()
	successURL = withQueryParam(successURL, "state", returnToken)
	cancelURL = withQueryParam(cancelURL, "state", returnToken)

	// Stripe uses a global API key. Keep usage limited to this handler call.
	stripe.Key = h.stripeSecretKey

	// Stripe-level idempotency: allows safe retries.
	idemKey := strings.TrimSpace(r.Header.Get("Idempotency-Key"))

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(successURL),
		CancelURL:         stripe.String(cancelURL),
		ClientReferenceID: stripe.String(companyID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"company_id": companyID,
			"plan":       plan,
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				"company_id": companyID,
				"plan":       plan,
			},
		},
	}
	params.AddExpand("url")
	if idemKey != "" {
		params.IdempotencyKey = stripe.String(idemKey)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		h.logger.Error("stripe checkout session create failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "failed to create checkout session")
		return
	}

	tx, err := h.repo.Begin(r.Context())
	if err != nil {
		h.logger.Error("begin tx failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()
	if err := h.repo.UpsertCheckoutSession(r.Context(), tx, storage.CheckoutSession{
		StripeSessionID: sess.ID,
		CompanyID:       companyID,
		Plan:            plan,
		Status:          "created",
		URL:             sess.URL,
		ReturnToken:     returnToken,
	}); err != nil {
		h.logger.Error("failed to persist checkout session", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.logger.Error("commit failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"url":        sess.URL,
	})
}

func (h *Handler) GetMembership(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	companyID := strings.TrimSpace(r.URL.Query().Get("company_id"))
	if companyID == "" {
		companyID = strings.TrimSpace(r.Header.Get("X-Company-Id"))
	}
	if companyID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "company_id is required")
		return
	}

	role := r.Header.Get("X-Role")
	callerCompanyID := r.Header.Get("X-Company-Id")
	if role != "admin" && role != "staff" && callerCompanyID != "" && callerCompanyID != companyID {
		httpx.WriteError(w, http.StatusForbidden, "forbidden")
		return
	}

	m, err := h.repo.GetMembership(r.Context(), companyID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Companies without a paid membership are on the free plan.
			httpx.WriteJSON(w, http.StatusOK, map[string]any{
				"company_id":   companyID,
				"plan":         "free",
				"status":       "none",
				"entitlements": plans.LimitsForPlan("free"),
			})
			return
		}
		h.logger.Error("failed to load membership", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"company_id":   companyID,
		"plan":         m.Plan,
		"status":       m.Status,
		"updated_at":   m.UpdatedAt.UTC().Format(time.RFC3339),
		"entitlements": plans.LimitsForPlan(m.Plan),
	})
}

// CheckoutStatus is intentionally public: Stripe redirects the customer
// without a JWT. It returns non-sensitive state only.
func (h *Handler) CheckoutStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "session_id is required")
		return
	}

	sess, err := h.repo.GetCheckoutSession(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, http.StatusNotFound, "checkout session not found")
			return
		}
		h.logger.Error("failed to load checkout session", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	resp := map[string]any{
		"session_id": sess.StripeSessionID,
		"plan":       sess.Plan,
		"status":     sess.Status,
		"updated_at": sess.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if sess.CompletedAt != nil {
		resp["completed_at"] = sess.CompletedAt.UTC().Format(time.RFC3339)
	}
	if sess.CanceledAt != nil {
		resp["canceled_at"] = sess.CanceledAt.UTC().Format(time.RFC3339)
	}
	if sess.ExpiredAt != nil {
		resp["expired_at"] = sess.ExpiredAt.UTC().Format(time.RFC3339)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type checkoutAckRequest struct {
	SessionID string `json:"session_id"`
	State     string `json:"state"`
	Result    string `json:"result"` // success | cancel
}

// AckCheckoutReturn is public but protected by the per-session return token (state).
func (h *Handler) AckCheckoutReturn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req checkoutAckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid json body")
		return
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.State = strings.TrimSpace(req.State)
	req.Result = strings.TrimSpace(strings.ToLower(req.Result))
	if req.SessionID == "" || req.State == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "session_id and state are required")
		return
	}
	if req.Result != "success" && req.Result != "cancel" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid result")
		return
	}

	tx, err := h.repo.Begin(r.Context())
	if err != nil {
		h.logger.Error("begin tx failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	if err := h.repo.AckCheckoutReturn(r.Context(), tx, req.SessionID, req.State, req.Result, time.Now().UTC()); err != nil {
		h.logger.Error("failed to record checkout return", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		h.logger.Error("commit failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	httpx.WriteMessage(w, http.StatusOK, "ok")
}

func newReturnToken() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

func withQueryParam(rawURL string, key string, value string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + key + "=" + url.QueryEscape(value)
}
