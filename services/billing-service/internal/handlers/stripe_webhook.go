package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/deskhive/deskhive/libs/httpx"
	"github.com/deskhive/deskhive/services/billing-service/internal/storage"
)

// StripeWebhook handles Stripe webhooks (no JWT auth; signature verification
// is the auth). The gateway exposes this path publicly.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.WriteError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.stripeWebhookSecret == "" {
		httpx.WriteError(w, http.StatusServiceUnavailable, "stripe webhook not configured")
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "missing Stripe-Signature header")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1 MiB hard cap
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "failed to read request body")
		return
	}

	evt, err := webhook.ConstructEventWithTolerance(body, sigHeader, h.stripeWebhookSecret, h.stripeWebhookTolerance)
	if err != nil {
		httpx.WriteError(w, http.StatusUnprocessableEntity, "invalid signature")
		return
	}

	occurredAt := time.Unix(evt.Created, 0).UTC()
	evtType := string(evt.Type)
	h.logger.Info("billing provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
		"occurred_at", occurredAt.Format(time.RFC3339),
	)

	tx, err := h.repo.Begin(r.Context())
	if err != nil {
		h.logger.Error("begin tx failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	defer func() { _ = tx.Rollback(r.Context()) }()

	// Idempotency: ignore replayed Stripe events.
	if err := h.repo.InsertProviderEvent(r.Context(), tx, storage.ProviderEvent{
		Provider:        "stripe",
		ProviderEventID: evt.ID,
		EventType:       evtType,
		Payload:         body,
	}); err != nil {
		if errors.Is(err, storage.ErrDuplicateProviderEvent) {
			h.logger.Info("billing provider event duplicate ignored", "provider", "stripe", "provider_event_id", evt.ID, "event_type", evtType)
			_ = tx.Commit(r.Context())
			httpx.WriteMessage(w, http.StatusOK, "duplicate")
			return
		}
		h.logger.Error("failed to record provider event", "err", err)
		httpx.WriteInternalError(w)
		return
	}

	switch evtType {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		companyID := strings.TrimSpace(session.Metadata["company_id"])
		plan := strings.TrimSpace(strings.ToLower(session.Metadata["plan"]))
		if companyID == "" || plan == "" {
			h.logger.Warn("stripe: missing metadata on checkout session (company_id/plan)")
			break
		}

		customerID := ""
		if session.Customer != nil {
			customerID = session.Customer.ID
		}
		subscriptionID := ""
		if session.Subscription != nil {
			subscriptionID = session.Subscription.ID
		}
		_ = h.repo.MarkCheckoutSessionCompleted(r.Context(), tx, session.ID, occurredAt, customerID, subscriptionID)
		if err := h.svc.ApplyActivated(r.Context(), tx, companyID, plan, occurredAt, "stripe", customerID, subscriptionID, nil, nil); err != nil {
			h.logger.Error("failed to apply activation", "err", err)
			httpx.WriteInternalError(w)
			return
		}

	case "checkout.session.expired":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &session); err != nil {
			h.logger.Error("stripe: invalid checkout session payload", "err", err)
			break
		}
		_ = h.repo.MarkCheckoutSessionExpired(r.Context(), tx, session.ID, occurredAt)

	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			h.logger.Error("stripe: invalid subscription payload", "err", err)
			break
		}
		// Only treat active/trialing as entitled.
		if sub.Status != stripe.SubscriptionStatusActive && sub.Status != stripe.SubscriptionStatusTrialing {
			break
		}
		companyID := strings.TrimSpace(sub.Metadata["company_id"])
		plan := strings.TrimSpace(strings.ToLower(sub.Metadata["plan"]))
		if companyID == "" || plan == "" {
			h.logger.Warn("stripe: missing metadata on subscription (company_id/plan)")
			break
		}
		customerID := ""
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		cps, cpe := periodBounds(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
		if err := h.svc.ApplyActivated(r.Context(), tx, companyID, plan, occurredAt, "stripe", customerID, sub.ID, cps, cpe); err != nil {
			h.logger.Error("failed to apply activation", "err", err)
			httpx.WriteInternalError(w)
			return
		}

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			h.logger.Error("stripe: invalid subscription payload", "err", err)
			break
		}
		companyID := strings.TrimSpace(sub.Metadata["company_id"])
		if companyID == "" {
			h.logger.Warn("stripe: missing metadata on subscription (company_id)")
			break
		}
		customerID := ""
		if sub.Customer != nil {
			customerID = sub.Customer.ID
		}
		cps, cpe := periodBounds(sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
		if err := h.svc.ApplyCanceled(r.Context(), tx, companyID, occurredAt, "stripe", customerID, sub.ID, cps, cpe); err != nil {
			h.logger.Error("failed to apply cancellation", "err", err)
			httpx.WriteInternalError(w)
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.logger.Error("commit failed", "err", err)
		httpx.WriteInternalError(w)
		return
	}
	httpx.WriteMessage(w, http.StatusOK, "ok")
}

func periodBounds(start, end int64) (*time.Time, *time.Time) {
	var cps, cpe *time.Time
	if start > 0 {
		t := time.Unix(start, 0).UTC()
		cps = &t
	}
	if end > 0 {
		t := time.Unix(end, 0).UTC()
		cpe = &t
	}
	return cps, cpe
}
