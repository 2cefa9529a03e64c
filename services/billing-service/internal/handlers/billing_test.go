package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deskhive/deskhive/libs/httpx"
)

func newTestHandler(cfg Config) *Handler {
	return New(nil, nil, slog.New(slog.DiscardHandler), cfg)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestCheckoutNotConfigured(t *testing.T) {
	h := newTestHandler(Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/checkout", strings.NewReader(`{"plan":"flex"}`))
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotImplemented)
	}
	if env := decodeEnvelope(t, rec); env.Success {
		t.Fatal("expected success=false")
	}
}

func TestCheckoutRejectsUnknownPlan(t *testing.T) {
	h := newTestHandler(Config{StripeSecretKey: "sk_test_x"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/checkout", strings.NewReader(`{"plan":"gold"}`))
	req.Header.Set("X-Company-Id", "co-1")
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestCheckoutRequiresCompanyContext(t *testing.T) {
	h := newTestHandler(Config{StripeSecretKey: "sk_test_x"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/checkout", strings.NewReader(`{"plan":"flex"}`))
	rec := httptest.NewRecorder()
	h.Checkout(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestStripeWebhookUnconfigured(t *testing.T) {
	h := newTestHandler(Config{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestStripeWebhookMissingSignature(t *testing.T) {
	h := newTestHandler(Config{StripeWebhookSecret: "whsec_test"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhooks/stripe", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.StripeWebhook(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestLocalWebhookRejectsMissingFields(t *testing.T) {
	h := newTestHandler(Config{})

	body := `{"type":"membership.activated","plan":"flex"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhooks/local", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.LocalWebhook(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnprocessableEntity)
	}
}

func TestLocalWebhookForbidsCrossCompany(t *testing.T) {
	h := newTestHandler(Config{})

	body := `{"event_id":"evt-1","type":"membership.activated","plan":"flex","company_id":"co-2","occurred_at":"2026-03-02T10:00:00Z"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhooks/local", strings.NewReader(body))
	req.Header.Set("X-Role", "member")
	req.Header.Set("X-Company-Id", "co-1")
	rec := httptest.NewRecorder()
	h.LocalWebhook(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
