package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/deskhive/deskhive/libs/httpx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) httpx.Envelope {
	t.Helper()
	var env httpx.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestBookingCreate_RejectsInvalidJSON(t *testing.T) {
	h := NewBookingHandler(nil, nil, discardLogger())

	req := httptest.NewRequest("POST", "/api/v1/bookings", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 422 {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Success {
		t.Fatal("expected success=false")
	}
}

func TestBookingCreate_RequiresFields(t *testing.T) {
	h := NewBookingHandler(nil, nil, discardLogger())

	req := httptest.NewRequest("POST", "/api/v1/bookings", strings.NewReader(`{"room_id":"r1"}`))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 422 {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestBookingCreate_RejectsInvertedInterval(t *testing.T) {
	h := NewBookingHandler(nil, nil, discardLogger())

	body := `{"room_id":"r1","member_name":"Ada","start_time":"2026-03-02T10:00:00Z","end_time":"2026-03-02T09:00:00Z"}`
	req := httptest.NewRequest("POST", "/api/v1/bookings", strings.NewReader(body))
	req.Header.Set("X-Company-Id", "co-1")
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 422 {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if !strings.Contains(env.Message, "end_time") {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestBookingCreate_RejectsGet(t *testing.T) {
	h := NewBookingHandler(nil, nil, discardLogger())

	req := httptest.NewRequest("GET", "/api/v1/bookings", nil)
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != 405 {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestResolveCompanyID_PrefersHeaderForMembers(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Company-Id", "co-mine")
	req.Header.Set("X-Role", "member")

	if got := resolveCompanyID(req, "co-other"); got != "co-mine" {
		t.Fatalf("member must stay company-scoped, got %q", got)
	}
}

func TestResolveCompanyID_StaffMayOverride(t *testing.T) {
	req := httptest.NewRequest("POST", "/", nil)
	req.Header.Set("X-Company-Id", "co-staff")
	req.Header.Set("X-Role", "staff")

	if got := resolveCompanyID(req, "co-target"); got != "co-target" {
		t.Fatalf("staff override failed, got %q", got)
	}
}
