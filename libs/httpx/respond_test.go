package httpx

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func TestWriteJSONEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, 201, map[string]string{"id": "abc"})

	if rec.Code != 201 {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}

	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success {
		t.Fatal("expected success=true")
	}
	data, ok := env.Data.(map[string]any)
	if !ok || data["id"] != "abc" {
		t.Fatalf("unexpected data: %#v", env.Data)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, 409, "room already booked for that time")

	if rec.Code != 409 {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Success {
		t.Fatal("expected success=false")
	}
	if env.Message != "room already booked for that time" {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestWriteInternalErrorIsOpaque(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteInternalError(rec)

	if rec.Code != 500 {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	var env Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Message != "internal error" {
		t.Fatalf("internal error body must stay opaque, got %q", env.Message)
	}
}
