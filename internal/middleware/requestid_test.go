package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/Strob0t/CodeAtlas/internal/logger"
)

func TestRequestIDGenerated(t *testing.T) {
	var ctxID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	respID := rec.Header().Get("X-Request-ID")
	if respID == "" {
		t.Fatal("expected X-Request-ID in response header")
	}
	if _, err := uuid.Parse(respID); err != nil {
		t.Errorf("generated ID %q is not a UUID: %v", respID, err)
	}
	if ctxID != respID {
		t.Errorf("context ID %q differs from response header %q", ctxID, respID)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	const existingID = "client-chosen-id-123"

	var ctxID string
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		ctxID = logger.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-ID", existingID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if ctxID != existingID {
		t.Errorf("expected %q in context, got %q", existingID, ctxID)
	}
	if got := rec.Header().Get("X-Request-ID"); got != existingID {
		t.Errorf("expected %q echoed on response, got %q", existingID, got)
	}
}

func TestRequestIDReplacesOversizedHeader(t *testing.T) {
	oversized := strings.Repeat("a", maxRequestIDLen+1)

	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	req.Header.Set("X-Request-ID", oversized)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	got := rec.Header().Get("X-Request-ID")
	if got == oversized {
		t.Fatal("oversized client ID was accepted verbatim")
	}
	if _, err := uuid.Parse(got); err != nil {
		t.Errorf("replacement ID %q is not a UUID: %v", got, err)
	}
}
