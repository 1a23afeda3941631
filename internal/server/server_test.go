package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/memohai/anontalks/internal/handlers"
	"github.com/memohai/anontalks/internal/logger"
)

func TestNewServerRegistersHandlers(t *testing.T) {
	t.Parallel()

	srv := NewServer(logger.Discard(), "", handlers.NewPingHandler(logger.Discard(), nil), nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
