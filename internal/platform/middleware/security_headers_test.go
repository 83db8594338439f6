package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		name     string
		hsts     bool
		wantHSTS bool
	}{
		{"development", false, false},
		{"production", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			err := SecurityHeaders(tt.hsts)(func(c echo.Context) error {
				return c.String(http.StatusOK, "ok")
			})(c)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			h := rec.Header()
			if h.Get("X-Content-Type-Options") != "nosniff" {
				t.Error("expected nosniff")
			}
			if h.Get("Cache-Control") != "no-store" {
				t.Error("expected Cache-Control no-store")
			}
			if h.Get("X-Frame-Options") != "DENY" {
				t.Error("expected X-Frame-Options DENY")
			}
			if got := h.Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS present=%v, want %v", got, tt.wantHSTS)
			}
		})
	}
}
