package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEchoMiddleware_UsesRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(EchoMiddleware())
	e.GET("/api/patients/:subject_id/full", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/patients/:subject_id/full", "200"))

	for _, id := range []string{"1", "2", "3"} {
		req := httptest.NewRequest(http.MethodGet, "/api/patients/"+id+"/full", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
	}

	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/patients/:subject_id/full", "200"))
	if after-before != 3 {
		t.Errorf("expected 3 requests under one template label, got %v", after-before)
	}
}

func TestEchoMiddleware_HTTPErrorStatus(t *testing.T) {
	e := echo.New()
	e.Use(EchoMiddleware())
	e.GET("/api/patients", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad limit")
	})
	e.GET("/boom", func(c echo.Context) error {
		return errors.New("boom")
	})

	before400 := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/patients", "400"))
	before500 := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/boom", "500"))

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/patients?limit=x", nil))
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/patients", "400")) - before400; got != 1 {
		t.Errorf("expected one 400 sample, got %v", got)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/boom", "500")) - before500; got != 1 {
		t.Errorf("expected one 500 sample, got %v", got)
	}
}

func TestMiddleware_ChiRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/getFullPatientData", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/getFullPatientData", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/getFullPatientData?subject_id=9", nil))

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/getFullPatientData", "404")) - before; got != 1 {
		t.Errorf("expected one 404 sample, got %v", got)
	}
}

func TestBusinessMetrics(t *testing.T) {
	before := testutil.ToFloat64(aggregationFailures.WithLabelValues("labevents"))
	RecordAggregationFailure("labevents")
	if got := testutil.ToFloat64(aggregationFailures.WithLabelValues("labevents")) - before; got != 1 {
		t.Errorf("expected failure counter to increase by 1, got %v", got)
	}

	beforeOK := testutil.ToFloat64(copilotRequests.WithLabelValues("ok"))
	RecordCopilotRequest("ok")
	if got := testutil.ToFloat64(copilotRequests.WithLabelValues("ok")) - beforeOK; got != 1 {
		t.Errorf("expected copilot counter to increase by 1, got %v", got)
	}

	RecordCategoryFetch("postgres", "admissions", 15*time.Millisecond)
	if n := testutil.CollectAndCount(categoryFetchDuration); n == 0 {
		t.Error("expected category fetch histogram to have samples")
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	RecordAuditPublishFailure("kafka")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "audit_publish_failures_total") {
		t.Error("expected audit_publish_failures_total in exposition")
	}
}
