// Package functions serves the patient and copilot operations as flat,
// function-style endpoints for clients built against managed functions.
package functions

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/ehr/copilot/internal/domain/copilot"
	"github.com/ehr/copilot/internal/domain/patient"
	"github.com/ehr/copilot/internal/platform/auth"
	"github.com/ehr/copilot/internal/platform/db"
	"github.com/ehr/copilot/internal/platform/metrics"
	"github.com/ehr/copilot/internal/platform/middleware"
)

// Deps are the collaborators of the function endpoints.
type Deps struct {
	Patients      *patient.Service
	Copilot       *copilot.Service
	Authenticator auth.Authenticator
	Audit         middleware.AuditRecorder
	Probe         *db.Probe
	Logger        zerolog.Logger
}

// NewRouter builds the function endpoints. Everything except health and
// metrics requires authentication; patient endpoints are audited.
func NewRouter(d Deps) http.Handler {
	h := &handler{patients: d.Patients, copilot: d.Copilot}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(hlog.NewHandler(d.Logger))
	r.Use(hlog.AccessHandler(accessLog))
	r.Use(chimw.Recoverer)
	r.Use(cors)
	r.Use(metrics.Middleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Probe != nil {
		probe := *d.Probe
		r.Get("/health/db", func(w http.ResponseWriter, r *http.Request) {
			status, body := probe.Check(r.Context())
			writeJSON(w, status, body)
		})
	}
	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuditHTTP(d.Logger, d.Audit))
		r.Use(auth.HTTPMiddleware(d.Authenticator))

		r.Get("/getPaginatedPatients", h.getPaginatedPatients)
		r.Get("/getFullPatientData", h.getFullPatientData)
		r.Post("/copilotChat", h.copilotChat)
	})

	return r
}

func accessLog(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("latency", duration).
		Str("remote_ip", r.RemoteAddr).
		Msg("request")
}

// cors allows any origin. Preflight requests end here with 204.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
