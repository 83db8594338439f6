package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/copilot/internal/platform/auth"
)

// Audit actions.
const (
	ActionListPatients   = "list_patients"
	ActionReadFullRecord = "read_full_record"
)

const auditRecordTimeout = 5 * time.Second

// AuditEntry records one access to patient data: who, which patient, what,
// from where and with what outcome.
type AuditEntry struct {
	UserID     string    `json:"user_id"`
	SubjectID  string    `json:"subject_id,omitempty"`
	Action     string    `json:"action"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status"`
	RequestID  string    `json:"request_id,omitempty"`
	IPAddress  string    `json:"ip_address"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuditRecorder delivers audit entries to a durable sink. Implementations
// must be safe for concurrent use.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

// Audit logs a phi_access event for every patient data request and forwards
// it to recorder when one is configured. A recorder failure is logged and
// never changes the response. Mount it outside authentication so rejected
// attempts are recorded too.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			action := auditAction(c.Request().URL.Path)
			if action == "" {
				return next(c)
			}

			err := next(c)

			// Re-read: authentication inside this middleware replaces the request.
			req := c.Request()

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && status < http.StatusBadRequest {
				status = http.StatusInternalServerError
			}
			rid, _ := c.Get("request_id").(string)

			entry := AuditEntry{
				UserID:     auth.UserIDFromContext(req.Context()),
				SubjectID:  c.Param("subject_id"),
				Action:     action,
				Method:     req.Method,
				Path:       req.URL.Path,
				StatusCode: status,
				RequestID:  rid,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Timestamp:  time.Now().UTC(),
			}
			record(req.Context(), logger, recorder, entry)
			return err
		}
	}
}

// AuditHTTP is the net/http form of Audit for the function endpoints. Like
// Audit it wraps authentication; the caller is picked up via
// auth.ObserveClaims.
func AuditHTTP(logger zerolog.Logger, recorder AuditRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			action := auditAction(r.URL.Path)
			if action == "" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			var claims *auth.Claims
			r = r.WithContext(auth.ObserveClaims(r.Context(), &claims))

			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			userID := auth.UserIDFromContext(r.Context())
			if claims != nil {
				userID = claims.Subject
			}

			entry := AuditEntry{
				UserID:     userID,
				SubjectID:  r.URL.Query().Get("subject_id"),
				Action:     action,
				Method:     r.Method,
				Path:       r.URL.Path,
				StatusCode: sw.status,
				RequestID:  chimw.GetReqID(r.Context()),
				IPAddress:  remoteIP(r),
				UserAgent:  r.UserAgent(),
				Timestamp:  time.Now().UTC(),
			}
			record(r.Context(), logger, recorder, entry)
		})
	}
}

func record(reqCtx context.Context, logger zerolog.Logger, recorder AuditRecorder, entry AuditEntry) {
	if recorder != nil {
		// The request may already be cancelled; delivery must still be attempted.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(reqCtx), auditRecordTimeout)
		if err := recorder.RecordAccess(ctx, entry); err != nil {
			logger.Error().Err(err).
				Str("request_id", entry.RequestID).
				Msg("failed to record audit entry")
		}
		cancel()
	}

	logger.Info().
		Str("type", "phi_audit").
		Str("request_id", entry.RequestID).
		Str("user_id", entry.UserID).
		Str("subject_id", entry.SubjectID).
		Str("action", entry.Action).
		Str("method", entry.Method).
		Str("path", entry.Path).
		Str("remote_ip", entry.IPAddress).
		Int("status", entry.StatusCode).
		Msg("phi_access")
}

// auditAction classifies a path, returning "" for paths that expose no
// patient data.
func auditAction(path string) string {
	switch {
	case path == "/getPaginatedPatients", path == "/api/patients", path == "/api/patients/":
		return ActionListPatients
	case path == "/getFullPatientData":
		return ActionReadFullRecord
	case strings.HasPrefix(path, "/api/patients/") && strings.HasSuffix(path, "/full"):
		return ActionReadFullRecord
	}
	return ""
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func remoteIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(ip)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}
