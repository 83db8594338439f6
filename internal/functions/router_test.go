package functions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/ehr/copilot/internal/domain/copilot"
	"github.com/ehr/copilot/internal/domain/patient"
	"github.com/ehr/copilot/internal/platform/auth"
	"github.com/ehr/copilot/internal/platform/db"
	"github.com/ehr/copilot/internal/platform/middleware"
)

const testAPIKey = "functions-test-key"

type fakeStore struct {
	mu       sync.Mutex
	patients []patient.Patient
	rows     map[string][]patient.Row
	failing  string
	calls    int
}

func (f *fakeStore) Backend() string { return "fake" }

func (f *fakeStore) ListPatients(_ context.Context, limit, offset int) ([]patient.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if offset >= len(f.patients) {
		return nil, nil
	}
	return f.patients[offset:min(offset+limit, len(f.patients))], nil
}

func (f *fakeStore) CountPatients(_ context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return len(f.patients), nil
}

func (f *fakeStore) GetPatient(_ context.Context, id int64) (*patient.Patient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	for _, p := range f.patients {
		if p.SubjectID == id {
			return &p, nil
		}
	}
	return nil, patient.ErrPatientNotFound
}

func (f *fakeStore) FetchCategory(_ context.Context, cat patient.Category, _ int64) ([]patient.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if cat.Name == f.failing {
		return nil, errors.New("timeout")
	}
	return f.rows[cat.Name], nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeCompleter struct{}

func (fakeCompleter) Complete(context.Context, []copilot.Message) (string, error) {
	return "Noted.", nil
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []middleware.AuditEntry
}

func (c *captureRecorder) RecordAccess(_ context.Context, e middleware.AuditEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, e)
	return nil
}

func newTestRouter(store *fakeStore, recorder middleware.AuditRecorder) http.Handler {
	logger := zerolog.Nop()
	probe := db.Probe{Backend: "fake", Ping: func(context.Context) error { return nil }}
	return NewRouter(Deps{
		Patients:      patient.NewService(store, logger),
		Copilot:       copilot.NewService(fakeCompleter{}, logger),
		Authenticator: auth.NewAPIKeyVerifier(testAPIKey),
		Audit:         recorder,
		Probe:         &probe,
		Logger:        logger,
	})
}

func threePatients() *fakeStore {
	return &fakeStore{
		patients: []patient.Patient{{SubjectID: 1}, {SubjectID: 2}, {SubjectID: 3}},
		rows:     map[string][]patient.Row{"admissions": {{"hadm_id": 11}, {"hadm_id": 12}}},
	}
}

func do(h http.Handler, method, target, body string, authed bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if authed {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetPaginatedPatients(t *testing.T) {
	h := newTestRouter(threePatients(), nil)

	rec := do(h, http.MethodGet, "/getPaginatedPatients?limit=2&offset=0", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var page struct {
		Data     []patient.Patient `json:"data"`
		Total    int               `json:"total"`
		PageSize int               `json:"pageSize"`
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if len(page.Data) != 2 || page.Total != 3 {
		t.Errorf("expected 2 of 3, got %d of %d", len(page.Data), page.Total)
	}

	rec = do(h, http.MethodGet, "/getPaginatedPatients", "", true)
	if !strings.Contains(rec.Body.String(), `"pageSize":10`) {
		t.Errorf("expected default page size 10, got %s", rec.Body.String())
	}

	rec = do(h, http.MethodGet, "/getPaginatedPatients?offset=-1", "", true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestGetFullPatientData(t *testing.T) {
	tests := []struct {
		name     string
		target   string
		failing  string
		wantCode int
		wantBody string
	}{
		{"ok", "/getFullPatientData?subject_id=1", "", http.StatusOK, `"icustays":[]`},
		{"missing id", "/getFullPatientData", "", http.StatusBadRequest, `{"error":"Missing subject_id"}`},
		{"bad id", "/getFullPatientData?subject_id=abc", "", http.StatusBadRequest, "invalid subject_id"},
		{"unknown patient", "/getFullPatientData?subject_id=99", "", http.StatusNotFound, "Patient not found"},
		{"failing category", "/getFullPatientData?subject_id=1", "omr", http.StatusInternalServerError, "fetch omr: timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := threePatients()
			store.failing = tt.failing
			h := newTestRouter(store, nil)

			rec := do(h, http.MethodGet, tt.target, "", true)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d: %s", tt.wantCode, rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("expected %q in %s", tt.wantBody, rec.Body.String())
			}
			if tt.wantCode == http.StatusInternalServerError && strings.Contains(rec.Body.String(), "admissions") {
				t.Errorf("expected no category data on failure, got %s", rec.Body.String())
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	for _, target := range []string{"/getPaginatedPatients", "/getFullPatientData?subject_id=1"} {
		store := threePatients()
		h := newTestRouter(store, nil)

		rec := do(h, http.MethodGet, target, "", false)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", target, rec.Code)
		}
		if store.callCount() != 0 {
			t.Errorf("%s: expected no storage access, got %d", target, store.callCount())
		}
	}

	rec := do(newTestRouter(threePatients(), nil), http.MethodGet, "/getPaginatedPatients?apiKey="+testAPIKey, "", false)
	if rec.Code != http.StatusOK {
		t.Errorf("expected query key to authenticate, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	store := threePatients()
	rec := do(newTestRouter(store, nil), http.MethodOptions, "/getFullPatientData", "", false)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard origin, got %q", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Headers"), "X-API-Key") {
		t.Errorf("expected X-API-Key in allowed headers")
	}
	if store.callCount() != 0 {
		t.Errorf("expected no storage access on preflight")
	}
}

func TestCopilotChat(t *testing.T) {
	h := newTestRouter(threePatients(), nil)

	rec := do(h, http.MethodPost, "/copilotChat", `{"messages":[{"role":"user","content":"hello"}]}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"content":"Noted."`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}

	rec = do(h, http.MethodPost, "/copilotChat", `{"messages":[]}`, true)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestAuditTrail(t *testing.T) {
	recorder := &captureRecorder{}
	h := newTestRouter(threePatients(), recorder)

	do(h, http.MethodGet, "/getFullPatientData?subject_id=2", "", true)
	do(h, http.MethodPost, "/copilotChat", `{"messages":[{"role":"user","content":"hi"}]}`, true)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.entries) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(recorder.entries))
	}
	e := recorder.entries[0]
	if e.Action != middleware.ActionReadFullRecord || e.SubjectID != "2" || e.UserID != auth.APIKeySubject {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.RequestID == "" {
		t.Error("expected request id on audit entry")
	}
}

func TestAuditTrail_RejectedAccess(t *testing.T) {
	recorder := &captureRecorder{}
	store := threePatients()
	h := newTestRouter(store, recorder)

	rec := do(h, http.MethodGet, "/getFullPatientData?subject_id=1", "", false)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if store.callCount() != 0 {
		t.Errorf("expected no storage access, got %d", store.callCount())
	}

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.entries) != 1 {
		t.Fatalf("expected rejected access to be audited, got %d entries", len(recorder.entries))
	}
	e := recorder.entries[0]
	if e.StatusCode != http.StatusUnauthorized || e.UserID != "" || e.SubjectID != "1" {
		t.Errorf("unexpected entry %+v", e)
	}
}

func TestHealth(t *testing.T) {
	h := newTestRouter(threePatients(), nil)
	if rec := do(h, http.MethodGet, "/health", "", false); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	rec := do(h, http.MethodGet, "/health/db", "", false)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"healthy"`) {
		t.Errorf("unexpected db health %d %s", rec.Code, rec.Body.String())
	}
}
