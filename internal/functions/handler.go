package functions

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ehr/copilot/internal/domain/copilot"
	"github.com/ehr/copilot/internal/domain/patient"
	"github.com/ehr/copilot/pkg/pagination"
)

const maxChatBody = 1 << 20

type handler struct {
	patients *patient.Service
	copilot  *copilot.Service
}

func (h *handler) getPaginatedPatients(w http.ResponseWriter, r *http.Request) {
	pg, err := pagination.FromRequest(r, pagination.FunctionDefaultLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	page, err := h.patients.ListPatients(r.Context(), pg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *handler) getFullPatientData(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("subject_id")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "Missing subject_id")
		return
	}
	id, err := patient.ParseSubjectID(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := h.patients.GetFullRecord(r.Context(), id)
	if errors.Is(err, patient.ErrPatientNotFound) {
		writeError(w, http.StatusNotFound, "Patient not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handler) copilotChat(w http.ResponseWriter, r *http.Request) {
	var req copilot.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	resp, err := h.copilot.Chat(r.Context(), req)
	if err != nil {
		writeError(w, copilot.StatusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
