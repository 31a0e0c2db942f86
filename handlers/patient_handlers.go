package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/haniwon/clinic-server/store"
)

// ListPatients serves GET /api/patients with an optional ?q= search over
// name and chart number.
func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("q"))
	if search != "" {
		if err := h.validator.ValidateSearchQuery(search); err != nil {
			h.RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	patients, err := h.db.ListPatients(r.Context(), search)
	if err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, patients)
}

// GetPatient serves GET /api/patients/{id}.
func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patient, err := h.db.GetPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "Patient not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, patient)
}

// CreatePatient serves POST /api/patients.
func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var patient store.Patient
	if !h.decodeJSON(w, r, &patient) {
		return
	}

	if strings.TrimSpace(patient.Name) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Patient name cannot be empty")
		return
	}

	if err := h.db.CreatePatient(r.Context(), &patient); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusCreated, patient)
}

// UpdatePatient serves PUT /api/patients/{id}.
func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	var patient store.Patient
	if !h.decodeJSON(w, r, &patient) {
		return
	}
	patient.ID = chi.URLParam(r, "id")

	if strings.TrimSpace(patient.Name) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Patient name cannot be empty")
		return
	}

	if err := h.db.UpdatePatient(r.Context(), &patient); err != nil {
		h.storeError(w, err, "Patient not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, patient)
}

// DeletePatient serves DELETE /api/patients/{id}.
func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.DeletePatient(r.Context(), id); err != nil {
		h.storeError(w, err, "Patient not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
