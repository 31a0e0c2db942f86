package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/haniwon/clinic-server/store"
)

// GetClinicSettings serves GET /api/settings.
func (h *Handler) GetClinicSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.db.GetClinicSettings(r.Context())
	if err != nil {
		h.storeError(w, err, "Clinic settings not configured")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, settings)
}

// SaveClinicSettings serves PUT /api/settings (admin only).
func (h *Handler) SaveClinicSettings(w http.ResponseWriter, r *http.Request) {
	var settings store.ClinicSettings
	if !h.decodeJSON(w, r, &settings) {
		return
	}

	if strings.TrimSpace(settings.ClinicName) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Clinic name cannot be empty")
		return
	}

	if err := h.db.SaveClinicSettings(r.Context(), &settings); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, settings)
}

// ExportPatient serves GET /api/export/patients/{id}: the patient's full
// record as one JSON document.
func (h *Handler) ExportPatient(w http.ResponseWriter, r *http.Request) {
	export, err := h.db.ExportPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "Patient not found")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=patient-export.json")
	h.RespondWithJSON(w, http.StatusOK, export)
}

// ExportAll serves GET /api/export (admin only): the whole clinic dataset.
func (h *Handler) ExportAll(w http.ResponseWriter, r *http.Request) {
	export, err := h.db.ExportAll(r.Context())
	if err != nil {
		h.storeError(w, err, "")
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=clinic-export.json")
	h.RespondWithJSON(w, http.StatusOK, export)
}
