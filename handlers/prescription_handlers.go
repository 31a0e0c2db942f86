package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/haniwon/clinic-server/metrics"
	"github.com/haniwon/clinic-server/store"
)

// CreatePrescription serves POST /api/patients/{id}/prescriptions. When the
// request carries formula text the engine runs server-side and the computed
// herb lists are persisted with the prescription.
func (h *Handler) CreatePrescription(w http.ResponseWriter, r *http.Request) {
	var prescription store.Prescription
	if !h.decodeJSON(w, r, &prescription) {
		return
	}
	prescription.PatientID = chi.URLParam(r, "id")

	if strings.TrimSpace(prescription.Name) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Prescription name cannot be empty")
		return
	}

	if _, err := h.db.GetPatient(r.Context(), prescription.PatientID); err != nil {
		h.storeError(w, err, "Patient not found")
		return
	}

	if strings.TrimSpace(prescription.FormulaText) != "" {
		req := previewRequest{
			FormulaText:    prescription.FormulaText,
			AdjustmentText: prescription.AdjustmentText,
			Dosing:         prescription.Dosing,
		}
		merged, result, err := h.runFormulaPipeline(&req)
		if err != nil {
			h.respondParseError(w, err)
			return
		}
		metrics.FormulaParseTotal.WithLabelValues("ok").Inc()

		prescription.MergedHerbs = merged
		prescription.FinalHerbs = result.finalHerbs
	}

	if err := h.db.CreatePrescription(r.Context(), &prescription); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusCreated, prescription)
}

// ListPrescriptions serves GET /api/patients/{id}/prescriptions.
func (h *Handler) ListPrescriptions(w http.ResponseWriter, r *http.Request) {
	prescriptions, err := h.db.ListPrescriptionsByPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, prescriptions)
}

// DeletePrescription serves DELETE /api/prescriptions/{id}.
func (h *Handler) DeletePrescription(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.DeletePrescription(r.Context(), id); err != nil {
		h.storeError(w, err, "Prescription not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
