package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/haniwon/clinic-server/chartnote"
	"github.com/haniwon/clinic-server/store"
)

// initialChartResponse adds the parsed note sections to a stored chart so
// clients render the bracket-delimited sections without reimplementing the
// split rules.
type initialChartResponse struct {
	store.InitialChart
	Sections []chartnote.Section `json:"sections,omitempty"`
}

// CreateInitialChart serves POST /api/patients/{id}/charts.
func (h *Handler) CreateInitialChart(w http.ResponseWriter, r *http.Request) {
	var chart store.InitialChart
	if !h.decodeJSON(w, r, &chart) {
		return
	}
	chart.PatientID = chi.URLParam(r, "id")

	if strings.TrimSpace(chart.ChartDate) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Chart date cannot be empty")
		return
	}

	if err := h.db.CreateInitialChart(r.Context(), &chart); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusCreated, initialChartResponse{
		InitialChart: chart,
		Sections:     chartnote.Split(chart.Notes),
	})
}

// ListInitialCharts serves GET /api/patients/{id}/charts.
func (h *Handler) ListInitialCharts(w http.ResponseWriter, r *http.Request) {
	charts, err := h.db.ListInitialChartsByPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "")
		return
	}

	response := make([]initialChartResponse, 0, len(charts))
	for _, chart := range charts {
		response = append(response, initialChartResponse{
			InitialChart: chart,
			Sections:     chartnote.Split(chart.Notes),
		})
	}

	h.RespondWithJSON(w, http.StatusOK, response)
}

// UpdateInitialChart serves PUT /api/charts/{id}.
func (h *Handler) UpdateInitialChart(w http.ResponseWriter, r *http.Request) {
	var chart store.InitialChart
	if !h.decodeJSON(w, r, &chart) {
		return
	}
	chart.ID = chi.URLParam(r, "id")

	if err := h.db.UpdateInitialChart(r.Context(), &chart); err != nil {
		h.storeError(w, err, "Chart not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, initialChartResponse{
		InitialChart: chart,
		Sections:     chartnote.Split(chart.Notes),
	})
}

// DeleteInitialChart serves DELETE /api/charts/{id} (soft delete).
func (h *Handler) DeleteInitialChart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.SoftDeleteInitialChart(r.Context(), id); err != nil {
		h.storeError(w, err, "Chart not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// CreateProgressNote serves POST /api/patients/{id}/notes.
func (h *Handler) CreateProgressNote(w http.ResponseWriter, r *http.Request) {
	var note store.ProgressNote
	if !h.decodeJSON(w, r, &note) {
		return
	}
	note.PatientID = chi.URLParam(r, "id")

	if strings.TrimSpace(note.NoteDate) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Note date cannot be empty")
		return
	}

	if err := h.db.CreateProgressNote(r.Context(), &note); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusCreated, note)
}

// ListProgressNotes serves GET /api/patients/{id}/notes.
func (h *Handler) ListProgressNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.db.ListProgressNotesByPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, notes)
}

// DeleteProgressNote serves DELETE /api/notes/{id} (soft delete).
func (h *Handler) DeleteProgressNote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.SoftDeleteProgressNote(r.Context(), id); err != nil {
		h.storeError(w, err, "Note not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, map[string]string{"deleted": id})
}
