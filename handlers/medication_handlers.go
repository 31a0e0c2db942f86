package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/haniwon/clinic-server/store"
)

// CreateMedicationSchedule serves POST /api/patients/{id}/medications.
func (h *Handler) CreateMedicationSchedule(w http.ResponseWriter, r *http.Request) {
	var schedule store.MedicationSchedule
	if !h.decodeJSON(w, r, &schedule) {
		return
	}
	schedule.PatientID = chi.URLParam(r, "id")

	if schedule.EndDate.Before(schedule.StartDate) {
		h.RespondWithError(w, http.StatusBadRequest, "End date cannot be before start date")
		return
	}
	if schedule.TimesPerDay < 1 {
		h.RespondWithError(w, http.StatusBadRequest, "Times per day must be at least 1")
		return
	}

	if err := h.db.CreateMedicationSchedule(r.Context(), &schedule); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusCreated, schedule)
}

// ListMedicationSchedules serves GET /api/patients/{id}/medications.
func (h *Handler) ListMedicationSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := h.db.ListMedicationSchedulesByPatient(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, schedules)
}

// CreateMedicationLog serves POST /api/medications/{id}/logs.
func (h *Handler) CreateMedicationLog(w http.ResponseWriter, r *http.Request) {
	var log store.MedicationLog
	if !h.decodeJSON(w, r, &log) {
		return
	}
	log.ScheduleID = chi.URLParam(r, "id")

	switch log.Status {
	case store.MedicationTaken, store.MedicationMissed, store.MedicationSkipped:
	default:
		h.RespondWithError(w, http.StatusBadRequest, "Status must be taken, missed or skipped")
		return
	}

	if log.TakenAt.IsZero() {
		log.TakenAt = time.Now()
	}

	if err := h.db.CreateMedicationLog(r.Context(), &log); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusCreated, log)
}

// ListMedicationLogs serves GET /api/medications/{id}/logs.
func (h *Handler) ListMedicationLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := h.db.ListMedicationLogsBySchedule(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, logs)
}

// MedicationStats serves GET /api/patients/{id}/medications/stats.
func (h *Handler) MedicationStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.MedicationStatsByPatient(r.Context(), chi.URLParam(r, "id"), time.Now())
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, stats)
}

// ListNotifications serves GET /api/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notifications, err := h.db.ListUnreadNotifications(r.Context())
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, notifications)
}

// MarkNotificationRead serves PUT /api/notifications/{id}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.MarkNotificationRead(r.Context(), id); err != nil {
		h.storeError(w, err, "Notification not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, map[string]string{"read": id})
}
