package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/haniwon/clinic-server/logging"
	"github.com/haniwon/clinic-server/store"
)

// SaveSurveyTemplate serves PUT /api/surveys/templates.
func (h *Handler) SaveSurveyTemplate(w http.ResponseWriter, r *http.Request) {
	var template store.SurveyTemplate
	if !h.decodeJSON(w, r, &template) {
		return
	}

	if strings.TrimSpace(template.Name) == "" {
		h.RespondWithError(w, http.StatusBadRequest, "Template name cannot be empty")
		return
	}

	if err := h.db.SaveSurveyTemplate(r.Context(), &template); err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, template)
}

// ListSurveyTemplates serves GET /api/surveys/templates.
func (h *Handler) ListSurveyTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := h.db.ListSurveyTemplates(r.Context())
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, templates)
}

// GetSurveyTemplate serves GET /api/surveys/templates/{id}.
func (h *Handler) GetSurveyTemplate(w http.ResponseWriter, r *http.Request) {
	template, err := h.db.GetSurveyTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, err, "Template not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, template)
}

// DeleteSurveyTemplate serves DELETE /api/surveys/templates/{id}.
func (h *Handler) DeleteSurveyTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.DeleteSurveyTemplate(r.Context(), id); err != nil {
		h.storeError(w, err, "Template not found")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

type createSessionRequest struct {
	TemplateID     string `json:"templateId"`
	PatientID      string `json:"patientId,omitempty"`
	RespondentName string `json:"respondentName,omitempty"`
}

// CreateSurveySession serves POST /api/surveys/sessions: mints a tokenized
// link a patient can open without logging in.
func (h *Handler) CreateSurveySession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.db.GetSurveyTemplate(r.Context(), req.TemplateID); err != nil {
		h.storeError(w, err, "Template not found")
		return
	}

	session, err := h.db.CreateSurveySession(r.Context(), req.TemplateID, req.PatientID, req.RespondentName)
	if err != nil {
		h.storeError(w, err, "")
		return
	}

	h.RespondWithJSON(w, http.StatusCreated, session)
}

// publicSessionResponse bundles the session with its template so the public
// survey page renders with a single request.
type publicSessionResponse struct {
	Session  *store.SurveySession  `json:"session"`
	Template *store.SurveyTemplate `json:"template"`
}

// GetPublicSurveySession serves GET /survey/{token}: the unauthenticated
// endpoint opened from the patient's link.
func (h *Handler) GetPublicSurveySession(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	session, err := h.db.GetSurveySessionByToken(r.Context(), token)
	if err != nil {
		h.storeError(w, err, "Survey link not found")
		return
	}

	if session.Status != store.SessionPending || time.Now().After(session.ExpiresAt) {
		h.RespondWithError(w, http.StatusGone, "Survey link is no longer valid")
		return
	}

	template, err := h.db.GetSurveyTemplate(r.Context(), session.TemplateID)
	if err != nil {
		h.storeError(w, err, "Template not found")
		return
	}

	h.RespondWithJSON(w, http.StatusOK, publicSessionResponse{Session: session, Template: template})
}

type submitSurveyRequest struct {
	Answers []store.SurveyAnswer `json:"answers"`
}

// SubmitSurveyResponse serves POST /survey/{token}: stores the answers and
// completes the session.
func (h *Handler) SubmitSurveyResponse(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	session, err := h.db.GetSurveySessionByToken(r.Context(), token)
	if err != nil {
		h.storeError(w, err, "Survey link not found")
		return
	}

	if session.Status != store.SessionPending || time.Now().After(session.ExpiresAt) {
		h.RespondWithError(w, http.StatusGone, "Survey link is no longer valid")
		return
	}

	var req submitSurveyRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}
	if len(req.Answers) == 0 {
		h.RespondWithError(w, http.StatusBadRequest, "Answers cannot be empty")
		return
	}

	response := &store.SurveyResponse{
		SessionID:      session.ID,
		PatientID:      session.PatientID,
		TemplateID:     session.TemplateID,
		RespondentName: session.RespondentName,
		Answers:        req.Answers,
	}
	if err := h.db.CreateSurveyResponse(r.Context(), response); err != nil {
		h.storeError(w, err, "")
		return
	}

	if err := h.db.MarkSurveySessionCompleted(r.Context(), session.ID); err != nil {
		logging.Error("Failed to mark survey session completed", "session_id", session.ID, "error", err)
	}

	h.RespondWithJSON(w, http.StatusCreated, response)
}

// ListSurveyResponses serves GET /api/surveys/responses.
func (h *Handler) ListSurveyResponses(w http.ResponseWriter, r *http.Request) {
	responses, err := h.db.ListSurveyResponses(r.Context())
	if err != nil {
		h.storeError(w, err, "")
		return
	}
	h.RespondWithJSON(w, http.StatusOK, responses)
}
