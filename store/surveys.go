package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Survey session lifecycle.
const (
	SessionPending   = "pending"
	SessionCompleted = "completed"
	SessionExpired   = "expired"

	// SessionLifetime is how long a survey link stays usable.
	SessionLifetime = 24 * time.Hour
)

// Question types supported by survey templates.
const (
	QuestionText           = "text"
	QuestionSingleChoice   = "single_choice"
	QuestionMultipleChoice = "multiple_choice"
	QuestionScale          = "scale"
	QuestionYesNo          = "yes_no"
)

// ScaleConfig configures a scale-type question.
type ScaleConfig struct {
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	MinLabel string `json:"minLabel,omitempty"`
	MaxLabel string `json:"maxLabel,omitempty"`
}

// SurveyQuestion is one question of a template.
type SurveyQuestion struct {
	ID       string       `json:"id"`
	Text     string       `json:"questionText"`
	Type     string       `json:"questionType"`
	Options  []string     `json:"options,omitempty"`
	Scale    *ScaleConfig `json:"scaleConfig,omitempty"`
	Required bool         `json:"required"`
}

// SurveyTemplate is a reusable questionnaire.
type SurveyTemplate struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Questions   []SurveyQuestion `json:"questions"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// SurveySession is one tokenized survey link handed to a patient.
type SurveySession struct {
	ID             string    `json:"id"`
	Token          string    `json:"token"`
	TemplateID     string    `json:"templateId"`
	PatientID      string    `json:"patientId,omitempty"`
	RespondentName string    `json:"respondentName,omitempty"`
	Status         string    `json:"status"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// SurveyAnswer is one submitted answer; the value shape depends on the
// question type.
type SurveyAnswer struct {
	QuestionID string          `json:"questionId"`
	Answer     json.RawMessage `json:"answer"`
}

// SurveyResponse is one completed questionnaire.
type SurveyResponse struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"sessionId,omitempty"`
	PatientID      string         `json:"patientId,omitempty"`
	TemplateID     string         `json:"templateId"`
	RespondentName string         `json:"respondentName,omitempty"`
	Answers        []SurveyAnswer `json:"answers"`
	SubmittedAt    time.Time      `json:"submittedAt"`
}

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewSessionToken returns an 8-character lowercase alphanumeric token.
func NewSessionToken() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// fall back to a UUID-derived token rather than panicking.
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}
	for i, b := range buf {
		buf[i] = tokenAlphabet[int(b)%len(tokenAlphabet)]
	}
	return string(buf)
}

// SaveSurveyTemplate inserts or updates a template.
func (s *Store) SaveSurveyTemplate(ctx context.Context, t *SurveyTemplate) error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("survey template name cannot be empty")
	}
	now := time.Now()
	if t.ID == "" {
		t.ID = uuid.NewString()
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Questions == nil {
		t.Questions = []SurveyQuestion{}
	}

	questions, err := json.Marshal(t.Questions)
	if err != nil {
		return fmt.Errorf("failed to encode questions: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO survey_templates (id, name, description, questions, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			questions = excluded.questions,
			updated_at = excluded.updated_at`,
		t.ID, t.Name, t.Description, string(questions), fmtTime(t.CreatedAt), fmtTime(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save survey template: %w", err)
	}
	return nil
}

// GetSurveyTemplate returns one template by ID.
func (s *Store) GetSurveyTemplate(ctx context.Context, id string) (*SurveyTemplate, error) {
	var t SurveyTemplate
	var questions, createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, questions, created_at, updated_at
		FROM survey_templates WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.Description, &questions, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey template: %w", err)
	}
	_ = json.Unmarshal([]byte(questions), &t.Questions)
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// ListSurveyTemplates returns all templates in name order.
func (s *Store) ListSurveyTemplates(ctx context.Context) ([]SurveyTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, questions, created_at, updated_at
		FROM survey_templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list survey templates: %w", err)
	}
	defer rows.Close()

	templates := make([]SurveyTemplate, 0)
	for rows.Next() {
		var t SurveyTemplate
		var questions, createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Name, &t.Description, &questions, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan survey template: %w", err)
		}
		_ = json.Unmarshal([]byte(questions), &t.Questions)
		t.CreatedAt = parseTime(createdAt)
		t.UpdatedAt = parseTime(updatedAt)
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// DeleteSurveyTemplate removes a template.
func (s *Store) DeleteSurveyTemplate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM survey_templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete survey template: %w", err)
	}
	return requireAffected(res)
}

// newSessionToken is swappable in tests to force token collisions.
var newSessionToken = NewSessionToken

// tokenInsertAttempts bounds the retry loop on token collisions. Eight
// random characters collide so rarely that a second attempt is already
// the unusual case.
const tokenInsertAttempts = 5

// CreateSurveySession creates a pending session with a fresh token expiring
// after SessionLifetime. The token is regenerated when it collides with an
// existing session.
func (s *Store) CreateSurveySession(ctx context.Context, templateID, patientID, respondentName string) (*SurveySession, error) {
	if strings.TrimSpace(templateID) == "" {
		return nil, fmt.Errorf("survey session template ID cannot be empty")
	}
	now := time.Now()
	session := &SurveySession{
		ID:             uuid.NewString(),
		TemplateID:     templateID,
		PatientID:      patientID,
		RespondentName: respondentName,
		Status:         SessionPending,
		ExpiresAt:      now.Add(SessionLifetime),
		CreatedAt:      now,
	}

	var lastErr error
	for attempt := 0; attempt < tokenInsertAttempts; attempt++ {
		session.Token = newSessionToken()
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO survey_sessions (id, token, template_id, patient_id, respondent_name, status, expires_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			session.ID, session.Token, session.TemplateID, session.PatientID,
			session.RespondentName, session.Status, fmtTime(session.ExpiresAt), fmtTime(session.CreatedAt))
		if err == nil {
			return session, nil
		}
		if !isTokenCollision(err) {
			return nil, fmt.Errorf("failed to create survey session: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("failed to create survey session after %d token attempts: %w", tokenInsertAttempts, lastErr)
}

func isTokenCollision(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: survey_sessions.token")
}

// GetSurveySessionByToken returns one session by its public token.
func (s *Store) GetSurveySessionByToken(ctx context.Context, token string) (*SurveySession, error) {
	var session SurveySession
	var expiresAt, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, token, template_id, patient_id, respondent_name, status, expires_at, created_at
		FROM survey_sessions WHERE token = ?`, token).
		Scan(&session.ID, &session.Token, &session.TemplateID, &session.PatientID,
			&session.RespondentName, &session.Status, &expiresAt, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get survey session: %w", err)
	}
	session.ExpiresAt = parseTime(expiresAt)
	session.CreatedAt = parseTime(createdAt)
	return &session, nil
}

// MarkSurveySessionCompleted transitions a session to completed.
func (s *Store) MarkSurveySessionCompleted(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE survey_sessions SET status = ? WHERE id = ?`, SessionCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to complete survey session: %w", err)
	}
	return requireAffected(res)
}

// ExpireStaleSurveySessions transitions pending sessions past their expiry.
// Returns the number of sessions expired.
func (s *Store) ExpireStaleSurveySessions(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE survey_sessions SET status = ? WHERE status = ? AND expires_at < ?`,
		SessionExpired, SessionPending, fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to expire survey sessions: %w", err)
	}
	return res.RowsAffected()
}

// CreateSurveyResponse stores one completed questionnaire.
func (s *Store) CreateSurveyResponse(ctx context.Context, r *SurveyResponse) error {
	if strings.TrimSpace(r.TemplateID) == "" {
		return fmt.Errorf("survey response template ID cannot be empty")
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.SubmittedAt.IsZero() {
		r.SubmittedAt = time.Now()
	}
	if r.Answers == nil {
		r.Answers = []SurveyAnswer{}
	}

	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("failed to encode answers: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO survey_responses (id, session_id, patient_id, template_id, respondent_name, answers, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.SessionID, r.PatientID, r.TemplateID, r.RespondentName,
		string(answers), fmtTime(r.SubmittedAt))
	if err != nil {
		return fmt.Errorf("failed to create survey response: %w", err)
	}
	return nil
}

// ListSurveyResponses returns all responses, newest first.
func (s *Store) ListSurveyResponses(ctx context.Context) ([]SurveyResponse, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, patient_id, template_id, respondent_name, answers, submitted_at
		FROM survey_responses ORDER BY submitted_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list survey responses: %w", err)
	}
	defer rows.Close()

	responses := make([]SurveyResponse, 0)
	for rows.Next() {
		var r SurveyResponse
		var answers, submittedAt string
		if err := rows.Scan(&r.ID, &r.SessionID, &r.PatientID, &r.TemplateID,
			&r.RespondentName, &answers, &submittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan survey response: %w", err)
		}
		_ = json.Unmarshal([]byte(answers), &r.Answers)
		r.SubmittedAt = parseTime(submittedAt)
		responses = append(responses, r)
	}
	return responses, rows.Err()
}
