package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InitialChart is a patient's first-visit chart. Notes holds the free-text
// body with bracket-delimited sections; deletion is soft so charts remain
// auditable.
type InitialChart struct {
	ID                   string    `json:"id"`
	PatientID            string    `json:"patientId"`
	DoctorName           string    `json:"doctorName,omitempty"`
	ChartDate            string    `json:"chartDate"` // YYYY-MM-DD
	ChiefComplaint       string    `json:"chiefComplaint,omitempty"`
	PresentIllness       string    `json:"presentIllness,omitempty"`
	PastMedicalHistory   string    `json:"pastMedicalHistory,omitempty"`
	Notes                string    `json:"notes,omitempty"`
	PrescriptionIssued   bool      `json:"prescriptionIssued"`
	PrescriptionIssuedAt string    `json:"prescriptionIssuedAt,omitempty"`
	DeletedAt            string    `json:"deletedAt,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// ProgressNote is one SOAP-style follow-up note.
type ProgressNote struct {
	ID                   string    `json:"id"`
	PatientID            string    `json:"patientId"`
	DoctorName           string    `json:"doctorName,omitempty"`
	NoteDate             string    `json:"noteDate"` // YYYY-MM-DD
	Subjective           string    `json:"subjective,omitempty"`
	Objective            string    `json:"objective,omitempty"`
	Assessment           string    `json:"assessment,omitempty"`
	Plan                 string    `json:"plan,omitempty"`
	FollowUpPlan         string    `json:"followUpPlan,omitempty"`
	Notes                string    `json:"notes,omitempty"`
	PrescriptionIssued   bool      `json:"prescriptionIssued"`
	PrescriptionIssuedAt string    `json:"prescriptionIssuedAt,omitempty"`
	DeletedAt            string    `json:"deletedAt,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// CreateInitialChart inserts a first-visit chart.
func (s *Store) CreateInitialChart(ctx context.Context, c *InitialChart) error {
	if strings.TrimSpace(c.PatientID) == "" {
		return fmt.Errorf("chart patient ID cannot be empty")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	if c.ChartDate == "" {
		c.ChartDate = now.Format("2006-01-02")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO initial_charts
			(id, patient_id, doctor_name, chart_date, chief_complaint, present_illness,
			 past_medical_history, notes, prescription_issued, prescription_issued_at,
			 deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)`,
		c.ID, c.PatientID, c.DoctorName, c.ChartDate, c.ChiefComplaint, c.PresentIllness,
		c.PastMedicalHistory, c.Notes, boolToInt(c.PrescriptionIssued), c.PrescriptionIssuedAt,
		fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create initial chart: %w", err)
	}
	return nil
}

// ListInitialChartsByPatient returns a patient's non-deleted charts, newest
// first.
func (s *Store) ListInitialChartsByPatient(ctx context.Context, patientID string) ([]InitialChart, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, doctor_name, chart_date, chief_complaint, present_illness,
		       past_medical_history, notes, prescription_issued, prescription_issued_at,
		       deleted_at, created_at, updated_at
		FROM initial_charts
		WHERE patient_id = ? AND deleted_at = ''
		ORDER BY chart_date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list initial charts: %w", err)
	}
	defer rows.Close()

	charts := make([]InitialChart, 0)
	for rows.Next() {
		var c InitialChart
		var issued int
		var createdAt, updatedAt string
		if err := rows.Scan(&c.ID, &c.PatientID, &c.DoctorName, &c.ChartDate, &c.ChiefComplaint,
			&c.PresentIllness, &c.PastMedicalHistory, &c.Notes, &issued, &c.PrescriptionIssuedAt,
			&c.DeletedAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan initial chart: %w", err)
		}
		c.PrescriptionIssued = issued != 0
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		charts = append(charts, c)
	}
	return charts, rows.Err()
}

// UpdateInitialChart rewrites the editable fields of an existing chart.
func (s *Store) UpdateInitialChart(ctx context.Context, c *InitialChart) error {
	c.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE initial_charts
		SET doctor_name = ?, chart_date = ?, chief_complaint = ?, present_illness = ?,
		    past_medical_history = ?, notes = ?, prescription_issued = ?,
		    prescription_issued_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at = ''`,
		c.DoctorName, c.ChartDate, c.ChiefComplaint, c.PresentIllness,
		c.PastMedicalHistory, c.Notes, boolToInt(c.PrescriptionIssued),
		c.PrescriptionIssuedAt, fmtTime(c.UpdatedAt), c.ID)
	if err != nil {
		return fmt.Errorf("failed to update initial chart: %w", err)
	}
	return requireAffected(res)
}

// SoftDeleteInitialChart marks a chart deleted without removing the row.
func (s *Store) SoftDeleteInitialChart(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE initial_charts SET deleted_at = ? WHERE id = ? AND deleted_at = ''`,
		fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to delete initial chart: %w", err)
	}
	return requireAffected(res)
}

// CreateProgressNote inserts a follow-up note.
func (s *Store) CreateProgressNote(ctx context.Context, n *ProgressNote) error {
	if strings.TrimSpace(n.PatientID) == "" {
		return fmt.Errorf("progress note patient ID cannot be empty")
	}
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	now := time.Now()
	n.CreatedAt = now
	n.UpdatedAt = now
	if n.NoteDate == "" {
		n.NoteDate = now.Format("2006-01-02")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO progress_notes
			(id, patient_id, doctor_name, note_date, subjective, objective, assessment,
			 plan, follow_up_plan, notes, prescription_issued, prescription_issued_at,
			 deleted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', ?, ?)`,
		n.ID, n.PatientID, n.DoctorName, n.NoteDate, n.Subjective, n.Objective, n.Assessment,
		n.Plan, n.FollowUpPlan, n.Notes, boolToInt(n.PrescriptionIssued), n.PrescriptionIssuedAt,
		fmtTime(n.CreatedAt), fmtTime(n.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create progress note: %w", err)
	}
	return nil
}

// ListProgressNotesByPatient returns a patient's non-deleted notes, newest
// first.
func (s *Store) ListProgressNotesByPatient(ctx context.Context, patientID string) ([]ProgressNote, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, doctor_name, note_date, subjective, objective, assessment,
		       plan, follow_up_plan, notes, prescription_issued, prescription_issued_at,
		       deleted_at, created_at, updated_at
		FROM progress_notes
		WHERE patient_id = ? AND deleted_at = ''
		ORDER BY note_date DESC, created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress notes: %w", err)
	}
	defer rows.Close()

	notes := make([]ProgressNote, 0)
	for rows.Next() {
		var n ProgressNote
		var issued int
		var createdAt, updatedAt string
		if err := rows.Scan(&n.ID, &n.PatientID, &n.DoctorName, &n.NoteDate, &n.Subjective,
			&n.Objective, &n.Assessment, &n.Plan, &n.FollowUpPlan, &n.Notes, &issued,
			&n.PrescriptionIssuedAt, &n.DeletedAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan progress note: %w", err)
		}
		n.PrescriptionIssued = issued != 0
		n.CreatedAt = parseTime(createdAt)
		n.UpdatedAt = parseTime(updatedAt)
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// SoftDeleteProgressNote marks a note deleted without removing the row.
func (s *Store) SoftDeleteProgressNote(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE progress_notes SET deleted_at = ? WHERE id = ? AND deleted_at = ''`,
		fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to delete progress note: %w", err)
	}
	return requireAffected(res)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
