package store

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Medication log statuses.
const (
	MedicationTaken   = "taken"
	MedicationMissed  = "missed"
	MedicationSkipped = "skipped"
)

// MedicationSchedule is one dosing plan tied to a prescription.
type MedicationSchedule struct {
	ID              string    `json:"id"`
	PatientID       string    `json:"patientId"`
	PrescriptionID  string    `json:"prescriptionId,omitempty"`
	StartDate       time.Time `json:"startDate"`
	EndDate         time.Time `json:"endDate"`
	TimesPerDay     int       `json:"timesPerDay"`
	MedicationTimes []string  `json:"medicationTimes"` // HH:mm entries
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// MedicationLog records one intake event.
type MedicationLog struct {
	ID         string    `json:"id"`
	ScheduleID string    `json:"scheduleId"`
	TakenAt    time.Time `json:"takenAt"`
	Status     string    `json:"status"`
	Notes      string    `json:"notes,omitempty"`
}

// MedicationStats aggregates a patient's adherence.
type MedicationStats struct {
	PatientID       string  `json:"patientId"`
	TotalSchedules  int     `json:"totalSchedules"`
	ActiveSchedules int     `json:"activeSchedules"`
	TotalLogs       int     `json:"totalLogs"`
	TakenCount      int     `json:"takenCount"`
	MissedCount     int     `json:"missedCount"`
	SkippedCount    int     `json:"skippedCount"`
	ComplianceRate  float64 `json:"complianceRate"` // percent, one decimal
}

// CreateMedicationSchedule inserts a schedule.
func (s *Store) CreateMedicationSchedule(ctx context.Context, m *MedicationSchedule) error {
	if strings.TrimSpace(m.PatientID) == "" {
		return fmt.Errorf("medication schedule patient ID cannot be empty")
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	m.CreatedAt = time.Now()
	if m.MedicationTimes == nil {
		m.MedicationTimes = []string{}
	}

	times, err := json.Marshal(m.MedicationTimes)
	if err != nil {
		return fmt.Errorf("failed to encode medication times: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO medication_schedules
			(id, patient_id, prescription_id, start_date, end_date, times_per_day, medication_times, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.PatientID, m.PrescriptionID, fmtTime(m.StartDate), fmtTime(m.EndDate),
		m.TimesPerDay, string(times), m.Notes, fmtTime(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create medication schedule: %w", err)
	}
	return nil
}

// ListMedicationSchedulesByPatient returns a patient's schedules, newest
// first.
func (s *Store) ListMedicationSchedulesByPatient(ctx context.Context, patientID string) ([]MedicationSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, prescription_id, start_date, end_date, times_per_day, medication_times, notes, created_at
		FROM medication_schedules WHERE patient_id = ? ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medication schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]MedicationSchedule, 0)
	for rows.Next() {
		m, err := scanMedicationSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *m)
	}
	return schedules, rows.Err()
}

// ListActiveMedicationSchedules returns schedules whose date range covers now.
func (s *Store) ListActiveMedicationSchedules(ctx context.Context, now time.Time) ([]MedicationSchedule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, prescription_id, start_date, end_date, times_per_day, medication_times, notes, created_at
		FROM medication_schedules WHERE start_date <= ? AND end_date >= ?`,
		fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list active medication schedules: %w", err)
	}
	defer rows.Close()

	schedules := make([]MedicationSchedule, 0)
	for rows.Next() {
		m, err := scanMedicationSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *m)
	}
	return schedules, rows.Err()
}

func scanMedicationSchedule(rows rowScanner) (*MedicationSchedule, error) {
	var m MedicationSchedule
	var start, end, times, createdAt string
	if err := rows.Scan(&m.ID, &m.PatientID, &m.PrescriptionID, &start, &end,
		&m.TimesPerDay, &times, &m.Notes, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan medication schedule: %w", err)
	}
	m.StartDate = parseTime(start)
	m.EndDate = parseTime(end)
	m.CreatedAt = parseTime(createdAt)
	_ = json.Unmarshal([]byte(times), &m.MedicationTimes)
	return &m, nil
}

// CreateMedicationLog inserts one intake record.
func (s *Store) CreateMedicationLog(ctx context.Context, l *MedicationLog) error {
	if strings.TrimSpace(l.ScheduleID) == "" {
		return fmt.Errorf("medication log schedule ID cannot be empty")
	}
	switch l.Status {
	case MedicationTaken, MedicationMissed, MedicationSkipped:
	default:
		return fmt.Errorf("invalid medication status: %q", l.Status)
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.TakenAt.IsZero() {
		l.TakenAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO medication_logs (id, schedule_id, taken_at, status, notes)
		VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.ScheduleID, fmtTime(l.TakenAt), l.Status, l.Notes)
	if err != nil {
		return fmt.Errorf("failed to create medication log: %w", err)
	}
	return nil
}

// ListMedicationLogsBySchedule returns a schedule's logs, newest first.
func (s *Store) ListMedicationLogsBySchedule(ctx context.Context, scheduleID string) ([]MedicationLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, schedule_id, taken_at, status, notes
		FROM medication_logs WHERE schedule_id = ? ORDER BY taken_at DESC`, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list medication logs: %w", err)
	}
	defer rows.Close()

	logs := make([]MedicationLog, 0)
	for rows.Next() {
		var l MedicationLog
		var takenAt string
		if err := rows.Scan(&l.ID, &l.ScheduleID, &takenAt, &l.Status, &l.Notes); err != nil {
			return nil, fmt.Errorf("failed to scan medication log: %w", err)
		}
		l.TakenAt = parseTime(takenAt)
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// MedicationStatsByPatient aggregates adherence across all of a patient's
// schedules. Compliance is taken/total logs as a percentage with one decimal.
func (s *Store) MedicationStatsByPatient(ctx context.Context, patientID string, now time.Time) (*MedicationStats, error) {
	stats := &MedicationStats{PatientID: patientID}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN start_date <= ? AND end_date >= ? THEN 1 ELSE 0 END), 0)
		FROM medication_schedules WHERE patient_id = ?`,
		fmtTime(now), fmtTime(now), patientID).
		Scan(&stats.TotalSchedules, &stats.ActiveSchedules)
	if err != nil {
		return nil, fmt.Errorf("failed to count medication schedules: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN l.status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN l.status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN l.status = ? THEN 1 ELSE 0 END), 0)
		FROM medication_logs l
		JOIN medication_schedules m ON m.id = l.schedule_id
		WHERE m.patient_id = ?`,
		MedicationTaken, MedicationMissed, MedicationSkipped, patientID).
		Scan(&stats.TotalLogs, &stats.TakenCount, &stats.MissedCount, &stats.SkippedCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count medication logs: %w", err)
	}

	if stats.TotalLogs > 0 {
		stats.ComplianceRate = math.Round(float64(stats.TakenCount)/float64(stats.TotalLogs)*1000) / 10
	}
	return stats, nil
}
