package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// Patient is one patient record. Optional fields are empty strings.
type Patient struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ChartNumber string    `json:"chartNumber,omitempty"`
	BirthDate   string    `json:"birthDate,omitempty"` // YYYY-MM-DD
	Gender      string    `json:"gender,omitempty"`    // M/F
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreatePatient inserts a new patient, assigning an ID and timestamps.
func (s *Store) CreatePatient(ctx context.Context, p *Patient) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("patient name cannot be empty")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patients (id, name, chart_number, birth_date, gender, phone, address, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.ChartNumber, p.BirthDate, p.Gender, p.Phone, p.Address, p.Notes,
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

// GetPatient returns one patient by ID, or ErrNotFound.
func (s *Store) GetPatient(ctx context.Context, id string) (*Patient, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, chart_number, birth_date, gender, phone, address, notes, created_at, updated_at
		FROM patients WHERE id = ?`, id)
	return scanPatient(row)
}

// ListPatients returns all patients ordered by name, optionally filtered by a
// case-sensitive substring match on name or chart number.
func (s *Store) ListPatients(ctx context.Context, search string) ([]Patient, error) {
	query := `
		SELECT id, name, chart_number, birth_date, gender, phone, address, notes, created_at, updated_at
		FROM patients`
	args := []any{}
	// Decomposed Hangul from macOS clients never substring-matches the
	// composed names we store.
	search = norm.NFC.String(strings.TrimSpace(search))
	if search != "" {
		query += ` WHERE name LIKE ? OR chart_number LIKE ?`
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY name, created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	patients := make([]Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

// UpdatePatient rewrites all editable fields of an existing patient.
func (s *Store) UpdatePatient(ctx context.Context, p *Patient) error {
	p.UpdatedAt = time.Now()
	res, err := s.db.ExecContext(ctx, `
		UPDATE patients
		SET name = ?, chart_number = ?, birth_date = ?, gender = ?, phone = ?, address = ?, notes = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.ChartNumber, p.BirthDate, p.Gender, p.Phone, p.Address, p.Notes,
		fmtTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return requireAffected(res)
}

// DeletePatient removes a patient row.
func (s *Store) DeletePatient(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return requireAffected(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*Patient, error) {
	var p Patient
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &p.ChartNumber, &p.BirthDate, &p.Gender, &p.Phone,
		&p.Address, &p.Notes, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan patient: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
