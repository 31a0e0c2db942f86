package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ClinicSettings is the single-row clinic profile.
type ClinicSettings struct {
	ID            string    `json:"id"`
	ClinicName    string    `json:"clinicName"`
	ClinicAddress string    `json:"clinicAddress,omitempty"`
	ClinicPhone   string    `json:"clinicPhone,omitempty"`
	DoctorName    string    `json:"doctorName,omitempty"`
	LicenseNumber string    `json:"licenseNumber,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SaveClinicSettings writes the clinic profile. Only one row ever exists;
// saving replaces it.
func (s *Store) SaveClinicSettings(ctx context.Context, c *ClinicSettings) error {
	now := time.Now()
	if c.ID == "" {
		c.ID = uuid.NewString()
		c.CreatedAt = now
	}
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `DELETE FROM clinic_settings`)
	if err != nil {
		return fmt.Errorf("failed to clear clinic settings: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO clinic_settings
			(id, clinic_name, clinic_address, clinic_phone, doctor_name, license_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ClinicName, c.ClinicAddress, c.ClinicPhone, c.DoctorName, c.LicenseNumber,
		fmtTime(c.CreatedAt), fmtTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save clinic settings: %w", err)
	}
	return nil
}

// GetClinicSettings returns the clinic profile, or ErrNotFound before first
// setup.
func (s *Store) GetClinicSettings(ctx context.Context) (*ClinicSettings, error) {
	var c ClinicSettings
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, clinic_name, clinic_address, clinic_phone, doctor_name, license_number, created_at, updated_at
		FROM clinic_settings LIMIT 1`).
		Scan(&c.ID, &c.ClinicName, &c.ClinicAddress, &c.ClinicPhone, &c.DoctorName,
			&c.LicenseNumber, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get clinic settings: %w", err)
	}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
