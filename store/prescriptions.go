package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haniwon/clinic-server/formula"
)

// Prescription persists one issued herbal prescription: the raw formula and
// adjustment text the practitioner typed plus the engine's outputs, so a
// stored prescription renders without re-running the pipeline.
type Prescription struct {
	ID                 string                   `json:"id"`
	PatientID          string                   `json:"patientId"`
	Name               string                   `json:"prescriptionName"`
	FormulaText        string                   `json:"formulaText,omitempty"`
	AdjustmentText     string                   `json:"adjustmentText,omitempty"`
	MergedHerbs        []formula.MergedHerb     `json:"mergedHerbs"`
	FinalHerbs         []formula.FinalHerb      `json:"finalHerbs"`
	Dosing             formula.DosingParameters `json:"dosing"`
	DosageInstructions string                   `json:"dosageInstructions,omitempty"`
	Notes              string                   `json:"notes,omitempty"`
	CreatedAt          time.Time                `json:"createdAt"`
	UpdatedAt          time.Time                `json:"updatedAt"`
}

// CreatePrescription inserts a prescription, assigning ID and timestamps.
func (s *Store) CreatePrescription(ctx context.Context, p *Prescription) error {
	if strings.TrimSpace(p.PatientID) == "" {
		return fmt.Errorf("prescription patient ID cannot be empty")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now

	merged, err := json.Marshal(emptyIfNilMerged(p.MergedHerbs))
	if err != nil {
		return fmt.Errorf("failed to encode merged herbs: %w", err)
	}
	final, err := json.Marshal(emptyIfNilFinal(p.FinalHerbs))
	if err != nil {
		return fmt.Errorf("failed to encode final herbs: %w", err)
	}
	dosing, err := json.Marshal(p.Dosing)
	if err != nil {
		return fmt.Errorf("failed to encode dosing parameters: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO prescriptions
			(id, patient_id, prescription_name, formula_text, adjustment_text,
			 merged_herbs, final_herbs, dosing, dosage_instructions, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.PatientID, p.Name, p.FormulaText, p.AdjustmentText,
		string(merged), string(final), string(dosing), p.DosageInstructions, p.Notes,
		fmtTime(p.CreatedAt), fmtTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to create prescription: %w", err)
	}
	return nil
}

// ListPrescriptionsByPatient returns a patient's prescriptions, newest first.
func (s *Store) ListPrescriptionsByPatient(ctx context.Context, patientID string) ([]Prescription, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, patient_id, prescription_name, formula_text, adjustment_text,
		       merged_herbs, final_herbs, dosing, dosage_instructions, notes, created_at, updated_at
		FROM prescriptions WHERE patient_id = ? ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list prescriptions: %w", err)
	}
	defer rows.Close()

	prescriptions := make([]Prescription, 0)
	for rows.Next() {
		var p Prescription
		var merged, final, dosing, createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.PatientID, &p.Name, &p.FormulaText, &p.AdjustmentText,
			&merged, &final, &dosing, &p.DosageInstructions, &p.Notes, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan prescription: %w", err)
		}
		// Stored JSON was written by this package; a decode failure means a
		// hand-edited row and degrades to empty lists.
		_ = json.Unmarshal([]byte(merged), &p.MergedHerbs)
		_ = json.Unmarshal([]byte(final), &p.FinalHerbs)
		_ = json.Unmarshal([]byte(dosing), &p.Dosing)
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		prescriptions = append(prescriptions, p)
	}
	return prescriptions, rows.Err()
}

// DeletePrescription removes one prescription row.
func (s *Store) DeletePrescription(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM prescriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete prescription: %w", err)
	}
	return requireAffected(res)
}

func emptyIfNilMerged(herbs []formula.MergedHerb) []formula.MergedHerb {
	if herbs == nil {
		return []formula.MergedHerb{}
	}
	return herbs
}

func emptyIfNilFinal(herbs []formula.FinalHerb) []formula.FinalHerb {
	if herbs == nil {
		return []formula.FinalHerb{}
	}
	return herbs
}
