package store

import (
	"context"
	"fmt"
	"time"

	"github.com/haniwon/clinic-server/formula"
)

// PatientExport bundles everything stored about one patient.
type PatientExport struct {
	Patient       *Patient             `json:"patient"`
	Prescriptions []Prescription       `json:"prescriptions"`
	InitialCharts []InitialChart       `json:"initialCharts"`
	ProgressNotes []ProgressNote       `json:"progressNotes"`
	Schedules     []MedicationSchedule `json:"medicationSchedules"`
	ExportedAt    time.Time            `json:"exportedAt"`
}

// FullExport is a whole-database dump for backup.
type FullExport struct {
	Settings    *ClinicSettings        `json:"settings,omitempty"`
	Patients    []Patient              `json:"patients"`
	Herbs       []formula.HerbRecord   `json:"herbs"`
	Definitions []FormulaDefinitionRow `json:"formulaDefinitions"`
	Exports     []PatientExport        `json:"patientData"`
	ExportedAt  time.Time              `json:"exportedAt"`
}

// ExportPatient collects one patient's full record set.
func (s *Store) ExportPatient(ctx context.Context, patientID string) (*PatientExport, error) {
	patient, err := s.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	prescriptions, err := s.ListPrescriptionsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	charts, err := s.ListInitialChartsByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	notes, err := s.ListProgressNotesByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	schedules, err := s.ListMedicationSchedulesByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	return &PatientExport{
		Patient:       patient,
		Prescriptions: prescriptions,
		InitialCharts: charts,
		ProgressNotes: notes,
		Schedules:     schedules,
		ExportedAt:    time.Now(),
	}, nil
}

// ExportAll dumps the whole database for backup.
func (s *Store) ExportAll(ctx context.Context) (*FullExport, error) {
	settings, err := s.GetClinicSettings(ctx)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	patients, err := s.ListPatients(ctx, "")
	if err != nil {
		return nil, err
	}
	herbs, err := s.ListHerbs(ctx)
	if err != nil {
		return nil, err
	}
	definitions, err := s.ListFormulaDefinitions(ctx)
	if err != nil {
		return nil, err
	}

	exports := make([]PatientExport, 0, len(patients))
	for _, p := range patients {
		export, err := s.ExportPatient(ctx, p.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to export patient %s: %w", p.ID, err)
		}
		exports = append(exports, *export)
	}

	return &FullExport{
		Settings:    settings,
		Patients:    patients,
		Herbs:       herbs,
		Definitions: definitions,
		Exports:     exports,
		ExportedAt:  time.Now(),
	}, nil
}
