package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/haniwon/clinic-server/data"
	"github.com/haniwon/clinic-server/formula"
	"github.com/haniwon/clinic-server/store"
	"github.com/haniwon/clinic-server/validation"
)

func newTestScheduler(t *testing.T) (*Scheduler, *store.Store, *data.CatalogContainer) {
	t.Helper()

	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	catalog := data.NewCatalogContainer()
	return NewScheduler(catalog, db, validation.NewValidator()), db, catalog
}

func seedCatalog(t *testing.T, db *store.Store) {
	t.Helper()
	ctx := context.Background()

	herbs := []formula.HerbRecord{
		{ID: 1, Name: "시호", Unit: "g"},
		{ID: 2, Name: "황금", Unit: "g"},
		{ID: 3, Name: "감초", Unit: "g"},
	}
	for _, h := range herbs {
		if err := db.UpsertHerb(ctx, h); err != nil {
			t.Fatalf("Failed to seed herb %s: %v", h.Name, err)
		}
	}

	defs := []store.FormulaDefinitionRow{
		{Name: "소시호탕", Composition: "시호:12/황금:8/감초:4"},
		{Name: "시호감초탕", Composition: "소시호탕:1/감초:8"},
	}
	for _, d := range defs {
		if err := db.UpsertFormulaDefinition(ctx, d); err != nil {
			t.Fatalf("Failed to seed definition %s: %v", d.Name, err)
		}
	}
}

func TestRebuildCatalog(t *testing.T) {
	s, db, catalog := newTestScheduler(t)
	seedCatalog(t, db)

	if err := s.RebuildCatalog(context.Background()); err != nil {
		t.Fatalf("RebuildCatalog failed: %v", err)
	}

	if got := len(catalog.GetHerbs()); got != 3 {
		t.Errorf("Expected 3 herbs in catalog, got %d", got)
	}
	if got := len(catalog.GetTemplates()); got != 2 {
		t.Errorf("Expected 2 templates in catalog, got %d", got)
	}
	if id, ok := catalog.HerbID("황금"); !ok || id != 2 {
		t.Errorf("Expected 황금 -> 2, got %d ok=%v", id, ok)
	}
	if catalog.GetLastUpdated().IsZero() {
		t.Error("Expected last-updated to be set after rebuild")
	}
}

func TestRebuildCatalogFreshDatabase(t *testing.T) {
	s, _, catalog := newTestScheduler(t)

	// A brand-new install has no data yet; the rebuild must still come up
	// with an empty catalog so the API that fills it can be reached.
	if err := s.RebuildCatalog(context.Background()); err != nil {
		t.Fatalf("Rebuild on a fresh database failed: %v", err)
	}

	if got := len(catalog.GetTemplates()); got != 0 {
		t.Errorf("Expected empty catalog, got %d templates", got)
	}
	if catalog.GetLastUpdated().IsZero() {
		t.Error("Expected last-updated to be set after the empty swap")
	}
}

func TestStartOnFreshDatabase(t *testing.T) {
	s, _, catalog := newTestScheduler(t)

	if err := s.Start(); err != nil {
		t.Fatalf("Start on a fresh database failed: %v", err)
	}
	defer s.Stop()

	if catalog.GetLastUpdated().IsZero() {
		t.Error("Expected initial build to complete on a fresh database")
	}
}

func TestRebuildCatalogKeepsLiveCatalogOnBadData(t *testing.T) {
	s, db, catalog := newTestScheduler(t)
	seedCatalog(t, db)
	ctx := context.Background()

	if err := s.RebuildCatalog(ctx); err != nil {
		t.Fatalf("RebuildCatalog failed: %v", err)
	}

	for _, name := range []string{"소시호탕", "시호감초탕"} {
		if err := db.DeleteFormulaDefinition(ctx, name); err != nil {
			t.Fatalf("Failed to delete definition %s: %v", name, err)
		}
	}

	if err := s.RebuildCatalog(ctx); err == nil {
		t.Fatal("Expected rebuild over a live catalog to reject empty definitions")
	}
	if got := len(catalog.GetTemplates()); got != 2 {
		t.Errorf("Failed rebuild must not replace the live catalog, got %d templates", got)
	}
}

func TestRebuildCatalogSkipsWhenUpdating(t *testing.T) {
	s, db, catalog := newTestScheduler(t)
	seedCatalog(t, db)

	if !catalog.BeginUpdate() {
		t.Fatal("Failed to acquire update flag")
	}
	defer catalog.EndUpdate()

	if err := s.RebuildCatalog(context.Background()); err != nil {
		t.Fatalf("Skipped rebuild should not error: %v", err)
	}
	if got := len(catalog.GetTemplates()); got != 0 {
		t.Errorf("Skipped rebuild must not touch the catalog, got %d templates", got)
	}
}

func TestExpireSurveySessions(t *testing.T) {
	s, db, _ := newTestScheduler(t)
	ctx := context.Background()

	template := &store.SurveyTemplate{Name: "초진 설문"}
	if err := db.SaveSurveyTemplate(ctx, template); err != nil {
		t.Fatalf("Failed to save template: %v", err)
	}

	session, err := db.CreateSurveySession(ctx, template.ID, "", "김철수")
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	// The sweep runs with current time; a fresh session must survive.
	s.ExpireSurveySessions(ctx)

	got, err := db.GetSurveySessionByToken(ctx, session.Token)
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if got.Status != store.SessionPending {
		t.Errorf("Expected fresh session to stay pending, got %s", got.Status)
	}

	expired, err := db.ExpireStaleSurveySessions(ctx, time.Now().Add(25*time.Hour))
	if err != nil {
		t.Fatalf("Failed to expire sessions: %v", err)
	}
	if expired != 1 {
		t.Errorf("Expected 1 expired session, got %d", expired)
	}

	got, err = db.GetSurveySessionByToken(ctx, session.Token)
	if err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	if got.Status != store.SessionExpired {
		t.Errorf("Expected session to be expired, got %s", got.Status)
	}
}

func TestDosesDueBy(t *testing.T) {
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.Local)

	tests := []struct {
		name  string
		times []string
		want  int
	}{
		{"all past", []string{"08:00", "12:00"}, 2},
		{"one within grace", []string{"08:00", "13:30"}, 1},
		{"future dose", []string{"18:00"}, 0},
		{"malformed entry skipped", []string{"8am", "08:00"}, 1},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dosesDueBy(tt.times, now); got != tt.want {
				t.Errorf("dosesDueBy(%v) = %d, want %d", tt.times, got, tt.want)
			}
		})
	}
}

func TestScanMissedMedications(t *testing.T) {
	s, db, _ := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now()

	schedule := &store.MedicationSchedule{
		PatientID:       "patient-1",
		StartDate:       now.AddDate(0, 0, -1),
		EndDate:         now.AddDate(0, 0, 5),
		TimesPerDay:     1,
		MedicationTimes: []string{"00:00"},
	}
	if err := db.CreateMedicationSchedule(ctx, schedule); err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}

	// Scan late in the day so the dose is well past its grace period.
	scanTime := time.Date(now.Year(), now.Month(), now.Day(), 21, 0, 0, 0, now.Location())

	if err := s.ScanMissedMedications(ctx, scanTime); err != nil {
		t.Fatalf("ScanMissedMedications failed: %v", err)
	}

	notifications, err := db.ListUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("Expected 1 notification, got %d", len(notifications))
	}
	if notifications[0].Type != store.NotificationMissedMedication {
		t.Errorf("Expected missed_medication notification, got %s", notifications[0].Type)
	}
	if notifications[0].ScheduleID != schedule.ID {
		t.Errorf("Expected notification for schedule %s, got %s", schedule.ID, notifications[0].ScheduleID)
	}

	// A second scan the same day must not duplicate the notification.
	if err := s.ScanMissedMedications(ctx, scanTime); err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	notifications, err = db.ListUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Errorf("Expected notification to not be duplicated, got %d", len(notifications))
	}
}

func TestScanDueMedications(t *testing.T) {
	s, db, _ := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now()

	patient := &store.Patient{Name: "김철수"}
	if err := db.CreatePatient(ctx, patient); err != nil {
		t.Fatalf("Failed to create patient: %v", err)
	}

	scanTime := time.Date(now.Year(), now.Month(), now.Day(), 8, 0, 0, 0, now.Location())

	schedule := &store.MedicationSchedule{
		PatientID:       patient.ID,
		StartDate:       now.AddDate(0, 0, -1),
		EndDate:         now.AddDate(0, 0, 5),
		TimesPerDay:     2,
		MedicationTimes: []string{"08:05", "19:00"},
	}
	if err := db.CreateMedicationSchedule(ctx, schedule); err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}

	// 08:05 is five minutes out at 08:00, inside the lead window; 19:00 is not.
	if err := s.ScanDueMedications(ctx, scanTime); err != nil {
		t.Fatalf("ScanDueMedications failed: %v", err)
	}

	notifications, err := db.ListUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("Expected 1 reminder, got %d", len(notifications))
	}
	if notifications[0].Type != store.NotificationMedicationReminder {
		t.Errorf("Expected medication_reminder notification, got %s", notifications[0].Type)
	}
	if notifications[0].Title != "복약 알림 - 김철수" {
		t.Errorf("Unexpected reminder title: %q", notifications[0].Title)
	}
	if notifications[0].ScheduleID != schedule.ID {
		t.Errorf("Expected reminder for schedule %s, got %s", schedule.ID, notifications[0].ScheduleID)
	}

	// A second scan in the same window must not duplicate the reminder.
	if err := s.ScanDueMedications(ctx, scanTime.Add(2*time.Minute)); err != nil {
		t.Fatalf("Second scan failed: %v", err)
	}
	notifications, err = db.ListUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Errorf("Expected reminder to not be duplicated, got %d", len(notifications))
	}
}

func TestSendDailySummary(t *testing.T) {
	s, db, _ := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now()

	schedule := &store.MedicationSchedule{
		PatientID:       "patient-3",
		StartDate:       now.AddDate(0, 0, -1),
		EndDate:         now.AddDate(0, 0, 5),
		TimesPerDay:     2,
		MedicationTimes: []string{"08:00", "19:00"},
	}
	if err := db.CreateMedicationSchedule(ctx, schedule); err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}

	log := &store.MedicationLog{
		ScheduleID: schedule.ID,
		TakenAt:    now,
		Status:     store.MedicationTaken,
	}
	if err := db.CreateMedicationLog(ctx, log); err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}

	summaryTime := time.Date(now.Year(), now.Month(), now.Day(), 21, 30, 0, 0, now.Location())
	if err := s.SendDailySummary(ctx, summaryTime); err != nil {
		t.Fatalf("SendDailySummary failed: %v", err)
	}

	notifications, err := db.ListUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(notifications))
	}
	if notifications[0].Type != store.NotificationDailySummary {
		t.Errorf("Expected daily_summary notification, got %s", notifications[0].Type)
	}
	want := "오늘 예정된 복약: 2회, 완료: 1회, 미완료: 1회"
	if notifications[0].Body != want {
		t.Errorf("Expected summary body %q, got %q", want, notifications[0].Body)
	}

	// The summary is sent once per day.
	if err := s.SendDailySummary(ctx, summaryTime.Add(time.Minute)); err != nil {
		t.Fatalf("Second summary failed: %v", err)
	}
	notifications, err = db.ListUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	if len(notifications) != 1 {
		t.Errorf("Expected summary to not be duplicated, got %d", len(notifications))
	}
}

func TestScanMissedMedicationsLoggedDose(t *testing.T) {
	s, db, _ := newTestScheduler(t)
	ctx := context.Background()
	now := time.Now()

	schedule := &store.MedicationSchedule{
		PatientID:       "patient-2",
		StartDate:       now.AddDate(0, 0, -1),
		EndDate:         now.AddDate(0, 0, 5),
		TimesPerDay:     1,
		MedicationTimes: []string{"00:00"},
	}
	if err := db.CreateMedicationSchedule(ctx, schedule); err != nil {
		t.Fatalf("Failed to create schedule: %v", err)
	}

	log := &store.MedicationLog{
		ScheduleID: schedule.ID,
		TakenAt:    now,
		Status:     store.MedicationTaken,
	}
	if err := db.CreateMedicationLog(ctx, log); err != nil {
		t.Fatalf("Failed to create log: %v", err)
	}

	scanTime := time.Date(now.Year(), now.Month(), now.Day(), 21, 0, 0, 0, now.Location())
	if err := s.ScanMissedMedications(ctx, scanTime); err != nil {
		t.Fatalf("ScanMissedMedications failed: %v", err)
	}

	notifications, err := db.ListUnreadNotifications(ctx)
	if err != nil {
		t.Fatalf("Failed to list notifications: %v", err)
	}
	if len(notifications) != 0 {
		t.Errorf("Expected no notifications for a logged dose, got %d", len(notifications))
	}
}
