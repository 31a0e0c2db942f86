// Package scheduler runs the background jobs of the clinic server:
// catalog rebuilds, survey session expiry and missed medication scans.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/haniwon/clinic-server/formula"
	"github.com/haniwon/clinic-server/interfaces"
	"github.com/haniwon/clinic-server/logging"
	"github.com/haniwon/clinic-server/metrics"
	"github.com/haniwon/clinic-server/store"
)

// missedGracePeriod is how long after a scheduled medication time we wait
// before treating the dose as missed.
const missedGracePeriod = time.Hour

// reminderLeadTime is how far ahead of a scheduled medication time the
// reminder notification is raised.
const reminderLeadTime = 10 * time.Minute

// Compile-time check to ensure Scheduler implements the Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler coordinates the recurring jobs with injected dependencies.
type Scheduler struct {
	catalog   interfaces.CatalogStore
	db        *store.Store
	validator interfaces.DataValidator
	scheduler *gocron.Scheduler
	done      chan struct{}
	stopOnce  sync.Once
}

// NewScheduler creates a new scheduler instance with injected dependencies.
func NewScheduler(catalog interfaces.CatalogStore, db *store.Store, validator interfaces.DataValidator) *Scheduler {
	return &Scheduler{
		catalog:   catalog,
		db:        db,
		validator: validator,
		scheduler: gocron.NewScheduler(time.Local),
		done:      make(chan struct{}),
	}
}

// Start performs the initial catalog build and registers the recurring jobs.
func (s *Scheduler) Start() error {
	if err := s.RebuildCatalog(context.Background()); err != nil {
		logging.Error("Failed to perform initial catalog build", "error", err)
		return fmt.Errorf("initial catalog build failed: %w", err)
	}

	if _, err := s.scheduler.Every(1).Hour().Do(func() {
		if err := s.RebuildCatalog(context.Background()); err != nil {
			logging.Error("Failed to rebuild catalog", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule catalog rebuilds: %w", err)
	}

	if _, err := s.scheduler.Every(30).Minutes().Do(func() {
		s.ExpireSurveySessions(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to schedule survey expiry sweep: %w", err)
	}

	if _, err := s.scheduler.Every(5).Minutes().Do(func() {
		if err := s.ScanDueMedications(context.Background(), time.Now()); err != nil {
			logging.Error("Failed to scan due medications", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule medication reminder scan: %w", err)
	}

	if _, err := s.scheduler.Every(1).Day().At("21:00").Do(func() {
		if err := s.ScanMissedMedications(context.Background(), time.Now()); err != nil {
			logging.Error("Failed to scan missed medications", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule missed medication scan: %w", err)
	}

	if _, err := s.scheduler.Every(1).Day().At("21:30").Do(func() {
		if err := s.SendDailySummary(context.Background(), time.Now()); err != nil {
			logging.Error("Failed to send daily summary", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule daily summary: %w", err)
	}

	s.scheduler.StartAsync()

	s.startCatalogMonitoring()

	return nil
}

// Stop stops the scheduler and the monitoring goroutine.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
	s.stopOnce.Do(func() { close(s.done) })
}

// RebuildCatalog loads herbs and formula definitions from the database,
// resolves the templates and swaps the new catalog in atomically. A
// catalog that fails validation never replaces the active one.
func (s *Scheduler) RebuildCatalog(ctx context.Context) error {
	if !s.catalog.BeginUpdate() {
		logging.Info("Catalog rebuild already in progress, skipping...")
		metrics.CatalogRebuildTotal.WithLabelValues("skipped").Inc()
		return nil
	}
	defer s.catalog.EndUpdate()

	start := time.Now()

	herbs, err := s.db.ListHerbs(ctx)
	if err != nil {
		metrics.CatalogRebuildTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to load herbs: %w", err)
	}

	definitions, err := s.db.ListFormulaDefinitions(ctx)
	if err != nil {
		metrics.CatalogRebuildTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to load formula definitions: %w", err)
	}

	// A fresh install has no herbs or definitions yet, and they can only
	// arrive through the API this catalog serves. While no catalog is live
	// there is nothing to protect, so swap in whatever the database holds.
	// Once a real catalog is active the gate keeps a bad load from
	// replacing it.
	live := len(s.catalog.GetHerbs()) > 0 || len(s.catalog.GetTemplates()) > 0
	if live || (len(herbs) > 0 && len(definitions) > 0) {
		if err := s.validator.ValidateCatalog(herbs, definitions); err != nil {
			metrics.CatalogRebuildTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("catalog validation failed: %w", err)
		}
	} else {
		logging.Warn("Catalog data is empty, waiting for herbs and formula definitions",
			"herbs", len(herbs),
			"definitions", len(definitions),
		)
	}

	defs := make([]formula.FormulaDefinition, 0, len(definitions))
	for _, row := range definitions {
		defs = append(defs, row.Definition())
	}
	templates := formula.BuildCatalog(defs)

	warningCount := 0
	for _, t := range templates {
		warningCount += len(t.Warnings)
	}
	if warningCount > 0 {
		logging.Warn("Catalog resolved with warnings", "count", warningCount)
	}

	s.catalog.UpdateCatalog(herbs, templates)

	metrics.CatalogRebuildTotal.WithLabelValues("ok").Inc()
	metrics.CatalogTemplates.Set(float64(len(templates)))

	logging.Info("Catalog rebuild completed",
		"duration", time.Since(start).String(),
		"herbs", len(herbs),
		"templates", len(templates),
	)

	return nil
}

// ExpireSurveySessions marks pending survey sessions past their deadline
// as expired.
func (s *Scheduler) ExpireSurveySessions(ctx context.Context) {
	expired, err := s.db.ExpireStaleSurveySessions(ctx, time.Now())
	if err != nil {
		logging.Error("Failed to expire survey sessions", "error", err)
		return
	}
	if expired > 0 {
		metrics.SurveySessionsExpiredTotal.Add(float64(expired))
		logging.Info("Expired stale survey sessions", "count", expired)
	}
}

// ScanMissedMedications checks active schedules for doses that should have
// been logged by now and raises one notification per schedule per day.
func (s *Scheduler) ScanMissedMedications(ctx context.Context, now time.Time) error {
	schedules, err := s.db.ListActiveMedicationSchedules(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list active schedules: %w", err)
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	for _, schedule := range schedules {
		expected := dosesDueBy(schedule.MedicationTimes, now)
		if expected == 0 {
			continue
		}

		logs, err := s.db.ListMedicationLogsBySchedule(ctx, schedule.ID)
		if err != nil {
			logging.Error("Failed to load medication logs", "schedule_id", schedule.ID, "error", err)
			continue
		}

		loggedToday := 0
		for _, l := range logs {
			if !l.TakenAt.Before(dayStart) {
				loggedToday++
			}
		}

		if loggedToday >= expected {
			continue
		}

		alreadyNotified, err := s.db.HasRecentNotification(ctx, schedule.ID, store.NotificationMissedMedication, dayStart)
		if err != nil {
			logging.Error("Failed to check notification history", "schedule_id", schedule.ID, "error", err)
			continue
		}
		if alreadyNotified {
			continue
		}

		notification := &store.Notification{
			Type:       store.NotificationMissedMedication,
			Title:      "복약 누락",
			Body:       fmt.Sprintf("오늘 %d회 중 %d회만 기록되었습니다", expected, loggedToday),
			Priority:   store.PriorityHigh,
			ScheduleID: schedule.ID,
			PatientID:  schedule.PatientID,
		}
		if err := s.db.CreateNotification(ctx, notification); err != nil {
			logging.Error("Failed to create missed medication notification", "schedule_id", schedule.ID, "error", err)
			continue
		}

		logging.Info("Missed medication detected",
			"schedule_id", schedule.ID,
			"patient_id", schedule.PatientID,
			"expected", expected,
			"logged", loggedToday,
		)
	}

	return nil
}

// ScanDueMedications raises a reminder for each dose whose scheduled time
// falls within the lead window, once per schedule per dose.
func (s *Scheduler) ScanDueMedications(ctx context.Context, now time.Time) error {
	schedules, err := s.db.ListActiveMedicationSchedules(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list active schedules: %w", err)
	}

	for _, schedule := range schedules {
		for _, entry := range schedule.MedicationTimes {
			parsed, err := time.Parse("15:04", entry)
			if err != nil {
				continue
			}
			scheduled := time.Date(now.Year(), now.Month(), now.Day(), parsed.Hour(), parsed.Minute(), 0, 0, now.Location())
			if now.Before(scheduled.Add(-reminderLeadTime)) || now.After(scheduled) {
				continue
			}

			alreadyNotified, err := s.db.HasRecentNotification(ctx, schedule.ID, store.NotificationMedicationReminder, scheduled.Add(-reminderLeadTime))
			if err != nil {
				logging.Error("Failed to check notification history", "schedule_id", schedule.ID, "error", err)
				continue
			}
			if alreadyNotified {
				continue
			}

			patientName := "환자"
			if p, err := s.db.GetPatient(ctx, schedule.PatientID); err == nil {
				patientName = p.Name
			}

			notification := &store.Notification{
				Type:       store.NotificationMedicationReminder,
				Title:      fmt.Sprintf("복약 알림 - %s", patientName),
				Body:       fmt.Sprintf("%s에 복약 예정입니다", entry),
				Priority:   store.PriorityNormal,
				ScheduleID: schedule.ID,
				PatientID:  schedule.PatientID,
			}
			if err := s.db.CreateNotification(ctx, notification); err != nil {
				logging.Error("Failed to create medication reminder", "schedule_id", schedule.ID, "error", err)
				continue
			}

			logging.Info("Medication reminder raised",
				"schedule_id", schedule.ID,
				"patient_id", schedule.PatientID,
				"time", entry,
			)
		}
	}

	return nil
}

// SendDailySummary raises one notification per day summarizing how many of
// today's scheduled doses were logged as taken.
func (s *Scheduler) SendDailySummary(ctx context.Context, now time.Time) error {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	alreadySent, err := s.db.HasRecentNotification(ctx, "", store.NotificationDailySummary, dayStart)
	if err != nil {
		return fmt.Errorf("failed to check summary history: %w", err)
	}
	if alreadySent {
		return nil
	}

	schedules, err := s.db.ListActiveMedicationSchedules(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to list active schedules: %w", err)
	}
	if len(schedules) == 0 {
		return nil
	}

	totalDoses := 0
	takenDoses := 0
	for _, schedule := range schedules {
		totalDoses += len(schedule.MedicationTimes)

		logs, err := s.db.ListMedicationLogsBySchedule(ctx, schedule.ID)
		if err != nil {
			logging.Error("Failed to load medication logs", "schedule_id", schedule.ID, "error", err)
			continue
		}
		taken := 0
		for _, l := range logs {
			if l.Status == store.MedicationTaken && !l.TakenAt.Before(dayStart) {
				taken++
			}
		}
		if taken > len(schedule.MedicationTimes) {
			taken = len(schedule.MedicationTimes)
		}
		takenDoses += taken
	}

	notification := &store.Notification{
		Type:     store.NotificationDailySummary,
		Title:    "일일 복약 요약",
		Body:     fmt.Sprintf("오늘 예정된 복약: %d회, 완료: %d회, 미완료: %d회", totalDoses, takenDoses, totalDoses-takenDoses),
		Priority: store.PriorityLow,
	}
	if err := s.db.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("failed to create daily summary: %w", err)
	}

	logging.Info("Daily medication summary sent",
		"total", totalDoses,
		"taken", takenDoses,
	)

	return nil
}

// dosesDueBy counts the HH:mm entries whose time today, plus the grace
// period, is already past.
func dosesDueBy(medicationTimes []string, now time.Time) int {
	due := 0
	for _, entry := range medicationTimes {
		t, err := time.Parse("15:04", entry)
		if err != nil {
			continue
		}
		scheduled := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
		if now.After(scheduled.Add(missedGracePeriod)) {
			due++
		}
	}
	return due
}

// startCatalogMonitoring warns when the catalog has not been rebuilt for
// too long, which usually means the hourly job died.
func (s *Scheduler) startCatalogMonitoring() {
	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				lastRebuild := s.catalog.GetLastUpdated()
				if time.Since(lastRebuild) > 3*time.Hour {
					logging.Warn("Catalog has not been rebuilt in over 3 hours")
				}
			}
		}
	}()
}
