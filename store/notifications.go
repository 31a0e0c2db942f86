package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Notification types and priorities.
const (
	NotificationMedicationReminder = "medication_reminder"
	NotificationMissedMedication   = "missed_medication"
	NotificationDailySummary       = "daily_summary"

	PriorityLow      = "low"
	PriorityNormal   = "normal"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

// Notification is one in-app notification record.
type Notification struct {
	ID          string    `json:"id"`
	Type        string    `json:"notificationType"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Priority    string    `json:"priority"`
	ScheduleID  string    `json:"scheduleId,omitempty"`
	PatientID   string    `json:"patientId,omitempty"`
	IsRead      bool      `json:"isRead"`
	IsDismissed bool      `json:"isDismissed"`
	CreatedAt   time.Time `json:"createdAt"`
	ReadAt      time.Time `json:"readAt,omitzero"`
}

// CreateNotification inserts a notification record.
func (s *Store) CreateNotification(ctx context.Context, n *Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Priority == "" {
		n.Priority = PriorityNormal
	}
	n.CreatedAt = time.Now()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications
			(id, notification_type, title, body, priority, schedule_id, patient_id, is_read, is_dismissed, created_at, read_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, 0, ?, '')`,
		n.ID, n.Type, n.Title, n.Body, n.Priority, n.ScheduleID, n.PatientID, fmtTime(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ListUnreadNotifications returns undismissed, unread notifications, newest
// first.
func (s *Store) ListUnreadNotifications(ctx context.Context) ([]Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, notification_type, title, body, priority, schedule_id, patient_id, is_read, is_dismissed, created_at, read_at
		FROM notifications WHERE is_read = 0 AND is_dismissed = 0 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	notifications := make([]Notification, 0)
	for rows.Next() {
		var n Notification
		var isRead, isDismissed int
		var createdAt, readAt string
		if err := rows.Scan(&n.ID, &n.Type, &n.Title, &n.Body, &n.Priority, &n.ScheduleID,
			&n.PatientID, &isRead, &isDismissed, &createdAt, &readAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.IsRead = isRead != 0
		n.IsDismissed = isDismissed != 0
		n.CreatedAt = parseTime(createdAt)
		n.ReadAt = parseTime(readAt)
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// MarkNotificationRead marks one notification read.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ?`,
		fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return requireAffected(res)
}

// HasRecentNotification reports whether a notification of the given type was
// already created for a schedule since the cutoff, to avoid repeat reminders.
func (s *Store) HasRecentNotification(ctx context.Context, scheduleID, notificationType string, since time.Time) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE schedule_id = ? AND notification_type = ? AND created_at >= ?`,
		scheduleID, notificationType, fmtTime(since)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check recent notifications: %w", err)
	}
	return n > 0, nil
}
