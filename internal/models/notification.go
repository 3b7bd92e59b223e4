package models

import "time"

// NotificationType mirrors the UI severity levels.
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationSuccess NotificationType = "success"
	NotificationWarning NotificationType = "warning"
	NotificationError   NotificationType = "error"
)

// NotificationCategory groups notifications by their originating workflow.
type NotificationCategory string

const (
	CategoryAppointment NotificationCategory = "appointment"
	CategoryResults     NotificationCategory = "results"
)

// Notification is an in-app message owned by a student. After creation
// only is_read may change.
type Notification struct {
	ID            string               `db:"id" json:"id"`
	StudentID     string               `db:"student_id" json:"student_id"`
	AppointmentID *string              `db:"appointment_id" json:"appointment_id,omitempty"`
	Title         string               `db:"title" json:"title"`
	Message       string               `db:"message" json:"message"`
	Type          NotificationType     `db:"type" json:"type"`
	Category      NotificationCategory `db:"category" json:"category"`
	IsRead        bool                 `db:"is_read" json:"is_read"`
	CreatedAt     time.Time            `db:"created_at" json:"created_at"`
}

// NotificationFilter captures inbox filtering criteria.
type NotificationFilter struct {
	StudentID  string
	Category   NotificationCategory
	UnreadOnly bool
	Page       int
	PageSize   int
}
