package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// AppointmentStatus enumerates the appointment lifecycle states.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentMissed    AppointmentStatus = "missed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Valid reports whether the status is a known lifecycle state.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentScheduled, AppointmentCompleted, AppointmentMissed, AppointmentCancelled:
		return true
	}
	return false
}

// TimeRange is a half-open interval [Start, End) stored as a Postgres
// tstzrange. Zero bounds stand in for unknown values rather than errors.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// rangeBoundLayouts covers the textual forms Postgres emits for tstzrange bounds.
var rangeBoundLayouts = []string{
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05-07",
	time.RFC3339Nano,
	time.RFC3339,
}

// Scan implements sql.Scanner for range-as-string values coming back from
// the store. Malformed bounds degrade to a zero time instead of failing.
func (r *TimeRange) Scan(src interface{}) error {
	var raw string
	switch v := src.(type) {
	case nil:
		*r = TimeRange{}
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into TimeRange", src)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "empty" {
		*r = TimeRange{}
		return nil
	}
	if len(raw) >= 2 {
		raw = strings.TrimLeft(raw, "[(")
		raw = strings.TrimRight(raw, ")]")
	}

	lower, upper, _ := strings.Cut(raw, ",")
	r.Start = parseRangeBound(lower)
	r.End = parseRangeBound(upper)
	return nil
}

// Value implements driver.Valuer producing a tstzrange literal.
func (r TimeRange) Value() (driver.Value, error) {
	return fmt.Sprintf("[%s,%s)", r.Start.UTC().Format(time.RFC3339Nano), r.End.UTC().Format(time.RFC3339Nano)), nil
}

// StartLabel renders the lower bound for human-readable messages.
// Unknown bounds render as the empty string.
func (r *TimeRange) StartLabel() string {
	return boundLabel(r, func(tr *TimeRange) time.Time { return tr.Start })
}

// EndLabel renders the upper bound for human-readable messages.
func (r *TimeRange) EndLabel() string {
	return boundLabel(r, func(tr *TimeRange) time.Time { return tr.End })
}

func boundLabel(r *TimeRange, pick func(*TimeRange) time.Time) string {
	if r == nil {
		return ""
	}
	t := pick(r)
	if t.IsZero() {
		return ""
	}
	return t.Format("Mon, 02 Jan 2006 15:04")
}

func parseRangeBound(raw string) time.Time {
	raw = strings.TrimSpace(strings.Trim(strings.TrimSpace(raw), `"`))
	if raw == "" || raw == "infinity" || raw == "-infinity" {
		return time.Time{}
	}
	for _, layout := range rangeBoundLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Appointment is a student's clinic appointment row.
type Appointment struct {
	ID          string            `db:"id" json:"id"`
	StudentID   string            `db:"student_id" json:"student_id"`
	Status      AppointmentStatus `db:"status" json:"status"`
	TimeRange   *TimeRange        `db:"time_range" json:"time_range,omitempty"`
	CompletedAt *time.Time        `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentDetail joins the owning student for list and detail views.
type AppointmentDetail struct {
	Appointment
	StudentName  string `db:"student_name" json:"student_name"`
	MatricNo     string `db:"matric_no" json:"matric_no"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// AppointmentFilter captures list filtering criteria.
type AppointmentFilter struct {
	StudentID string
	Status    AppointmentStatus
	Page      int
	PageSize  int
	SortOrder string
}
