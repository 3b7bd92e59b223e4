package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/uniclinic/medsched-api/internal/models"
)

// ErrRangeOverlap marks a write rejected by the scheduled-slot exclusion
// constraint. Callers translate it into a Conflict; it is never retried.
var ErrRangeOverlap = errors.New("appointment time range overlaps an existing booking")

// AppointmentRepository manages persistence for appointment records.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs an AppointmentRepository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = `a.id, a.student_id, a.status, a.time_range, a.completed_at, a.created_at, a.updated_at,
        s.full_name AS student_name, s.matric_no, s.email AS student_email`

// FindByID fetches an appointment with its owning student.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s
        FROM appointments a
        JOIN students s ON s.id = a.student_id
        WHERE a.id = $1`, appointmentColumns)
	var detail models.AppointmentDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// List returns appointments matching the provided filters.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error) {
	base := "FROM appointments a JOIN students s ON s.id = a.student_id"
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s %s ORDER BY a.created_at %s LIMIT %d OFFSET %d`,
		appointmentColumns, base, order, size, offset)

	var appointments []models.AppointmentDetail
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}
	return appointments, total, nil
}

// Create inserts a new pending appointment.
func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if appointment.ID == "" {
		appointment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if appointment.CreatedAt.IsZero() {
		appointment.CreatedAt = now
	}
	appointment.UpdatedAt = now
	const query = `INSERT INTO appointments (id, student_id, status, time_range, completed_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		appointment.ID, appointment.StudentID, appointment.Status,
		appointment.TimeRange, appointment.CompletedAt,
		appointment.CreatedAt, appointment.UpdatedAt); err != nil {
		if isOverlapViolation(err) {
			return ErrRangeOverlap
		}
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// UpdateLifecycle persists a status transition in a single row write.
// The exclusion constraint on scheduled ranges is the only conflict
// detection; a violation surfaces as ErrRangeOverlap.
func (r *AppointmentRepository) UpdateLifecycle(ctx context.Context, appointment *models.Appointment) error {
	appointment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE appointments
        SET status = $2, time_range = $3, completed_at = $4, updated_at = $5
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		appointment.ID, appointment.Status, appointment.TimeRange,
		appointment.CompletedAt, appointment.UpdatedAt); err != nil {
		if isOverlapViolation(err) {
			return ErrRangeOverlap
		}
		return fmt.Errorf("update appointment lifecycle: %w", err)
	}
	return nil
}

// DeletePending removes an appointment only while it is still pending.
// Returns false when no pending row matched.
func (r *AppointmentRepository) DeletePending(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM appointments WHERE id = $1 AND status = $2`
	res, err := r.db.ExecContext(ctx, query, id, models.AppointmentPending)
	if err != nil {
		return false, fmt.Errorf("delete pending appointment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete pending appointment: %w", err)
	}
	return affected > 0, nil
}

// isOverlapViolation recognises the Postgres exclusion (23P01) and unique
// (23505) violations raised by the scheduled-slot constraint.
func isOverlapViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "23P01" || pqErr.Code == "23505"
}
