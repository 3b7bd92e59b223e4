package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniclinic/medsched-api/internal/models"
)

// ResultRepository manages the per-student medical result rows.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs a ResultRepository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

const resultColumns = `id, student_id, appointment_id, result_ready, notified, blood_group, genotype, height_cm, weight_kg, remarks, created_at, updated_at, notified_at`

// CountByStudent returns how many result rows exist for a student.
// The schema allows at most one; the count backs the pre-write check.
func (r *ResultRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM result_notifications WHERE student_id = $1`, studentID); err != nil {
		return 0, fmt.Errorf("count result notifications: %w", err)
	}
	return count, nil
}

// Insert stores a fresh result row.
func (r *ResultRepository) Insert(ctx context.Context, result *models.ResultNotification) error {
	if result.ID == "" {
		result.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	const query = `INSERT INTO result_notifications (id, student_id, appointment_id, result_ready, notified, blood_group, genotype, height_cm, weight_kg, remarks, created_at, updated_at, notified_at)
        VALUES (:id, :student_id, :appointment_id, :result_ready, :notified, :blood_group, :genotype, :height_cm, :weight_kg, :remarks, :created_at, :updated_at, :notified_at)`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("insert result notification: %w", err)
	}
	return nil
}

// FindByStudent fetches the student's result row.
func (r *ResultRepository) FindByStudent(ctx context.Context, studentID string) (*models.ResultNotification, error) {
	query := fmt.Sprintf(`SELECT %s FROM result_notifications WHERE student_id = $1`, resultColumns)
	var result models.ResultNotification
	if err := r.db.GetContext(ctx, &result, query, studentID); err != nil {
		return nil, err
	}
	return &result, nil
}

// Update persists populated medical fields and notification flags.
func (r *ResultRepository) Update(ctx context.Context, result *models.ResultNotification) error {
	result.UpdatedAt = time.Now().UTC()
	const query = `UPDATE result_notifications
        SET result_ready = :result_ready, notified = :notified, blood_group = :blood_group, genotype = :genotype,
            height_cm = :height_cm, weight_kg = :weight_kg, remarks = :remarks, updated_at = :updated_at, notified_at = :notified_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, result); err != nil {
		return fmt.Errorf("update result notification: %w", err)
	}
	return nil
}
