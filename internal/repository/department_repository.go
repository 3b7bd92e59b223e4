package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/uniclinic/medsched-api/internal/models"
)

// DepartmentRepository manages persistence for departments.
type DepartmentRepository struct {
	db *sqlx.DB
}

// NewDepartmentRepository constructs a DepartmentRepository.
func NewDepartmentRepository(db *sqlx.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

const departmentColumns = `d.id, d.faculty_id, d.code, d.name, d.active, d.created_at, d.updated_at, f.name AS faculty_name`

// List returns departments, optionally scoped to a faculty.
func (r *DepartmentRepository) List(ctx context.Context, facultyID string) ([]models.DepartmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments d JOIN faculties f ON f.id = d.faculty_id`, departmentColumns)
	args := []interface{}{}
	if facultyID != "" {
		query += " WHERE d.faculty_id = $1"
		args = append(args, facultyID)
	}
	query += " ORDER BY d.active DESC, d.name ASC"
	var departments []models.DepartmentDetail
	if err := r.db.SelectContext(ctx, &departments, query, args...); err != nil {
		return nil, fmt.Errorf("list departments: %w", err)
	}
	return departments, nil
}

// FindByID fetches a department by ID.
func (r *DepartmentRepository) FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	query := fmt.Sprintf(`SELECT %s FROM departments d JOIN faculties f ON f.id = d.faculty_id WHERE d.id = $1`, departmentColumns)
	var department models.DepartmentDetail
	if err := r.db.GetContext(ctx, &department, query, id); err != nil {
		return nil, err
	}
	return &department, nil
}

// ExistsByCode checks code uniqueness within a faculty.
func (r *DepartmentRepository) ExistsByCode(ctx context.Context, facultyID, code string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM departments WHERE faculty_id = $1 AND code = $2"
	args := []interface{}{facultyID, code}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}
	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check department code: %w", err)
	}
	return true, nil
}

// Create inserts a new department.
func (r *DepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	if department.ID == "" {
		department.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if department.CreatedAt.IsZero() {
		department.CreatedAt = now
	}
	department.UpdatedAt = now
	const query = `INSERT INTO departments (id, faculty_id, code, name, active, created_at, updated_at)
        VALUES (:id, :faculty_id, :code, :name, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("create department: %w", err)
	}
	return nil
}

// Update modifies an existing department.
func (r *DepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	department.UpdatedAt = time.Now().UTC()
	const query = `UPDATE departments SET faculty_id = :faculty_id, code = :code, name = :name, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, department); err != nil {
		return fmt.Errorf("update department: %w", err)
	}
	return nil
}
