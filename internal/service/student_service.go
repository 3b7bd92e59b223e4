package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uniclinic/medsched-api/internal/models"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
	FindByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
	ExistsByMatricNo(ctx context.Context, matricNo string, excludeID string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string) error
}

// StudentService covers the staff-facing student registry.
type StudentService struct {
	repo        studentRepository
	departments departmentFinder
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewStudentService constructs the student service.
func NewStudentService(repo studentRepository, departments departmentFinder, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, departments: departments, validator: validate, logger: logger}
}

// StudentListRequest filters the student list.
type StudentListRequest struct {
	FacultyID    string `json:"faculty_id"`
	DepartmentID string `json:"department_id"`
	Active       *bool  `json:"active"`
	Search       string `json:"search"`
	Page         int    `json:"page"`
	PageSize     int    `json:"page_size"`
	SortBy       string `json:"sort_by"`
	SortOrder    string `json:"sort_order"`
}

// CreateStudentRequest is the staff create payload.
type CreateStudentRequest struct {
	MatricNo     string    `json:"matric_no" validate:"required"`
	FullName     string    `json:"full_name" validate:"required"`
	Email        string    `json:"email" validate:"required,email"`
	Gender       string    `json:"gender" validate:"required,oneof=M F"`
	BirthDate    time.Time `json:"birth_date" validate:"required"`
	Phone        string    `json:"phone"`
	FacultyID    string    `json:"faculty_id" validate:"required"`
	DepartmentID string    `json:"department_id" validate:"required"`
}

// UpdateStudentRequest carries the editable student fields.
type UpdateStudentRequest struct {
	MatricNo     *string    `json:"matric_no"`
	FullName     *string    `json:"full_name"`
	Email        *string    `json:"email" validate:"omitempty,email"`
	Gender       *string    `json:"gender" validate:"omitempty,oneof=M F"`
	BirthDate    *time.Time `json:"birth_date"`
	Phone        *string    `json:"phone"`
	FacultyID    *string    `json:"faculty_id"`
	DepartmentID *string    `json:"department_id"`
	Active       *bool      `json:"active"`
}

// List returns students matching the filters.
func (s *StudentService) List(ctx context.Context, req StudentListRequest) ([]models.StudentDetail, *models.Pagination, error) {
	filter := models.StudentFilter{
		FacultyID:    req.FacultyID,
		DepartmentID: req.DepartmentID,
		Active:       req.Active,
		Search:       req.Search,
		Page:         req.Page,
		PageSize:     req.PageSize,
		SortBy:       req.SortBy,
		SortOrder:    req.SortOrder,
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return students, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one student with faculty and department names.
func (s *StudentService) Get(ctx context.Context, id string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// GetByUserID resolves the student record linked to a user account.
func (s *StudentService) GetByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	detail, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no student record linked to this account")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return detail, nil
}

// Create registers a student without a portal account.
func (s *StudentService) Create(ctx context.Context, req CreateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}

	taken, err := s.repo.ExistsByMatricNo(ctx, req.MatricNo, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check matric number")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this matric number already exists")
	}

	if err := s.checkDepartment(ctx, req.DepartmentID, req.FacultyID); err != nil {
		return nil, err
	}

	student := &models.Student{
		MatricNo:     req.MatricNo,
		FullName:     req.FullName,
		Email:        req.Email,
		Gender:       req.Gender,
		BirthDate:    req.BirthDate,
		Phone:        req.Phone,
		FacultyID:    req.FacultyID,
		DepartmentID: req.DepartmentID,
		Active:       true,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return s.Get(ctx, student.ID)
}

// Update applies the editable fields to an existing student.
func (s *StudentService) Update(ctx context.Context, id string, req UpdateStudentRequest) (*models.StudentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	student := detail.Student

	if req.MatricNo != nil && *req.MatricNo != student.MatricNo {
		taken, err := s.repo.ExistsByMatricNo(ctx, *req.MatricNo, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check matric number")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this matric number already exists")
		}
		student.MatricNo = *req.MatricNo
	}
	if req.FullName != nil {
		student.FullName = *req.FullName
	}
	if req.Email != nil {
		student.Email = *req.Email
	}
	if req.Gender != nil {
		student.Gender = *req.Gender
	}
	if req.BirthDate != nil {
		student.BirthDate = *req.BirthDate
	}
	if req.Phone != nil {
		student.Phone = *req.Phone
	}
	if req.FacultyID != nil {
		student.FacultyID = *req.FacultyID
	}
	if req.DepartmentID != nil {
		student.DepartmentID = *req.DepartmentID
	}
	if req.FacultyID != nil || req.DepartmentID != nil {
		if err := s.checkDepartment(ctx, student.DepartmentID, student.FacultyID); err != nil {
			return nil, err
		}
	}
	if req.Active != nil {
		student.Active = *req.Active
	}

	if err := s.repo.Update(ctx, &student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return s.Get(ctx, id)
}

// Deactivate marks a student inactive. Records are never deleted once a
// student has appointment or result history.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	return nil
}

func (s *StudentService) checkDepartment(ctx context.Context, departmentID, facultyID string) error {
	department, err := s.departments.FindByID(ctx, departmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "unknown department")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	if department.FacultyID != facultyID {
		return appErrors.Clone(appErrors.ErrValidation, "department does not belong to the selected faculty")
	}
	return nil
}
