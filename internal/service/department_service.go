package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uniclinic/medsched-api/internal/models"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
)

type departmentRepository interface {
	List(ctx context.Context, facultyID string) ([]models.DepartmentDetail, error)
	FindByID(ctx context.Context, id string) (*models.DepartmentDetail, error)
	ExistsByCode(ctx context.Context, facultyID, code string, excludeID string) (bool, error)
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
}

// DepartmentService manages departments within faculties.
type DepartmentService struct {
	repo      departmentRepository
	faculties facultyRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDepartmentService constructs the department service.
func NewDepartmentService(repo departmentRepository, faculties facultyRepository, validate *validator.Validate, logger *zap.Logger) *DepartmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DepartmentService{repo: repo, faculties: faculties, validator: validate, logger: logger}
}

// DepartmentRequest is the create/update payload.
type DepartmentRequest struct {
	FacultyID string `json:"faculty_id" validate:"required"`
	Code      string `json:"code" validate:"required,max=16"`
	Name      string `json:"name" validate:"required,max=128"`
	Active    *bool  `json:"active"`
}

// List returns departments, optionally scoped to one faculty.
func (s *DepartmentService) List(ctx context.Context, facultyID string) ([]models.DepartmentDetail, error) {
	departments, err := s.repo.List(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments")
	}
	return departments, nil
}

// Get returns one department with its faculty name.
func (s *DepartmentService) Get(ctx context.Context, id string) (*models.DepartmentDetail, error) {
	department, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "department not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return department, nil
}

// Create registers a department under an existing faculty. The code is
// unique within the faculty.
func (s *DepartmentService) Create(ctx context.Context, req DepartmentRequest) (*models.DepartmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	if _, err := s.faculties.FindByID(ctx, req.FacultyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown faculty")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	taken, err := s.repo.ExistsByCode(ctx, req.FacultyID, req.Code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department code")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a department with this code already exists in the faculty")
	}

	department := &models.Department{FacultyID: req.FacultyID, Code: req.Code, Name: req.Name, Active: true}
	if req.Active != nil {
		department.Active = *req.Active
	}
	if err := s.repo.Create(ctx, department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create department")
	}
	return s.Get(ctx, department.ID)
}

// Update modifies an existing department.
func (s *DepartmentService) Update(ctx context.Context, id string, req DepartmentRequest) (*models.DepartmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid department payload")
	}
	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	department := detail.Department

	if req.Code != department.Code || req.FacultyID != department.FacultyID {
		taken, err := s.repo.ExistsByCode(ctx, req.FacultyID, req.Code, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check department code")
		}
		if taken {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a department with this code already exists in the faculty")
		}
	}

	department.FacultyID = req.FacultyID
	department.Code = req.Code
	department.Name = req.Name
	if req.Active != nil {
		department.Active = *req.Active
	}
	if err := s.repo.Update(ctx, &department); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update department")
	}
	return s.Get(ctx, id)
}
