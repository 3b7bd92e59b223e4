package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uniclinic/medsched-api/internal/models"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
	"github.com/uniclinic/medsched-api/pkg/export"
)

type resultRepository interface {
	CountByStudent(ctx context.Context, studentID string) (int, error)
	Insert(ctx context.Context, result *models.ResultNotification) error
	FindByStudent(ctx context.Context, studentID string) (*models.ResultNotification, error)
	Update(ctx context.Context, result *models.ResultNotification) error
}

type reportRenderer interface {
	Render(report export.Report) ([]byte, error)
}

// ResultService exposes a student's medical result record: staff populate
// it after a completed appointment, students read and export it.
type ResultService struct {
	repo          resultRepository
	students      studentFinder
	csv           reportRenderer
	pdf           reportRenderer
	exportEnabled bool
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewResultService constructs the result service.
func NewResultService(repo resultRepository, students studentFinder, exportEnabled bool, validate *validator.Validate, logger *zap.Logger) *ResultService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultService{
		repo:          repo,
		students:      students,
		csv:           export.NewCSVExporter(),
		pdf:           export.NewPDFExporter(),
		exportEnabled: exportEnabled,
		validator:     validate,
		logger:        logger,
	}
}

// UpdateResultRequest carries the staff-editable medical fields.
type UpdateResultRequest struct {
	BloodGroup *string  `json:"blood_group" validate:"omitempty,max=8"`
	Genotype   *string  `json:"genotype" validate:"omitempty,max=8"`
	HeightCM   *float64 `json:"height_cm" validate:"omitempty,gt=0,lt=300"`
	WeightKG   *float64 `json:"weight_kg" validate:"omitempty,gt=0,lt=500"`
	Remarks    *string  `json:"remarks" validate:"omitempty,max=2000"`
	Notified   *bool    `json:"notified"`
}

// ExportedReport is a rendered result document ready for download.
type ExportedReport struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// GetByStudent returns the student's result record.
func (s *ResultService) GetByStudent(ctx context.Context, studentID string) (*models.ResultNotification, error) {
	result, err := s.repo.FindByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no medical result on file for this student")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load result")
	}
	return result, nil
}

// Update applies the staff-editable fields and notification flag.
func (s *ResultService) Update(ctx context.Context, studentID string, req UpdateResultRequest) (*models.ResultNotification, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid result payload")
	}
	result, err := s.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	if req.BloodGroup != nil {
		result.BloodGroup = req.BloodGroup
	}
	if req.Genotype != nil {
		result.Genotype = req.Genotype
	}
	if req.HeightCM != nil {
		result.HeightCM = req.HeightCM
	}
	if req.WeightKG != nil {
		result.WeightKG = req.WeightKG
	}
	if req.Remarks != nil {
		result.Remarks = req.Remarks
	}
	if req.Notified != nil && *req.Notified != result.Notified {
		result.Notified = *req.Notified
		if result.Notified {
			now := time.Now().UTC()
			result.NotifiedAt = &now
		} else {
			result.NotifiedAt = nil
		}
	}

	if err := s.repo.Update(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update result")
	}
	return result, nil
}

// Export renders the student's result as a downloadable CSV or PDF.
func (s *ResultService) Export(ctx context.Context, studentID, format string) (*ExportedReport, error) {
	if !s.exportEnabled {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "result export is disabled")
	}

	result, err := s.GetByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	report := buildResultReport(student, result)
	slug := strings.ReplaceAll(student.MatricNo, "/", "-")

	switch format {
	case "csv":
		payload, err := s.csv.Render(report)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &ExportedReport{
			Filename:    fmt.Sprintf("medical-result-%s.csv", slug),
			ContentType: "text/csv",
			Payload:     payload,
		}, nil
	case "pdf":
		payload, err := s.pdf.Render(report)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &ExportedReport{
			Filename:    fmt.Sprintf("medical-result-%s.pdf", slug),
			ContentType: "application/pdf",
			Payload:     payload,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

func buildResultReport(student *models.StudentDetail, result *models.ResultNotification) export.Report {
	fields := []export.Field{
		{Label: "Full Name", Value: student.FullName},
		{Label: "Matric Number", Value: student.MatricNo},
		{Label: "Faculty", Value: student.FacultyName},
		{Label: "Department", Value: student.DepartmentName},
		{Label: "Blood Group", Value: stringOrDash(result.BloodGroup)},
		{Label: "Genotype", Value: stringOrDash(result.Genotype)},
		{Label: "Height (cm)", Value: floatOrDash(result.HeightCM)},
		{Label: "Weight (kg)", Value: floatOrDash(result.WeightKG)},
		{Label: "Remarks", Value: stringOrDash(result.Remarks)},
		{Label: "Generated", Value: time.Now().UTC().Format("2006-01-02 15:04 MST")},
	}
	return export.Report{Title: "University Clinic Medical Result", Fields: fields}
}

func stringOrDash(v *string) string {
	if v == nil || *v == "" {
		return "-"
	}
	return *v
}

func floatOrDash(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}
