package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/internal/repository"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
	"github.com/uniclinic/medsched-api/pkg/events"
)

type appointmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.AppointmentDetail, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error)
	Create(ctx context.Context, appointment *models.Appointment) error
	UpdateLifecycle(ctx context.Context, appointment *models.Appointment) error
	DeletePending(ctx context.Context, id string) (bool, error)
}

type resultStore interface {
	CountByStudent(ctx context.Context, studentID string) (int, error)
	Insert(ctx context.Context, result *models.ResultNotification) error
}

type notificationCreator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

type studentFinder interface {
	FindByID(ctx context.Context, id string) (*models.StudentDetail, error)
}

type statusPublisher interface {
	Publish(event events.StatusChanged) error
}

// AppointmentService owns the appointment lifecycle: creation, status
// transitions, completion and pending cancellation. Primary writes are
// the only thing that can fail a request; notifications and emails ride
// behind them as best-effort side effects.
type AppointmentService struct {
	repo      appointmentRepository
	results   resultStore
	notifier  notificationCreator
	students  studentFinder
	publisher statusPublisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAppointmentService constructs the appointment service. The publisher
// may be nil when event fan-out is disabled.
func NewAppointmentService(repo appointmentRepository, results resultStore, notifier notificationCreator, students studentFinder, publisher statusPublisher, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{
		repo:      repo,
		results:   results,
		notifier:  notifier,
		students:  students,
		publisher: publisher,
		validator: validate,
		logger:    logger,
	}
}

// TimeRangePayload is the wire form of a half-open appointment slot.
type TimeRangePayload struct {
	Start time.Time `json:"start" validate:"required"`
	End   time.Time `json:"end" validate:"required,gtfield=Start"`
}

func (p *TimeRangePayload) toRange() *models.TimeRange {
	if p == nil {
		return nil
	}
	return &models.TimeRange{Start: p.Start.UTC(), End: p.End.UTC()}
}

// CreateAppointmentRequest enrols a student into the appointment queue.
type CreateAppointmentRequest struct {
	StudentID string `json:"student_id" validate:"required"`
}

// TransitionRequest moves an appointment to a new lifecycle status.
type TransitionRequest struct {
	Status    string            `json:"status" validate:"required"`
	TimeRange *TimeRangePayload `json:"time_range" validate:"omitempty"`
}

// AppointmentListRequest filters the appointment list.
type AppointmentListRequest struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Page      int    `json:"page"`
	PageSize  int    `json:"page_size"`
	SortOrder string `json:"sort_order"`
}

// CompletionResult pairs the two writes of the completion operation.
type CompletionResult struct {
	Appointment        *models.AppointmentDetail  `json:"appointment"`
	ResultNotification *models.ResultNotification `json:"result_notification"`
}

// Create inserts a new pending appointment for the student.
func (s *AppointmentService) Create(ctx context.Context, req CreateAppointmentRequest) (*models.AppointmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "student_id is required")
	}
	student, err := s.students.FindByID(ctx, req.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up student")
	}

	appointment := &models.Appointment{
		StudentID: student.ID,
		Status:    models.AppointmentPending,
	}
	if err := s.repo.Create(ctx, appointment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}

	return &models.AppointmentDetail{
		Appointment:  *appointment,
		StudentName:  student.FullName,
		MatricNo:     student.MatricNo,
		StudentEmail: student.Email,
	}, nil
}

// Get returns one appointment with its owning student.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	return detail, nil
}

// List returns appointments matching the filters with pagination metadata.
func (s *AppointmentService) List(ctx context.Context, req AppointmentListRequest) ([]models.AppointmentDetail, *models.Pagination, error) {
	if req.Status != "" && !models.AppointmentStatus(req.Status).Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", req.Status))
	}
	filter := models.AppointmentFilter{
		StudentID: req.StudentID,
		Status:    models.AppointmentStatus(req.Status),
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortOrder: req.SortOrder,
	}
	appointments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	size := req.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return appointments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Transition moves an appointment between pending, scheduled and missed.
// Completion goes through Complete; cancellation through DeletePending.
func (s *AppointmentService) Transition(ctx context.Context, id string, req TransitionRequest) (*models.AppointmentDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}

	target := models.AppointmentStatus(req.Status)
	switch target {
	case models.AppointmentPending, models.AppointmentScheduled, models.AppointmentMissed:
	case models.AppointmentCompleted:
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, "completed is set through the completion endpoint")
	case models.AppointmentCancelled:
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, "cancellation is done by deleting a pending appointment")
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidStatus, fmt.Sprintf("unknown status %q", req.Status))
	}

	if target == models.AppointmentScheduled && req.TimeRange == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "time_range is required when scheduling")
	}

	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}

	previousStatus := detail.Status
	previousRange := detail.TimeRange

	var newRange *models.TimeRange
	switch target {
	case models.AppointmentPending:
		newRange = nil
	case models.AppointmentScheduled:
		newRange = req.TimeRange.toRange()
	case models.AppointmentMissed:
		if req.TimeRange != nil {
			newRange = req.TimeRange.toRange()
		} else {
			newRange = previousRange
		}
	}

	updated := detail.Appointment
	updated.Status = target
	updated.TimeRange = newRange
	updated.CompletedAt = nil

	if err := s.repo.UpdateLifecycle(ctx, &updated); err != nil {
		if errors.Is(err, repository.ErrRangeOverlap) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "requested time range overlaps an existing appointment")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}

	s.notifyStatusChange(ctx, updated, previousStatus, previousRange, detail)

	result := *detail
	result.Appointment = updated
	return &result, nil
}

// Complete marks a scheduled appointment completed and opens the student's
// result record. The two writes are intentionally not atomic: a failed
// status update after the result insert is logged and reported as partial.
func (s *AppointmentService) Complete(ctx context.Context, id string) (*CompletionResult, error) {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}

	if detail.Status != models.AppointmentScheduled {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only scheduled appointments can be completed")
	}
	if detail.TimeRange == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointment has no time range")
	}

	count, err := s.results.CountByStudent(ctx, detail.StudentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing results")
	}
	if count > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already has a medical result on file")
	}

	appointmentID := detail.ID
	result := &models.ResultNotification{
		StudentID:     detail.StudentID,
		AppointmentID: &appointmentID,
		ResultReady:   true,
		Notified:      false,
	}
	if err := s.results.Insert(ctx, result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create result record")
	}

	previousStatus := detail.Status
	previousRange := detail.TimeRange

	now := time.Now().UTC()
	updated := detail.Appointment
	updated.Status = models.AppointmentCompleted
	updated.CompletedAt = &now

	if err := s.repo.UpdateLifecycle(ctx, &updated); err != nil {
		s.logger.Sugar().Errorw("result record created but appointment completion write failed",
			"appointment_id", detail.ID,
			"student_id", detail.StudentID,
			"result_id", result.ID,
			"error", err)
		return &CompletionResult{Appointment: detail, ResultNotification: result}, nil
	}

	s.notifyStatusChange(ctx, updated, previousStatus, previousRange, detail)

	completed := *detail
	completed.Appointment = updated
	return &CompletionResult{Appointment: &completed, ResultNotification: result}, nil
}

// DeletePending cancels an appointment that has not yet been scheduled.
func (s *AppointmentService) DeletePending(ctx context.Context, id string) error {
	detail, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load appointment")
	}
	if detail.Status != models.AppointmentPending {
		return appErrors.Clone(appErrors.ErrInvalidState, "only pending appointments can be cancelled")
	}
	deleted, err := s.repo.DeletePending(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete appointment")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrInvalidState, "appointment is no longer pending")
	}
	return nil
}

// notifyStatusChange runs the best-effort side effects after a committed
// lifecycle write: one in-app notification plus a StatusChanged event for
// the email subscriber. Failures are logged only.
func (s *AppointmentService) notifyStatusChange(ctx context.Context, appointment models.Appointment, previousStatus models.AppointmentStatus, previousRange *models.TimeRange, detail *models.AppointmentDetail) {
	notification := buildStatusNotification(appointment, previousStatus, previousRange)
	if s.notifier != nil && notification != nil {
		if err := s.notifier.Create(ctx, notification); err != nil {
			s.logger.Sugar().Errorw("appointment notification insert failed",
				"appointment_id", appointment.ID,
				"status", appointment.Status,
				"error", err)
		}
	}

	if s.publisher == nil {
		return
	}
	event := events.StatusChanged{
		Appointment:    appointment,
		PreviousStatus: previousStatus,
		PreviousRange:  previousRange,
		Student: models.Student{
			ID:       appointment.StudentID,
			FullName: detail.StudentName,
			MatricNo: detail.MatricNo,
			Email:    detail.StudentEmail,
		},
	}
	if err := s.publisher.Publish(event); err != nil {
		s.logger.Sugar().Warnw("status change event not published",
			"appointment_id", appointment.ID,
			"status", appointment.Status,
			"error", err)
	}
}

// buildStatusNotification derives the in-app notification for a lifecycle
// change. It is a pure function of the new and previous state; unknown
// range bounds render as empty strings rather than failing.
func buildStatusNotification(appointment models.Appointment, previousStatus models.AppointmentStatus, previousRange *models.TimeRange) *models.Notification {
	appointmentID := appointment.ID
	base := models.Notification{
		StudentID:     appointment.StudentID,
		AppointmentID: &appointmentID,
		Category:      models.CategoryAppointment,
	}

	newRange := appointment.TimeRange
	switch appointment.Status {
	case models.AppointmentScheduled:
		if previousStatus == models.AppointmentScheduled && previousRange != nil {
			base.Title = "Appointment Rescheduled"
			base.Type = models.NotificationWarning
			base.Message = fmt.Sprintf("Your medical appointment has been moved from %s to %s until %s.",
				previousRange.StartLabel(), newRange.StartLabel(), newRange.EndLabel())
			return &base
		}
		base.Title = "Appointment Scheduled"
		base.Type = models.NotificationSuccess
		base.Message = fmt.Sprintf("Your medical appointment has been scheduled for %s until %s.",
			newRange.StartLabel(), newRange.EndLabel())
		return &base
	case models.AppointmentPending:
		base.Title = "Appointment Pending"
		base.Type = models.NotificationInfo
		base.Message = "Your medical appointment has been reverted to pending. You will be notified once a new time is assigned."
		return &base
	case models.AppointmentMissed:
		base.Title = "Missed Appointment"
		base.Type = models.NotificationError
		base.Message = fmt.Sprintf("You missed your medical appointment scheduled for %s. Please contact the clinic to rebook.",
			newRange.StartLabel())
		return &base
	case models.AppointmentCompleted:
		base.Title = "Results Ready"
		base.Type = models.NotificationSuccess
		base.Category = models.CategoryResults
		base.Message = "Your medical check is complete and your results are now available. Log in to view them."
		return &base
	}
	return nil
}
