package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/internal/repository"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
	"github.com/uniclinic/medsched-api/pkg/events"
)

type mockAppointmentRepo struct {
	appointments map[string]models.AppointmentDetail
	updateErr    error
	updated      *models.Appointment
}

func (m *mockAppointmentRepo) FindByID(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	if a, ok := m.appointments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAppointmentRepo) List(ctx context.Context, filter models.AppointmentFilter) ([]models.AppointmentDetail, int, error) {
	var list []models.AppointmentDetail
	for _, a := range m.appointments {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		list = append(list, a)
	}
	return list, len(list), nil
}

func (m *mockAppointmentRepo) Create(ctx context.Context, appointment *models.Appointment) error {
	if m.appointments == nil {
		m.appointments = make(map[string]models.AppointmentDetail)
	}
	if appointment.ID == "" {
		appointment.ID = "apt-new"
	}
	m.appointments[appointment.ID] = models.AppointmentDetail{Appointment: *appointment}
	return nil
}

func (m *mockAppointmentRepo) UpdateLifecycle(ctx context.Context, appointment *models.Appointment) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.updated = appointment
	if detail, ok := m.appointments[appointment.ID]; ok {
		detail.Appointment = *appointment
		m.appointments[appointment.ID] = detail
	}
	return nil
}

func (m *mockAppointmentRepo) DeletePending(ctx context.Context, id string) (bool, error) {
	detail, ok := m.appointments[id]
	if !ok || detail.Status != models.AppointmentPending {
		return false, nil
	}
	delete(m.appointments, id)
	return true, nil
}

type mockResultStore struct {
	count     int
	countErr  error
	inserted  []models.ResultNotification
	insertErr error
}

func (m *mockResultStore) CountByStudent(ctx context.Context, studentID string) (int, error) {
	return m.count, m.countErr
}

func (m *mockResultStore) Insert(ctx context.Context, result *models.ResultNotification) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if result.ID == "" {
		result.ID = "res-new"
	}
	m.inserted = append(m.inserted, *result)
	return nil
}

type mockNotifier struct {
	created []models.Notification
	err     error
}

func (m *mockNotifier) Create(ctx context.Context, notification *models.Notification) error {
	if m.err != nil {
		return m.err
	}
	m.created = append(m.created, *notification)
	return nil
}

type mockStudentFinder struct {
	students map[string]*models.StudentDetail
}

func (m *mockStudentFinder) FindByID(ctx context.Context, id string) (*models.StudentDetail, error) {
	if s, ok := m.students[id]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

type mockPublisher struct {
	events []events.StatusChanged
	err    error
}

func (m *mockPublisher) Publish(event events.StatusChanged) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func seedAppointment(status models.AppointmentStatus, tr *models.TimeRange) *mockAppointmentRepo {
	return &mockAppointmentRepo{appointments: map[string]models.AppointmentDetail{
		"apt1": {
			Appointment: models.Appointment{
				ID:        "apt1",
				StudentID: "st1",
				Status:    status,
				TimeRange: tr,
			},
			StudentName:  "Ada Obi",
			MatricNo:     "MED/20/001",
			StudentEmail: "ada@uni.edu",
		},
	}}
}

func newTestService(repo *mockAppointmentRepo, results *mockResultStore, notifier *mockNotifier, publisher *mockPublisher) *AppointmentService {
	return NewAppointmentService(repo, results, notifier, &mockStudentFinder{}, publisher, nil, nil)
}

func sampleRange() *models.TimeRange {
	return &models.TimeRange{
		Start: time.Date(2025, 1, 10, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 1, 10, 10, 15, 0, 0, time.UTC),
	}
}

func TestTransitionPendingToScheduled(t *testing.T) {
	repo := seedAppointment(models.AppointmentPending, nil)
	notifier := &mockNotifier{}
	publisher := &mockPublisher{}
	svc := newTestService(repo, &mockResultStore{}, notifier, publisher)

	slot := sampleRange()
	detail, err := svc.Transition(context.Background(), "apt1", TransitionRequest{
		Status:    "scheduled",
		TimeRange: &TimeRangePayload{Start: slot.Start, End: slot.End},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, detail.Status)
	require.NotNil(t, detail.TimeRange)
	assert.True(t, detail.TimeRange.Start.Equal(slot.Start))
	assert.True(t, detail.TimeRange.End.Equal(slot.End))
	assert.Nil(t, detail.CompletedAt)

	require.Len(t, notifier.created, 1)
	assert.Equal(t, "Appointment Scheduled", notifier.created[0].Title)
	assert.Equal(t, models.NotificationSuccess, notifier.created[0].Type)
	assert.Equal(t, models.CategoryAppointment, notifier.created[0].Category)
	assert.Contains(t, notifier.created[0].Message, "Fri, 10 Jan 2025 10:00")

	require.Len(t, publisher.events, 1)
	assert.Equal(t, models.AppointmentPending, publisher.events[0].PreviousStatus)
	assert.Equal(t, "ada@uni.edu", publisher.events[0].Student.Email)
}

func TestTransitionRescheduleProducesRescheduledNotification(t *testing.T) {
	oldRange := sampleRange()
	repo := seedAppointment(models.AppointmentScheduled, oldRange)
	notifier := &mockNotifier{}
	svc := newTestService(repo, &mockResultStore{}, notifier, &mockPublisher{})

	newStart := time.Date(2025, 1, 12, 14, 0, 0, 0, time.UTC)
	newEnd := newStart.Add(15 * time.Minute)
	detail, err := svc.Transition(context.Background(), "apt1", TransitionRequest{
		Status:    "scheduled",
		TimeRange: &TimeRangePayload{Start: newStart, End: newEnd},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, detail.Status)

	require.Len(t, notifier.created, 1)
	assert.Equal(t, "Appointment Rescheduled", notifier.created[0].Title)
	assert.Equal(t, models.NotificationWarning, notifier.created[0].Type)
	assert.Contains(t, notifier.created[0].Message, "Fri, 10 Jan 2025 10:00")
	assert.Contains(t, notifier.created[0].Message, "Sun, 12 Jan 2025 14:00")
}

func TestTransitionToPendingClearsRange(t *testing.T) {
	repo := seedAppointment(models.AppointmentScheduled, sampleRange())
	notifier := &mockNotifier{}
	svc := newTestService(repo, &mockResultStore{}, notifier, &mockPublisher{})

	slot := sampleRange()
	detail, err := svc.Transition(context.Background(), "apt1", TransitionRequest{
		Status:    "pending",
		TimeRange: &TimeRangePayload{Start: slot.Start, End: slot.End},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentPending, detail.Status)
	assert.Nil(t, detail.TimeRange)

	require.Len(t, notifier.created, 1)
	assert.Equal(t, "Appointment Pending", notifier.created[0].Title)
	assert.Equal(t, models.NotificationInfo, notifier.created[0].Type)
}

func TestTransitionToMissedKeepsExistingRange(t *testing.T) {
	existing := sampleRange()
	repo := seedAppointment(models.AppointmentScheduled, existing)
	notifier := &mockNotifier{}
	svc := newTestService(repo, &mockResultStore{}, notifier, &mockPublisher{})

	detail, err := svc.Transition(context.Background(), "apt1", TransitionRequest{Status: "missed"})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentMissed, detail.Status)
	require.NotNil(t, detail.TimeRange)
	assert.True(t, detail.TimeRange.Start.Equal(existing.Start))

	require.Len(t, notifier.created, 1)
	assert.Equal(t, "Missed Appointment", notifier.created[0].Title)
	assert.Equal(t, models.NotificationError, notifier.created[0].Type)
}

func TestTransitionToCompletedRejected(t *testing.T) {
	repo := seedAppointment(models.AppointmentScheduled, sampleRange())
	svc := newTestService(repo, &mockResultStore{}, &mockNotifier{}, &mockPublisher{})

	_, err := svc.Transition(context.Background(), "apt1", TransitionRequest{Status: "completed"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidStatus.Code, appErrors.FromError(err).Code)
}

func TestTransitionScheduledRequiresRange(t *testing.T) {
	repo := seedAppointment(models.AppointmentPending, nil)
	svc := newTestService(repo, &mockResultStore{}, &mockNotifier{}, &mockPublisher{})

	_, err := svc.Transition(context.Background(), "apt1", TransitionRequest{Status: "scheduled"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTransitionOverlapSurfacesConflict(t *testing.T) {
	repo := seedAppointment(models.AppointmentPending, nil)
	repo.updateErr = repository.ErrRangeOverlap
	notifier := &mockNotifier{}
	svc := newTestService(repo, &mockResultStore{}, notifier, &mockPublisher{})

	slot := sampleRange()
	_, err := svc.Transition(context.Background(), "apt1", TransitionRequest{
		Status:    "scheduled",
		TimeRange: &TimeRangePayload{Start: slot.Start, End: slot.End},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, notifier.created)
}

func TestTransitionNotFound(t *testing.T) {
	svc := newTestService(&mockAppointmentRepo{}, &mockResultStore{}, &mockNotifier{}, &mockPublisher{})

	_, err := svc.Transition(context.Background(), "missing", TransitionRequest{Status: "pending"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTransitionNotificationFailureDoesNotFailRequest(t *testing.T) {
	repo := seedAppointment(models.AppointmentPending, nil)
	notifier := &mockNotifier{err: errors.New("insert failed")}
	svc := newTestService(repo, &mockResultStore{}, notifier, &mockPublisher{})

	slot := sampleRange()
	detail, err := svc.Transition(context.Background(), "apt1", TransitionRequest{
		Status:    "scheduled",
		TimeRange: &TimeRangePayload{Start: slot.Start, End: slot.End},
	})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentScheduled, detail.Status)
}

func TestCompleteScheduledAppointment(t *testing.T) {
	repo := seedAppointment(models.AppointmentScheduled, sampleRange())
	results := &mockResultStore{}
	notifier := &mockNotifier{}
	publisher := &mockPublisher{}
	svc := newTestService(repo, results, notifier, publisher)

	outcome, err := svc.Complete(context.Background(), "apt1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentCompleted, outcome.Appointment.Status)
	require.NotNil(t, outcome.Appointment.CompletedAt)
	assert.True(t, outcome.ResultNotification.ResultReady)
	assert.False(t, outcome.ResultNotification.Notified)
	require.Len(t, results.inserted, 1)
	assert.Equal(t, "st1", results.inserted[0].StudentID)

	require.Len(t, notifier.created, 1)
	assert.Equal(t, "Results Ready", notifier.created[0].Title)
	assert.Equal(t, models.CategoryResults, notifier.created[0].Category)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, models.AppointmentScheduled, publisher.events[0].PreviousStatus)
}

func TestCompleteRequiresScheduledStatus(t *testing.T) {
	repo := seedAppointment(models.AppointmentPending, nil)
	results := &mockResultStore{}
	svc := newTestService(repo, results, &mockNotifier{}, &mockPublisher{})

	_, err := svc.Complete(context.Background(), "apt1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)
	assert.Empty(t, results.inserted)
}

func TestCompleteRequiresTimeRange(t *testing.T) {
	repo := seedAppointment(models.AppointmentScheduled, nil)
	results := &mockResultStore{}
	svc := newTestService(repo, results, &mockNotifier{}, &mockPublisher{})

	_, err := svc.Complete(context.Background(), "apt1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, results.inserted)
}

func TestCompleteDuplicateResultConflict(t *testing.T) {
	repo := seedAppointment(models.AppointmentScheduled, sampleRange())
	results := &mockResultStore{count: 1}
	svc := newTestService(repo, results, &mockNotifier{}, &mockPublisher{})

	_, err := svc.Complete(context.Background(), "apt1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, results.inserted)
}

func TestCompletePartialSuccessOnStatusWriteFailure(t *testing.T) {
	repo := seedAppointment(models.AppointmentScheduled, sampleRange())
	repo.updateErr = errors.New("write failed")
	results := &mockResultStore{}
	notifier := &mockNotifier{}
	svc := newTestService(repo, results, notifier, &mockPublisher{})

	outcome, err := svc.Complete(context.Background(), "apt1")
	require.NoError(t, err)
	require.Len(t, results.inserted, 1)
	assert.Equal(t, models.AppointmentScheduled, outcome.Appointment.Status)
	assert.Nil(t, outcome.Appointment.CompletedAt)
	assert.Empty(t, notifier.created)
}

func TestCreatePendingAppointment(t *testing.T) {
	repo := &mockAppointmentRepo{}
	students := &mockStudentFinder{students: map[string]*models.StudentDetail{
		"st1": {Student: models.Student{ID: "st1", FullName: "Ada Obi", MatricNo: "MED/20/001", Email: "ada@uni.edu"}},
	}}
	svc := NewAppointmentService(repo, &mockResultStore{}, &mockNotifier{}, students, &mockPublisher{}, nil, nil)

	detail, err := svc.Create(context.Background(), CreateAppointmentRequest{StudentID: "st1"})
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentPending, detail.Status)
	assert.Nil(t, detail.TimeRange)
	assert.Equal(t, "Ada Obi", detail.StudentName)
}

func TestCreateUnknownStudent(t *testing.T) {
	svc := NewAppointmentService(&mockAppointmentRepo{}, &mockResultStore{}, &mockNotifier{}, &mockStudentFinder{}, &mockPublisher{}, nil, nil)

	_, err := svc.Create(context.Background(), CreateAppointmentRequest{StudentID: "ghost"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDeletePendingOnlyWhilePending(t *testing.T) {
	repo := seedAppointment(models.AppointmentScheduled, sampleRange())
	svc := newTestService(repo, &mockResultStore{}, &mockNotifier{}, &mockPublisher{})

	err := svc.DeletePending(context.Background(), "apt1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErrors.FromError(err).Code)

	repo = seedAppointment(models.AppointmentPending, nil)
	svc = newTestService(repo, &mockResultStore{}, &mockNotifier{}, &mockPublisher{})
	require.NoError(t, svc.DeletePending(context.Background(), "apt1"))
	assert.Empty(t, repo.appointments)
}
