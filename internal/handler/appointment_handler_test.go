package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniclinic/medsched-api/internal/middleware"
	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/internal/service"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
)

type appointmentServiceMock struct {
	detail        *models.AppointmentDetail
	transitionErr error
	completeResp  *service.CompletionResult
	completeErr   error
	deleteErr     error
}

func (m *appointmentServiceMock) List(ctx context.Context, req service.AppointmentListRequest) ([]models.AppointmentDetail, *models.Pagination, error) {
	if m.detail == nil {
		return []models.AppointmentDetail{}, &models.Pagination{Page: 1, PageSize: 20}, nil
	}
	return []models.AppointmentDetail{*m.detail}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *appointmentServiceMock) Get(ctx context.Context, id string) (*models.AppointmentDetail, error) {
	if m.detail == nil || m.detail.ID != id {
		return nil, appErrors.ErrNotFound
	}
	return m.detail, nil
}

func (m *appointmentServiceMock) Create(ctx context.Context, req service.CreateAppointmentRequest) (*models.AppointmentDetail, error) {
	return m.detail, nil
}

func (m *appointmentServiceMock) Transition(ctx context.Context, id string, req service.TransitionRequest) (*models.AppointmentDetail, error) {
	if m.transitionErr != nil {
		return nil, m.transitionErr
	}
	return m.detail, nil
}

func (m *appointmentServiceMock) Complete(ctx context.Context, id string) (*service.CompletionResult, error) {
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	return m.completeResp, nil
}

func (m *appointmentServiceMock) DeletePending(ctx context.Context, id string) error {
	return m.deleteErr
}

type studentDirectoryMock struct {
	student *models.StudentDetail
}

func (m *studentDirectoryMock) GetByUserID(ctx context.Context, userID string) (*models.StudentDetail, error) {
	if m.student == nil || m.student.UserID == nil || *m.student.UserID != userID {
		return nil, appErrors.ErrNotFound
	}
	return m.student, nil
}

func sampleDetail() *models.AppointmentDetail {
	return &models.AppointmentDetail{
		Appointment: models.Appointment{
			ID:        "apt1",
			StudentID: "st1",
			Status:    models.AppointmentScheduled,
		},
		StudentName:  "Ada Obi",
		MatricNo:     "MED/20/001",
		StudentEmail: "ada@uni.edu",
	}
}

func sampleStudent() *models.StudentDetail {
	userID := "u1"
	return &models.StudentDetail{
		Student: models.Student{ID: "st1", UserID: &userID, MatricNo: "MED/20/001", FullName: "Ada Obi"},
	}
}

func TestAppointmentHandlerTransition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(&appointmentServiceMock{detail: sampleDetail()}, &studentDirectoryMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{"status": "scheduled", "time_range": gin.H{
		"start": "2025-01-10T10:00:00Z",
		"end":   "2025-01-10T10:15:00Z",
	}})
	req, _ := http.NewRequest(http.MethodPatch, "/appointments/apt1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "apt1"}}

	handler.Transition(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"apt1"`)
}

func TestAppointmentHandlerTransitionConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &appointmentServiceMock{
		detail:        sampleDetail(),
		transitionErr: appErrors.Clone(appErrors.ErrConflict, "requested time range overlaps an existing appointment"),
	}
	handler := NewAppointmentHandler(mock, &studentDirectoryMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(gin.H{"status": "scheduled", "time_range": gin.H{
		"start": "2025-01-10T10:00:00Z",
		"end":   "2025-01-10T10:15:00Z",
	}})
	req, _ := http.NewRequest(http.MethodPatch, "/appointments/apt1/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "apt1"}}

	handler.Transition(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "overlaps")
}

func TestAppointmentHandlerTransitionInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(&appointmentServiceMock{detail: sampleDetail()}, &studentDirectoryMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/appointments/apt1/status", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "apt1"}}

	handler.Transition(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppointmentHandlerGetOwnAppointment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewAppointmentHandler(
		&appointmentServiceMock{detail: sampleDetail()},
		&studentDirectoryMock{student: sampleStudent()},
	)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/appointments/apt1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "apt1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	handler.Get(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAppointmentHandlerGetForeignAppointmentForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	detail := sampleDetail()
	detail.StudentID = "st2"
	handler := NewAppointmentHandler(
		&appointmentServiceMock{detail: detail},
		&studentDirectoryMock{student: sampleStudent()},
	)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/appointments/apt1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "apt1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent})

	handler.Get(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAppointmentHandlerComplete(t *testing.T) {
	gin.SetMode(gin.TestMode)
	detail := sampleDetail()
	detail.Status = models.AppointmentCompleted
	mock := &appointmentServiceMock{
		completeResp: &service.CompletionResult{
			Appointment:        detail,
			ResultNotification: &models.ResultNotification{ID: "r1", StudentID: "st1", ResultReady: true},
		},
	}
	handler := NewAppointmentHandler(mock, &studentDirectoryMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/appointments/apt1/complete", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "apt1"}}

	handler.Complete(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"result_ready":true`)
}

func TestAppointmentHandlerDeleteNotPending(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &appointmentServiceMock{
		deleteErr: appErrors.Clone(appErrors.ErrInvalidState, "only pending appointments can be deleted"),
	}
	handler := NewAppointmentHandler(mock, &studentDirectoryMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodDelete, "/appointments/apt1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "apt1"}}

	handler.Delete(c)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
