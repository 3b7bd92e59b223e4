package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/internal/service"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
	"github.com/uniclinic/medsched-api/pkg/response"
)

// AppointmentOperations is the slice of the appointment service the
// HTTP layer depends on.
type AppointmentOperations interface {
	List(ctx context.Context, req service.AppointmentListRequest) ([]models.AppointmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.AppointmentDetail, error)
	Create(ctx context.Context, req service.CreateAppointmentRequest) (*models.AppointmentDetail, error)
	Transition(ctx context.Context, id string, req service.TransitionRequest) (*models.AppointmentDetail, error)
	Complete(ctx context.Context, id string) (*service.CompletionResult, error)
	DeletePending(ctx context.Context, id string) error
}

// StudentDirectory resolves the student record behind an authenticated user.
type StudentDirectory interface {
	GetByUserID(ctx context.Context, userID string) (*models.StudentDetail, error)
}

// AppointmentHandler exposes the appointment lifecycle endpoints.
type AppointmentHandler struct {
	appointments AppointmentOperations
	students     StudentDirectory
}

// NewAppointmentHandler constructs AppointmentHandler.
func NewAppointmentHandler(appointments AppointmentOperations, students StudentDirectory) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments, students: students}
}

// List godoc
// @Summary List appointments
// @Tags Appointments
// @Produce json
// @Param studentId query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	var req service.AppointmentListRequest
	req.StudentID = c.Query("studentId")
	req.Status = c.Query("status")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.PageSize = size
	}
	req.SortOrder = c.Query("order")

	appointments, pagination, err := h.appointments.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointments, pagination)
}

// ListMine godoc
// @Summary List the caller's appointments
// @Tags Appointments
// @Produce json
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /me/appointments [get]
func (h *AppointmentHandler) ListMine(c *gin.Context) {
	student, err := h.callerStudent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	var req service.AppointmentListRequest
	req.StudentID = student.ID
	req.Status = c.Query("status")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.PageSize = size
	}

	appointments, pagination, err := h.appointments.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointments, pagination)
}

// Get godoc
// @Summary Get appointment detail
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	appointment, err := h.appointments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent {
		student, err := h.callerStudent(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		if appointment.StudentID != student.ID {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Create godoc
// @Summary Create a pending appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.CreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req service.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.appointments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appointment)
}

// Transition godoc
// @Summary Move an appointment to a new lifecycle status
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body service.TransitionRequest true "Target status and optional time range"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/status [patch]
func (h *AppointmentHandler) Transition(c *gin.Context) {
	var req service.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.appointments.Transition(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Complete godoc
// @Summary Complete a scheduled appointment and open its result record
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/complete [post]
func (h *AppointmentHandler) Complete(c *gin.Context) {
	result, err := h.appointments.Complete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a pending appointment
// @Tags Appointments
// @Param id path string true "Appointment ID"
// @Success 204
// @Router /appointments/{id} [delete]
func (h *AppointmentHandler) Delete(c *gin.Context) {
	if err := h.appointments.DeletePending(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *AppointmentHandler) callerStudent(c *gin.Context) (*models.StudentDetail, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return h.students.GetByUserID(c.Request.Context(), claims.UserID)
}
