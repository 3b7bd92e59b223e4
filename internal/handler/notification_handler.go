package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/internal/service"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
	"github.com/uniclinic/medsched-api/pkg/response"
)

// NotificationHandler exposes the caller's in-app notification feed.
type NotificationHandler struct {
	notifications *service.NotificationService
	students      *service.StudentService
}

// NewNotificationHandler constructs NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService, students *service.StudentService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, students: students}
}

// List godoc
// @Summary List the caller's notifications
// @Tags Notifications
// @Produce json
// @Param category query string false "Filter by category"
// @Param unread query bool false "Only unread"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /me/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	student, err := h.callerStudent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	req := service.NotificationListRequest{
		StudentID:  student.ID,
		Category:   c.Query("category"),
		UnreadOnly: c.Query("unread") == "true",
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		req.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		req.PageSize = size
	}

	notifications, pagination, err := h.notifications.List(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, notifications, pagination)
}

// UnreadCount godoc
// @Summary Count the caller's unread notifications
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	student, err := h.callerStudent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	count, err := h.notifications.UnreadCount(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"unread_count": count}, nil)
}

// MarkRead godoc
// @Summary Mark one notification as read
// @Tags Notifications
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} response.Envelope
// @Router /me/notifications/{id}/read [patch]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	student, err := h.callerStudent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	notification, err := h.notifications.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if notification.StudentID != student.ID {
		response.Error(c, appErrors.ErrForbidden)
		return
	}

	updated, err := h.notifications.MarkRead(c.Request.Context(), notification.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, updated, nil)
}

// MarkAllRead godoc
// @Summary Mark all of the caller's notifications as read
// @Tags Notifications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/notifications/read-all [post]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	student, err := h.callerStudent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	affected, err := h.notifications.MarkAllRead(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"marked_read": affected}, nil)
}

func (h *NotificationHandler) callerStudent(c *gin.Context) (*models.StudentDetail, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return h.students.GetByUserID(c.Request.Context(), claims.UserID)
}
