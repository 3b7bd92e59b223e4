package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uniclinic/medsched-api/internal/models"
	"github.com/uniclinic/medsched-api/internal/service"
	appErrors "github.com/uniclinic/medsched-api/pkg/errors"
	"github.com/uniclinic/medsched-api/pkg/response"
)

// ResultHandler exposes medical result records and their exports.
type ResultHandler struct {
	results  *service.ResultService
	students *service.StudentService
}

// NewResultHandler constructs ResultHandler.
func NewResultHandler(results *service.ResultService, students *service.StudentService) *ResultHandler {
	return &ResultHandler{results: results, students: students}
}

// GetMine godoc
// @Summary Get the caller's medical result
// @Tags Results
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/results [get]
func (h *ResultHandler) GetMine(c *gin.Context) {
	student, err := h.callerStudent(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	result, err := h.results.GetByStudent(c.Request.Context(), student.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportMine godoc
// @Summary Export the caller's medical result
// @Tags Results
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(pdf)
// @Success 200 {file} binary
// @Router /me/results/export [get]
func (h *ResultHandler) ExportMine(c *gin.Context) {
	student, err := h.callerStudent(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.export(c, student.ID)
}

// GetByStudent godoc
// @Summary Get a student's medical result
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/results [get]
func (h *ResultHandler) GetByStudent(c *gin.Context) {
	result, err := h.results.GetByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Update a student's medical result
// @Tags Results
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body service.UpdateResultRequest true "Result payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/results [put]
func (h *ResultHandler) Update(c *gin.Context) {
	var req service.UpdateResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.results.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export a student's medical result
// @Tags Results
// @Produce octet-stream
// @Param id path string true "Student ID"
// @Param format query string false "csv or pdf" default(pdf)
// @Success 200 {file} binary
// @Router /students/{id}/results/export [get]
func (h *ResultHandler) Export(c *gin.Context) {
	h.export(c, c.Param("id"))
}

func (h *ResultHandler) export(c *gin.Context, studentID string) {
	format := c.DefaultQuery("format", "pdf")
	report, err := h.results.Export(c.Request.Context(), studentID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, report.ContentType, report.Payload)
}

func (h *ResultHandler) callerStudent(c *gin.Context) (*models.StudentDetail, error) {
	claims := claimsFromContext(c)
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	return h.students.GetByUserID(c.Request.Context(), claims.UserID)
}
