package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-cloud/storage-api/internal/models"
	"github.com/campus-cloud/storage-api/internal/service"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
	"github.com/campus-cloud/storage-api/pkg/response"
)

type submissionService interface {
	Submit(ctx context.Context, p models.Principal, assignmentID string, req models.SubmitRequest) (*models.Submission, error)
	List(ctx context.Context, p models.Principal, assignmentID string, req models.ListSubmissionsRequest) (*models.ListSubmissionsResponse, error)
	ListMine(ctx context.Context, p models.Principal, assignmentID string) (*models.MySubmissionsResponse, error)
	Grade(ctx context.Context, p models.Principal, assignmentID, submissionID string, req models.GradeRequest) (*models.Submission, error)
	Export(ctx context.Context, p models.Principal, assignmentID, format string) ([]byte, string, string, error)
}

// SubmissionHandler exposes the assignment submission endpoints.
type SubmissionHandler struct {
	submissions submissionService
	metrics     *service.MetricsService
}

// NewSubmissionHandler builds a new handler.
func NewSubmissionHandler(submissions submissionService, metrics *service.MetricsService) *SubmissionHandler {
	return &SubmissionHandler{submissions: submissions, metrics: metrics}
}

// Submit records one submission attempt referencing an uploaded file.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "fileId is required"))
		return
	}

	sub, err := h.submissions.Submit(c.Request.Context(), principal, c.Param("assignmentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordSubmission(sub.IsLate)
	response.JSON(c, http.StatusCreated, sub)
}

// List returns one page of an assignment's submissions for its instructor.
func (h *SubmissionHandler) List(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ListSubmissionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "Invalid query parameters"))
		return
	}

	resp, err := h.submissions.List(c.Request.Context(), principal, c.Param("assignmentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// ListMine returns the caller's own attempts at an assignment.
func (h *SubmissionHandler) ListMine(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resp, err := h.submissions.ListMine(c.Request.Context(), principal, c.Param("assignmentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}

// Grade writes a grade onto a submission.
func (h *SubmissionHandler) Grade(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.GradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "Invalid grade payload"))
		return
	}

	sub, err := h.submissions.Grade(c.Request.Context(), principal,
		c.Param("assignmentId"), c.Param("submissionId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordGradeApplied()
	response.OK(c, sub)
}

// Export streams the assignment's full submission set as CSV or PDF.
func (h *SubmissionHandler) Export(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	format := c.DefaultQuery("format", "csv")
	data, contentType, filename, err := h.submissions.Export(c.Request.Context(), principal, c.Param("assignmentId"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
