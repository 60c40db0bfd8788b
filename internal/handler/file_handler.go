package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-cloud/storage-api/internal/models"
	"github.com/campus-cloud/storage-api/internal/service"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
	"github.com/campus-cloud/storage-api/pkg/response"
)

type fileService interface {
	UploadURL(ctx context.Context, p models.Principal, req models.UploadURLRequest) (*models.UploadURLResponse, error)
	Complete(ctx context.Context, p models.Principal, fileID string, req models.CompleteUploadRequest) (*models.File, error)
	DownloadURL(ctx context.Context, p models.Principal, fileID string) (*models.DownloadURLResponse, error)
	List(ctx context.Context, p models.Principal, req models.FileListRequest) (*models.FileListResponse, error)
}

// FileHandler exposes the file upload, download, and listing endpoints.
type FileHandler struct {
	files   fileService
	metrics *service.MetricsService
}

// NewFileHandler builds a new handler.
func NewFileHandler(files fileService, metrics *service.MetricsService) *FileHandler {
	return &FileHandler{files: files, metrics: metrics}
}

// UploadURL issues delegated upload credentials for a declared file.
func (h *FileHandler) UploadURL(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "Invalid upload request payload"))
		return
	}

	resp, err := h.files.UploadURL(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordUploadIssued()
	response.JSON(c, http.StatusCreated, resp)
}

// Complete reconciles a finished delegated upload.
func (h *FileHandler) Complete(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CompleteUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "Invalid completion payload"))
		return
	}

	file, err := h.files.Complete(c.Request.Context(), principal, c.Param("fileId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordUploadSettled(string(file.Status))
	response.OK(c, file)
}

// DownloadURL issues delegated download credentials.
func (h *FileHandler) DownloadURL(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	resp, err := h.files.DownloadURL(c.Request.Context(), principal, c.Param("fileId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.RecordDownloadIssued()
	response.OK(c, resp)
}

// List returns the caller's files, owned and shared in.
func (h *FileHandler) List(c *gin.Context) {
	principal, ok := principalFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.FileListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "Invalid query parameters"))
		return
	}

	resp, err := h.files.List(c.Request.Context(), principal, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, resp)
}
