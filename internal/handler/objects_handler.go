package handler

import (
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
	"github.com/campus-cloud/storage-api/pkg/response"
	"github.com/campus-cloud/storage-api/pkg/storage"
)

// ObjectsHandler serves the signed upload and download URLs issued by the
// local object store. Only mounted when the local backend is configured; the
// S3 backend signs URLs pointing at the bucket directly.
type ObjectsHandler struct {
	store  *storage.LocalStore
	logger *zap.Logger
}

// NewObjectsHandler builds a new handler.
func NewObjectsHandler(store *storage.LocalStore, logger *zap.Logger) *ObjectsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ObjectsHandler{store: store, logger: logger}
}

// Put accepts the bytes of a signed upload.
func (h *ObjectsHandler) Put(c *gin.Context) {
	key, err := h.store.VerifyToken(c.Query("token"), "put")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "Invalid or expired upload token"))
		return
	}

	n, err := h.store.Write(key, c.Request.Body)
	if err != nil {
		h.logger.Error("write object", zap.String("key", key), zap.Error(err))
		response.Error(c, appErrors.Storage(err, "Failed to store object"))
		return
	}

	h.logger.Info("object stored", zap.String("key", key), zap.Int64("bytes", n))
	c.Status(http.StatusOK)
}

// Get streams the bytes of a signed download.
func (h *ObjectsHandler) Get(c *gin.Context) {
	key, err := h.store.VerifyToken(c.Query("token"), "get")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "Invalid or expired download token"))
		return
	}

	file, err := h.store.Open(key)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "Object not found"))
		return
	}
	defer file.Close() //nolint:errcheck

	if name := c.Query("name"); name != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	}
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		h.logger.Warn("stream object", zap.String("key", key), zap.Error(err))
	}
}
