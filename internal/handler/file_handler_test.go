package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cloud/storage-api/internal/models"
	"github.com/campus-cloud/storage-api/internal/service"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
)

type stubFileService struct {
	uploadResp   *models.UploadURLResponse
	completeResp *models.File
	downloadResp *models.DownloadURLResponse
	listResp     *models.FileListResponse
	err          error

	gotFileID    string
	gotUploadReq models.UploadURLRequest
	gotListReq   models.FileListRequest
}

func (s *stubFileService) UploadURL(ctx context.Context, p models.Principal, req models.UploadURLRequest) (*models.UploadURLResponse, error) {
	s.gotUploadReq = req
	return s.uploadResp, s.err
}

func (s *stubFileService) Complete(ctx context.Context, p models.Principal, fileID string, req models.CompleteUploadRequest) (*models.File, error) {
	s.gotFileID = fileID
	return s.completeResp, s.err
}

func (s *stubFileService) DownloadURL(ctx context.Context, p models.Principal, fileID string) (*models.DownloadURLResponse, error) {
	s.gotFileID = fileID
	return s.downloadResp, s.err
}

func (s *stubFileService) List(ctx context.Context, p models.Principal, req models.FileListRequest) (*models.FileListResponse, error) {
	s.gotListReq = req
	return s.listResp, s.err
}

func newFileRouter(stub *stubFileService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewFileHandler(stub, service.NewMetricsService())
	r := gin.New()
	authed := r.Group("", withPrincipal(testPrincipal()))
	authed.POST("/files/upload-url", h.UploadURL)
	authed.POST("/files/:fileId/complete", h.Complete)
	authed.POST("/files/:fileId/download-url", h.DownloadURL)
	authed.GET("/files", h.List)
	return r
}

func TestUploadURLResponseShape(t *testing.T) {
	stub := &stubFileService{uploadResp: &models.UploadURLResponse{
		FileID:    "f-1",
		UploadURL: "https://store.test/files/u-1/f-1/notes.pdf?sig=abc",
		Method:    "PUT",
		ExpiresAt: time.Date(2026, 3, 1, 12, 5, 0, 0, time.UTC),
	}}
	r := newFileRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/files/upload-url",
		strings.NewReader(`{"fileName":"notes.pdf","fileSize":2048,"contentType":"application/pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "notes.pdf", stub.gotUploadReq.FileName)
	assert.Equal(t, int64(2048), stub.gotUploadReq.FileSize)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "f-1", resp["fileId"])
	assert.Equal(t, "PUT", resp["method"])
	assert.NotEmpty(t, resp["uploadUrl"])
}

func TestUploadURLRejectsMalformedBody(t *testing.T) {
	r := newFileRouter(&stubFileService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/files/upload-url", strings.NewReader("{"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCompleteHidesStorageKey(t *testing.T) {
	stub := &stubFileService{completeResp: &models.File{
		ID: "f-1", OwnerID: "u-1", FileName: "notes.pdf",
		StorageKey: "files/u-1/f-1/notes.pdf",
		Status:     models.FileStatusActive,
	}}
	r := newFileRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/files/f-1/complete",
		strings.NewReader(`{"uploadSuccess":true}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "f-1", stub.gotFileID)
	// Internal storage location never leaves the API.
	assert.NotContains(t, w.Body.String(), "files/u-1")
	assert.Contains(t, w.Body.String(), `"status":"active"`)
}

func TestDownloadURLErrorPassthrough(t *testing.T) {
	stub := &stubFileService{err: appErrors.Clone(appErrors.ErrNotFound, "File not found")}
	r := newFileRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/files/f-9/download-url", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Not Found"`)
}

func TestListBindsQuery(t *testing.T) {
	stub := &stubFileService{listResp: &models.FileListResponse{
		Files: []models.FileListItem{}, Total: 0,
	}}
	r := newFileRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/files?filter=owned&sortBy=fileName&sortOrder=asc&limit=25", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "owned", stub.gotListReq.Filter)
	assert.Equal(t, "fileName", stub.gotListReq.SortBy)
	assert.Equal(t, 25, stub.gotListReq.Limit)
}
