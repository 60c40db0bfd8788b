package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cloud/storage-api/internal/middleware"
	"github.com/campus-cloud/storage-api/internal/models"
	"github.com/campus-cloud/storage-api/internal/service"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
)

type stubShareService struct {
	createResp *models.CreateSharesResponse
	listResp   *models.ListSharesResponse
	revokeResp *models.RevokeShareResponse
	sharedResp *models.SharedWithMeResponse
	err        error

	gotFileID  string
	gotShareID string
	gotReq     models.CreateSharesRequest
}

func (s *stubShareService) Create(ctx context.Context, p models.Principal, fileID string, req models.CreateSharesRequest) (*models.CreateSharesResponse, error) {
	s.gotFileID = fileID
	s.gotReq = req
	return s.createResp, s.err
}

func (s *stubShareService) List(ctx context.Context, p models.Principal, fileID string) (*models.ListSharesResponse, error) {
	s.gotFileID = fileID
	return s.listResp, s.err
}

func (s *stubShareService) Revoke(ctx context.Context, p models.Principal, fileID, shareID string) (*models.RevokeShareResponse, error) {
	s.gotFileID = fileID
	s.gotShareID = shareID
	return s.revokeResp, s.err
}

func (s *stubShareService) SharedWithMe(ctx context.Context, p models.Principal, limit int, token string) (*models.SharedWithMeResponse, error) {
	return s.sharedResp, s.err
}

func testPrincipal() models.Principal {
	return models.Principal{ID: "u-1", Email: "u1@campus.edu", Name: "User One", Role: models.RoleStudent}
}

func withPrincipal(p models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextPrincipalKey, p)
		c.Next()
	}
}

func newShareRouter(stub *stubShareService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewShareHandler(stub, service.NewMetricsService())
	r := gin.New()
	authed := r.Group("", withPrincipal(testPrincipal()))
	authed.POST("/files/:fileId/share", h.Create)
	authed.GET("/files/:fileId/shares", h.List)
	authed.DELETE("/files/:fileId/shares/:shareId", h.Revoke)
	authed.GET("/shared-with-me", h.SharedWithMe)
	return r
}

func TestShareCreateBatchResponse(t *testing.T) {
	stub := &stubShareService{createResp: &models.CreateSharesResponse{
		Shared: []models.SharedEntry{
			{ShareID: "s-1", SharedWithEmail: "a@campus.edu", Permissions: models.PermissionRead},
		},
		Failed: []models.FailedEntry{
			{Email: "bad", Reason: "Invalid email format"},
		},
		TotalShared: 1,
		TotalFailed: 1,
	}}
	r := newShareRouter(stub)

	body := `{"recipients":[{"email":"a@campus.edu","permissions":"read"},{"email":"bad"}],"message":"hi"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/files/f-1/share", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "f-1", stub.gotFileID)
	assert.Equal(t, "hi", stub.gotReq.Message)
	require.Len(t, stub.gotReq.Recipients, 2)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["totalShared"])
	assert.Equal(t, float64(1), resp["totalFailed"])
	shared := resp["shared"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "a@campus.edu", shared["sharedWithEmail"])
}

func TestShareCreateRejectsEmptyBody(t *testing.T) {
	r := newShareRouter(&stubShareService{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/files/f-1/share", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"error":"Bad Request"`)
}

func TestShareCreateServiceError(t *testing.T) {
	stub := &stubShareService{err: appErrors.Clone(appErrors.ErrNotFound, "File not found")}
	r := newShareRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/files/f-missing/share",
		strings.NewReader(`{"recipients":[{"email":"a@campus.edu"}]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Not Found", resp["error"])
	assert.Equal(t, "File not found", resp["message"])
}

func TestShareRevokeRoutesIDs(t *testing.T) {
	stub := &stubShareService{revokeResp: &models.RevokeShareResponse{
		Success: true, Message: "Share revoked", ShareID: "s-9",
	}}
	r := newShareRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/files/f-1/shares/s-9", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "f-1", stub.gotFileID)
	assert.Equal(t, "s-9", stub.gotShareID)
	assert.Contains(t, w.Body.String(), `"success":true`)
}

func TestSharedWithMe(t *testing.T) {
	stub := &stubShareService{sharedResp: &models.SharedWithMeResponse{
		Files: []models.SharedFile{{ShareID: "s-1", FileID: "f-1", FileName: "notes.pdf"}},
		Total: 1,
	}}
	r := newShareRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/shared-with-me?limit=10", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"fileName":"notes.pdf"`)
}

func TestShareEndpointsRequirePrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewShareHandler(&stubShareService{}, nil)
	r := gin.New()
	r.GET("/files/:fileId/shares", h.List)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/files/f-1/shares", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
