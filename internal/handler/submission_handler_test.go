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
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cloud/storage-api/internal/models"
	"github.com/campus-cloud/storage-api/internal/service"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
)

type stubSubmissionService struct {
	submitResp *models.Submission
	listResp   *models.ListSubmissionsResponse
	mineResp   *models.MySubmissionsResponse
	gradeResp  *models.Submission
	exportData []byte
	err        error

	gotAssignmentID string
	gotSubmissionID string
	gotSubmitReq    models.SubmitRequest
	gotGradeReq     models.GradeRequest
	gotFormat       string
}

func (s *stubSubmissionService) Submit(ctx context.Context, p models.Principal, assignmentID string, req models.SubmitRequest) (*models.Submission, error) {
	s.gotAssignmentID = assignmentID
	s.gotSubmitReq = req
	return s.submitResp, s.err
}

func (s *stubSubmissionService) List(ctx context.Context, p models.Principal, assignmentID string, req models.ListSubmissionsRequest) (*models.ListSubmissionsResponse, error) {
	s.gotAssignmentID = assignmentID
	return s.listResp, s.err
}

func (s *stubSubmissionService) ListMine(ctx context.Context, p models.Principal, assignmentID string) (*models.MySubmissionsResponse, error) {
	s.gotAssignmentID = assignmentID
	return s.mineResp, s.err
}

func (s *stubSubmissionService) Grade(ctx context.Context, p models.Principal, assignmentID, submissionID string, req models.GradeRequest) (*models.Submission, error) {
	s.gotAssignmentID = assignmentID
	s.gotSubmissionID = submissionID
	s.gotGradeReq = req
	return s.gradeResp, s.err
}

func (s *stubSubmissionService) Export(ctx context.Context, p models.Principal, assignmentID, format string) ([]byte, string, string, error) {
	s.gotAssignmentID = assignmentID
	s.gotFormat = format
	if s.err != nil {
		return nil, "", "", s.err
	}
	return s.exportData, "text/csv", "submissions-" + assignmentID + ".csv", nil
}

func newSubmissionRouter(stub *stubSubmissionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSubmissionHandler(stub, service.NewMetricsService())
	r := gin.New()
	authed := r.Group("", withPrincipal(testPrincipal()))
	authed.POST("/assignments/:assignmentId/submit", h.Submit)
	authed.GET("/assignments/:assignmentId/submissions", h.List)
	authed.GET("/assignments/:assignmentId/submissions/me", h.ListMine)
	authed.GET("/assignments/:assignmentId/submissions/export", h.Export)
	authed.PUT("/assignments/:assignmentId/submissions/:submissionId/grade", h.Grade)
	return r
}

func TestSubmitResponseShape(t *testing.T) {
	stub := &stubSubmissionService{submitResp: &models.Submission{
		ID: "sub-1", AssignmentID: "a-1", StudentID: "u-1",
		FileID: "f-1", FileName: "essay.pdf",
		SubmittedAt:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		SubmissionNumber: 2,
		Status:           models.SubmissionStatusSubmitted,
		IsLate:           true,
	}}
	r := newSubmissionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assignments/a-1/submit",
		strings.NewReader(`{"fileId":"f-1","comments":"second try"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "a-1", stub.gotAssignmentID)
	assert.Equal(t, "f-1", stub.gotSubmitReq.FileID)
	assert.Equal(t, "second try", stub.gotSubmitReq.Comments)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(2), resp["submissionNumber"])
	assert.Equal(t, true, resp["isLate"])
	assert.Equal(t, "submitted", resp["status"])
}

func TestSubmitLimitReached(t *testing.T) {
	stub := &stubSubmissionService{err: appErrors.Clone(appErrors.ErrForbidden, "Submission limit reached (3)")}
	r := newSubmissionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/assignments/a-1/submit",
		strings.NewReader(`{"fileId":"f-1"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Forbidden", resp["error"])
	assert.Equal(t, "Submission limit reached (3)", resp["message"])
}

func TestListSubmissionsIncludesStatistics(t *testing.T) {
	stub := &stubSubmissionService{listResp: &models.ListSubmissionsResponse{
		AssignmentID: "a-1",
		Submissions:  []models.Submission{{ID: "sub-1"}},
		Statistics:   models.SubmissionStatistics{TotalSubmissions: 5, OnTime: 3, Late: 2, Graded: 1, Pending: 4},
		NextToken:    "tok",
	}}
	r := newSubmissionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assignments/a-1/submissions?status=submitted&limit=20", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	stats := resp["statistics"].(map[string]interface{})
	assert.Equal(t, float64(5), stats["totalSubmissions"])
	assert.Equal(t, float64(2), stats["late"])
	assert.Equal(t, "tok", resp["nextToken"])
}

func TestGradeDecodesDecimal(t *testing.T) {
	grade := decimal.RequireFromString("87.5")
	maxGrade := decimal.NewFromInt(100)
	stub := &stubSubmissionService{gradeResp: &models.Submission{
		ID: "sub-1", AssignmentID: "a-1",
		Status: models.SubmissionStatusGraded,
		Grade:  &grade, MaxGrade: &maxGrade,
	}}
	r := newSubmissionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/assignments/a-1/submissions/sub-1/grade",
		strings.NewReader(`{"grade":87.5,"feedback":"well argued"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sub-1", stub.gotSubmissionID)
	require.NotNil(t, stub.gotGradeReq.Grade)
	assert.True(t, stub.gotGradeReq.Grade.Equal(grade))
	assert.Equal(t, "well argued", stub.gotGradeReq.Feedback)
	assert.Contains(t, w.Body.String(), `"status":"graded"`)
}

func TestListMine(t *testing.T) {
	stub := &stubSubmissionService{mineResp: &models.MySubmissionsResponse{
		AssignmentID: "a-1",
		Submissions:  []models.Submission{{ID: "sub-1", SubmissionNumber: 1}},
		Total:        1,
	}}
	r := newSubmissionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assignments/a-1/submissions/me", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)
}

func TestExportSetsAttachmentHeaders(t *testing.T) {
	stub := &stubSubmissionService{exportData: []byte("Student,Email\n")}
	r := newSubmissionRouter(stub)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/assignments/a-1/submissions/export", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", stub.gotFormat)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "submissions-a-1.csv")
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Equal(t, "Student,Email\n", w.Body.String())
}
