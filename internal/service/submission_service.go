package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campus-cloud/storage-api/internal/access"
	"github.com/campus-cloud/storage-api/internal/models"
	"github.com/campus-cloud/storage-api/internal/repository"
	appErrors "github.com/campus-cloud/storage-api/pkg/errors"
	"github.com/campus-cloud/storage-api/pkg/export"
)

type submissionRepo interface {
	CreateNext(ctx context.Context, sub *models.Submission, maxSubmissions int) error
	FindByID(ctx context.Context, submissionID string) (*models.Submission, error)
	ListByAssignment(ctx context.Context, assignmentID string, status models.SubmissionStatus, limit int, token string) ([]models.Submission, string, error)
	ListAllByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error)
	ListByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) ([]models.Submission, error)
	Statistics(ctx context.Context, assignmentID string) (*models.SubmissionStatistics, error)
	ApplyGrade(ctx context.Context, submissionID string, grade, maxGrade decimal.Decimal, feedback, feedbackFileID, gradedBy string, at time.Time) error
}

type assignmentRepo interface {
	FindByID(ctx context.Context, assignmentID string) (*models.Assignment, error)
	IncrementSubmissionCount(ctx context.Context, assignmentID string) error
}

type statsCache interface {
	Get(ctx context.Context, assignmentID string) (*models.SubmissionStatistics, error)
	Set(ctx context.Context, assignmentID string, stats *models.SubmissionStatistics) error
	Invalidate(ctx context.Context, assignmentID string)
}

// SubmissionService owns the submission lifecycle: validated creation,
// instructor listing with whole-set statistics, grading, and exports.
type SubmissionService struct {
	submissions submissionRepo
	assignments assignmentRepo
	files       fileReader
	stats       statsCache
	evaluator   *access.Evaluator
	notifier    Notifier
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewSubmissionService constructs SubmissionService.
func NewSubmissionService(submissions submissionRepo, assignments assignmentRepo, files fileReader, stats statsCache, evaluator *access.Evaluator, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if evaluator == nil {
		evaluator = access.NewEvaluator()
	}
	return &SubmissionService{
		submissions: submissions,
		assignments: assignments,
		files:       files,
		stats:       stats,
		evaluator:   evaluator,
		notifier:    notifier,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		validator:   validate,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *SubmissionService) loadAssignment(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Assignment not found")
		}
		return nil, appErrors.Database(err, "Failed to load assignment")
	}
	return assignment, nil
}

// loadAssignmentForInstructor fetches an assignment and verifies the
// principal may grade and inspect it.
func (s *SubmissionService) loadAssignmentForInstructor(ctx context.Context, p models.Principal, assignmentID string) (*models.Assignment, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if d := s.evaluator.CanGrade(p, assignment); !d.Allowed {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Only the assignment instructor may access submissions")
	}
	return assignment, nil
}

// Submit validates and records one submission attempt. The sequence number
// and the per-student limit are enforced by a single conditional insert, so
// concurrent attempts can never share an ordinal or exceed the maximum.
func (s *SubmissionService) Submit(ctx context.Context, p models.Principal, assignmentID string, req models.SubmitRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "fileId is required")
	}

	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if assignment.Status != models.AssignmentStatusActive {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Assignment is not accepting submissions")
	}

	file, err := s.files.FindByOwnerAndID(ctx, p.ID, req.FileID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found")
		}
		return nil, appErrors.Database(err, "Failed to load file")
	}
	if d := s.evaluator.CanSubmit(p, file); !d.Allowed {
		if d.Reason == access.ReasonInactiveResource {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, "File is not active")
		}
		return nil, appErrors.Clone(appErrors.ErrNotFound, "File not found")
	}

	if len(assignment.AllowedContentTypes) > 0 && !contains(assignment.AllowedContentTypes, file.ContentType) {
		return nil, appErrors.Clone(appErrors.ErrBadRequest,
			fmt.Sprintf("File type %s is not allowed for this assignment", file.ContentType))
	}
	if assignment.MaxFileSize > 0 && file.FileSize > assignment.MaxFileSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge,
			fmt.Sprintf("File exceeds the maximum size of %d bytes", assignment.MaxFileSize))
	}

	now := s.now().UTC()
	sub := &models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    p.ID,
		StudentEmail: p.Email,
		StudentName:  p.Name,
		FileID:       file.ID,
		FileName:     file.FileName,
		FileSize:     file.FileSize,
		SubmittedAt:  now,
		Status:       models.SubmissionStatusSubmitted,
		IsLate:       now.After(assignment.DueDate),
		DueDate:      assignment.DueDate,
		Comments:     truncate(req.Comments, models.SubmissionCommentsMaxLen),
	}
	if err := s.submissions.CreateNext(ctx, sub, assignment.MaxSubmissions); err != nil {
		switch {
		case errors.Is(err, repository.ErrSubmissionLimit):
			return nil, appErrors.Clone(appErrors.ErrForbidden,
				fmt.Sprintf("Submission limit reached (%d)", assignment.MaxSubmissions))
		case errors.Is(err, repository.ErrSequenceConflict):
			return nil, &appErrors.Error{
				Code:      "Conflict",
				Status:    http.StatusConflict,
				Message:   "Concurrent submission detected, please retry",
				Retryable: true,
				Err:       err,
			}
		default:
			return nil, appErrors.Database(err, "Failed to record submission")
		}
	}

	// The aggregate counter is advisory; a failed bump never unwinds the
	// submission itself.
	if err := s.assignments.IncrementSubmissionCount(ctx, assignment.ID); err != nil {
		s.logger.Warn("increment submission count",
			zap.String("assignment_id", assignment.ID),
			zap.Error(err))
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx, assignment.ID)
	}

	s.notifier.Notify(NotifySubmissionMade, assignment.InstructorEmail, map[string]interface{}{
		"assignmentId":     assignment.ID,
		"assignmentTitle":  assignment.Title,
		"studentName":      p.Name,
		"submissionNumber": sub.SubmissionNumber,
		"isLate":           sub.IsLate,
	})

	s.logger.Info("submission recorded",
		zap.String("assignment_id", assignment.ID),
		zap.String("student_id", p.ID),
		zap.Int("submission_number", sub.SubmissionNumber),
		zap.Bool("is_late", sub.IsLate))
	return sub, nil
}

// List returns one page of an assignment's submissions for its instructor,
// plus statistics computed over the entire set regardless of the page.
func (s *SubmissionService) List(ctx context.Context, p models.Principal, assignmentID string, req models.ListSubmissionsRequest) (*models.ListSubmissionsResponse, error) {
	assignment, err := s.loadAssignmentForInstructor(ctx, p, assignmentID)
	if err != nil {
		return nil, err
	}

	var status models.SubmissionStatus
	switch req.Status {
	case "":
	case string(models.SubmissionStatusSubmitted), string(models.SubmissionStatusGraded):
		status = models.SubmissionStatus(req.Status)
	default:
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Invalid status filter")
	}

	subs, next, err := s.submissions.ListByAssignment(ctx, assignment.ID, status, req.Limit, req.NextToken)
	if err != nil {
		return nil, appErrors.Database(err, "Failed to list submissions")
	}

	stats, err := s.statistics(ctx, assignment.ID)
	if err != nil {
		return nil, err
	}

	return &models.ListSubmissionsResponse{
		AssignmentID: assignment.ID,
		Submissions:  subs,
		Statistics:   *stats,
		NextToken:    next,
	}, nil
}

// statistics serves the whole-set aggregate, through the cache when one is
// configured.
func (s *SubmissionService) statistics(ctx context.Context, assignmentID string) (*models.SubmissionStatistics, error) {
	if s.stats != nil {
		cached, err := s.stats.Get(ctx, assignmentID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("stats cache read", zap.String("assignment_id", assignmentID), zap.Error(err))
		}
	}

	stats, err := s.submissions.Statistics(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Database(err, "Failed to compute statistics")
	}

	if s.stats != nil {
		if err := s.stats.Set(ctx, assignmentID, stats); err != nil {
			s.logger.Warn("stats cache write", zap.String("assignment_id", assignmentID), zap.Error(err))
		}
	}
	return stats, nil
}

// ListMine returns every attempt the student has made at the assignment.
func (s *SubmissionService) ListMine(ctx context.Context, p models.Principal, assignmentID string) (*models.MySubmissionsResponse, error) {
	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	subs, err := s.submissions.ListByAssignmentAndStudent(ctx, assignment.ID, p.ID)
	if err != nil {
		return nil, appErrors.Database(err, "Failed to list submissions")
	}

	return &models.MySubmissionsResponse{
		AssignmentID: assignment.ID,
		Submissions:  subs,
		Total:        len(subs),
	}, nil
}

// Grade writes grade fields onto a submission and marks it graded. Grading
// twice overwrites the previous grade; no history is kept.
func (s *SubmissionService) Grade(ctx context.Context, p models.Principal, assignmentID, submissionID string, req models.GradeRequest) (*models.Submission, error) {
	assignment, err := s.loadAssignmentForInstructor(ctx, p, assignmentID)
	if err != nil {
		return nil, err
	}

	if req.Grade == nil {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Grade is required")
	}
	grade := *req.Grade

	maxGrade := decimal.NewFromInt(100)
	if req.MaxGrade != nil {
		maxGrade = *req.MaxGrade
	}
	if maxGrade.LessThanOrEqual(decimal.Zero) {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "maxGrade must be positive")
	}
	if grade.IsNegative() || grade.GreaterThan(maxGrade) {
		return nil, appErrors.Clone(appErrors.ErrBadRequest,
			fmt.Sprintf("grade must be between 0 and %s", maxGrade.String()))
	}

	sub, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Submission not found")
		}
		return nil, appErrors.Database(err, "Failed to load submission")
	}
	if sub.AssignmentID != assignment.ID {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Submission does not belong to this assignment")
	}

	feedback := truncate(req.Feedback, models.GradeFeedbackMaxLen)
	gradedAt := s.now().UTC()
	if err := s.submissions.ApplyGrade(ctx, sub.ID, grade, maxGrade, feedback, req.FeedbackFileID, p.ID, gradedAt); err != nil {
		if errors.Is(err, appErrors.ErrPreconditionFailed) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Submission not found")
		}
		return nil, appErrors.Database(err, "Failed to grade submission")
	}

	sub.Grade = &grade
	sub.MaxGrade = &maxGrade
	sub.Feedback = feedback
	sub.FeedbackFileID = req.FeedbackFileID
	sub.GradedBy = p.ID
	sub.GradedAt = &gradedAt
	sub.Status = models.SubmissionStatusGraded

	if s.stats != nil {
		s.stats.Invalidate(ctx, assignment.ID)
	}

	s.notifier.Notify(NotifySubmissionGraded, sub.StudentEmail, map[string]interface{}{
		"assignmentId":    assignment.ID,
		"assignmentTitle": assignment.Title,
		"grade":           grade.String(),
		"maxGrade":        maxGrade.String(),
	})

	s.logger.Info("submission graded",
		zap.String("submission_id", sub.ID),
		zap.String("assignment_id", assignment.ID),
		zap.String("graded_by", p.ID))
	return sub, nil
}

// Export renders the assignment's full submission set as CSV or PDF.
func (s *SubmissionService) Export(ctx context.Context, p models.Principal, assignmentID, format string) ([]byte, string, string, error) {
	assignment, err := s.loadAssignmentForInstructor(ctx, p, assignmentID)
	if err != nil {
		return nil, "", "", err
	}

	subs, err := s.submissions.ListAllByAssignment(ctx, assignment.ID)
	if err != nil {
		return nil, "", "", appErrors.Database(err, "Failed to list submissions")
	}

	dataset := export.Dataset{
		Title:       fmt.Sprintf("Submissions: %s", assignment.Title),
		GeneratedAt: s.now().UTC(),
		Headers:     []string{"Student", "Email", "File", "Attempt", "Submitted At", "Late", "Status", "Grade"},
	}
	for _, sub := range subs {
		grade := ""
		if sub.Grade != nil && sub.MaxGrade != nil {
			grade = fmt.Sprintf("%s/%s", sub.Grade.String(), sub.MaxGrade.String())
		}
		late := "no"
		if sub.IsLate {
			late = "yes"
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student":      sub.StudentName,
			"Email":        sub.StudentEmail,
			"File":         sub.FileName,
			"Attempt":      fmt.Sprintf("%d", sub.SubmissionNumber),
			"Submitted At": sub.SubmittedAt.Format(time.RFC3339),
			"Late":         late,
			"Status":       string(sub.Status),
			"Grade":        grade,
		})
	}

	switch format {
	case "", "csv":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, "Internal Server Error", http.StatusInternalServerError, "Failed to render export")
		}
		return data, "text/csv", fmt.Sprintf("submissions-%s.csv", assignment.ID), nil
	case "pdf":
		data, err := s.pdf.Render(dataset)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, "Internal Server Error", http.StatusInternalServerError, "Failed to render export")
		}
		return data, "application/pdf", fmt.Sprintf("submissions-%s.pdf", assignment.ID), nil
	default:
		return nil, "", "", appErrors.Clone(appErrors.ErrBadRequest, "Invalid export format")
	}
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
