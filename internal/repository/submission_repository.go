package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/campus-cloud/storage-api/internal/models"
)

const submissionColumns = "id, assignment_id, student_id, student_email, student_name, file_id, file_name, file_size, submitted_at, submission_number, status, is_late, due_date, comments, grade, max_grade, feedback, feedback_file_id, graded_at, graded_by"

// ErrSubmissionLimit is returned when the conditional insert finds the
// student already at the assignment's configured maximum.
var ErrSubmissionLimit = errors.New("submission limit reached")

// ErrSequenceConflict is returned when two concurrent submissions computed
// the same sequence number; the loser may retry.
var ErrSequenceConflict = errors.New("submission sequence conflict")

// SubmissionRepository manages persistence for assignment submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs a SubmissionRepository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// CreateNext inserts a submission with sequence number count+1 in a single
// conditional statement, enforcing the per-student maximum inline. The
// unique (assignment_id, student_id, submission_number) index turns a
// sequence race into ErrSequenceConflict instead of a duplicate ordinal.
func (r *SubmissionRepository) CreateNext(ctx context.Context, sub *models.Submission, maxSubmissions int) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.SubmittedAt.IsZero() {
		sub.SubmittedAt = time.Now().UTC()
	}
	if sub.Status == "" {
		sub.Status = models.SubmissionStatusSubmitted
	}

	const query = `INSERT INTO submissions (id, assignment_id, student_id, student_email, student_name, file_id, file_name, file_size, submitted_at, submission_number, status, is_late, due_date, comments)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, COUNT(*) + 1, $10, $11, $12, $13
		FROM submissions WHERE assignment_id = $2 AND student_id = $3
		HAVING COUNT(*) < $14
		RETURNING submission_number`
	err := r.db.QueryRowxContext(ctx, query,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.StudentEmail, sub.StudentName,
		sub.FileID, sub.FileName, sub.FileSize, sub.SubmittedAt,
		sub.Status, sub.IsLate, sub.DueDate, sub.Comments,
		maxSubmissions,
	).Scan(&sub.SubmissionNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrSubmissionLimit
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrSequenceConflict
		}
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// FindByID fetches a submission by its unique id.
func (r *SubmissionRepository) FindByID(ctx context.Context, submissionID string) (*models.Submission, error) {
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE id = $1", submissionColumns)
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, submissionID); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListByAssignment returns one keyset page of an assignment's submissions,
// optionally filtered by status, newest first.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID string, status models.SubmissionStatus, limit int, token string) ([]models.Submission, string, error) {
	limit = clampLimit(limit)
	args := []interface{}{assignmentID}
	query := fmt.Sprintf("SELECT %s FROM submissions WHERE assignment_id = $1", submissionColumns)

	if status != "" {
		args = append(args, status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if cursor := decodeToken(token); cursor.ID != "" {
		args = append(args, cursor.CreatedAt, cursor.ID)
		query += fmt.Sprintf(" AND (submitted_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	query += fmt.Sprintf(" ORDER BY submitted_at DESC, id DESC LIMIT %d", limit+1)

	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, args...); err != nil {
		return nil, "", fmt.Errorf("list submissions: %w", err)
	}

	next := ""
	if len(subs) > limit {
		subs = subs[:limit]
		last := subs[len(subs)-1]
		next = encodeToken(pageCursor{CreatedAt: last.SubmittedAt, ID: last.ID})
	}
	return subs, next, nil
}

// ListAllByAssignment returns the full submission set of an assignment,
// newest first. Used by exports, which render the whole set.
func (r *SubmissionRepository) ListAllByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions
		WHERE assignment_id = $1
		ORDER BY submitted_at DESC, id DESC`, submissionColumns)
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list all submissions: %w", err)
	}
	return subs, nil
}

// ListByAssignmentAndStudent returns every attempt of one student at one
// assignment, oldest first, unpaginated.
func (r *SubmissionRepository) ListByAssignmentAndStudent(ctx context.Context, assignmentID, studentID string) ([]models.Submission, error) {
	query := fmt.Sprintf(`SELECT %s FROM submissions
		WHERE assignment_id = $1 AND student_id = $2
		ORDER BY submission_number ASC`, submissionColumns)
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, assignmentID, studentID); err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	return subs, nil
}

// Statistics aggregates the full submission set of an assignment in one
// query, independent of pagination.
func (r *SubmissionRepository) Statistics(ctx context.Context, assignmentID string) (*models.SubmissionStatistics, error) {
	const query = `SELECT
		COUNT(*) AS total,
		COUNT(*) FILTER (WHERE NOT is_late) AS on_time,
		COUNT(*) FILTER (WHERE is_late) AS late,
		COUNT(*) FILTER (WHERE status = 'graded') AS graded,
		COUNT(*) FILTER (WHERE status = 'submitted') AS pending
		FROM submissions WHERE assignment_id = $1`
	var stats models.SubmissionStatistics
	row := r.db.QueryRowxContext(ctx, query, assignmentID)
	if err := row.Scan(&stats.TotalSubmissions, &stats.OnTime, &stats.Late, &stats.Graded, &stats.Pending); err != nil {
		return nil, fmt.Errorf("submission statistics: %w", err)
	}
	return &stats, nil
}

// ApplyGrade writes the grade fields and transitions status to graded. A
// second grading overwrites the first; no history is retained.
func (r *SubmissionRepository) ApplyGrade(ctx context.Context, submissionID string, grade, maxGrade decimal.Decimal, feedback, feedbackFileID, gradedBy string, at time.Time) error {
	const query = `UPDATE submissions
		SET grade = $1, max_grade = $2, feedback = $3, feedback_file_id = $4, graded_by = $5, graded_at = $6, status = $7
		WHERE id = $8`
	res, err := r.db.ExecContext(ctx, query,
		grade, maxGrade, feedback, feedbackFileID, gradedBy, at,
		models.SubmissionStatusGraded, submissionID)
	if err != nil {
		return fmt.Errorf("apply grade: %w", err)
	}
	return requireRows(res)
}
