package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campus-cloud/storage-api/internal/models"
)

// AssignmentRepository reads assignments owned by the course subsystem. The
// only write this service performs is the submission counter bump.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID fetches an assignment by id.
func (r *AssignmentRepository) FindByID(ctx context.Context, assignmentID string) (*models.Assignment, error) {
	const query = `SELECT id, course_id, instructor_id, instructor_email, title, due_date, status, allowed_content_types, max_file_size, max_submissions, submission_count
		FROM assignments WHERE id = $1`

	var a models.Assignment
	var allowed pq.StringArray
	row := r.db.QueryRowxContext(ctx, query, assignmentID)
	err := row.Scan(&a.ID, &a.CourseID, &a.InstructorID, &a.InstructorEmail, &a.Title,
		&a.DueDate, &a.Status, &allowed, &a.MaxFileSize, &a.MaxSubmissions, &a.SubmissionCount)
	if err != nil {
		return nil, err
	}
	a.AllowedContentTypes = []string(allowed)
	return &a, nil
}

// IncrementSubmissionCount bumps the aggregate counter atomically in SQL.
func (r *AssignmentRepository) IncrementSubmissionCount(ctx context.Context, assignmentID string) error {
	const query = `UPDATE assignments SET submission_count = submission_count + 1, updated_at = $1 WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), assignmentID); err != nil {
		return fmt.Errorf("increment submission count: %w", err)
	}
	return nil
}
