package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-cloud/storage-api/internal/models"
)

func TestSubmissionRepositoryCreateNext(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery("INSERT INTO submissions").
		WillReturnRows(sqlmock.NewRows([]string{"submission_number"}).AddRow(2))

	sub := &models.Submission{
		AssignmentID: "a-1",
		StudentID:    "u-student",
		StudentEmail: "student@campus.edu",
		FileID:       "f-1",
		FileName:     "essay.pdf",
		FileSize:     1024,
		DueDate:      time.Now().Add(time.Hour),
	}
	err := repo.CreateNext(context.Background(), sub, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, sub.SubmissionNumber)
	assert.NotEmpty(t, sub.ID)
	assert.Equal(t, models.SubmissionStatusSubmitted, sub.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreateNextLimitReached(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery("INSERT INTO submissions").
		WillReturnRows(sqlmock.NewRows([]string{"submission_number"}))

	err := repo.CreateNext(context.Background(), &models.Submission{
		AssignmentID: "a-1",
		StudentID:    "u-student",
		FileID:       "f-1",
	}, 3)
	assert.ErrorIs(t, err, ErrSubmissionLimit)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreateNextSequenceRace(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectQuery("INSERT INTO submissions").
		WillReturnError(&pq.Error{Code: "23505"})

	err := repo.CreateNext(context.Background(), &models.Submission{
		AssignmentID: "a-1",
		StudentID:    "u-student",
		FileID:       "f-1",
	}, 3)
	assert.ErrorIs(t, err, ErrSequenceConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryStatistics(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	rows := sqlmock.NewRows([]string{"total", "on_time", "late", "graded", "pending"}).
		AddRow(10, 7, 3, 4, 6)
	mock.ExpectQuery("SELECT").WithArgs("a-1").WillReturnRows(rows)

	stats, err := repo.Statistics(context.Background(), "a-1")
	require.NoError(t, err)
	assert.Equal(t, 10, stats.TotalSubmissions)
	assert.Equal(t, 7, stats.OnTime)
	assert.Equal(t, 3, stats.Late)
	assert.Equal(t, 4, stats.Graded)
	assert.Equal(t, 6, stats.Pending)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApplyGrade(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)
	at := time.Now().UTC()

	grade := decimal.RequireFromString("87.5")
	maxGrade := decimal.NewFromInt(100)

	mock.ExpectExec("UPDATE submissions").
		WithArgs(grade, maxGrade, "well done", "", "u-prof", at, "graded", "sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyGrade(context.Background(), "sub-1", grade, maxGrade, "well done", "", "u-prof", at)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryApplyGradeMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("UPDATE submissions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyGrade(context.Background(), "sub-missing",
		decimal.NewFromInt(50), decimal.NewFromInt(100), "", "", "u-prof", time.Now().UTC())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListByAssignmentStatusFilter(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "assignment_id", "student_id", "student_email", "student_name", "file_id", "file_name", "file_size", "submitted_at", "submission_number", "status", "is_late", "due_date", "comments", "grade", "max_grade", "feedback", "feedback_file_id", "graded_at", "graded_by"}).
		AddRow("sub-1", "a-1", "u-s1", "s1@campus.edu", "Student One", "f-1", "essay.pdf", 2048, now, 1, "submitted", false, now.Add(time.Hour), "", nil, nil, "", "", nil, "")
	mock.ExpectQuery("SELECT .+ FROM submissions").
		WithArgs("a-1", "submitted").
		WillReturnRows(rows)

	subs, next, err := repo.ListByAssignment(context.Background(), "a-1", models.SubmissionStatusSubmitted, 20, "")
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Empty(t, next)
	assert.Nil(t, subs[0].Grade)
	assert.NoError(t, mock.ExpectationsWereMet())
}
