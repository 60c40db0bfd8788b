package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubmissionStatus tracks the grading state of a submission.
type SubmissionStatus string

const (
	SubmissionStatusSubmitted SubmissionStatus = "submitted"
	SubmissionStatusGraded    SubmissionStatus = "graded"
)

const (
	// SubmissionCommentsMaxLen bounds student comments at submit time.
	SubmissionCommentsMaxLen = 1000
	// GradeFeedbackMaxLen bounds instructor feedback at grading time.
	GradeFeedbackMaxLen = 2000
)

// Submission is one student's attempt at an assignment. Grade values are
// exact decimals so serialization never drifts from what the grader typed.
type Submission struct {
	ID               string           `db:"id" json:"submissionId"`
	AssignmentID     string           `db:"assignment_id" json:"assignmentId"`
	StudentID        string           `db:"student_id" json:"studentId"`
	StudentEmail     string           `db:"student_email" json:"studentEmail"`
	StudentName      string           `db:"student_name" json:"studentName"`
	FileID           string           `db:"file_id" json:"fileId"`
	FileName         string           `db:"file_name" json:"fileName"`
	FileSize         int64            `db:"file_size" json:"fileSize"`
	SubmittedAt      time.Time        `db:"submitted_at" json:"submittedAt"`
	SubmissionNumber int              `db:"submission_number" json:"submissionNumber"`
	Status           SubmissionStatus `db:"status" json:"status"`
	IsLate           bool             `db:"is_late" json:"isLate"`
	DueDate          time.Time        `db:"due_date" json:"dueDate"`
	Comments         string           `db:"comments" json:"comments,omitempty"`
	Grade            *decimal.Decimal `db:"grade" json:"grade,omitempty"`
	MaxGrade         *decimal.Decimal `db:"max_grade" json:"maxGrade,omitempty"`
	Feedback         string           `db:"feedback" json:"feedback,omitempty"`
	FeedbackFileID   string           `db:"feedback_file_id" json:"feedbackFileId,omitempty"`
	GradedAt         *time.Time       `db:"graded_at" json:"gradedAt,omitempty"`
	GradedBy         string           `db:"graded_by" json:"gradedBy,omitempty"`
}

// SubmitRequest is the payload for submitting a file to an assignment.
type SubmitRequest struct {
	FileID   string `json:"fileId" validate:"required"`
	Comments string `json:"comments,omitempty"`
}

// GradeRequest is the payload for grading one submission. Grade is a pointer
// so a body that omits it is distinguishable from an explicit zero.
type GradeRequest struct {
	Grade          *decimal.Decimal `json:"grade"`
	MaxGrade       *decimal.Decimal `json:"maxGrade,omitempty"`
	Feedback       string           `json:"feedback,omitempty"`
	FeedbackFileID string           `json:"feedbackFileId,omitempty"`
}

// SubmissionStatistics aggregates the whole submission set of an assignment,
// independent of any returned page.
type SubmissionStatistics struct {
	TotalSubmissions int `json:"totalSubmissions" redis:"totalSubmissions"`
	OnTime           int `json:"onTime" redis:"onTime"`
	Late             int `json:"late" redis:"late"`
	Graded           int `json:"graded" redis:"graded"`
	Pending          int `json:"pending" redis:"pending"`
}

// ListSubmissionsRequest captures the instructor listing query parameters.
type ListSubmissionsRequest struct {
	Status    string `form:"status"`
	Limit     int    `form:"limit"`
	NextToken string `form:"nextToken"`
}

// ListSubmissionsResponse is the instructor-facing paginated listing.
type ListSubmissionsResponse struct {
	AssignmentID string               `json:"assignmentId"`
	Submissions  []Submission         `json:"submissions"`
	Statistics   SubmissionStatistics `json:"statistics"`
	NextToken    string               `json:"nextToken,omitempty"`
}

// MySubmissionsResponse lists one student's own attempts, unpaginated.
type MySubmissionsResponse struct {
	AssignmentID string       `json:"assignmentId"`
	Submissions  []Submission `json:"submissions"`
	Total        int          `json:"total"`
}
