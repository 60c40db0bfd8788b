package models

import "time"

// AssignmentStatus tracks whether an assignment accepts submissions.
type AssignmentStatus string

const (
	AssignmentStatusActive AssignmentStatus = "active"
	AssignmentStatusClosed AssignmentStatus = "closed"
)

// Assignment is course work students submit files against. It is owned by
// the course subsystem; this service reads it and bumps its submission
// counter only.
type Assignment struct {
	ID                  string           `db:"id" json:"assignmentId"`
	CourseID            string           `db:"course_id" json:"courseId"`
	InstructorID        string           `db:"instructor_id" json:"instructorId"`
	InstructorEmail     string           `db:"instructor_email" json:"instructorEmail"`
	Title               string           `db:"title" json:"title"`
	DueDate             time.Time        `db:"due_date" json:"dueDate"`
	Status              AssignmentStatus `db:"status" json:"status"`
	AllowedContentTypes []string         `db:"-" json:"allowedContentTypes,omitempty"`
	MaxFileSize         int64            `db:"max_file_size" json:"maxFileSize,omitempty"`
	MaxSubmissions      int              `db:"max_submissions" json:"maxSubmissions"`
	SubmissionCount     int64            `db:"submission_count" json:"submissionCount"`
}
