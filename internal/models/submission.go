package models

import "time"

// Submission is a student's answer to an assignment. Grade, GradedAt and GradedBy are
// always set together.
type Submission struct {
	ID           string     `db:"id" json:"id"`
	AssignmentID string     `db:"assignment_id" json:"assignment_id"`
	StudentID    string     `db:"student_id" json:"student_id"`
	Content      string     `db:"content" json:"content"`
	FileURL      *string    `db:"file_url" json:"file_url,omitempty"`
	SubmittedAt  time.Time  `db:"submitted_at" json:"submitted_at"`
	Grade        *float64   `db:"grade" json:"grade,omitempty"`
	Feedback     *string    `db:"feedback" json:"feedback,omitempty"`
	GradedAt     *time.Time `db:"graded_at" json:"graded_at,omitempty"`
	GradedBy     *string    `db:"graded_by" json:"graded_by,omitempty"`
}

// Graded reports whether the submission has been graded.
func (s Submission) Graded() bool {
	return s.Grade != nil
}

// SubmissionContext is a submission joined along the ownership chain.
type SubmissionContext struct {
	Submission
	CourseID         string  `db:"course_id" json:"-"`
	MaxGrade         float64 `db:"max_grade" json:"-"`
	AssignmentTitle  string  `db:"assignment_title" json:"-"`
	CourseCreatedBy  string  `db:"course_created_by" json:"-"`
	CourseLecturerID string  `db:"course_lecturer_id" json:"-"`
}

// SubmissionFilter narrows submission listings. CourseOwner restricts to courses created
// by that principal.
type SubmissionFilter struct {
	AssignmentID string
	StudentID    string
	CourseOwner  string
}

// GradeUpdate is applied atomically: grade, feedback, graded_at and graded_by together.
type GradeUpdate struct {
	SubmissionID string
	Grade        float64
	Feedback     *string
	GradedBy     string
	GradedAt     time.Time
}
