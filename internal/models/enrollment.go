package models

import "time"

// EnrollmentStatus represents the lifecycle of an enrollment.
type EnrollmentStatus string

// Possible enrollment statuses.
const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusWithdrawn EnrollmentStatus = "withdrawn"
)

// Valid reports whether s is a known status.
func (s EnrollmentStatus) Valid() bool {
	return s == EnrollmentStatusActive || s == EnrollmentStatusWithdrawn
}

// Enrollment registers a student in a course. (student_id, course_id) is unique.
type Enrollment struct {
	ID         string           `db:"id" json:"id"`
	StudentID  string           `db:"student_id" json:"student_id"`
	CourseID   string           `db:"course_id" json:"course_id"`
	EnrolledAt time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Status     EnrollmentStatus `db:"status" json:"status"`
}

// EnrollmentFilter provides filters for listing enrollments. CourseOwner restricts the
// listing to courses created by that principal.
type EnrollmentFilter struct {
	StudentID   string
	CourseID    string
	CourseOwner string
	Status      EnrollmentStatus
}

// EnrollmentContext is an enrollment joined with the creator of its course.
type EnrollmentContext struct {
	Enrollment
	CourseCreatedBy string `db:"course_created_by" json:"-"`
}
