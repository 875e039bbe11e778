package models

import "time"

// CourseSummary aggregates activity for a single course.
type CourseSummary struct {
	CourseID          string    `db:"course_id" json:"course_id"`
	ActiveEnrollments int       `db:"active_enrollments" json:"active_enrollments"`
	Assignments       int       `db:"assignments" json:"assignments"`
	Submissions       int       `db:"submissions" json:"submissions"`
	GradedSubmissions int       `db:"graded_submissions" json:"graded_submissions"`
	AverageGradeRatio *float64  `db:"average_grade_ratio" json:"average_grade_ratio,omitempty"`
	GeneratedAt       time.Time `db:"-" json:"generated_at"`
}

// StudentProgress aggregates one student's standing in a course.
type StudentProgress struct {
	StudentID         string    `db:"student_id" json:"student_id"`
	CourseID          string    `db:"course_id" json:"course_id"`
	Assignments       int       `db:"assignments" json:"assignments"`
	Submitted         int       `db:"submitted" json:"submitted"`
	Graded            int       `db:"graded" json:"graded"`
	AverageGradeRatio *float64  `db:"average_grade_ratio" json:"average_grade_ratio,omitempty"`
	GeneratedAt       time.Time `db:"-" json:"generated_at"`
}

// GradebookRow is one (student, assignment) cell of a course gradebook.
type GradebookRow struct {
	StudentID       string   `db:"student_id"`
	StudentName     string   `db:"student_name"`
	AssignmentID    string   `db:"assignment_id"`
	AssignmentTitle string   `db:"assignment_title"`
	MaxGrade        float64  `db:"max_grade"`
	Grade           *float64 `db:"grade"`
}

// DispatchMetrics is a lightweight snapshot of dispatcher instrumentation.
type DispatchMetrics struct {
	ActionsTotal         uint64    `json:"actions_total"`
	ActionsFailed        uint64    `json:"actions_failed"`
	NotificationsCreated uint64    `json:"notifications_created"`
	NotificationFailures uint64    `json:"notification_failures"`
	AverageDispatchMs    float64   `json:"average_dispatch_ms"`
	Goroutines           int       `json:"goroutines"`
	GeneratedAt          time.Time `json:"generated_at"`
}
