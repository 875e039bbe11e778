package dto

import (
	"encoding/json"
	"time"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

// ActionRequest is the envelope accepted by POST /actions.
type ActionRequest struct {
	Service string          `json:"service" binding:"required"`
	Action  string          `json:"action" binding:"required"`
	Data    json.RawMessage `json:"data" swaggertype:"object"`
}

// CreateCourseRequest creates a course. Admins must name the owning lecturer; lecturers
// own the courses they create.
type CreateCourseRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	LecturerID  string  `json:"lecturer_id" validate:"omitempty"`
}

// CourseIDRequest addresses one course.
type CourseIDRequest struct {
	ID string `json:"id" validate:"required"`
}

// ListCoursesRequest pages through courses. Mine restricts to courses the caller created.
type ListCoursesRequest struct {
	Mine     bool   `json:"mine"`
	Search   string `json:"search" validate:"omitempty,max=200"`
	Page     int    `json:"page" validate:"omitempty,min=1"`
	PageSize int    `json:"page_size" validate:"omitempty,min=1,max=100"`
}

// UpdateCourseRequest patches a course; nil fields are left unchanged.
type UpdateCourseRequest struct {
	ID          string  `json:"id" validate:"required"`
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// CreateEnrollmentRequest enrolls a student. StudentID defaults to the caller.
type CreateEnrollmentRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	StudentID string `json:"student_id"`
}

// ListEnrollmentsRequest filters enrollments within the caller's visible scope.
type ListEnrollmentsRequest struct {
	CourseID  string                  `json:"course_id"`
	StudentID string                  `json:"student_id"`
	Status    models.EnrollmentStatus `json:"status" validate:"omitempty,oneof=active withdrawn"`
}

// UpdateEnrollmentStatusRequest activates or withdraws an enrollment.
type UpdateEnrollmentStatusRequest struct {
	ID     string                  `json:"id" validate:"required"`
	Status models.EnrollmentStatus `json:"status" validate:"required,oneof=active withdrawn"`
}

// CreateAssignmentRequest posts an assignment to a course.
type CreateAssignmentRequest struct {
	CourseID    string    `json:"course_id" validate:"required"`
	Title       string    `json:"title" validate:"required,max=200"`
	Description *string   `json:"description" validate:"omitempty,max=5000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	MaxGrade    float64   `json:"max_grade" validate:"required,gt=0"`
}

// AssignmentIDRequest addresses one assignment.
type AssignmentIDRequest struct {
	ID string `json:"id" validate:"required"`
}

// ListAssignmentsRequest lists the assignments of a course.
type ListAssignmentsRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// UpdateAssignmentRequest patches an assignment; nil fields are left unchanged.
type UpdateAssignmentRequest struct {
	ID          string     `json:"id" validate:"required"`
	Title       *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string    `json:"description" validate:"omitempty,max=5000"`
	DueDate     *time.Time `json:"due_date"`
	MaxGrade    *float64   `json:"max_grade" validate:"omitempty,gt=0"`
}

// CreateSubmissionRequest submits work for an assignment. StudentID defaults to the caller.
type CreateSubmissionRequest struct {
	AssignmentID string  `json:"assignment_id" validate:"required"`
	StudentID    string  `json:"student_id"`
	Content      string  `json:"content" validate:"required"`
	FileURL      *string `json:"file_url" validate:"omitempty,url"`
}

// SubmissionIDRequest addresses one submission.
type SubmissionIDRequest struct {
	ID string `json:"id" validate:"required"`
}

// ListSubmissionsRequest filters submissions within the caller's visible scope.
type ListSubmissionsRequest struct {
	AssignmentID string `json:"assignment_id"`
	StudentID    string `json:"student_id"`
}

// UpdateSubmissionRequest replaces the content of an ungraded submission.
type UpdateSubmissionRequest struct {
	ID      string  `json:"id" validate:"required"`
	Content string  `json:"content" validate:"required"`
	FileURL *string `json:"file_url" validate:"omitempty,url"`
}

// GradeSubmissionRequest grades or regrades a submission.
type GradeSubmissionRequest struct {
	SubmissionID string   `json:"submission_id" validate:"required"`
	Grade        *float64 `json:"grade" validate:"required,gte=0"`
	Feedback     *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// CourseSummaryRequest asks for the aggregates of one course.
type CourseSummaryRequest struct {
	CourseID string `json:"course_id" validate:"required"`
}

// StudentProgressRequest asks for one student's standing. StudentID defaults to the caller.
type StudentProgressRequest struct {
	CourseID  string `json:"course_id" validate:"required"`
	StudentID string `json:"student_id"`
}

// ExportGradebookRequest renders a course gradebook.
type ExportGradebookRequest struct {
	CourseID string `json:"course_id" validate:"required"`
	Format   string `json:"format" validate:"required,oneof=csv pdf"`
}

// ListNotificationsRequest lists the caller's notifications.
type ListNotificationsRequest struct {
	UnreadOnly bool `json:"unread_only"`
	Limit      int  `json:"limit" validate:"omitempty,min=1,max=200"`
}

// NotificationIDRequest addresses one notification.
type NotificationIDRequest struct {
	ID string `json:"id" validate:"required"`
}

// MarkAllReadRequest carries no fields; the caller's notifications are marked.
type MarkAllReadRequest struct{}

// MarkAllReadResponse reports how many notifications changed.
type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
