package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

// Owner-guarded writes take an owner argument: an empty owner skips the ownership
// condition (administrative writes), a non-empty owner must match the course's created_by.

// UserStore persists principals.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
}

// CourseStore persists courses.
type CourseStore interface {
	Create(ctx context.Context, course *models.Course) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Update(ctx context.Context, course *models.Course, owner string) error
	Delete(ctx context.Context, id, owner string) error
}

// EnrollmentStore persists enrollments.
type EnrollmentStore interface {
	Create(ctx context.Context, enrollment *models.Enrollment) error
	FindContext(ctx context.Context, id string) (*models.EnrollmentContext, error)
	IsActive(ctx context.Context, studentID, courseID string) (bool, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error
	ActiveStudentIDs(ctx context.Context, courseID string) ([]string, error)
}

// AssignmentStore persists assignments.
type AssignmentStore interface {
	Create(ctx context.Context, assignment *models.Assignment) error
	FindContext(ctx context.Context, id string) (*models.AssignmentContext, error)
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
	Update(ctx context.Context, assignment *models.Assignment, owner string) error
	Delete(ctx context.Context, id, owner string) error
}

// SubmissionStore persists submissions.
type SubmissionStore interface {
	// Create inserts only while the student holds an active enrollment in the course.
	Create(ctx context.Context, submission *models.Submission) error
	FindContext(ctx context.Context, id string) (*models.SubmissionContext, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error)
	// UpdateContent applies only to ungraded rows; a non-empty studentID must own the row.
	UpdateContent(ctx context.Context, id, studentID, content string, fileURL *string) error
	Grade(ctx context.Context, update models.GradeUpdate, owner string) error
	Delete(ctx context.Context, id string) error
}

// NotificationStore persists notifications.
type NotificationStore interface {
	// Insert writes rows, skipping any (user_id, event_key) already present, and returns
	// the number written.
	Insert(ctx context.Context, notifications []models.Notification) (int, error)
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	List(ctx context.Context, filter models.NotificationFilter) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

// AnalyticsStore serves read-only aggregates.
type AnalyticsStore interface {
	CourseSummary(ctx context.Context, courseID string) (*models.CourseSummary, error)
	StudentProgress(ctx context.Context, studentID, courseID string) (*models.StudentProgress, error)
	Gradebook(ctx context.Context, courseID string) ([]models.GradebookRow, error)
}

// Store groups the entity stores behind one handle.
type Store struct {
	Users         UserStore
	Courses       CourseStore
	Enrollments   EnrollmentStore
	Assignments   AssignmentStore
	Submissions   SubmissionStore
	Notifications NotificationStore
	Analytics     AnalyticsStore
}

// NewPostgresStore wires the sqlx-backed repositories.
func NewPostgresStore(db *sqlx.DB) *Store {
	return &Store{
		Users:         NewUserRepository(db),
		Courses:       NewCourseRepository(db),
		Enrollments:   NewEnrollmentRepository(db),
		Assignments:   NewAssignmentRepository(db),
		Submissions:   NewSubmissionRepository(db),
		Notifications: NewNotificationRepository(db),
		Analytics:     NewAnalyticsRepository(db),
	}
}
