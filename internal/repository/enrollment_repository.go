package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Create persists a new enrollment record. A second row for the same student and course
// fails with ErrConflict.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, status)
        VALUES (:id, :student_id, :course_id, :enrolled_at, :status)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return mapError("create enrollment", err)
	}
	return nil
}

// FindContext returns an enrollment together with its course's creator.
func (r *EnrollmentRepository) FindContext(ctx context.Context, id string) (*models.EnrollmentContext, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.status, c.created_by AS course_created_by
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        WHERE e.id = $1`
	var enrollment models.EnrollmentContext
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		return nil, mapError("find enrollment", err)
	}
	return &enrollment, nil
}

// IsActive reports whether the student holds an active enrollment in the course.
func (r *EnrollmentRepository) IsActive(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2 AND status = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID, models.EnrollmentStatusActive); err != nil {
		return false, mapError("check active enrollment", err)
	}
	return exists, nil
}

// List returns enrollments filtered by the provided criteria.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	var builder strings.Builder
	builder.WriteString(`SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.status FROM enrollments e`)
	var conditions []string
	var args []interface{}

	if filter.CourseOwner != "" {
		builder.WriteString(" JOIN courses c ON c.id = e.course_id")
		args = append(args, filter.CourseOwner)
		conditions = append(conditions, fmt.Sprintf("c.created_by = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)))
	}
	if filter.CourseID != "" {
		args = append(args, filter.CourseID)
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("e.status = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY e.enrolled_at, e.id")

	var enrollments []models.Enrollment
	if err := r.db.SelectContext(ctx, &enrollments, builder.String(), args...); err != nil {
		return nil, mapError("list enrollments", err)
	}
	return enrollments, nil
}

// UpdateStatus updates the status of an enrollment.
func (r *EnrollmentRepository) UpdateStatus(ctx context.Context, id string, status models.EnrollmentStatus) error {
	const query = `UPDATE enrollments SET status = $2 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return mapError("update enrollment status", err)
	}
	if err := requireAffected("update enrollment status", res); errors.Is(err, ErrGuardFailed) {
		return fmt.Errorf("update enrollment status: %w", ErrNotFound)
	} else if err != nil {
		return err
	}
	return nil
}

// ActiveStudentIDs lists the students actively enrolled in a course.
func (r *EnrollmentRepository) ActiveStudentIDs(ctx context.Context, courseID string) ([]string, error) {
	const query = `SELECT student_id FROM enrollments WHERE course_id = $1 AND status = $2 ORDER BY student_id`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, courseID, models.EnrollmentStatusActive); err != nil {
		return nil, mapError("list active students", err)
	}
	return ids, nil
}
