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

const submissionColumns = `s.id, s.assignment_id, s.student_id, s.content, s.file_url, s.submitted_at, s.grade, s.feedback, s.graded_at, s.graded_by`

// SubmissionRepository handles persistence of submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// Create inserts a submission only while the student is actively enrolled in the
// assignment's course. A second submission for the same assignment fails with ErrConflict.
func (r *SubmissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}

	const query = `INSERT INTO submissions (id, assignment_id, student_id, content, file_url, submitted_at)
        SELECT $1, $2, $3, $4, $5, $6
        WHERE EXISTS (
            SELECT 1 FROM assignments a
            JOIN enrollments e ON e.course_id = a.course_id
            WHERE a.id = $2 AND e.student_id = $3 AND e.status = $7
        )`
	res, err := r.db.ExecContext(ctx, query,
		submission.ID,
		submission.AssignmentID,
		submission.StudentID,
		submission.Content,
		submission.FileURL,
		submission.SubmittedAt,
		models.EnrollmentStatusActive,
	)
	if err != nil {
		return mapError("create submission", err)
	}
	return requireAffected("create submission", res)
}

// FindContext loads a submission along the ownership chain in one statement.
func (r *SubmissionRepository) FindContext(ctx context.Context, id string) (*models.SubmissionContext, error) {
	const query = `SELECT ` + submissionColumns + `,
        a.course_id, a.max_grade, a.title AS assignment_title,
        c.created_by AS course_created_by, c.lecturer_id AS course_lecturer_id
        FROM submissions s
        JOIN assignments a ON a.id = s.assignment_id
        JOIN courses c ON c.id = a.course_id
        WHERE s.id = $1`
	var submission models.SubmissionContext
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		return nil, mapError("find submission", err)
	}
	return &submission, nil
}

// List returns submissions filtered by the provided criteria.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	var builder strings.Builder
	builder.WriteString("SELECT " + submissionColumns + " FROM submissions s")
	var conditions []string
	var args []interface{}

	if filter.CourseOwner != "" {
		builder.WriteString(" JOIN assignments a ON a.id = s.assignment_id JOIN courses c ON c.id = a.course_id")
		args = append(args, filter.CourseOwner)
		conditions = append(conditions, fmt.Sprintf("c.created_by = $%d", len(args)))
	}
	if filter.AssignmentID != "" {
		args = append(args, filter.AssignmentID)
		conditions = append(conditions, fmt.Sprintf("s.assignment_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("s.student_id = $%d", len(args)))
	}
	if len(conditions) > 0 {
		builder.WriteString(" WHERE " + strings.Join(conditions, " AND "))
	}
	builder.WriteString(" ORDER BY s.submitted_at, s.id")

	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, builder.String(), args...); err != nil {
		return nil, mapError("list submissions", err)
	}
	return submissions, nil
}

// UpdateContent edits an ungraded submission. A non-empty studentID must own the row.
func (r *SubmissionRepository) UpdateContent(ctx context.Context, id, studentID, content string, fileURL *string) error {
	query := `UPDATE submissions SET content = $2, file_url = $3 WHERE id = $1 AND grade IS NULL`
	args := []interface{}{id, content, fileURL}
	if studentID != "" {
		args = append(args, studentID)
		query += fmt.Sprintf(" AND student_id = $%d", len(args))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("update submission", err)
	}
	return requireAffected("update submission", res)
}

// Grade sets grade, feedback, graded_at and graded_by in a single statement, guarded by
// the owning course's creator when owner is set.
func (r *SubmissionRepository) Grade(ctx context.Context, update models.GradeUpdate, owner string) error {
	if update.GradedAt.IsZero() {
		update.GradedAt = time.Now().UTC()
	}
	query := `UPDATE submissions s SET grade = $2, feedback = $3, graded_at = $4, graded_by = $5
        FROM assignments a
        JOIN courses c ON c.id = a.course_id
        WHERE s.id = $1 AND a.id = s.assignment_id AND $2 <= a.max_grade`
	args := []interface{}{update.SubmissionID, update.Grade, update.Feedback, update.GradedAt, update.GradedBy}
	if owner != "" {
		args = append(args, owner)
		query += fmt.Sprintf(" AND c.created_by = $%d", len(args))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("grade submission", err)
	}
	return requireAffected("grade submission", res)
}

// Delete removes a submission.
func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM submissions WHERE id = $1`, id)
	if err != nil {
		return mapError("delete submission", err)
	}
	if err := requireAffected("delete submission", res); errors.Is(err, ErrGuardFailed) {
		return fmt.Errorf("delete submission: %w", ErrNotFound)
	} else if err != nil {
		return err
	}
	return nil
}
