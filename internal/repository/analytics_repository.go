package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

// AnalyticsRepository exposes read-optimised queries for course analytics.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// CourseSummary aggregates enrollments, assignments and grading for a course.
func (r *AnalyticsRepository) CourseSummary(ctx context.Context, courseID string) (*models.CourseSummary, error) {
	const query = `SELECT c.id AS course_id,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.status = 'active') AS active_enrollments,
        (SELECT COUNT(*) FROM assignments a WHERE a.course_id = c.id) AS assignments,
        (SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id WHERE a.course_id = c.id) AS submissions,
        (SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id
            WHERE a.course_id = c.id AND s.grade IS NOT NULL) AS graded_submissions,
        (SELECT AVG(s.grade / a.max_grade)::float8 FROM submissions s JOIN assignments a ON a.id = s.assignment_id
            WHERE a.course_id = c.id AND s.grade IS NOT NULL) AS average_grade_ratio
        FROM courses c
        WHERE c.id = $1`
	var summary models.CourseSummary
	if err := r.db.GetContext(ctx, &summary, query, courseID); err != nil {
		return nil, mapError("query course summary", err)
	}
	return &summary, nil
}

// StudentProgress aggregates one student's submissions within a course.
func (r *AnalyticsRepository) StudentProgress(ctx context.Context, studentID, courseID string) (*models.StudentProgress, error) {
	const query = `SELECT $1::text AS student_id, c.id AS course_id,
        (SELECT COUNT(*) FROM assignments a WHERE a.course_id = c.id) AS assignments,
        (SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id
            WHERE a.course_id = c.id AND s.student_id = $1) AS submitted,
        (SELECT COUNT(*) FROM submissions s JOIN assignments a ON a.id = s.assignment_id
            WHERE a.course_id = c.id AND s.student_id = $1 AND s.grade IS NOT NULL) AS graded,
        (SELECT AVG(s.grade / a.max_grade)::float8 FROM submissions s JOIN assignments a ON a.id = s.assignment_id
            WHERE a.course_id = c.id AND s.student_id = $1 AND s.grade IS NOT NULL) AS average_grade_ratio
        FROM courses c
        WHERE c.id = $2`
	var progress models.StudentProgress
	if err := r.db.GetContext(ctx, &progress, query, studentID, courseID); err != nil {
		return nil, mapError("query student progress", err)
	}
	return &progress, nil
}

// Gradebook returns one row per actively enrolled student and assignment.
func (r *AnalyticsRepository) Gradebook(ctx context.Context, courseID string) ([]models.GradebookRow, error) {
	const query = `SELECT u.id AS student_id, u.full_name AS student_name,
        a.id AS assignment_id, a.title AS assignment_title, a.max_grade, s.grade
        FROM enrollments e
        JOIN users u ON u.id = e.student_id
        JOIN assignments a ON a.course_id = e.course_id
        LEFT JOIN submissions s ON s.assignment_id = a.id AND s.student_id = e.student_id
        WHERE e.course_id = $1 AND e.status = 'active'
        ORDER BY u.full_name, u.id, a.due_date, a.id`
	var rows []models.GradebookRow
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, mapError("query gradebook", err)
	}
	return rows, nil
}
