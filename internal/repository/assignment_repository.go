package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

const assignmentColumns = `id, course_id, title, description, due_date, max_grade, created_by, created_at, updated_at`

// AssignmentRepository handles persistence of assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create persists a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	const query = `INSERT INTO assignments (` + assignmentColumns + `)
        VALUES (:id, :course_id, :title, :description, :due_date, :max_grade, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return mapError("create assignment", err)
	}
	return nil
}

// FindContext loads an assignment and its course ownership in one statement.
func (r *AssignmentRepository) FindContext(ctx context.Context, id string) (*models.AssignmentContext, error) {
	const query = `SELECT a.id, a.course_id, a.title, a.description, a.due_date, a.max_grade, a.created_by, a.created_at, a.updated_at,
        c.created_by AS course_created_by, c.lecturer_id AS course_lecturer_id
        FROM assignments a
        JOIN courses c ON c.id = a.course_id
        WHERE a.id = $1`
	var assignment models.AssignmentContext
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		return nil, mapError("find assignment", err)
	}
	return &assignment, nil
}

// ListByCourse returns a course's assignments ordered by due date.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	const query = `SELECT ` + assignmentColumns + ` FROM assignments WHERE course_id = $1 ORDER BY due_date, id`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, mapError("list assignments", err)
	}
	return assignments, nil
}

// Update changes the editable fields of an assignment, guarded by course owner when set.
// The write also matches no row when an existing grade is above the new max grade.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment, owner string) error {
	assignment.UpdatedAt = time.Now().UTC()
	query := `UPDATE assignments a SET title = $2, description = $3, due_date = $4, max_grade = $5, updated_at = $6 WHERE a.id = $1` +
		` AND NOT EXISTS (SELECT 1 FROM submissions s WHERE s.assignment_id = a.id AND s.grade > $5)`
	args := []interface{}{assignment.ID, assignment.Title, assignment.Description, assignment.DueDate, assignment.MaxGrade, assignment.UpdatedAt}
	if owner != "" {
		args = append(args, owner)
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM courses c WHERE c.id = a.course_id AND c.created_by = $%d)", len(args))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("update assignment", err)
	}
	return requireAffected("update assignment", res)
}

// Delete removes an assignment and, by cascade, its submissions.
func (r *AssignmentRepository) Delete(ctx context.Context, id, owner string) error {
	query := `DELETE FROM assignments a WHERE a.id = $1`
	args := []interface{}{id}
	if owner != "" {
		args = append(args, owner)
		query += fmt.Sprintf(" AND EXISTS (SELECT 1 FROM courses c WHERE c.id = a.course_id AND c.created_by = $%d)", len(args))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("delete assignment", err)
	}
	return requireAffected("delete assignment", res)
}
