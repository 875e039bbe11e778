package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

const courseColumns = `id, title, description, created_by, lecturer_id, created_at, updated_at`

// CourseRepository handles persistence of courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// Create persists a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	const query = `INSERT INTO courses (` + courseColumns + `)
        VALUES (:id, :title, :description, :created_by, :lecturer_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return mapError("create course", err)
	}
	return nil
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, mapError("find course", err)
	}
	return &course, nil
}

// List returns a page of courses and the total count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(title) LIKE $%d", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page, size := NormalizePage(filter.Page, filter.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM courses%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`,
		courseColumns, clause, size, (page-1)*size)

	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, mapError("list courses", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM courses"+clause, args...); err != nil {
		return nil, 0, mapError("count courses", err)
	}
	return courses, total, nil
}

// Update changes the editable fields of a course, guarded by owner when set.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course, owner string) error {
	course.UpdatedAt = time.Now().UTC()
	query := `UPDATE courses SET title = $2, description = $3, lecturer_id = $4, updated_at = $5 WHERE id = $1`
	args := []interface{}{course.ID, course.Title, course.Description, course.LecturerID, course.UpdatedAt}
	if owner != "" {
		args = append(args, owner)
		query += fmt.Sprintf(" AND created_by = $%d", len(args))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("update course", err)
	}
	return requireAffected("update course", res)
}

// Delete removes a course; assignments, enrollments and submissions cascade.
func (r *CourseRepository) Delete(ctx context.Context, id, owner string) error {
	query := `DELETE FROM courses WHERE id = $1`
	args := []interface{}{id}
	if owner != "" {
		args = append(args, owner)
		query += fmt.Sprintf(" AND created_by = $%d", len(args))
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError("delete course", err)
	}
	return requireAffected("delete course", res)
}

// NormalizePage applies the default page (1) and page size (20, at most 100).
func NormalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}
	return page, size
}
