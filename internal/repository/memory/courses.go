package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
)

type courseStore struct{ s *state }

func (c *courseStore) Create(_ context.Context, course *models.Course) error {
	course.ID = newID(course.ID)
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now

	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if _, ok := c.s.courses[course.ID]; ok {
		return conflict("create course", "courses_pkey")
	}
	c.s.courses[course.ID] = *course
	return nil
}

func (c *courseStore) FindByID(_ context.Context, id string) (*models.Course, error) {
	c.s.mu.RLock()
	defer c.s.mu.RUnlock()
	course, ok := c.s.courses[id]
	if !ok {
		return nil, notFound("find course")
	}
	return &course, nil
}

func (c *courseStore) List(_ context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	search := strings.ToLower(filter.Search)

	c.s.mu.RLock()
	courses := lo.Filter(lo.Values(c.s.courses), func(course models.Course, _ int) bool {
		if filter.CreatedBy != "" && course.CreatedBy != filter.CreatedBy {
			return false
		}
		return search == "" || strings.Contains(strings.ToLower(course.Title), search)
	})
	c.s.mu.RUnlock()

	sort.Slice(courses, func(i, j int) bool {
		if !courses[i].CreatedAt.Equal(courses[j].CreatedAt) {
			return courses[i].CreatedAt.After(courses[j].CreatedAt)
		}
		return courses[i].ID < courses[j].ID
	})

	total := len(courses)
	page, size := repository.NormalizePage(filter.Page, filter.PageSize)
	start := (page - 1) * size
	if start >= total {
		return []models.Course{}, total, nil
	}
	end := start + size
	if end > total {
		end = total
	}
	return courses[start:end], total, nil
}

func (c *courseStore) Update(_ context.Context, course *models.Course, owner string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	existing, ok := c.s.courses[course.ID]
	if !ok || (owner != "" && existing.CreatedBy != owner) {
		return guardFailed("update course")
	}
	existing.Title = course.Title
	existing.Description = course.Description
	existing.LecturerID = course.LecturerID
	existing.UpdatedAt = time.Now().UTC()
	c.s.courses[course.ID] = existing
	*course = existing
	return nil
}

func (c *courseStore) Delete(_ context.Context, id, owner string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	existing, ok := c.s.courses[id]
	if !ok || (owner != "" && existing.CreatedBy != owner) {
		return guardFailed("delete course")
	}
	delete(c.s.courses, id)
	for eid, e := range c.s.enrollments {
		if e.CourseID == id {
			delete(c.s.enrollments, eid)
		}
	}
	for aid, a := range c.s.assignments {
		if a.CourseID == id {
			c.s.deleteAssignmentLocked(aid)
		}
	}
	return nil
}
