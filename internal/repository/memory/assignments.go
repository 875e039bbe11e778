package memory

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

type assignmentStore struct{ s *state }

func (a *assignmentStore) Create(_ context.Context, assignment *models.Assignment) error {
	assignment.ID = newID(assignment.ID)
	now := time.Now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	if _, ok := a.s.assignments[assignment.ID]; ok {
		return conflict("create assignment", "assignments_pkey")
	}
	if _, ok := a.s.courses[assignment.CourseID]; !ok {
		return notFound("create assignment")
	}
	a.s.assignments[assignment.ID] = *assignment
	return nil
}

func (a *assignmentStore) FindContext(_ context.Context, id string) (*models.AssignmentContext, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	assignment, ok := a.s.assignments[id]
	if !ok {
		return nil, notFound("find assignment")
	}
	course, ok := a.s.courses[assignment.CourseID]
	if !ok {
		return nil, notFound("find assignment")
	}
	return &models.AssignmentContext{
		Assignment:       assignment,
		CourseCreatedBy:  course.CreatedBy,
		CourseLecturerID: course.LecturerID,
	}, nil
}

func (a *assignmentStore) ListByCourse(_ context.Context, courseID string) ([]models.Assignment, error) {
	a.s.mu.RLock()
	var assignments []models.Assignment
	for _, assignment := range a.s.assignments {
		if assignment.CourseID == courseID {
			assignments = append(assignments, assignment)
		}
	}
	a.s.mu.RUnlock()

	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].DueDate.Equal(assignments[j].DueDate) {
			return assignments[i].DueDate.Before(assignments[j].DueDate)
		}
		return assignments[i].ID < assignments[j].ID
	})
	return assignments, nil
}

func (a *assignmentStore) Update(_ context.Context, assignment *models.Assignment, owner string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	existing, ok := a.s.assignments[assignment.ID]
	if !ok {
		return guardFailed("update assignment")
	}
	if course, ok := a.s.courses[existing.CourseID]; !ok || (owner != "" && course.CreatedBy != owner) {
		return guardFailed("update assignment")
	}
	for _, sub := range a.s.submissions {
		if sub.AssignmentID == existing.ID && sub.Grade != nil && *sub.Grade > assignment.MaxGrade {
			return guardFailed("update assignment")
		}
	}
	existing.Title = assignment.Title
	existing.Description = assignment.Description
	existing.DueDate = assignment.DueDate
	existing.MaxGrade = assignment.MaxGrade
	existing.UpdatedAt = time.Now().UTC()
	a.s.assignments[existing.ID] = existing
	*assignment = existing
	return nil
}

func (a *assignmentStore) Delete(_ context.Context, id, owner string) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	existing, ok := a.s.assignments[id]
	if !ok {
		return guardFailed("delete assignment")
	}
	if course, ok := a.s.courses[existing.CourseID]; !ok || (owner != "" && course.CreatedBy != owner) {
		return guardFailed("delete assignment")
	}
	a.s.deleteAssignmentLocked(id)
	return nil
}
