package memory

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

type enrollmentStore struct{ s *state }

func (e *enrollmentStore) Create(_ context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = newID(enrollment.ID)
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}

	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	for _, existing := range e.s.enrollments {
		if existing.StudentID == enrollment.StudentID && existing.CourseID == enrollment.CourseID {
			return conflict("create enrollment", "uq_enrollments_student_course")
		}
	}
	e.s.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (e *enrollmentStore) FindContext(_ context.Context, id string) (*models.EnrollmentContext, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	enrollment, ok := e.s.enrollments[id]
	if !ok {
		return nil, notFound("find enrollment")
	}
	course, ok := e.s.courses[enrollment.CourseID]
	if !ok {
		return nil, notFound("find enrollment")
	}
	return &models.EnrollmentContext{Enrollment: enrollment, CourseCreatedBy: course.CreatedBy}, nil
}

func (e *enrollmentStore) IsActive(_ context.Context, studentID, courseID string) (bool, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()
	return e.s.activeEnrollment(studentID, courseID), nil
}

func (e *enrollmentStore) List(_ context.Context, filter models.EnrollmentFilter) ([]models.Enrollment, error) {
	e.s.mu.RLock()
	enrollments := lo.Filter(lo.Values(e.s.enrollments), func(en models.Enrollment, _ int) bool {
		if filter.StudentID != "" && en.StudentID != filter.StudentID {
			return false
		}
		if filter.CourseID != "" && en.CourseID != filter.CourseID {
			return false
		}
		if filter.Status != "" && en.Status != filter.Status {
			return false
		}
		if filter.CourseOwner != "" {
			course, ok := e.s.courses[en.CourseID]
			return ok && course.CreatedBy == filter.CourseOwner
		}
		return true
	})
	e.s.mu.RUnlock()

	sort.Slice(enrollments, func(i, j int) bool {
		if !enrollments[i].EnrolledAt.Equal(enrollments[j].EnrolledAt) {
			return enrollments[i].EnrolledAt.Before(enrollments[j].EnrolledAt)
		}
		return enrollments[i].ID < enrollments[j].ID
	})
	return enrollments, nil
}

func (e *enrollmentStore) UpdateStatus(_ context.Context, id string, status models.EnrollmentStatus) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()
	enrollment, ok := e.s.enrollments[id]
	if !ok {
		return notFound("update enrollment status")
	}
	enrollment.Status = status
	e.s.enrollments[id] = enrollment
	return nil
}

func (e *enrollmentStore) ActiveStudentIDs(_ context.Context, courseID string) ([]string, error) {
	e.s.mu.RLock()
	var ids []string
	for _, en := range e.s.enrollments {
		if en.CourseID == courseID && en.Status == models.EnrollmentStatusActive {
			ids = append(ids, en.StudentID)
		}
	}
	e.s.mu.RUnlock()
	sort.Strings(ids)
	return ids, nil
}
