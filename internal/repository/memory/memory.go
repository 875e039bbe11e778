// Package memory is an in-process implementation of the repository stores with the same
// uniqueness, guard and cascade rules as the PostgreSQL schema. The mutex is held only for
// map work, never across calls out of the package.
package memory

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
)

type state struct {
	mu            sync.RWMutex
	users         map[string]models.User
	courses       map[string]models.Course
	enrollments   map[string]models.Enrollment
	assignments   map[string]models.Assignment
	submissions   map[string]models.Submission
	notifications map[string]models.Notification
}

// New returns an empty store.
func New() *repository.Store {
	s := &state{
		users:         map[string]models.User{},
		courses:       map[string]models.Course{},
		enrollments:   map[string]models.Enrollment{},
		assignments:   map[string]models.Assignment{},
		submissions:   map[string]models.Submission{},
		notifications: map[string]models.Notification{},
	}
	return &repository.Store{
		Users:         &userStore{s},
		Courses:       &courseStore{s},
		Enrollments:   &enrollmentStore{s},
		Assignments:   &assignmentStore{s},
		Submissions:   &submissionStore{s},
		Notifications: &notificationStore{s},
		Analytics:     &analyticsStore{s},
	}
}

func newID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

func notFound(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrNotFound)
}

func conflict(op, constraint string) error {
	return fmt.Errorf("%s: %w (%s)", op, repository.ErrConflict, constraint)
}

func guardFailed(op string) error {
	return fmt.Errorf("%s: %w", op, repository.ErrGuardFailed)
}

// Callers must hold s.mu.
func (s *state) activeEnrollment(studentID, courseID string) bool {
	for _, e := range s.enrollments {
		if e.StudentID == studentID && e.CourseID == courseID && e.Status == models.EnrollmentStatusActive {
			return true
		}
	}
	return false
}

func (s *state) courseOfAssignment(assignmentID string) (models.Course, bool) {
	a, ok := s.assignments[assignmentID]
	if !ok {
		return models.Course{}, false
	}
	c, ok := s.courses[a.CourseID]
	return c, ok
}

func (s *state) deleteAssignmentLocked(id string) {
	delete(s.assignments, id)
	for sid, sub := range s.submissions {
		if sub.AssignmentID == id {
			delete(s.submissions, sid)
		}
	}
}
