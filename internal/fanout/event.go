// Package fanout turns successful mutations into notification rows: one row per distinct
// recipient per triggering event, identified by a deterministic event key.
package fanout

import (
	"fmt"
	"time"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

// Event describes a mutation that produces notifications. It is also the Kafka message body.
type Event struct {
	Type            models.NotificationType `json:"type"`
	Key             string                  `json:"event_key"`
	CourseID        string                  `json:"course_id"`
	AssignmentID    string                  `json:"assignment_id"`
	AssignmentTitle string                  `json:"assignment_title"`
	SubmissionID    string                  `json:"submission_id,omitempty"`
	StudentID       string                  `json:"student_id,omitempty"`
	LecturerID      string                  `json:"lecturer_id,omitempty"`
	ActorID         string                  `json:"actor_id"`
	OccurredAt      time.Time               `json:"occurred_at"`
}

// AssignmentCreated builds the event for a new assignment in a course.
func AssignmentCreated(a models.Assignment, actorID string) Event {
	return Event{
		Type:            models.NotificationAssignmentCreated,
		Key:             fmt.Sprintf("assignment.created:%s", a.ID),
		CourseID:        a.CourseID,
		AssignmentID:    a.ID,
		AssignmentTitle: a.Title,
		ActorID:         actorID,
		OccurredAt:      a.CreatedAt,
	}
}

// SubmissionCreated builds the event for a new submission. The course lecturer is notified.
func SubmissionCreated(s models.SubmissionContext, actorID string) Event {
	return Event{
		Type:            models.NotificationSubmissionCreated,
		Key:             fmt.Sprintf("submission.created:%s", s.ID),
		CourseID:        s.CourseID,
		AssignmentID:    s.AssignmentID,
		AssignmentTitle: s.AssignmentTitle,
		SubmissionID:    s.ID,
		StudentID:       s.StudentID,
		LecturerID:      s.CourseLecturerID,
		ActorID:         actorID,
		OccurredAt:      s.SubmittedAt,
	}
}

// SubmissionGraded builds the event for a grading. Each regrade carries its own graded_at
// and so its own key.
func SubmissionGraded(s models.SubmissionContext, gradedAt time.Time, actorID string) Event {
	return Event{
		Type:            models.NotificationSubmissionGraded,
		Key:             fmt.Sprintf("submission.graded:%s:%d", s.ID, gradedAt.UnixNano()),
		CourseID:        s.CourseID,
		AssignmentID:    s.AssignmentID,
		AssignmentTitle: s.AssignmentTitle,
		SubmissionID:    s.ID,
		StudentID:       s.StudentID,
		ActorID:         actorID,
		OccurredAt:      gradedAt,
	}
}

func (e Event) content() (title, message string) {
	switch e.Type {
	case models.NotificationAssignmentCreated:
		return "New assignment", fmt.Sprintf("Assignment %q was posted", e.AssignmentTitle)
	case models.NotificationSubmissionCreated:
		return "New submission", fmt.Sprintf("A submission for %q is ready for grading", e.AssignmentTitle)
	case models.NotificationSubmissionGraded:
		return "Submission graded", fmt.Sprintf("Your submission for %q was graded", e.AssignmentTitle)
	}
	return string(e.Type), ""
}
