package dispatch

import (
	"context"
	"fmt"

	"github.com/noah-isme/classroom-gate-api/internal/dto"
	"github.com/noah-isme/classroom-gate-api/internal/fanout"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/policy"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

var errGradedImmutable = appErrors.Clone(appErrors.ErrForbidden, "graded submissions can no longer be edited")

func submissionSnapshot(s *models.SubmissionContext) policy.SubmissionSnapshot {
	return policy.SubmissionSnapshot{
		StudentID:       s.StudentID,
		CourseCreatedBy: s.CourseCreatedBy,
		Graded:          s.Graded(),
	}
}

// submitCheck authorizes a submission by studentID to the assignment. Admins may submit on
// behalf of a student, but the student must still hold an active enrollment.
func (d *Dispatcher) submitCheck(ctx context.Context, p models.Principal, assignment *models.AssignmentContext, studentID string) error {
	active, err := d.store.Enrollments.IsActive(ctx, studentID, assignment.CourseID)
	if err != nil {
		return err
	}
	snapshot := policy.SubmissionSnapshot{
		StudentID:       studentID,
		CourseCreatedBy: assignment.CourseCreatedBy,
		ActorEnrolled:   active,
	}
	if err := authorize(p, policy.ActionCreate, snapshot); err != nil {
		return err
	}
	if !active {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("student %s is not actively enrolled", studentID))
	}
	return nil
}

func (d *Dispatcher) createSubmission(ctx context.Context, p models.Principal, in dto.CreateSubmissionRequest) (*outcome, error) {
	studentID := orSelf(in.StudentID, p)
	assignment, err := d.store.Assignments.FindContext(ctx, in.AssignmentID)
	if err != nil {
		return nil, err
	}
	if err := d.submitCheck(ctx, p, assignment, studentID); err != nil {
		return nil, err
	}

	submission := &models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    studentID,
		Content:      in.Content,
		FileURL:      in.FileURL,
		SubmittedAt:  d.now().UTC(),
	}
	return mutate(&write{
		created:  true,
		courseID: assignment.CourseID,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Submissions.Create(ctx, submission); err != nil {
				return nil, nil, err
			}
			ev := fanout.SubmissionCreated(models.SubmissionContext{
				Submission:       *submission,
				CourseID:         assignment.CourseID,
				MaxGrade:         assignment.MaxGrade,
				AssignmentTitle:  assignment.Title,
				CourseCreatedBy:  assignment.CourseCreatedBy,
				CourseLecturerID: assignment.CourseLecturerID,
			}, p.ID)
			return submission, &ev, nil
		},
		recheck: func(ctx context.Context) error {
			current, err := d.store.Assignments.FindContext(ctx, in.AssignmentID)
			if err != nil {
				return err
			}
			return d.submitCheck(ctx, p, current, studentID)
		},
	}), nil
}

func (d *Dispatcher) getSubmission(ctx context.Context, p models.Principal, in dto.SubmissionIDRequest) (*outcome, error) {
	submission, err := d.loadSubmissionFor(ctx, p, policy.ActionRead, in.ID)
	if err != nil {
		return nil, err
	}
	return read(&submission.Submission), nil
}

// listSubmissions narrows the filter to the caller's scope: students see their own rows,
// lecturers the rows of courses they created. An assignment filter outside that scope is
// denied.
func (d *Dispatcher) listSubmissions(ctx context.Context, p models.Principal, in dto.ListSubmissionsRequest) (*outcome, error) {
	filter := models.SubmissionFilter{AssignmentID: in.AssignmentID, StudentID: in.StudentID}
	switch p.Role {
	case models.RoleStudent:
		if in.StudentID != "" && in.StudentID != p.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may list their own submissions only")
		}
		filter.StudentID = p.ID
	case models.RoleLecturer:
		filter.CourseOwner = p.ID
	}
	if filter.AssignmentID != "" {
		assignment, err := d.store.Assignments.FindContext(ctx, filter.AssignmentID)
		if err != nil {
			return nil, err
		}
		snapshot := policy.SubmissionSnapshot{StudentID: filter.StudentID, CourseCreatedBy: assignment.CourseCreatedBy}
		if err := authorize(p, policy.ActionRead, snapshot); err != nil {
			return nil, err
		}
	}
	submissions, err := d.store.Submissions.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return read(submissions), nil
}

// updateSubmission replaces content. Content is frozen once graded, for admins too.
func (d *Dispatcher) updateSubmission(ctx context.Context, p models.Principal, in dto.UpdateSubmissionRequest) (*outcome, error) {
	current, err := d.loadEditableSubmission(ctx, p, in.ID)
	if err != nil {
		return nil, err
	}
	submission := current.Submission
	submission.Content = in.Content
	submission.FileURL = in.FileURL

	studentGuard := ""
	if !p.IsAdmin() {
		studentGuard = p.ID
	}
	return mutate(&write{
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Submissions.UpdateContent(ctx, in.ID, studentGuard, in.Content, in.FileURL); err != nil {
				return nil, nil, err
			}
			return &submission, nil, nil
		},
		recheck: func(ctx context.Context) error {
			_, err := d.loadEditableSubmission(ctx, p, in.ID)
			return err
		},
	}), nil
}

func (d *Dispatcher) loadEditableSubmission(ctx context.Context, p models.Principal, id string) (*models.SubmissionContext, error) {
	current, err := d.loadSubmissionFor(ctx, p, policy.ActionUpdate, id)
	if err != nil {
		return nil, err
	}
	if current.Graded() {
		return nil, errGradedImmutable
	}
	return current, nil
}

func (d *Dispatcher) deleteSubmission(ctx context.Context, p models.Principal, in dto.SubmissionIDRequest) (*outcome, error) {
	current, err := d.loadSubmissionFor(ctx, p, policy.ActionDelete, in.ID)
	if err != nil {
		return nil, err
	}
	return mutate(&write{
		courseID: current.CourseID,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Submissions.Delete(ctx, in.ID); err != nil {
				return nil, nil, err
			}
			return map[string]string{"id": in.ID}, nil, nil
		},
	}), nil
}

func (d *Dispatcher) loadSubmissionFor(ctx context.Context, p models.Principal, action policy.Action, id string) (*models.SubmissionContext, error) {
	submission, err := d.store.Submissions.FindContext(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, action, submissionSnapshot(submission)); err != nil {
		return nil, err
	}
	return submission, nil
}
