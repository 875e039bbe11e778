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

// assignmentSnapshot resolves the policy view of a course for p; the enrollment lookup is
// only needed for students.
func (d *Dispatcher) assignmentSnapshot(ctx context.Context, p models.Principal, courseID, courseCreatedBy string) (policy.AssignmentSnapshot, error) {
	snapshot := policy.AssignmentSnapshot{CourseCreatedBy: courseCreatedBy}
	if p.IsStudent() {
		active, err := d.store.Enrollments.IsActive(ctx, p.ID, courseID)
		if err != nil {
			return snapshot, err
		}
		snapshot.ActorEnrolled = active
	}
	return snapshot, nil
}

func (d *Dispatcher) createAssignment(ctx context.Context, p models.Principal, in dto.CreateAssignmentRequest) (*outcome, error) {
	course, err := d.store.Courses.FindByID(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, policy.ActionCreate, policy.AssignmentSnapshot{CourseCreatedBy: course.CreatedBy}); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{
		CourseID:    course.ID,
		Title:       in.Title,
		Description: in.Description,
		DueDate:     in.DueDate.UTC(),
		MaxGrade:    in.MaxGrade,
		CreatedBy:   course.CreatedBy,
	}
	return mutate(&write{
		created:  true,
		courseID: course.ID,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Assignments.Create(ctx, assignment); err != nil {
				return nil, nil, err
			}
			ev := fanout.AssignmentCreated(*assignment, p.ID)
			return assignment, &ev, nil
		},
	}), nil
}

func (d *Dispatcher) getAssignment(ctx context.Context, p models.Principal, in dto.AssignmentIDRequest) (*outcome, error) {
	assignment, err := d.loadAssignmentFor(ctx, p, policy.ActionRead, in.ID)
	if err != nil {
		return nil, err
	}
	return read(&assignment.Assignment), nil
}

func (d *Dispatcher) listAssignments(ctx context.Context, p models.Principal, in dto.ListAssignmentsRequest) (*outcome, error) {
	course, err := d.store.Courses.FindByID(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	snapshot, err := d.assignmentSnapshot(ctx, p, course.ID, course.CreatedBy)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, policy.ActionRead, snapshot); err != nil {
		return nil, err
	}
	assignments, err := d.store.Assignments.ListByCourse(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	return read(assignments), nil
}

func (d *Dispatcher) updateAssignment(ctx context.Context, p models.Principal, in dto.UpdateAssignmentRequest) (*outcome, error) {
	current, err := d.loadAssignmentFor(ctx, p, policy.ActionUpdate, in.ID)
	if err != nil {
		return nil, err
	}
	assignment := current.Assignment
	if in.Title != nil {
		assignment.Title = *in.Title
	}
	if in.Description != nil {
		assignment.Description = in.Description
	}
	if in.DueDate != nil {
		assignment.DueDate = in.DueDate.UTC()
	}
	if in.MaxGrade != nil {
		assignment.MaxGrade = *in.MaxGrade
	}
	if err := d.checkMaxGrade(ctx, assignment.ID, assignment.MaxGrade); err != nil {
		return nil, err
	}
	return mutate(&write{
		courseID: assignment.CourseID,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Assignments.Update(ctx, &assignment, ownerGuard(p)); err != nil {
				return nil, nil, err
			}
			return &assignment, nil, nil
		},
		recheck: func(ctx context.Context) error {
			if _, err := d.loadAssignmentFor(ctx, p, policy.ActionUpdate, in.ID); err != nil {
				return err
			}
			return d.checkMaxGrade(ctx, assignment.ID, assignment.MaxGrade)
		},
	}), nil
}

func (d *Dispatcher) deleteAssignment(ctx context.Context, p models.Principal, in dto.AssignmentIDRequest) (*outcome, error) {
	current, err := d.loadAssignmentFor(ctx, p, policy.ActionDelete, in.ID)
	if err != nil {
		return nil, err
	}
	return mutate(&write{
		courseID: current.CourseID,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Assignments.Delete(ctx, in.ID, ownerGuard(p)); err != nil {
				return nil, nil, err
			}
			return map[string]string{"id": in.ID}, nil, nil
		},
		recheck: func(ctx context.Context) error {
			_, err := d.loadAssignmentFor(ctx, p, policy.ActionDelete, in.ID)
			return err
		},
	}), nil
}

func (d *Dispatcher) loadAssignmentFor(ctx context.Context, p models.Principal, action policy.Action, id string) (*models.AssignmentContext, error) {
	assignment, err := d.store.Assignments.FindContext(ctx, id)
	if err != nil {
		return nil, err
	}
	snapshot, err := d.assignmentSnapshot(ctx, p, assignment.CourseID, assignment.CourseCreatedBy)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, action, snapshot); err != nil {
		return nil, err
	}
	return assignment, nil
}

// checkMaxGrade keeps existing grades within the assignment's max grade.
func (d *Dispatcher) checkMaxGrade(ctx context.Context, assignmentID string, maxGrade float64) error {
	submissions, err := d.store.Submissions.List(ctx, models.SubmissionFilter{AssignmentID: assignmentID})
	if err != nil {
		return err
	}
	for _, s := range submissions {
		if s.Grade != nil && *s.Grade > maxGrade {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("max grade %g is below existing grade %g", maxGrade, *s.Grade))
		}
	}
	return nil
}
