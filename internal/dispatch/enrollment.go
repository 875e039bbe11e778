package dispatch

import (
	"context"

	"github.com/noah-isme/classroom-gate-api/internal/dto"
	"github.com/noah-isme/classroom-gate-api/internal/fanout"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/policy"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

func (d *Dispatcher) createEnrollment(ctx context.Context, p models.Principal, in dto.CreateEnrollmentRequest) (*outcome, error) {
	studentID := orSelf(in.StudentID, p)
	course, err := d.store.Courses.FindByID(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, policy.ActionCreate, policy.EnrollmentSnapshot{StudentID: studentID, CourseCreatedBy: course.CreatedBy}); err != nil {
		return nil, err
	}
	if p.IsAdmin() {
		if err := d.requireUser(ctx, studentID, models.RoleStudent); err != nil {
			return nil, err
		}
	}

	enrollment := &models.Enrollment{
		StudentID: studentID,
		CourseID:  course.ID,
		Status:    models.EnrollmentStatusActive,
	}
	return mutate(&write{
		created:  true,
		courseID: course.ID,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Enrollments.Create(ctx, enrollment); err != nil {
				return nil, nil, err
			}
			return enrollment, nil, nil
		},
	}), nil
}

// listEnrollments narrows the filter to the rows the caller may read: students see their
// own, lecturers the rows of courses they created. A course filter the caller cannot read
// is denied rather than answered with an empty list.
func (d *Dispatcher) listEnrollments(ctx context.Context, p models.Principal, in dto.ListEnrollmentsRequest) (*outcome, error) {
	filter := models.EnrollmentFilter{CourseID: in.CourseID, StudentID: in.StudentID, Status: in.Status}
	switch p.Role {
	case models.RoleStudent:
		if in.StudentID != "" && in.StudentID != p.ID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may list their own enrollments only")
		}
		filter.StudentID = p.ID
	case models.RoleLecturer:
		filter.CourseOwner = p.ID
	}
	if filter.CourseID != "" {
		course, err := d.store.Courses.FindByID(ctx, filter.CourseID)
		if err != nil {
			return nil, err
		}
		snapshot := policy.EnrollmentSnapshot{StudentID: filter.StudentID, CourseCreatedBy: course.CreatedBy}
		if err := authorize(p, policy.ActionRead, snapshot); err != nil {
			return nil, err
		}
	}
	enrollments, err := d.store.Enrollments.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return read(enrollments), nil
}

func (d *Dispatcher) updateEnrollmentStatus(ctx context.Context, p models.Principal, in dto.UpdateEnrollmentStatusRequest) (*outcome, error) {
	current, err := d.store.Enrollments.FindContext(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	snapshot := policy.EnrollmentSnapshot{StudentID: current.StudentID, CourseCreatedBy: current.CourseCreatedBy}
	if err := authorize(p, policy.ActionUpdate, snapshot); err != nil {
		return nil, err
	}
	return mutate(&write{
		courseID: current.CourseID,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Enrollments.UpdateStatus(ctx, in.ID, in.Status); err != nil {
				return nil, nil, err
			}
			updated := current.Enrollment
			updated.Status = in.Status
			return &updated, nil, nil
		},
	}), nil
}
