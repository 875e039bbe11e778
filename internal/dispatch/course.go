package dispatch

import (
	"context"
	"errors"

	"github.com/noah-isme/classroom-gate-api/internal/dto"
	"github.com/noah-isme/classroom-gate-api/internal/fanout"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/policy"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

func (d *Dispatcher) createCourse(ctx context.Context, p models.Principal, in dto.CreateCourseRequest) (*outcome, error) {
	if err := authorize(p, policy.ActionCreate, policy.CourseSnapshot{}); err != nil {
		return nil, err
	}

	lecturerID := p.ID
	switch {
	case p.IsAdmin():
		if in.LecturerID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lecturer_id is required when an admin creates a course")
		}
		if err := d.requireUser(ctx, in.LecturerID, models.RoleLecturer); err != nil {
			return nil, err
		}
		lecturerID = in.LecturerID
	case in.LecturerID != "" && in.LecturerID != p.ID:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "lecturers create courses for themselves only")
	}

	course := &models.Course{
		Title:       in.Title,
		Description: in.Description,
		CreatedBy:   lecturerID,
		LecturerID:  lecturerID,
	}
	return mutate(&write{
		created: true,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Courses.Create(ctx, course); err != nil {
				return nil, nil, err
			}
			return course, nil, nil
		},
	}), nil
}

func (d *Dispatcher) getCourse(ctx context.Context, p models.Principal, in dto.CourseIDRequest) (*outcome, error) {
	course, err := d.store.Courses.FindByID(ctx, in.ID)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, policy.ActionRead, policy.CourseSnapshot{CreatedBy: course.CreatedBy}); err != nil {
		return nil, err
	}
	return read(course), nil
}

func (d *Dispatcher) listCourses(ctx context.Context, p models.Principal, in dto.ListCoursesRequest) (*outcome, error) {
	if err := authorize(p, policy.ActionRead, policy.CourseSnapshot{}); err != nil {
		return nil, err
	}
	filter := models.CourseFilter{Search: in.Search, Page: in.Page, PageSize: in.PageSize}
	if in.Mine {
		filter.CreatedBy = p.ID
	}
	courses, total, err := d.store.Courses.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page, size := repository.NormalizePage(in.Page, in.PageSize)
	return readPage(courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}), nil
}

func (d *Dispatcher) updateCourse(ctx context.Context, p models.Principal, in dto.UpdateCourseRequest) (*outcome, error) {
	course, err := d.loadCourseFor(ctx, p, policy.ActionUpdate, in.ID)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		course.Title = *in.Title
	}
	if in.Description != nil {
		course.Description = in.Description
	}
	return mutate(&write{
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Courses.Update(ctx, course, ownerGuard(p)); err != nil {
				return nil, nil, err
			}
			return course, nil, nil
		},
		recheck: func(ctx context.Context) error {
			_, err := d.loadCourseFor(ctx, p, policy.ActionUpdate, in.ID)
			return err
		},
	}), nil
}

func (d *Dispatcher) deleteCourse(ctx context.Context, p models.Principal, in dto.CourseIDRequest) (*outcome, error) {
	if _, err := d.loadCourseFor(ctx, p, policy.ActionDelete, in.ID); err != nil {
		return nil, err
	}
	return mutate(&write{
		courseID: in.ID,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Courses.Delete(ctx, in.ID, ownerGuard(p)); err != nil {
				return nil, nil, err
			}
			return map[string]string{"id": in.ID}, nil, nil
		},
		recheck: func(ctx context.Context) error {
			_, err := d.loadCourseFor(ctx, p, policy.ActionDelete, in.ID)
			return err
		},
	}), nil
}

func (d *Dispatcher) loadCourseFor(ctx context.Context, p models.Principal, action policy.Action, id string) (*models.Course, error) {
	course, err := d.store.Courses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, action, policy.CourseSnapshot{CreatedBy: course.CreatedBy}); err != nil {
		return nil, err
	}
	return course, nil
}

// requireUser checks that id names an active user holding role.
func (d *Dispatcher) requireUser(ctx context.Context, id string, role models.Role) error {
	user, err := d.store.Users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return appErrors.Clone(appErrors.ErrValidation, "unknown "+string(role)+" "+id)
		}
		return err
	}
	if user.Role != role || !user.Active {
		return appErrors.Clone(appErrors.ErrValidation, id+" is not an active "+string(role))
	}
	return nil
}
