package dispatch

import (
	"context"

	"github.com/noah-isme/classroom-gate-api/internal/dto"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/policy"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

func (d *Dispatcher) courseSummary(ctx context.Context, p models.Principal, in dto.CourseSummaryRequest) (*outcome, error) {
	if !d.analytics.Enabled() {
		return nil, appErrors.ErrFeatureDisabled
	}
	course, err := d.store.Courses.FindByID(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if err := allowed(policy.CanViewCourseAnalytics(p, policy.CourseSnapshot{CreatedBy: course.CreatedBy}), "course analytics are limited to the course owner"); err != nil {
		return nil, err
	}
	summary, _, err := d.analytics.CourseSummary(ctx, course.ID)
	if err != nil {
		return nil, err
	}
	return read(summary), nil
}

// studentProgress follows the enrollment read rule: the student, the course owner or an admin.
func (d *Dispatcher) studentProgress(ctx context.Context, p models.Principal, in dto.StudentProgressRequest) (*outcome, error) {
	if !d.analytics.Enabled() {
		return nil, appErrors.ErrFeatureDisabled
	}
	studentID := orSelf(in.StudentID, p)
	course, err := d.store.Courses.FindByID(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	snapshot := policy.EnrollmentSnapshot{StudentID: studentID, CourseCreatedBy: course.CreatedBy}
	if err := authorize(p, policy.ActionRead, snapshot); err != nil {
		return nil, err
	}
	progress, _, err := d.analytics.StudentProgress(ctx, studentID, course.ID)
	if err != nil {
		return nil, err
	}
	return read(progress), nil
}

func (d *Dispatcher) exportGradebook(ctx context.Context, p models.Principal, in dto.ExportGradebookRequest) (*outcome, error) {
	if d.exports == nil {
		return nil, appErrors.ErrFeatureDisabled
	}
	course, err := d.store.Courses.FindByID(ctx, in.CourseID)
	if err != nil {
		return nil, err
	}
	if err := allowed(policy.CanViewCourseAnalytics(p, policy.CourseSnapshot{CreatedBy: course.CreatedBy}), "gradebook exports are limited to the course owner"); err != nil {
		return nil, err
	}
	result, err := d.exports.ExportGradebook(ctx, *course, in.Format)
	if err != nil {
		return nil, err
	}
	return read(result), nil
}
