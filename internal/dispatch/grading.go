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

// gradeSubmission grades or regrades. grade, feedback, graded_at and graded_by are written
// together; every grading produces its own notification.
func (d *Dispatcher) gradeSubmission(ctx context.Context, p models.Principal, in dto.GradeSubmissionRequest) (*outcome, error) {
	grade := *in.Grade
	current, err := d.loadGradable(ctx, p, in.SubmissionID, grade)
	if err != nil {
		return nil, err
	}

	update := models.GradeUpdate{
		SubmissionID: current.ID,
		Grade:        grade,
		Feedback:     in.Feedback,
		GradedBy:     p.ID,
		GradedAt:     d.now().UTC(),
	}
	return mutate(&write{
		courseID: current.CourseID,
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Submissions.Grade(ctx, update, ownerGuard(p)); err != nil {
				return nil, nil, err
			}
			graded := *current
			graded.Grade = &update.Grade
			graded.Feedback = update.Feedback
			graded.GradedAt = &update.GradedAt
			graded.GradedBy = &update.GradedBy
			ev := fanout.SubmissionGraded(graded, update.GradedAt, p.ID)
			return &graded.Submission, &ev, nil
		},
		recheck: func(ctx context.Context) error {
			_, err := d.loadGradable(ctx, p, in.SubmissionID, grade)
			return err
		},
	}), nil
}

func (d *Dispatcher) loadGradable(ctx context.Context, p models.Principal, id string, grade float64) (*models.SubmissionContext, error) {
	submission, err := d.store.Submissions.FindContext(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, policy.ActionGrade, submissionSnapshot(submission)); err != nil {
		return nil, err
	}
	if grade > submission.MaxGrade {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("grade %g exceeds max grade %g", grade, submission.MaxGrade))
	}
	return submission, nil
}
