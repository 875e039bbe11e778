package memory

import (
	"context"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

type submissionStore struct{ s *state }

func (st *submissionStore) Create(_ context.Context, submission *models.Submission) error {
	submission.ID = newID(submission.ID)
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}

	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	course, ok := st.s.courseOfAssignment(submission.AssignmentID)
	if !ok || !st.s.activeEnrollment(submission.StudentID, course.ID) {
		return guardFailed("create submission")
	}
	for _, existing := range st.s.submissions {
		if existing.AssignmentID == submission.AssignmentID && existing.StudentID == submission.StudentID {
			return conflict("create submission", "uq_submissions_assignment_student")
		}
	}
	submission.Grade, submission.Feedback, submission.GradedAt, submission.GradedBy = nil, nil, nil, nil
	st.s.submissions[submission.ID] = *submission
	return nil
}

func (st *submissionStore) FindContext(_ context.Context, id string) (*models.SubmissionContext, error) {
	st.s.mu.RLock()
	defer st.s.mu.RUnlock()
	sub, ok := st.s.submissions[id]
	if !ok {
		return nil, notFound("find submission")
	}
	assignment, ok := st.s.assignments[sub.AssignmentID]
	if !ok {
		return nil, notFound("find submission")
	}
	course, ok := st.s.courses[assignment.CourseID]
	if !ok {
		return nil, notFound("find submission")
	}
	return &models.SubmissionContext{
		Submission:       sub,
		CourseID:         course.ID,
		MaxGrade:         assignment.MaxGrade,
		AssignmentTitle:  assignment.Title,
		CourseCreatedBy:  course.CreatedBy,
		CourseLecturerID: course.LecturerID,
	}, nil
}

func (st *submissionStore) List(_ context.Context, filter models.SubmissionFilter) ([]models.Submission, error) {
	st.s.mu.RLock()
	subs := lo.Filter(lo.Values(st.s.submissions), func(sub models.Submission, _ int) bool {
		if filter.AssignmentID != "" && sub.AssignmentID != filter.AssignmentID {
			return false
		}
		if filter.StudentID != "" && sub.StudentID != filter.StudentID {
			return false
		}
		if filter.CourseOwner != "" {
			course, ok := st.s.courseOfAssignment(sub.AssignmentID)
			return ok && course.CreatedBy == filter.CourseOwner
		}
		return true
	})
	st.s.mu.RUnlock()

	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
		}
		return subs[i].ID < subs[j].ID
	})
	return subs, nil
}

func (st *submissionStore) UpdateContent(_ context.Context, id, studentID, content string, fileURL *string) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	sub, ok := st.s.submissions[id]
	if !ok || sub.Graded() || (studentID != "" && sub.StudentID != studentID) {
		return guardFailed("update submission")
	}
	sub.Content = content
	sub.FileURL = fileURL
	st.s.submissions[id] = sub
	return nil
}

func (st *submissionStore) Grade(_ context.Context, update models.GradeUpdate, owner string) error {
	if update.GradedAt.IsZero() {
		update.GradedAt = time.Now().UTC()
	}

	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	sub, ok := st.s.submissions[update.SubmissionID]
	if !ok {
		return guardFailed("grade submission")
	}
	assignment, ok := st.s.assignments[sub.AssignmentID]
	if !ok || update.Grade > assignment.MaxGrade {
		return guardFailed("grade submission")
	}
	course, ok := st.s.courses[assignment.CourseID]
	if !ok || (owner != "" && course.CreatedBy != owner) {
		return guardFailed("grade submission")
	}

	grade, gradedAt, gradedBy := update.Grade, update.GradedAt, update.GradedBy
	sub.Grade = &grade
	sub.Feedback = update.Feedback
	sub.GradedAt = &gradedAt
	sub.GradedBy = &gradedBy
	st.s.submissions[sub.ID] = sub
	return nil
}

func (st *submissionStore) Delete(_ context.Context, id string) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	if _, ok := st.s.submissions[id]; !ok {
		return notFound("delete submission")
	}
	delete(st.s.submissions, id)
	return nil
}
