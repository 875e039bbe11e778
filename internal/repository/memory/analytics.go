package memory

import (
	"context"
	"sort"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

type analyticsStore struct{ s *state }

func ratioAverage(sum float64, n int) *float64 {
	if n == 0 {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

func (a *analyticsStore) CourseSummary(_ context.Context, courseID string) (*models.CourseSummary, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	if _, ok := a.s.courses[courseID]; !ok {
		return nil, notFound("query course summary")
	}

	summary := models.CourseSummary{CourseID: courseID}
	for _, e := range a.s.enrollments {
		if e.CourseID == courseID && e.Status == models.EnrollmentStatusActive {
			summary.ActiveEnrollments++
		}
	}
	var ratioSum float64
	for _, sub := range a.s.submissions {
		assignment, ok := a.s.assignments[sub.AssignmentID]
		if !ok || assignment.CourseID != courseID {
			continue
		}
		summary.Submissions++
		if sub.Graded() {
			summary.GradedSubmissions++
			ratioSum += *sub.Grade / assignment.MaxGrade
		}
	}
	for _, assignment := range a.s.assignments {
		if assignment.CourseID == courseID {
			summary.Assignments++
		}
	}
	summary.AverageGradeRatio = ratioAverage(ratioSum, summary.GradedSubmissions)
	return &summary, nil
}

func (a *analyticsStore) StudentProgress(_ context.Context, studentID, courseID string) (*models.StudentProgress, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()
	if _, ok := a.s.courses[courseID]; !ok {
		return nil, notFound("query student progress")
	}

	progress := models.StudentProgress{StudentID: studentID, CourseID: courseID}
	for _, assignment := range a.s.assignments {
		if assignment.CourseID == courseID {
			progress.Assignments++
		}
	}
	var ratioSum float64
	for _, sub := range a.s.submissions {
		assignment, ok := a.s.assignments[sub.AssignmentID]
		if !ok || assignment.CourseID != courseID || sub.StudentID != studentID {
			continue
		}
		progress.Submitted++
		if sub.Graded() {
			progress.Graded++
			ratioSum += *sub.Grade / assignment.MaxGrade
		}
	}
	progress.AverageGradeRatio = ratioAverage(ratioSum, progress.Graded)
	return &progress, nil
}

func (a *analyticsStore) Gradebook(_ context.Context, courseID string) ([]models.GradebookRow, error) {
	a.s.mu.RLock()
	var assignments []models.Assignment
	for _, assignment := range a.s.assignments {
		if assignment.CourseID == courseID {
			assignments = append(assignments, assignment)
		}
	}
	sort.Slice(assignments, func(i, j int) bool {
		if !assignments[i].DueDate.Equal(assignments[j].DueDate) {
			return assignments[i].DueDate.Before(assignments[j].DueDate)
		}
		return assignments[i].ID < assignments[j].ID
	})

	var students []models.User
	for _, e := range a.s.enrollments {
		if e.CourseID == courseID && e.Status == models.EnrollmentStatusActive {
			student := a.s.users[e.StudentID]
			student.ID = e.StudentID
			students = append(students, student)
		}
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].FullName != students[j].FullName {
			return students[i].FullName < students[j].FullName
		}
		return students[i].ID < students[j].ID
	})

	var rows []models.GradebookRow
	for _, student := range students {
		for _, assignment := range assignments {
			row := models.GradebookRow{
				StudentID:       student.ID,
				StudentName:     student.FullName,
				AssignmentID:    assignment.ID,
				AssignmentTitle: assignment.Title,
				MaxGrade:        assignment.MaxGrade,
			}
			for _, sub := range a.s.submissions {
				if sub.AssignmentID == assignment.ID && sub.StudentID == student.ID && sub.Graded() {
					grade := *sub.Grade
					row.Grade = &grade
				}
			}
			rows = append(rows, row)
		}
	}
	a.s.mu.RUnlock()
	return rows, nil
}
