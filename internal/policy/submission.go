package policy

import "github.com/noah-isme/classroom-gate-api/internal/models"

// SubmissionSnapshot is resolved by walking submission -> assignment -> course.
// For creates StudentID is the requested owner and Graded is false.
type SubmissionSnapshot struct {
	StudentID       string
	CourseCreatedBy string
	Graded          bool
	ActorEnrolled   bool
}

// CanCreateSubmission: a student submitting for themselves while actively enrolled, or an
// admin. Uniqueness per (assignment, student) is left to the store.
func CanCreateSubmission(p models.Principal, s SubmissionSnapshot) Decision {
	if p.IsAdmin() {
		return Allow
	}
	return decide(p.IsStudent() && s.StudentID == p.ID && s.ActorEnrolled)
}

// CanReadSubmission: admins, the submitting student, or the course owner.
func CanReadSubmission(p models.Principal, s SubmissionSnapshot) Decision {
	switch p.Role {
	case models.RoleAdmin:
		return Allow
	case models.RoleStudent:
		return decide(s.StudentID == p.ID)
	case models.RoleLecturer:
		return decide(ownsCourse(p, s.CourseCreatedBy))
	}
	return Deny
}

// CanUpdateSubmission covers content edits: admins, or the submitting student until graded.
func CanUpdateSubmission(p models.Principal, s SubmissionSnapshot) Decision {
	if p.IsAdmin() {
		return Allow
	}
	return decide(p.IsStudent() && s.StudentID == p.ID && !s.Graded)
}

// CanGradeSubmission: admins or the course owner. Regrading is permitted.
func CanGradeSubmission(p models.Principal, s SubmissionSnapshot) Decision {
	return decide(p.IsAdmin() || ownsCourse(p, s.CourseCreatedBy))
}

// CanDeleteSubmission: administrative only.
func CanDeleteSubmission(p models.Principal, _ SubmissionSnapshot) Decision {
	return decide(p.IsAdmin())
}

func (s SubmissionSnapshot) decide(p models.Principal, action Action) Decision {
	switch action {
	case ActionCreate:
		return CanCreateSubmission(p, s)
	case ActionRead:
		return CanReadSubmission(p, s)
	case ActionUpdate:
		return CanUpdateSubmission(p, s)
	case ActionGrade:
		return CanGradeSubmission(p, s)
	case ActionDelete:
		return CanDeleteSubmission(p, s)
	}
	return Deny
}
