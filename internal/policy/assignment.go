package policy

import "github.com/noah-isme/classroom-gate-api/internal/models"

// AssignmentSnapshot is resolved by walking assignment -> course. ActorEnrolled reports
// whether the acting principal holds an active enrollment in that course.
type AssignmentSnapshot struct {
	CourseCreatedBy string
	ActorEnrolled   bool
}

func ownsCourse(p models.Principal, courseCreatedBy string) bool {
	return p.IsLecturer() && courseCreatedBy != "" && courseCreatedBy == p.ID
}

// CanCreateAssignment: admins, or the lecturer who created the course.
func CanCreateAssignment(p models.Principal, a AssignmentSnapshot) Decision {
	return decide(p.IsAdmin() || ownsCourse(p, a.CourseCreatedBy))
}

// CanReadAssignment: admins, the course owner, or students actively enrolled in the course.
func CanReadAssignment(p models.Principal, a AssignmentSnapshot) Decision {
	if p.IsStudent() {
		return decide(a.ActorEnrolled)
	}
	return decide(p.IsAdmin() || ownsCourse(p, a.CourseCreatedBy))
}

// CanUpdateAssignment: admins or the course owner.
func CanUpdateAssignment(p models.Principal, a AssignmentSnapshot) Decision {
	return CanCreateAssignment(p, a)
}

// CanDeleteAssignment: admins or the course owner.
func CanDeleteAssignment(p models.Principal, a AssignmentSnapshot) Decision {
	return CanCreateAssignment(p, a)
}

func (a AssignmentSnapshot) decide(p models.Principal, action Action) Decision {
	switch action {
	case ActionCreate:
		return CanCreateAssignment(p, a)
	case ActionRead:
		return CanReadAssignment(p, a)
	case ActionUpdate:
		return CanUpdateAssignment(p, a)
	case ActionDelete:
		return CanDeleteAssignment(p, a)
	}
	return Deny
}
