package policy

import "github.com/noah-isme/classroom-gate-api/internal/models"

// EnrollmentSnapshot identifies the enrolled student and the creator of the course.
type EnrollmentSnapshot struct {
	StudentID       string
	CourseCreatedBy string
}

// CanCreateEnrollment: students enrolling themselves, or admins.
func CanCreateEnrollment(p models.Principal, e EnrollmentSnapshot) Decision {
	if p.IsAdmin() {
		return Allow
	}
	return decide(p.IsStudent() && e.StudentID == p.ID)
}

// CanReadEnrollment: admins, the student on the row, or the lecturer who created the course.
func CanReadEnrollment(p models.Principal, e EnrollmentSnapshot) Decision {
	switch p.Role {
	case models.RoleAdmin:
		return Allow
	case models.RoleStudent:
		return decide(e.StudentID == p.ID)
	case models.RoleLecturer:
		return decide(e.CourseCreatedBy != "" && e.CourseCreatedBy == p.ID)
	}
	return Deny
}

// CanUpdateEnrollment: status changes are administrative.
func CanUpdateEnrollment(p models.Principal, _ EnrollmentSnapshot) Decision {
	return decide(p.IsAdmin())
}

// CanDeleteEnrollment: administrative only.
func CanDeleteEnrollment(p models.Principal, _ EnrollmentSnapshot) Decision {
	return decide(p.IsAdmin())
}

func (e EnrollmentSnapshot) decide(p models.Principal, action Action) Decision {
	switch action {
	case ActionCreate:
		return CanCreateEnrollment(p, e)
	case ActionRead:
		return CanReadEnrollment(p, e)
	case ActionUpdate:
		return CanUpdateEnrollment(p, e)
	case ActionDelete:
		return CanDeleteEnrollment(p, e)
	}
	return Deny
}
