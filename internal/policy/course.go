package policy

import "github.com/noah-isme/classroom-gate-api/internal/models"

// CourseSnapshot carries the ownership field of a course. It is empty for creates.
type CourseSnapshot struct {
	CreatedBy string
}

// CanCreateCourse: admins and lecturers.
func CanCreateCourse(p models.Principal) Decision {
	return decide(p.IsAdmin() || p.IsLecturer())
}

// CanReadCourse: the catalog is visible to every authenticated role.
func CanReadCourse(p models.Principal, _ CourseSnapshot) Decision {
	return decide(p.IsAdmin() || p.IsLecturer() || p.IsStudent())
}

// CanUpdateCourse: admins, or the lecturer who created the course.
func CanUpdateCourse(p models.Principal, c CourseSnapshot) Decision {
	return decide(p.IsAdmin() || (p.IsLecturer() && c.CreatedBy != "" && p.ID == c.CreatedBy))
}

// CanDeleteCourse follows the update rule.
func CanDeleteCourse(p models.Principal, c CourseSnapshot) Decision {
	return CanUpdateCourse(p, c)
}

// CanViewCourseAnalytics covers course-wide aggregates and gradebook exports: admins, or
// the lecturer who created the course.
func CanViewCourseAnalytics(p models.Principal, c CourseSnapshot) Decision {
	return CanUpdateCourse(p, c)
}

func (c CourseSnapshot) decide(p models.Principal, action Action) Decision {
	switch action {
	case ActionCreate:
		return CanCreateCourse(p)
	case ActionRead:
		return CanReadCourse(p, c)
	case ActionUpdate:
		return CanUpdateCourse(p, c)
	case ActionDelete:
		return CanDeleteCourse(p, c)
	}
	return Deny
}
