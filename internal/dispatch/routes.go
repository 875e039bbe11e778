package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/classroom-gate-api/internal/fanout"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/policy"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

// route is one entry of the dispatch table: a payload binder and a typed handler.
type route struct {
	bind func(raw json.RawMessage) (interface{}, error)
	run  func(ctx context.Context, p models.Principal, payload interface{}) (*outcome, error)
}

// outcome is what an authorized handler hands back: either a finished read or a write
// still to be committed.
type outcome struct {
	data  interface{}
	page  *models.Pagination
	write *write
}

// write is a mutation that already passed policy. apply runs on the detached context and
// may return an event for fan-out. recheck reloads the snapshot and re-runs the policy
// when a guarded statement matched nothing.
type write struct {
	apply    func(ctx context.Context) (interface{}, *fanout.Event, error)
	recheck  func(ctx context.Context) error
	courseID string
	created  bool
}

func read(data interface{}) *outcome {
	return &outcome{data: data}
}

func readPage(data interface{}, page *models.Pagination) *outcome {
	return &outcome{data: data, page: page}
}

func mutate(w *write) *outcome {
	return &outcome{write: w}
}

func handle[T any](validate *validator.Validate, fn func(ctx context.Context, p models.Principal, in T) (*outcome, error)) route {
	return route{
		bind: func(raw json.RawMessage) (interface{}, error) {
			return bind[T](validate, raw)
		},
		run: func(ctx context.Context, p models.Principal, payload interface{}) (*outcome, error) {
			return fn(ctx, p, payload.(T))
		},
	}
}

// bind decodes raw into T, rejecting unknown fields, and runs struct validation.
func bind[T any](validate *validator.Validate, raw json.RawMessage) (T, error) {
	var in T
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&in); err != nil {
			return in, appErrors.Validation(err, "malformed payload")
		}
	}
	if err := validate.Struct(in); err != nil {
		return in, appErrors.Validation(err, validationMessage(err))
	}
	return in, nil
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed on %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

func (d *Dispatcher) buildRoutes() map[string]map[string]route {
	v := d.validate
	return map[string]map[string]route{
		"course": {
			"create": handle(v, d.createCourse),
			"get":    handle(v, d.getCourse),
			"list":   handle(v, d.listCourses),
			"update": handle(v, d.updateCourse),
			"delete": handle(v, d.deleteCourse),
		},
		"enrollment": {
			"create":        handle(v, d.createEnrollment),
			"list":          handle(v, d.listEnrollments),
			"update_status": handle(v, d.updateEnrollmentStatus),
		},
		"assignment": {
			"create": handle(v, d.createAssignment),
			"get":    handle(v, d.getAssignment),
			"list":   handle(v, d.listAssignments),
			"update": handle(v, d.updateAssignment),
			"delete": handle(v, d.deleteAssignment),
		},
		"submission": {
			"create": handle(v, d.createSubmission),
			"get":    handle(v, d.getSubmission),
			"list":   handle(v, d.listSubmissions),
			"update": handle(v, d.updateSubmission),
			"delete": handle(v, d.deleteSubmission),
		},
		"grading": {
			"grade": handle(v, d.gradeSubmission),
		},
		"analytics": {
			"course_summary":   handle(v, d.courseSummary),
			"student_progress": handle(v, d.studentProgress),
			"export_gradebook": handle(v, d.exportGradebook),
		},
		"notification": {
			"list":          handle(v, d.listNotifications),
			"mark_read":     handle(v, d.markNotificationRead),
			"mark_all_read": handle(v, d.markAllNotificationsRead),
		},
	}
}

// authorize evaluates the policy for the snapshot and turns a deny into Forbidden.
func authorize(p models.Principal, action policy.Action, snapshot policy.Snapshot) error {
	if policy.Evaluate(p, action, snapshot) == policy.Deny {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("%s may not %s this resource", p.Role, action))
	}
	return nil
}

func allowed(decision policy.Decision, message string) error {
	if decision == policy.Deny {
		return appErrors.Clone(appErrors.ErrForbidden, message)
	}
	return nil
}

// ownerGuard is the owner argument of guarded writes: admins write without an ownership
// condition.
func ownerGuard(p models.Principal) string {
	if p.IsAdmin() {
		return ""
	}
	return p.ID
}

func orSelf(id string, p models.Principal) string {
	if id == "" {
		return p.ID
	}
	return id
}
