package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-gate-api/internal/dto"
	"github.com/noah-isme/classroom-gate-api/internal/fanout"
	"github.com/noah-isme/classroom-gate-api/internal/identity"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
	"github.com/noah-isme/classroom-gate-api/internal/repository/memory"
	"github.com/noah-isme/classroom-gate-api/internal/service"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
	"github.com/noah-isme/classroom-gate-api/pkg/storage"
)

var (
	adminP = models.Principal{ID: "admin-1", Role: models.RoleAdmin}
	lect1  = models.Principal{ID: "lect-1", Role: models.RoleLecturer}
	lect2  = models.Principal{ID: "lect-2", Role: models.RoleLecturer}
	stud1  = models.Principal{ID: "stud-1", Role: models.RoleStudent}
	stud2  = models.Principal{ID: "stud-2", Role: models.RoleStudent}
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type harness struct {
	t       *testing.T
	store   *repository.Store
	metrics *service.MetricsService
	d       *Dispatcher
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	store := memory.New()
	ctx := context.Background()
	for _, u := range []models.User{
		{ID: adminP.ID, Email: "admin@example.com", FullName: "Admin", Role: models.RoleAdmin, Active: true},
		{ID: lect1.ID, Email: "lee@example.com", FullName: "Lee", Role: models.RoleLecturer, Active: true},
		{ID: lect2.ID, Email: "kim@example.com", FullName: "Kim", Role: models.RoleLecturer, Active: true},
		{ID: stud1.ID, Email: "ann@example.com", FullName: "Ann", Role: models.RoleStudent, Active: true},
		{ID: stud2.ID, Email: "bob@example.com", FullName: "Bob", Role: models.RoleStudent, Active: true},
	} {
		u := u
		require.NoError(t, store.Users.Create(ctx, &u))
	}

	metrics := service.NewMetricsService()
	writer := fanout.NewWriter(store.Enrollments, store.Notifications, metrics, nil)
	opts = append([]Option{WithMetrics(metrics)}, opts...)
	d := New(store, fanout.NewSyncNotifier(writer), nil, nil, Config{Timeout: 5 * time.Second}, opts...)
	clock := &stepClock{now: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)}
	d.now = clock.Now
	return &harness{t: t, store: store, metrics: metrics, d: d}
}

func (h *harness) call(p models.Principal, svc, action string, data interface{}) (*Result, error) {
	h.t.Helper()
	ctx, err := identity.WithPrincipal(context.Background(), p)
	require.NoError(h.t, err)
	return h.callCtx(ctx, svc, action, data)
}

func (h *harness) callCtx(ctx context.Context, svc, action string, data interface{}) (*Result, error) {
	h.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(h.t, err)
	return h.d.Dispatch(ctx, Request{Service: svc, Action: action, Data: raw})
}

func (h *harness) mustCall(p models.Principal, svc, action string, data interface{}) *Result {
	h.t.Helper()
	res, err := h.call(p, svc, action, data)
	require.NoError(h.t, err, "%s.%s as %s", svc, action, p)
	return res
}

func (h *harness) notifications(userID string) []models.Notification {
	h.t.Helper()
	rows, err := h.store.Notifications.List(context.Background(), models.NotificationFilter{UserID: userID})
	require.NoError(h.t, err)
	return rows
}

// seedCourse creates CS101 owned by lect-1 with stud-1 enrolled and HW1 (max 100) posted.
func (h *harness) seedCourse() (models.Course, models.Assignment) {
	h.t.Helper()
	course := h.mustCall(lect1, "course", "create", map[string]interface{}{"title": "CS101"}).Data.(*models.Course)
	h.mustCall(stud1, "enrollment", "create", map[string]interface{}{"course_id": course.ID})
	assignment := h.mustCall(lect1, "assignment", "create", map[string]interface{}{
		"course_id": course.ID,
		"title":     "HW1",
		"due_date":  time.Date(2026, 9, 15, 23, 59, 0, 0, time.UTC),
		"max_grade": 100,
	}).Data.(*models.Assignment)
	return *course, *assignment
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T", err)
	assert.Equal(t, code, appErr.Code, appErr.Message)
}

func TestScenarioCourseToRegrade(t *testing.T) {
	h := newHarness(t)
	course, hw1 := h.seedCourse()
	assert.Equal(t, lect1.ID, course.CreatedBy)
	assert.Equal(t, lect1.ID, course.LecturerID)
	assert.Equal(t, lect1.ID, hw1.CreatedBy)

	_, err := h.call(stud1, "enrollment", "create", map[string]interface{}{"course_id": course.ID})
	requireCode(t, err, "CONFLICT")

	require.Len(t, h.notifications(stud1.ID), 1)
	assert.Equal(t, models.NotificationAssignmentCreated, h.notifications(stud1.ID)[0].Type)

	_, err = h.call(stud2, "assignment", "get", map[string]interface{}{"id": hw1.ID})
	requireCode(t, err, "FORBIDDEN")
	got := h.mustCall(stud1, "assignment", "get", map[string]interface{}{"id": hw1.ID}).Data.(*models.Assignment)
	assert.Equal(t, "HW1", got.Title)

	res := h.mustCall(stud1, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "content": "answer"})
	assert.True(t, res.Created)
	submission := res.Data.(*models.Submission)
	lectNotes := h.notifications(lect1.ID)
	require.Len(t, lectNotes, 1)
	assert.Equal(t, models.NotificationSubmissionCreated, lectNotes[0].Type)

	_, err = h.call(stud1, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "content": "again"})
	requireCode(t, err, "CONFLICT")
	rows, err := h.store.Submissions.List(context.Background(), models.SubmissionFilter{AssignmentID: hw1.ID})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	_, err = h.call(lect2, "grading", "grade", map[string]interface{}{"submission_id": submission.ID, "grade": 80})
	requireCode(t, err, "FORBIDDEN")

	graded := h.mustCall(lect1, "grading", "grade", map[string]interface{}{"submission_id": submission.ID, "grade": 90, "feedback": "good"}).Data.(*models.Submission)
	require.NotNil(t, graded.Grade)
	assert.Equal(t, 90.0, *graded.Grade)
	require.NotNil(t, graded.GradedBy)
	assert.Equal(t, lect1.ID, *graded.GradedBy)

	_, err = h.call(stud1, "submission", "update", map[string]interface{}{"id": submission.ID, "content": "late edit"})
	requireCode(t, err, "FORBIDDEN")

	h.mustCall(lect1, "grading", "grade", map[string]interface{}{"submission_id": submission.ID, "grade": 95})
	stored, err := h.store.Submissions.FindContext(context.Background(), submission.ID)
	require.NoError(t, err)
	assert.Equal(t, 95.0, *stored.Grade)
	assert.Equal(t, "answer", stored.Content)

	gradedNotes := 0
	for _, n := range h.notifications(stud1.ID) {
		if n.Type == models.NotificationSubmissionGraded {
			gradedNotes++
		}
	}
	assert.Equal(t, 2, gradedNotes)

	_, err = h.call(lect1, "grading", "grade", map[string]interface{}{"submission_id": submission.ID, "grade": 150})
	requireCode(t, err, "VALIDATION_ERROR")
}

func TestMaxGradeCannotDropBelowExistingGrades(t *testing.T) {
	h := newHarness(t)
	_, hw1 := h.seedCourse()
	sub := h.mustCall(stud1, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "content": "answer"}).Data.(*models.Submission)
	h.mustCall(lect1, "grading", "grade", map[string]interface{}{"submission_id": sub.ID, "grade": 90})

	_, err := h.call(lect1, "assignment", "update", map[string]interface{}{"id": hw1.ID, "max_grade": 50})
	requireCode(t, err, "VALIDATION_ERROR")
	stored, err := h.store.Assignments.FindContext(context.Background(), hw1.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, stored.MaxGrade)

	updated := h.mustCall(lect1, "assignment", "update", map[string]interface{}{"id": hw1.ID, "max_grade": 90}).Data.(*models.Assignment)
	assert.Equal(t, 90.0, updated.MaxGrade)
}

func TestStudentEditsBeforeGrading(t *testing.T) {
	h := newHarness(t)
	_, hw1 := h.seedCourse()
	sub := h.mustCall(stud1, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "content": "v1"}).Data.(*models.Submission)

	updated := h.mustCall(stud1, "submission", "update", map[string]interface{}{"id": sub.ID, "content": "v2"}).Data.(*models.Submission)
	assert.Equal(t, "v2", updated.Content)

	_, err := h.call(stud2, "submission", "get", map[string]interface{}{"id": sub.ID})
	requireCode(t, err, "FORBIDDEN")
	_, err = h.call(lect2, "submission", "get", map[string]interface{}{"id": sub.ID})
	requireCode(t, err, "FORBIDDEN")
	h.mustCall(lect1, "submission", "get", map[string]interface{}{"id": sub.ID})
}

func TestNonEnrolledStudentCannotSubmit(t *testing.T) {
	h := newHarness(t)
	_, hw1 := h.seedCourse()

	_, err := h.call(stud2, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "content": "x"})
	requireCode(t, err, "FORBIDDEN")
	_, err = h.call(stud1, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "student_id": stud2.ID, "content": "x"})
	requireCode(t, err, "FORBIDDEN")
	_, err = h.call(adminP, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "student_id": stud2.ID, "content": "x"})
	requireCode(t, err, "VALIDATION_ERROR")
}

func TestAssignmentNotifiesEachEnrolledStudentOnce(t *testing.T) {
	h := newHarness(t)
	course, hw1 := h.seedCourse()
	h.mustCall(adminP, "enrollment", "create", map[string]interface{}{"course_id": course.ID, "student_id": stud2.ID})

	hw2 := h.mustCall(lect1, "assignment", "create", map[string]interface{}{
		"course_id": course.ID, "title": "HW2", "due_date": time.Now().Add(time.Hour), "max_grade": 10,
	}).Data.(*models.Assignment)

	assert.Len(t, h.notifications(stud1.ID), 2)
	assert.Len(t, h.notifications(stud2.ID), 1)
	assert.Empty(t, h.notifications(lect1.ID))

	// Redelivering the same event writes nothing new.
	writer := fanout.NewWriter(h.store.Enrollments, h.store.Notifications, nil, nil)
	created, err := writer.Deliver(context.Background(), fanout.AssignmentCreated(*hw2, lect1.ID))
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Len(t, h.notifications(stud2.ID), 1)
	assert.NotEqual(t, hw1.ID, hw2.ID)
}

func TestUnknownActionAndUnauthenticated(t *testing.T) {
	h := newHarness(t)

	_, err := h.call(adminP, "course", "archive", nil)
	requireCode(t, err, "UNKNOWN_ACTION")
	_, err = h.call(adminP, "billing", "create", nil)
	requireCode(t, err, "UNKNOWN_ACTION")

	_, err = h.callCtx(context.Background(), "course", "list", nil)
	requireCode(t, err, "UNAUTHENTICATED")

	snapshot := h.metrics.Snapshot()
	assert.Equal(t, uint64(3), snapshot.ActionsTotal)
	assert.Equal(t, uint64(3), snapshot.ActionsFailed)
}

func TestMalformedPayloads(t *testing.T) {
	h := newHarness(t)

	_, err := h.call(lect1, "course", "create", map[string]interface{}{"title": "CS101", "colour": "red"})
	requireCode(t, err, "VALIDATION_ERROR")
	_, err = h.call(lect1, "course", "create", map[string]interface{}{})
	requireCode(t, err, "VALIDATION_ERROR")
	_, err = h.call(lect1, "grading", "grade", map[string]interface{}{"submission_id": "s-1"})
	requireCode(t, err, "VALIDATION_ERROR")
	_, err = h.call(adminP, "enrollment", "update_status", map[string]interface{}{"id": "e-1", "status": "paused"})
	requireCode(t, err, "VALIDATION_ERROR")
}

func TestCourseOwnershipRules(t *testing.T) {
	h := newHarness(t)
	course, _ := h.seedCourse()

	_, err := h.call(stud1, "course", "create", map[string]interface{}{"title": "Hack"})
	requireCode(t, err, "FORBIDDEN")
	_, err = h.call(lect1, "course", "create", map[string]interface{}{"title": "X", "lecturer_id": lect2.ID})
	requireCode(t, err, "FORBIDDEN")
	_, err = h.call(adminP, "course", "create", map[string]interface{}{"title": "X"})
	requireCode(t, err, "VALIDATION_ERROR")
	_, err = h.call(adminP, "course", "create", map[string]interface{}{"title": "X", "lecturer_id": stud1.ID})
	requireCode(t, err, "VALIDATION_ERROR")
	byAdmin := h.mustCall(adminP, "course", "create", map[string]interface{}{"title": "CS102", "lecturer_id": lect2.ID}).Data.(*models.Course)
	assert.Equal(t, lect2.ID, byAdmin.CreatedBy)

	_, err = h.call(lect2, "course", "update", map[string]interface{}{"id": course.ID, "title": "Stolen"})
	requireCode(t, err, "FORBIDDEN")
	updated := h.mustCall(lect1, "course", "update", map[string]interface{}{"id": course.ID, "title": "CS101 Fall"}).Data.(*models.Course)
	assert.Equal(t, "CS101 Fall", updated.Title)
	h.mustCall(adminP, "course", "update", map[string]interface{}{"id": course.ID, "title": "CS101 Winter"})

	got := h.mustCall(stud2, "course", "get", map[string]interface{}{"id": course.ID}).Data.(*models.Course)
	assert.Equal(t, "CS101 Winter", got.Title)

	_, err = h.call(lect1, "course", "get", map[string]interface{}{"id": "missing"})
	requireCode(t, err, "NOT_FOUND")

	list := h.mustCall(lect2, "course", "list", map[string]interface{}{"mine": true})
	require.NotNil(t, list.Pagination)
	assert.Equal(t, 1, list.Pagination.TotalCount)
	assert.Equal(t, 20, list.Pagination.PageSize)

	_, err = h.call(lect2, "course", "delete", map[string]interface{}{"id": course.ID})
	requireCode(t, err, "FORBIDDEN")
	h.mustCall(lect1, "course", "delete", map[string]interface{}{"id": course.ID})
	_, err = h.call(lect1, "course", "get", map[string]interface{}{"id": course.ID})
	requireCode(t, err, "NOT_FOUND")
}

func TestEnrollmentScopes(t *testing.T) {
	h := newHarness(t)
	course, _ := h.seedCourse()
	other := h.mustCall(lect2, "course", "create", map[string]interface{}{"title": "MATH1"}).Data.(*models.Course)
	h.mustCall(stud2, "enrollment", "create", map[string]interface{}{"course_id": other.ID})

	_, err := h.call(stud1, "enrollment", "create", map[string]interface{}{"course_id": other.ID, "student_id": stud2.ID})
	requireCode(t, err, "FORBIDDEN")
	_, err = h.call(lect1, "enrollment", "create", map[string]interface{}{"course_id": course.ID, "student_id": stud2.ID})
	requireCode(t, err, "FORBIDDEN")

	mine := h.mustCall(lect1, "enrollment", "list", map[string]interface{}{}).Data.([]models.Enrollment)
	require.Len(t, mine, 1)
	assert.Equal(t, stud1.ID, mine[0].StudentID)

	_, err = h.call(stud1, "enrollment", "list", map[string]interface{}{"student_id": stud2.ID})
	requireCode(t, err, "FORBIDDEN")

	_, err = h.call(lect2, "enrollment", "list", map[string]interface{}{"course_id": course.ID})
	requireCode(t, err, "FORBIDDEN")
	byCourse := h.mustCall(lect1, "enrollment", "list", map[string]interface{}{"course_id": course.ID}).Data.([]models.Enrollment)
	assert.Len(t, byCourse, 1)
	ownInOther := h.mustCall(stud1, "enrollment", "list", map[string]interface{}{"course_id": other.ID}).Data.([]models.Enrollment)
	assert.Empty(t, ownInOther)

	all := h.mustCall(adminP, "enrollment", "list", map[string]interface{}{}).Data.([]models.Enrollment)
	assert.Len(t, all, 2)

	_, err = h.call(stud1, "enrollment", "update_status", map[string]interface{}{"id": mine[0].ID, "status": "withdrawn"})
	requireCode(t, err, "FORBIDDEN")
	withdrawn := h.mustCall(adminP, "enrollment", "update_status", map[string]interface{}{"id": mine[0].ID, "status": "withdrawn"}).Data.(*models.Enrollment)
	assert.Equal(t, models.EnrollmentStatusWithdrawn, withdrawn.Status)

	_, err = h.call(stud1, "assignment", "list", map[string]interface{}{"course_id": course.ID})
	requireCode(t, err, "FORBIDDEN")
}

func TestSubmissionListScopes(t *testing.T) {
	h := newHarness(t)
	course, hw1 := h.seedCourse()
	h.mustCall(adminP, "enrollment", "create", map[string]interface{}{"course_id": course.ID, "student_id": stud2.ID})
	h.mustCall(stud1, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "content": "a"})
	h.mustCall(stud2, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "content": "b"})

	own := h.mustCall(stud1, "submission", "list", map[string]interface{}{"assignment_id": hw1.ID}).Data.([]models.Submission)
	require.Len(t, own, 1)
	assert.Equal(t, stud1.ID, own[0].StudentID)

	_, err := h.call(stud1, "submission", "list", map[string]interface{}{"student_id": stud2.ID})
	requireCode(t, err, "FORBIDDEN")

	assert.Len(t, h.mustCall(lect1, "submission", "list", map[string]interface{}{}).Data.([]models.Submission), 2)
	assert.Empty(t, h.mustCall(lect2, "submission", "list", map[string]interface{}{}).Data.([]models.Submission))
	_, err = h.call(lect2, "submission", "list", map[string]interface{}{"assignment_id": hw1.ID})
	requireCode(t, err, "FORBIDDEN")
	assert.Len(t, h.mustCall(lect1, "submission", "list", map[string]interface{}{"assignment_id": hw1.ID}).Data.([]models.Submission), 2)

	_, err = h.call(lect1, "submission", "delete", map[string]interface{}{"id": own[0].ID})
	requireCode(t, err, "FORBIDDEN")
	h.mustCall(adminP, "submission", "delete", map[string]interface{}{"id": own[0].ID})
}

func TestNotificationActionsAreOwnerOnly(t *testing.T) {
	h := newHarness(t)
	h.seedCourse()
	notes := h.notifications(stud1.ID)
	require.Len(t, notes, 1)

	_, err := h.call(stud2, "notification", "mark_read", map[string]interface{}{"id": notes[0].ID})
	requireCode(t, err, "FORBIDDEN")
	_, err = h.call(adminP, "notification", "mark_read", map[string]interface{}{"id": notes[0].ID})
	requireCode(t, err, "FORBIDDEN")

	read := h.mustCall(stud1, "notification", "mark_read", map[string]interface{}{"id": notes[0].ID}).Data.(*models.Notification)
	assert.True(t, read.Read)

	unread := h.mustCall(stud1, "notification", "list", map[string]interface{}{"unread_only": true}).Data.([]models.Notification)
	assert.Empty(t, unread)

	res := h.mustCall(lect1, "notification", "mark_all_read", nil)
	assert.Equal(t, int64(0), res.Data.(dto.MarkAllReadResponse).Updated)
}

type racingCourses struct {
	repository.CourseStore
	beforeUpdate func(ctx context.Context, id string)
}

func (r *racingCourses) Update(ctx context.Context, course *models.Course, owner string) error {
	r.beforeUpdate(ctx, course.ID)
	return r.CourseStore.Update(ctx, course, owner)
}

func TestGuardFailureIsReevaluated(t *testing.T) {
	h := newHarness(t)
	course, _ := h.seedCourse()
	inner := h.store.Courses

	// The course disappears between authorization and the guarded write.
	h.store.Courses = &racingCourses{CourseStore: inner, beforeUpdate: func(ctx context.Context, id string) {
		require.NoError(t, inner.Delete(ctx, id, ""))
	}}
	_, err := h.call(lect1, "course", "update", map[string]interface{}{"id": course.ID, "title": "gone"})
	requireCode(t, err, "NOT_FOUND")

	// The guard rejects while a fresh snapshot still allows: reported as a conflict.
	second := h.mustCall(lect1, "course", "create", map[string]interface{}{"title": "CS103"}).Data.(*models.Course)
	h.store.Courses = &guardRejecting{CourseStore: inner}
	_, err = h.call(lect1, "course", "update", map[string]interface{}{"id": second.ID, "title": "x"})
	requireCode(t, err, "CONFLICT")
}

type guardRejecting struct {
	repository.CourseStore
}

func (g *guardRejecting) Update(context.Context, *models.Course, string) error {
	return repository.ErrGuardFailed
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []fanout.Event
	ctxErr []error
	fail   error
}

func (r *recordingNotifier) Notify(ctx context.Context, ev fanout.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.ctxErr = append(r.ctxErr, ctx.Err())
	return r.fail
}

func (r *recordingNotifier) Mode() string { return "test" }

func TestMutationOutlivesCallerCancellation(t *testing.T) {
	h := newHarness(t)
	course := h.mustCall(lect1, "course", "create", map[string]interface{}{"title": "CS101"}).Data.(*models.Course)

	notifier := &recordingNotifier{}
	h.d.notifier = notifier
	ctx, err := identity.WithPrincipal(context.Background(), lect1)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(ctx)
	cancel()

	res, err := h.callCtx(ctx, "assignment", "create", map[string]interface{}{
		"course_id": course.ID, "title": "HW1", "due_date": time.Now().Add(time.Hour), "max_grade": 10,
	})
	require.NoError(t, err)
	assert.True(t, res.Created)
	require.Len(t, notifier.events, 1)
	assert.NoError(t, notifier.ctxErr[0])
	assert.Equal(t, "assignment.created:"+res.Data.(*models.Assignment).ID, notifier.events[0].Key)
}

func TestNotificationFailureIsSwallowed(t *testing.T) {
	h := newHarness(t)
	course := h.mustCall(lect1, "course", "create", map[string]interface{}{"title": "CS101"}).Data.(*models.Course)
	h.d.notifier = &recordingNotifier{fail: errors.New("broker down")}

	res, err := h.call(lect1, "assignment", "create", map[string]interface{}{
		"course_id": course.ID, "title": "HW1", "due_date": time.Now().Add(time.Hour), "max_grade": 10,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Data)
	assert.Equal(t, uint64(1), h.metrics.Snapshot().NotificationFailures)

	assignments, err := h.store.Assignments.ListByCourse(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 1)
}

func TestAnalyticsActions(t *testing.T) {
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	h := newHarness(t)
	analytics := service.NewAnalyticsService(h.store.Analytics, nil, h.metrics, nil, true)
	exports := service.NewExportService(h.store.Analytics, files, signer, h.metrics, service.ExportConfig{}, nil)
	h.d.analytics = analytics
	h.d.exports = exports

	course, hw1 := h.seedCourse()
	sub := h.mustCall(stud1, "submission", "create", map[string]interface{}{"assignment_id": hw1.ID, "content": "a"}).Data.(*models.Submission)
	h.mustCall(lect1, "grading", "grade", map[string]interface{}{"submission_id": sub.ID, "grade": 80})

	summary := h.mustCall(lect1, "analytics", "course_summary", map[string]interface{}{"course_id": course.ID}).Data.(*models.CourseSummary)
	assert.Equal(t, 1, summary.ActiveEnrollments)
	assert.Equal(t, 1, summary.GradedSubmissions)
	_, err = h.call(lect2, "analytics", "course_summary", map[string]interface{}{"course_id": course.ID})
	requireCode(t, err, "FORBIDDEN")
	_, err = h.call(stud1, "analytics", "course_summary", map[string]interface{}{"course_id": course.ID})
	requireCode(t, err, "FORBIDDEN")

	progress := h.mustCall(stud1, "analytics", "student_progress", map[string]interface{}{"course_id": course.ID}).Data.(*models.StudentProgress)
	assert.Equal(t, 1, progress.Graded)
	_, err = h.call(stud2, "analytics", "student_progress", map[string]interface{}{"course_id": course.ID, "student_id": stud1.ID})
	requireCode(t, err, "FORBIDDEN")
	h.mustCall(lect1, "analytics", "student_progress", map[string]interface{}{"course_id": course.ID, "student_id": stud1.ID})

	exported := h.mustCall(lect1, "analytics", "export_gradebook", map[string]interface{}{"course_id": course.ID, "format": "csv"}).Data.(*service.ExportResult)
	assert.Equal(t, 1, exported.Rows)
	assert.Contains(t, exported.URL, "/api/v1/exports/")
	_, err = h.call(stud1, "analytics", "export_gradebook", map[string]interface{}{"course_id": course.ID, "format": "csv"})
	requireCode(t, err, "FORBIDDEN")

	h.d.analytics = service.NewAnalyticsService(h.store.Analytics, nil, nil, nil, false)
	_, err = h.call(lect1, "analytics", "course_summary", map[string]interface{}{"course_id": course.ID})
	requireCode(t, err, "FEATURE_DISABLED")
}

func TestActionsListing(t *testing.T) {
	h := newHarness(t)
	actions := h.d.Actions()

	assert.Len(t, actions, 7)
	assert.Equal(t, []string{"create", "delete", "get", "list", "update"}, actions["course"])
	assert.Equal(t, []string{"grade"}, actions["grading"])
	assert.Equal(t, []string{"create", "list", "update_status"}, actions["enrollment"])
}
