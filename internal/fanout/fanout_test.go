package fanout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository/memory"
	"github.com/noah-isme/classroom-gate-api/pkg/jobs"
)

type stubEnrollments struct {
	ids []string
	err error
}

func (s stubEnrollments) ActiveStudentIDs(context.Context, string) ([]string, error) {
	return s.ids, s.err
}

type countingRecorder struct {
	created  int
	failures map[string]int
}

func (r *countingRecorder) RecordNotifications(n int) { r.created += n }
func (r *countingRecorder) RecordNotificationFailure(mode string) {
	if r.failures == nil {
		r.failures = map[string]int{}
	}
	r.failures[mode]++
}

func assignmentEvent() Event {
	return AssignmentCreated(models.Assignment{ID: "a1", CourseID: "c1", Title: "HW1", CreatedAt: time.Now()}, "lect-1")
}

func TestEventKeys(t *testing.T) {
	sub := models.SubmissionContext{
		Submission:       models.Submission{ID: "sub1", AssignmentID: "a1", StudentID: "s1"},
		CourseID:         "c1",
		AssignmentTitle:  "HW1",
		CourseLecturerID: "lect-1",
	}
	gradedAt := time.Unix(0, 42)

	assert.Equal(t, "assignment.created:a1", assignmentEvent().Key)
	assert.Equal(t, "submission.created:sub1", SubmissionCreated(sub, "s1").Key)
	assert.Equal(t, "submission.graded:sub1:42", SubmissionGraded(sub, gradedAt, "lect-1").Key)
	assert.Equal(t, "lect-1", SubmissionCreated(sub, "s1").LecturerID)
}

func TestRecipientsAreDistinct(t *testing.T) {
	w := NewWriter(stubEnrollments{ids: []string{"s1", "s2", "s1", "", "s3", "s2"}}, memory.New().Notifications, nil, nil)

	ids, err := w.Recipients(context.Background(), assignmentEvent())
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2", "s3"}, ids)

	graded := Event{Type: models.NotificationSubmissionGraded, StudentID: "s9"}
	ids, err = w.Recipients(context.Background(), graded)
	require.NoError(t, err)
	assert.Equal(t, []string{"s9"}, ids)

	_, err = w.Recipients(context.Background(), Event{Type: "unknown"})
	assert.Error(t, err)
}

func TestDeliverWritesOneRowPerRecipientOnce(t *testing.T) {
	store := memory.New()
	recorder := &countingRecorder{}
	w := NewWriter(stubEnrollments{ids: []string{"s1", "s2", "s1"}}, store.Notifications, recorder, nil)
	ev := assignmentEvent()

	created, err := w.Deliver(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	created, err = w.Deliver(context.Background(), ev)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, 2, recorder.created)

	rows, err := store.Notifications.List(context.Background(), models.NotificationFilter{UserID: "s1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, models.NotificationAssignmentCreated, rows[0].Type)
	assert.Contains(t, rows[0].Message, "HW1")
}

func TestDeliverPropagatesLookupFailure(t *testing.T) {
	w := NewWriter(stubEnrollments{err: errors.New("db down")}, memory.New().Notifications, nil, nil)
	_, err := w.Deliver(context.Background(), assignmentEvent())
	assert.Error(t, err)
}

func TestSyncNotifierWritesBeforeReturning(t *testing.T) {
	store := memory.New()
	n := NewSyncNotifier(NewWriter(stubEnrollments{ids: []string{"s1"}}, store.Notifications, nil, nil))
	assert.Equal(t, ModeSync, n.Mode())

	require.NoError(t, n.Notify(context.Background(), assignmentEvent()))
	rows, err := store.Notifications.List(context.Background(), models.NotificationFilter{UserID: "s1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQueueNotifierDeliversBeforeStopReturns(t *testing.T) {
	store := memory.New()
	w := NewWriter(stubEnrollments{ids: []string{"s1"}}, store.Notifications, nil, nil)
	n := NewQueueNotifier(w, jobs.QueueConfig{Workers: 1, RetryDelay: time.Millisecond})
	n.Start(context.Background())

	require.NoError(t, n.Notify(context.Background(), assignmentEvent()))
	n.Stop()

	rows, err := store.Notifications.List(context.Background(), models.NotificationFilter{UserID: "s1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, ModeQueue, n.Mode())
}

type capturePublisher struct {
	keys     []string
	payloads [][]byte
}

func (p *capturePublisher) Send(_ context.Context, key string, message interface{}) error {
	raw, err := json.Marshal(message)
	if err != nil {
		return err
	}
	p.keys = append(p.keys, key)
	p.payloads = append(p.payloads, raw)
	return nil
}

func TestKafkaRoundTripIsIdempotent(t *testing.T) {
	pub := &capturePublisher{}
	require.NoError(t, NewKafkaNotifier(pub).Notify(context.Background(), assignmentEvent()))
	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "assignment.created:a1", pub.keys[0])

	store := memory.New()
	w := NewWriter(stubEnrollments{ids: []string{"s1", "s2"}}, store.Notifications, nil, nil)
	handle := MessageHandler(w, nil)

	// At-least-once delivery: the same message may arrive twice.
	require.NoError(t, handle(context.Background(), []byte(pub.keys[0]), pub.payloads[0]))
	require.NoError(t, handle(context.Background(), []byte(pub.keys[0]), pub.payloads[0]))

	for _, user := range []string{"s1", "s2"} {
		rows, err := store.Notifications.List(context.Background(), models.NotificationFilter{UserID: user})
		require.NoError(t, err)
		assert.Len(t, rows, 1, user)
	}

	assert.NoError(t, handle(context.Background(), nil, []byte("{not json")))
}
