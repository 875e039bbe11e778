package fanout

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

type enrollmentLister interface {
	ActiveStudentIDs(ctx context.Context, courseID string) ([]string, error)
}

type notificationInserter interface {
	Insert(ctx context.Context, notifications []models.Notification) (int, error)
}

// Recorder receives fan-out counters. service.MetricsService implements it.
type Recorder interface {
	RecordNotifications(created int)
	RecordNotificationFailure(mode string)
}

type nopRecorder struct{}

func (nopRecorder) RecordNotifications(int)          {}
func (nopRecorder) RecordNotificationFailure(string) {}

// Writer computes recipients and writes notification rows. Every delivery mode ends here.
type Writer struct {
	enrollments   enrollmentLister
	notifications notificationInserter
	recorder      Recorder
	logger        *zap.Logger
}

// NewWriter constructs a Writer. recorder and logger may be nil.
func NewWriter(enrollments enrollmentLister, notifications notificationInserter, recorder Recorder, logger *zap.Logger) *Writer {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{enrollments: enrollments, notifications: notifications, recorder: recorder, logger: logger}
}

// Recipients returns the distinct users to notify for ev.
func (w *Writer) Recipients(ctx context.Context, ev Event) ([]string, error) {
	var ids []string
	switch ev.Type {
	case models.NotificationAssignmentCreated:
		students, err := w.enrollments.ActiveStudentIDs(ctx, ev.CourseID)
		if err != nil {
			return nil, fmt.Errorf("load course students: %w", err)
		}
		ids = students
	case models.NotificationSubmissionCreated:
		ids = []string{ev.LecturerID}
	case models.NotificationSubmissionGraded:
		ids = []string{ev.StudentID}
	default:
		return nil, fmt.Errorf("unknown event type %q", ev.Type)
	}
	return lo.Uniq(lo.Filter(ids, func(id string, _ int) bool { return id != "" })), nil
}

// Deliver writes one row per recipient. Rows already written for ev.Key are skipped, so
// redelivery of the same event is safe.
func (w *Writer) Deliver(ctx context.Context, ev Event) (int, error) {
	if ev.Key == "" {
		return 0, fmt.Errorf("event %q has no key", ev.Type)
	}
	recipients, err := w.Recipients(ctx, ev)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	title, message := ev.content()
	rows := lo.Map(recipients, func(userID string, _ int) models.Notification {
		return models.Notification{
			UserID:   userID,
			Type:     ev.Type,
			Title:    title,
			Message:  message,
			EventKey: ev.Key,
		}
	})

	created, err := w.notifications.Insert(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("insert notifications for %s: %w", ev.Key, err)
	}
	w.recorder.RecordNotifications(created)
	w.logger.Debug("notifications written",
		zap.String("event_key", ev.Key),
		zap.Int("recipients", len(recipients)),
		zap.Int("created", created),
	)
	return created, nil
}
