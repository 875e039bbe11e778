package models

import "time"

// NotificationType enumerates the events that produce notifications.
type NotificationType string

const (
	NotificationAssignmentCreated NotificationType = "assignment_created"
	NotificationSubmissionCreated NotificationType = "submission_created"
	NotificationSubmissionGraded  NotificationType = "submission_graded"
)

// Notification is append-only except for Read. (UserID, EventKey) is unique so a
// redelivered event never produces a second row.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Type      NotificationType `db:"type" json:"type"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Read      bool             `db:"read" json:"read"`
	EventKey  string           `db:"event_key" json:"-"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// NotificationFilter narrows a user's notification listing.
type NotificationFilter struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}
