package policy

import "github.com/noah-isme/classroom-gate-api/internal/models"

// NotificationSnapshot identifies the recipient.
type NotificationSnapshot struct {
	UserID string
}

// CanCreateNotification: never from outside; rows are written by fan-out only.
func CanCreateNotification(models.Principal, NotificationSnapshot) Decision {
	return Deny
}

// CanReadNotification: the recipient only, admins included.
func CanReadNotification(p models.Principal, n NotificationSnapshot) Decision {
	return decide(n.UserID != "" && n.UserID == p.ID)
}

// CanUpdateNotification: the recipient only; the read flag is the only mutable field.
func CanUpdateNotification(p models.Principal, n NotificationSnapshot) Decision {
	return CanReadNotification(p, n)
}

// CanDeleteNotification: notifications are append-only.
func CanDeleteNotification(models.Principal, NotificationSnapshot) Decision {
	return Deny
}

func (n NotificationSnapshot) decide(p models.Principal, action Action) Decision {
	switch action {
	case ActionCreate:
		return CanCreateNotification(p, n)
	case ActionRead:
		return CanReadNotification(p, n)
	case ActionUpdate:
		return CanUpdateNotification(p, n)
	case ActionDelete:
		return CanDeleteNotification(p, n)
	}
	return Deny
}
