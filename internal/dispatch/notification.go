package dispatch

import (
	"context"

	"github.com/noah-isme/classroom-gate-api/internal/dto"
	"github.com/noah-isme/classroom-gate-api/internal/fanout"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/policy"
)

func (d *Dispatcher) listNotifications(ctx context.Context, p models.Principal, in dto.ListNotificationsRequest) (*outcome, error) {
	notifications, err := d.store.Notifications.List(ctx, models.NotificationFilter{
		UserID:     p.ID,
		UnreadOnly: in.UnreadOnly,
		Limit:      in.Limit,
	})
	if err != nil {
		return nil, err
	}
	return read(notifications), nil
}

func (d *Dispatcher) markNotificationRead(ctx context.Context, p models.Principal, in dto.NotificationIDRequest) (*outcome, error) {
	notification, err := d.loadNotificationFor(ctx, p, in.ID)
	if err != nil {
		return nil, err
	}
	return mutate(&write{
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			if err := d.store.Notifications.MarkRead(ctx, in.ID, p.ID); err != nil {
				return nil, nil, err
			}
			updated := *notification
			updated.Read = true
			return &updated, nil, nil
		},
		recheck: func(ctx context.Context) error {
			_, err := d.loadNotificationFor(ctx, p, in.ID)
			return err
		},
	}), nil
}

func (d *Dispatcher) markAllNotificationsRead(_ context.Context, p models.Principal, _ dto.MarkAllReadRequest) (*outcome, error) {
	return mutate(&write{
		apply: func(ctx context.Context) (interface{}, *fanout.Event, error) {
			n, err := d.store.Notifications.MarkAllRead(ctx, p.ID)
			if err != nil {
				return nil, nil, err
			}
			return dto.MarkAllReadResponse{Updated: n}, nil, nil
		},
	}), nil
}

func (d *Dispatcher) loadNotificationFor(ctx context.Context, p models.Principal, id string) (*models.Notification, error) {
	notification, err := d.store.Notifications.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(p, policy.ActionUpdate, policy.NotificationSnapshot{UserID: notification.UserID}); err != nil {
		return nil, err
	}
	return notification, nil
}
