package memory

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

type notificationStore struct{ s *state }

func (n *notificationStore) Insert(_ context.Context, notifications []models.Notification) (int, error) {
	now := time.Now().UTC()

	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	seen := make(map[[2]string]struct{}, len(n.s.notifications))
	for _, existing := range n.s.notifications {
		seen[[2]string{existing.UserID, existing.EventKey}] = struct{}{}
	}

	inserted := 0
	for i := range notifications {
		row := &notifications[i]
		key := [2]string{row.UserID, row.EventKey}
		if _, dup := seen[key]; dup {
			continue
		}
		row.ID = newID(row.ID)
		if row.CreatedAt.IsZero() {
			row.CreatedAt = now
		}
		n.s.notifications[row.ID] = *row
		seen[key] = struct{}{}
		inserted++
	}
	return inserted, nil
}

func (n *notificationStore) FindByID(_ context.Context, id string) (*models.Notification, error) {
	n.s.mu.RLock()
	defer n.s.mu.RUnlock()
	row, ok := n.s.notifications[id]
	if !ok {
		return nil, notFound("find notification")
	}
	return &row, nil
}

func (n *notificationStore) List(_ context.Context, filter models.NotificationFilter) ([]models.Notification, error) {
	n.s.mu.RLock()
	var rows []models.Notification
	for _, row := range n.s.notifications {
		if row.UserID != filter.UserID || (filter.UnreadOnly && row.Read) {
			continue
		}
		rows = append(rows, row)
	}
	n.s.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
			return rows[i].CreatedAt.After(rows[j].CreatedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func (n *notificationStore) MarkRead(_ context.Context, id, userID string) error {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	row, ok := n.s.notifications[id]
	if !ok || row.UserID != userID {
		return guardFailed("mark notification read")
	}
	row.Read = true
	n.s.notifications[id] = row
	return nil
}

func (n *notificationStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	n.s.mu.Lock()
	defer n.s.mu.Unlock()
	var changed int64
	for id, row := range n.s.notifications {
		if row.UserID == userID && !row.Read {
			row.Read = true
			n.s.notifications[id] = row
			changed++
		}
	}
	return changed, nil
}
