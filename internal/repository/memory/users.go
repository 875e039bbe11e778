package memory

import (
	"context"
	"strings"
	"time"

	"github.com/noah-isme/classroom-gate-api/internal/models"
)

type userStore struct{ s *state }

func (u *userStore) FindByID(_ context.Context, id string) (*models.User, error) {
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	user, ok := u.s.users[id]
	if !ok {
		return nil, notFound("find user by id")
	}
	return &user, nil
}

func (u *userStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(email)
	u.s.mu.RLock()
	defer u.s.mu.RUnlock()
	for _, user := range u.s.users {
		if user.Email == email {
			user := user
			return &user, nil
		}
	}
	return nil, notFound("find user by email")
}

func (u *userStore) Create(_ context.Context, user *models.User) error {
	user.ID = newID(user.ID)
	user.Email = strings.ToLower(user.Email)
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	u.s.mu.Lock()
	defer u.s.mu.Unlock()
	if _, ok := u.s.users[user.ID]; ok {
		return conflict("create user", "users_pkey")
	}
	for _, existing := range u.s.users {
		if existing.Email == user.Email {
			return conflict("create user", "users_email_key")
		}
	}
	u.s.users[user.ID] = *user
	return nil
}
