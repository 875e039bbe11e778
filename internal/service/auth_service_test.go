package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/classroom-gate-api/internal/identity"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
	"github.com/noah-isme/classroom-gate-api/internal/repository/memory"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

type mockAuthRepo struct {
	users map[string]*models.User
	err   error
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, fmt.Errorf("find user by email: %w", repository.ErrNotFound)
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("find user by id: %w", repository.ErrNotFound)
}

func newAuthRepo(t *testing.T, active bool) *mockAuthRepo {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &mockAuthRepo{users: map[string]*models.User{
		"lect-1": {ID: "lect-1", Email: "lecturer@example.com", PasswordHash: string(hash), FullName: "Dr. L", Role: models.RoleLecturer, Active: active},
	}}
}

var testAuthConfig = AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "classroom-gate-api"}

func TestAuthServiceLoginIssuesResolvableToken(t *testing.T) {
	repo := newAuthRepo(t, true)
	svc := NewAuthService(repo, nil, nil, testAuthConfig)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "lecturer@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(3600), resp.ExpiresIn)
	assert.Equal(t, models.RoleLecturer, resp.User.Role)

	resolver := identity.NewResolver(repo, nil, identity.Config{Secret: "secret", Issuer: "classroom-gate-api"}, nil)
	principal, err := resolver.Resolve(context.Background(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.Principal{ID: "lect-1", Role: models.RoleLecturer}, principal)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	tests := []struct {
		name    string
		repo    *mockAuthRepo
		req     models.LoginRequest
		wantErr *appErrors.Error
	}{
		{"invalid payload", newAuthRepo(t, true), models.LoginRequest{Email: "nope"}, appErrors.ErrValidation},
		{"unknown email", newAuthRepo(t, true), models.LoginRequest{Email: "ghost@example.com", Password: "x"}, appErrors.ErrInvalidLogin},
		{"wrong password", newAuthRepo(t, true), models.LoginRequest{Email: "lecturer@example.com", Password: "bad"}, appErrors.ErrInvalidLogin},
		{"inactive", newAuthRepo(t, false), models.LoginRequest{Email: "lecturer@example.com", Password: "password123"}, appErrors.ErrUnauthenticated},
		{"store down", &mockAuthRepo{err: errors.New("dial tcp")}, models.LoginRequest{Email: "lecturer@example.com", Password: "x"}, appErrors.ErrStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewAuthService(tt.repo, nil, nil, testAuthConfig)
			_, err := svc.Login(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestHashPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestEnsureAdminSeedsOnce(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	created, err := EnsureAdmin(ctx, store.Users, "root@example.com", "password123")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = EnsureAdmin(ctx, store.Users, "root@example.com", "password123")
	require.NoError(t, err)
	assert.False(t, created)

	svc := NewAuthService(store.Users, nil, nil, testAuthConfig)
	resp, err := svc.Login(ctx, models.LoginRequest{Email: "root@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)

	created, err = EnsureAdmin(ctx, store.Users, "", "")
	require.NoError(t, err)
	assert.False(t, created)
}
