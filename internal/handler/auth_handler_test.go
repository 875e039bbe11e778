package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-gate-api/internal/middleware"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	"github.com/noah-isme/classroom-gate-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
)

type loginServiceMock struct {
	got models.LoginRequest
	res *models.LoginResponse
	err error
}

func (m *loginServiceMock) Login(_ context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.got = req
	return m.res, m.err
}

type userFinderMock map[string]models.User

func (m userFinderMock) FindByID(_ context.Context, id string) (*models.User, error) {
	user, ok := m[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &loginServiceMock{res: &models.LoginResponse{AccessToken: "tok", ExpiresIn: 3600}}
	h := NewAuthHandler(svc, userFinderMock{})

	c, w := newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"lee@example.com","password":"secret"}`))
	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "lee@example.com", svc.got.Email)

	svc.err = appErrors.ErrInvalidLogin
	c, w = newGinContext(http.MethodPost, "/auth/login", []byte(`{"email":"lee@example.com","password":"wrong"}`))
	h.Login(c)
	assert.Equal(t, appErrors.ErrInvalidLogin.Status, w.Code)

	c, w = newGinContext(http.MethodPost, "/auth/login", []byte(`not-json`))
	h.Login(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandlerMe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	users := userFinderMock{"lect-1": {ID: "lect-1", Email: "lee@example.com", FullName: "Lee", Role: models.RoleLecturer, Active: true}}
	h := NewAuthHandler(&loginServiceMock{err: errors.New("unused")}, users)

	c, w := newGinContext(http.MethodGet, "/me", nil)
	c.Set(middleware.ContextPrincipalKey, models.Principal{ID: "lect-1", Role: models.RoleLecturer})
	h.Me(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"lect-1","email":"lee@example.com","full_name":"Lee","role":"lecturer"}`, string(decodeEnvelope(t, w).Data))

	c, w = newGinContext(http.MethodGet, "/me", nil)
	h.Me(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(nil, map[string]ReadinessCheck{
		"store": func(context.Context) error { return nil },
	})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	h = NewMetricsHandler(nil, map[string]ReadinessCheck{
		"store": func(context.Context) error { return nil },
		"cache": func(context.Context) error { return errors.New("dial tcp: refused") },
	})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "refused")
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	guard := middleware.RequireRoles(models.RoleAdmin)

	c, w := newGinContext(http.MethodGet, "/admin/metrics", nil)
	c.Set(middleware.ContextPrincipalKey, models.Principal{ID: "stud-1", Role: models.RoleStudent})
	guard(c)
	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, _ = newGinContext(http.MethodGet, "/admin/metrics", nil)
	c.Set(middleware.ContextPrincipalKey, models.Principal{ID: "admin-1", Role: models.RoleAdmin})
	guard(c)
	assert.False(t, c.IsAborted())
}
