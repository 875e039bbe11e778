package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-gate-api/internal/middleware"
	"github.com/noah-isme/classroom-gate-api/internal/models"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
	"github.com/noah-isme/classroom-gate-api/pkg/response"
)

type loginService interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service loginService
	users   userFinder
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc loginService, users userFinder) *AuthHandler {
	return &AuthHandler{service: svc, users: users}
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, res, nil)
}

// Me godoc
// @Summary Get current user
// @Description Returns the authenticated principal's profile
// @Tags Authentication
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	principal, ok := middleware.PrincipalFromGin(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	user, err := h.users.FindByID(c.Request.Context(), principal.ID)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthenticated, "principal no longer exists"))
		return
	}

	response.JSON(c, http.StatusOK, models.UserInfo{
		ID:       user.ID,
		Email:    user.Email,
		FullName: user.FullName,
		Role:     principal.Role,
	}, nil)
}
