package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-gate-api/internal/dispatch"
	"github.com/noah-isme/classroom-gate-api/internal/dto"
	"github.com/noah-isme/classroom-gate-api/internal/middleware"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
	"github.com/noah-isme/classroom-gate-api/pkg/response"
)

type actionDispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Result, error)
	Actions() map[string][]string
}

// ActionHandler exposes the action dispatcher over HTTP.
type ActionHandler struct {
	dispatcher actionDispatcher
}

// NewActionHandler constructs the action handler.
func NewActionHandler(dispatcher actionDispatcher) *ActionHandler {
	return &ActionHandler{dispatcher: dispatcher}
}

// Execute godoc
// @Summary Dispatch an action
// @Description Runs one (service, action) pair on behalf of the authenticated principal
// @Tags Actions
// @Accept json
// @Produce json
// @Param payload body dto.ActionRequest true "Action envelope"
// @Success 200 {object} response.Envelope
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /actions [post]
func (h *ActionHandler) Execute(c *gin.Context) {
	var req dto.ActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid action envelope"))
		return
	}

	result, err := h.dispatcher.Dispatch(c.Request.Context(), dispatch.Request{
		Service: req.Service,
		Action:  req.Action,
		Data:    req.Data,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	response.JSON(c, status, result.Data, result.Pagination, middleware.ExtractMeta(c))
}

// Catalog godoc
// @Summary List supported actions
// @Tags Actions
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /actions [get]
func (h *ActionHandler) Catalog(c *gin.Context) {
	response.OK(c, h.dispatcher.Actions())
}
