package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-gate-api/internal/service"
	appErrors "github.com/noah-isme/classroom-gate-api/pkg/errors"
	"github.com/noah-isme/classroom-gate-api/pkg/response"
)

type exportOpener interface {
	Open(token string) (*service.ExportDownload, error)
}

// ExportHandler serves rendered gradebooks behind signed links.
type ExportHandler struct {
	exports exportOpener
}

// NewExportHandler constructs the export handler.
func NewExportHandler(exports exportOpener) *ExportHandler {
	return &ExportHandler{exports: exports}
}

// Download godoc
// @Summary Download a gradebook export via signed token
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.ErrFeatureDisabled)
		return
	}
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.exports.Open(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, err := download.File.Stat(); err == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, download.ContentType, download.File, nil)
}
