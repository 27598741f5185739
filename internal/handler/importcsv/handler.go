package importcsv

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/deadline-tracker/internal/handler"
	"github.com/jwalitptl/deadline-tracker/internal/middleware"
	"github.com/jwalitptl/deadline-tracker/internal/service/importer"
	"github.com/jwalitptl/deadline-tracker/internal/service/user"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

type Handler struct {
	importSvc *importer.Service
	userSvc   *user.Service
}

func NewHandler(importSvc *importer.Service, userSvc *user.Service) *Handler {
	return &Handler{importSvc: importSvc, userSvc: userSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/import", h.Import)
}

// Import accepts a multipart CSV upload under the "file" field and
// returns a per-row summary.
func (h *Handler) Import(c *gin.Context) {
	u, err := h.userSvc.GetUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		handler.Error(c, errors.Validation("missing csv file", err))
		return
	}

	f, err := fh.Open()
	if err != nil {
		handler.Error(c, errors.Validation("unreadable csv file", err))
		return
	}
	defer f.Close()

	summary, err := h.importSvc.Import(c.Request.Context(), u, f)
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, summary)
}
