package user

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/deadline-tracker/internal/handler"
	"github.com/jwalitptl/deadline-tracker/internal/middleware"
	"github.com/jwalitptl/deadline-tracker/internal/service/user"
)

type Handler struct {
	svc *user.Service
}

func NewHandler(svc *user.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/me", h.Me)
	r.DELETE("/me", h.Deactivate)
}

func (h *Handler) Me(c *gin.Context) {
	u, err := h.svc.GetUser(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, u)
}

func (h *Handler) Deactivate(c *gin.Context) {
	if err := h.svc.Deactivate(c.Request.Context(), middleware.UserID(c)); err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, nil)
}
