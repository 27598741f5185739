package label

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/handler"
	"github.com/jwalitptl/deadline-tracker/internal/middleware"
	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/service/label"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

type Handler struct {
	svc *label.Service
}

func NewHandler(svc *label.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/labels", h.Create)
	r.GET("/labels", h.List)
	r.DELETE("/labels/:id", h.Delete)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	l, err := h.svc.CreateLabel(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusCreated, l)
}

func (h *Handler) List(c *gin.Context) {
	labels, err := h.svc.ListLabels(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, labels)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		handler.Error(c, errors.Validation("invalid label id", err))
		return
	}

	if err := h.svc.DeleteLabel(c.Request.Context(), middleware.UserID(c), id); err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, nil)
}
