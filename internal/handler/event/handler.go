package event

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/handler"
	"github.com/jwalitptl/deadline-tracker/internal/middleware"
	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/service/event"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
)

type Handler struct {
	svc *event.Service
}

func NewHandler(svc *event.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/events", h.Create)
	r.GET("/events", h.List)
	r.GET("/events/:id", h.Get)
	r.PUT("/events/:id", h.Update)
	r.DELETE("/events/:id", h.Delete)
	r.POST("/events/:id/done", h.MarkDone)
	r.POST("/events/:id/archive", h.Archive)
}

func (h *Handler) Create(c *gin.Context) {
	var req model.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	ev, err := h.svc.CreateEvent(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusCreated, ev)
}

func (h *Handler) List(c *gin.Context) {
	var filters model.EventFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	events, err := h.svc.ListEvents(c.Request.Context(), middleware.UserID(c), &filters)
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, events)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		handler.Error(c, err)
		return
	}

	ev, err := h.svc.GetEvent(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, ev)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		handler.Error(c, err)
		return
	}

	var req model.UpdateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	ev, err := h.svc.UpdateEvent(c.Request.Context(), middleware.UserID(c), id, &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, ev)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		handler.Error(c, err)
		return
	}

	if err := h.svc.DeleteEvent(c.Request.Context(), middleware.UserID(c), id); err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, nil)
}

func (h *Handler) MarkDone(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		handler.Error(c, err)
		return
	}

	if err := h.svc.MarkDone(c.Request.Context(), middleware.UserID(c), id); err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, nil)
}

func (h *Handler) Archive(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		handler.Error(c, err)
		return
	}

	if err := h.svc.Archive(c.Request.Context(), middleware.UserID(c), id); err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, nil)
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.Validation("invalid event id", err)
	}
	return id, nil
}
