package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/deadline-tracker/internal/handler"
	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/service/auth"
	"github.com/jwalitptl/deadline-tracker/internal/service/user"
)

type Handler struct {
	authSvc *auth.Service
	userSvc *user.Service
}

func NewHandler(authSvc *auth.Service, userSvc *user.Service) *Handler {
	return &Handler{authSvc: authSvc, userSvc: userSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/auth/login", h.Login)
	r.POST("/auth/register", h.Register)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	token, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusOK, gin.H{"token": token})
}

func (h *Handler) Register(c *gin.Context) {
	var req model.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": err.Error()})
		return
	}

	u, err := h.userSvc.CreateUser(c.Request.Context(), &req)
	if err != nil {
		handler.Error(c, err)
		return
	}

	handler.OK(c, http.StatusCreated, u)
}
