package router

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/deadline-tracker/internal/handler"
	authhandler "github.com/jwalitptl/deadline-tracker/internal/handler/auth"
	eventhandler "github.com/jwalitptl/deadline-tracker/internal/handler/event"
	importhandler "github.com/jwalitptl/deadline-tracker/internal/handler/importcsv"
	labelhandler "github.com/jwalitptl/deadline-tracker/internal/handler/label"
	userhandler "github.com/jwalitptl/deadline-tracker/internal/handler/user"
	"github.com/jwalitptl/deadline-tracker/internal/middleware"
	"github.com/jwalitptl/deadline-tracker/pkg/timeutil"
)

func init() {
	// Request payloads carry reminder offsets as strings; reject malformed
	// ones at binding time so services only ever see the grammar.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("offset", func(fl validator.FieldLevel) bool {
			_, err := timeutil.ParseOffset(fl.Field().String())
			return err == nil
		})
	}
}

type Handlers struct {
	Health *handler.HealthHandler
	Auth   *authhandler.Handler
	User   *userhandler.Handler
	Event  *eventhandler.Handler
	Label  *labelhandler.Handler
	Import *importhandler.Handler
}

// New assembles the gin engine with the shared middleware chain and
// mounts public and authenticated route groups.
func New(h Handlers, authMW *middleware.AuthMiddleware, rlCfg middleware.RateLimiterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.NewRateLimiter(rlCfg).RateLimit())

	r.GET("/health", h.Health.Health)

	public := r.Group("/api/v1")
	h.Auth.RegisterRoutes(public)

	private := r.Group("/api/v1")
	private.Use(authMW.RequireAuth())
	h.User.RegisterRoutes(private)
	h.Event.RegisterRoutes(private)
	h.Label.RegisterRoutes(private)
	h.Import.RegisterRoutes(private)

	return r
}
