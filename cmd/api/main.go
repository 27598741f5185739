package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/deadline-tracker/internal/clock"
	"github.com/jwalitptl/deadline-tracker/internal/config"
	"github.com/jwalitptl/deadline-tracker/internal/handler"
	authHandler "github.com/jwalitptl/deadline-tracker/internal/handler/auth"
	eventHandler "github.com/jwalitptl/deadline-tracker/internal/handler/event"
	importHandler "github.com/jwalitptl/deadline-tracker/internal/handler/importcsv"
	labelHandler "github.com/jwalitptl/deadline-tracker/internal/handler/label"
	userHandler "github.com/jwalitptl/deadline-tracker/internal/handler/user"
	"github.com/jwalitptl/deadline-tracker/internal/middleware"
	"github.com/jwalitptl/deadline-tracker/internal/repository/postgres"
	"github.com/jwalitptl/deadline-tracker/internal/router"
	"github.com/jwalitptl/deadline-tracker/internal/scheduler"
	authService "github.com/jwalitptl/deadline-tracker/internal/service/auth"
	eventService "github.com/jwalitptl/deadline-tracker/internal/service/event"
	importerService "github.com/jwalitptl/deadline-tracker/internal/service/importer"
	labelService "github.com/jwalitptl/deadline-tracker/internal/service/label"
	"github.com/jwalitptl/deadline-tracker/internal/service/materializer"
	userService "github.com/jwalitptl/deadline-tracker/internal/service/user"
	"github.com/jwalitptl/deadline-tracker/pkg/logger"
	"github.com/jwalitptl/deadline-tracker/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLog := logger.NewLogger(nil)

	if err := postgres.RunMigrations(cfg.Database.URL()); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	store := postgres.NewStore(db)
	m := metrics.NewMetrics("tracker", "api")
	clk := clock.New()

	// The API only arms and cancels reminders; firing belongs to the worker
	// polling the same sorted set.
	sched, err := scheduler.NewRedisAdapter(cfg.Redis.URL, nil,
		scheduler.RedisAdapterConfig{PollInterval: cfg.Reminder.PollInterval}, appLog, m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer sched.Close()

	matSvc := materializer.NewService(store, sched, clk, cfg.Reminder.PastDueGrace, appLog.Component("materializer"))
	userSvc := userService.NewService(store)
	authSvc := authService.NewService(store, authService.Config{
		Secret:      cfg.JWT.Secret,
		ExpiryHours: cfg.JWT.ExpiryHours,
	})
	eventSvc := eventService.NewService(store, matSvc, cfg.Reminder.DefaultOffsets)
	labelSvc := labelService.NewService(store)
	importSvc := importerService.NewService(store, matSvc, cfg.Reminder.DefaultOffsets, appLog.Component("importer"))

	authMiddleware := middleware.NewAuthMiddleware(authSvc)

	engine := router.New(router.Handlers{
		Health: handler.NewHealthHandler(db),
		Auth:   authHandler.NewHandler(authSvc, userSvc),
		User:   userHandler.NewHandler(userSvc),
		Event:  eventHandler.NewHandler(eventSvc),
		Label:  labelHandler.NewHandler(labelSvc),
		Import: importHandler.NewHandler(importSvc, userSvc),
	}, authMiddleware, middleware.RateLimiterConfig{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
	})

	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        engine,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLog.Info("api listening", "port", cfg.Server.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
