package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/deadline-tracker/internal/channel"
	"github.com/jwalitptl/deadline-tracker/internal/clock"
	"github.com/jwalitptl/deadline-tracker/internal/config"
	"github.com/jwalitptl/deadline-tracker/internal/email"
	"github.com/jwalitptl/deadline-tracker/internal/repository/postgres"
	"github.com/jwalitptl/deadline-tracker/internal/scheduler"
	"github.com/jwalitptl/deadline-tracker/internal/service/digest"
	"github.com/jwalitptl/deadline-tracker/internal/service/dispatcher"
	"github.com/jwalitptl/deadline-tracker/pkg/logger"
	"github.com/jwalitptl/deadline-tracker/pkg/metrics"
)

const digestTick = time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	env, err := config.LoadWorkerEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read environment")
	}
	applyEnv(cfg, env)

	appLog := logger.NewLogger(nil)

	var db *sqlx.DB
	if env.DatabaseURL != "" {
		db, err = postgres.NewDBFromURL(env.DatabaseURL)
	} else {
		db, err = postgres.NewDB(cfg.Database)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	store := postgres.NewStore(db)
	m := metrics.NewMetrics("tracker", "worker")
	clk := clock.New()

	sender := email.NewSMTPSender(cfg.SMTP)
	registry := channel.NewRegistry(
		channel.NewEmailChannel(sender, cfg.Reminder.DeliveryTimeout, channel.RatePolicy{
			TokensPerInterval: 30,
			Interval:          time.Minute,
		}),
	)

	// The dispatcher and the scheduler reference each other: the scheduler
	// fires into the dispatcher, and the dispatcher re-arms retries through
	// the scheduler. The adapter gets a closure so the dispatcher can be
	// constructed afterwards; nothing fires before Start.
	var disp *dispatcher.Service
	sched, err := scheduler.NewRedisAdapter(cfg.Redis.URL,
		func(ctx context.Context, id uuid.UUID) { disp.Fire(ctx, id) },
		scheduler.RedisAdapterConfig{PollInterval: cfg.Reminder.PollInterval},
		appLog.Component("scheduler"), m)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer sched.Close()

	disp = dispatcher.NewService(store, registry, sched, clk, dispatcher.Config{
		MaxAttempts:   cfg.Reminder.MaxAttempts,
		BackoffBase:   cfg.Reminder.BackoffBase,
		BackoffCap:    cfg.Reminder.BackoffCap,
		SkewTolerance: cfg.Reminder.SkewTolerance,
	}, appLog.Component("dispatcher"), m)

	digestSvc := digest.NewService(store, disp, clk, digest.Config{
		Horizon:   cfg.Reminder.DigestHorizon,
		LocalHour: cfg.Reminder.DigestLocalHour,
	}, appLog.Component("digest"), m)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Re-arm anything that was pending before the last shutdown.
	if err := scheduler.Resync(ctx, store, sched); err != nil {
		log.Fatal().Err(err).Msg("failed to resync pending reminders")
	}

	go sched.Start(ctx)
	go digestSvc.Start(ctx, digestTick)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start metrics server")
		}
	}()
	appLog.Info("worker started", "metrics_port", cfg.Metrics.Port)

	<-ctx.Done()
	log.Info().Msg("shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("metrics server forced to shutdown")
	}

	log.Info().Msg("worker exited properly")
}

func applyEnv(cfg *config.Config, env *config.WorkerEnv) {
	if env.RedisURL != "" {
		cfg.Redis.URL = env.RedisURL
	}
	if env.SMTPHost != "" {
		cfg.SMTP.Host = env.SMTPHost
	}
	if env.SMTPPort != 0 {
		cfg.SMTP.Port = env.SMTPPort
	}
	if env.MetricsPort != 0 {
		cfg.Metrics.Port = env.MetricsPort
	}
}
