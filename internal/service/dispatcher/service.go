// Package dispatcher executes reminder firings: it re-validates due-ness,
// renders the message, delivers through a channel and records the outcome.
// Every (reminder, channel) pair results in at most one effective send.
package dispatcher

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/deadline-tracker/internal/channel"
	"github.com/jwalitptl/deadline-tracker/internal/clock"
	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/internal/scheduler"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
	"github.com/jwalitptl/deadline-tracker/pkg/logger"
	"github.com/jwalitptl/deadline-tracker/pkg/metrics"
)

type Config struct {
	MaxAttempts   int
	BackoffBase   time.Duration
	BackoffCap    time.Duration
	SkewTolerance time.Duration
}

type Service struct {
	store    repository.Store
	registry *channel.Registry
	sched    scheduler.Adapter
	clk      clock.Clock
	cfg      Config
	logger   *logger.Logger
	metrics  *metrics.Metrics

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewService(
	store repository.Store,
	registry *channel.Registry,
	sched scheduler.Adapter,
	clk clock.Clock,
	cfg Config,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 30 * time.Second
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = 30 * time.Minute
	}
	return &Service{
		store:    store,
		registry: registry,
		sched:    sched,
		clk:      clk,
		cfg:      cfg,
		logger:   log,
		metrics:  m,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fire is the scheduler callback. It never propagates an error to the task
// runtime; every outcome ends up in the send log and the reminder state.
func (s *Service) Fire(ctx context.Context, reminderID uuid.UUID) {
	timer := prometheus.NewTimer(s.metrics.DispatchLatency)
	defer timer.ObserveDuration()

	if err := s.fire(ctx, reminderID); err != nil {
		s.logger.Error(err, "reminder dispatch failed", "reminder_id", reminderID.String())
	}
}

type firePlan struct {
	reminder *model.Reminder
	event    *model.Event
	user     *model.User
	sendLog  *model.SendLog
	channel  channel.Channel
	subject  string
	body     string
	skip     bool
	rearmAt  *time.Time
}

func (s *Service) fire(ctx context.Context, reminderID uuid.UUID) error {
	plan := &firePlan{}

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		reminder, err := tx.Reminders().Get(ctx, reminderID)
		if err != nil {
			if errors.IsNotFound(err) {
				plan.skip = true
				return nil
			}
			return err
		}
		if reminder.State != model.ReminderStatePending {
			plan.skip = true // idempotent replay
			return nil
		}

		event, err := tx.Events().Get(ctx, reminder.EventID)
		if err != nil {
			return err
		}
		if event.Status != model.EventStatusOpen {
			reason := "event is " + string(event.Status)
			reminder.State = model.ReminderStateCancelled
			reminder.LastError = &reason
			plan.skip = true
			return tx.Reminders().Update(ctx, reminder)
		}

		now := s.clk.Now()
		if now.Before(reminder.FireAt.Add(-s.cfg.SkewTolerance)) {
			// Fired early, likely clock drift; let the scheduler retry.
			at := reminder.FireAt
			plan.skip = true
			plan.rearmAt = &at
			plan.reminder = reminder
			return nil
		}

		user, err := tx.Users().Get(ctx, event.UserID)
		if err != nil {
			return err
		}

		ch, err := s.registry.Resolve(reminder.Channel)
		if err != nil {
			plan.skip = true // no delivery to perform after commit
			return s.failPermanently(ctx, tx, reminder, user, err.Error())
		}

		subject, body := RenderReminder(event, user, reminder.Offset)

		// Delivery-in-flight marker; the channel call happens after
		// commit so a slow SMTP server never holds the transaction.
		reminder.AttemptCount++
		if err := tx.Reminders().Update(ctx, reminder); err != nil {
			return err
		}
		sendLog := &model.SendLog{
			ReminderID: &reminder.ID,
			UserID:     user.ID,
			Channel:    reminder.Channel,
			Status:     model.DeliveryStatusAttempting,
			SentAt:     now,
		}
		if err := tx.SendLogs().Create(ctx, sendLog); err != nil {
			return err
		}

		plan.reminder = reminder
		plan.event = event
		plan.user = user
		plan.sendLog = sendLog
		plan.subject, plan.body, plan.channel = subject, body, ch
		return nil
	})
	if err != nil {
		return err
	}

	if plan.skip {
		if plan.rearmAt != nil {
			return s.sched.Schedule(ctx, reminderID, *plan.rearmAt)
		}
		return nil
	}

	result := plan.channel.Deliver(ctx, plan.channel.AddressOf(plan.user), plan.subject, plan.body)
	return s.recordOutcome(ctx, plan, result)
}

func (s *Service) recordOutcome(ctx context.Context, plan *firePlan, result channel.Result) error {
	s.metrics.RemindersDispatched.WithLabelValues(result.Outcome.String()).Inc()

	plan.rearmAt = nil
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		reminder := plan.reminder
		sendLog := plan.sendLog
		now := s.clk.Now()
		sendLog.SentAt = now
		if result.ExternalMessageID != "" {
			sendLog.ExternalMessageID = &result.ExternalMessageID
		}
		if result.Err != nil {
			msg := result.Err.Error()
			sendLog.LastError = &msg
			reminder.LastError = &msg
		}

		switch result.Outcome {
		case channel.OutcomeDelivered:
			delivered, err := tx.SendLogs().HasDelivered(ctx, reminder.ID)
			if err != nil {
				return err
			}
			if delivered {
				// A prior attempt already went through on a
				// non-idempotent channel; keep the row for audit
				// but the invariant ignores it.
				sendLog.Status = model.DeliveryStatusDeliveredDuplicate
				if err := tx.SendLogs().Update(ctx, sendLog); err != nil {
					return err
				}
				reminder.State = model.ReminderStateSent
				return tx.Reminders().Update(ctx, reminder)
			}
			sendLog.Status = model.DeliveryStatusDelivered
			if err := tx.SendLogs().Update(ctx, sendLog); err != nil {
				return err
			}
			reminder.State = model.ReminderStateSent
			return tx.Reminders().Update(ctx, reminder)

		case channel.OutcomeTransientFail:
			sendLog.Status = model.DeliveryStatusTransientFail
			if err := tx.SendLogs().Update(ctx, sendLog); err != nil {
				return err
			}
			if reminder.AttemptCount >= s.cfg.MaxAttempts {
				s.metrics.RemindersFailed.Inc()
				reminder.State = model.ReminderStateFailed
				return tx.Reminders().Update(ctx, reminder)
			}
			s.metrics.RemindersRetried.Inc()
			if err := tx.Reminders().Update(ctx, reminder); err != nil {
				return err
			}
			retryAt := now.Add(s.Backoff(reminder.AttemptCount))
			plan.rearmAt = &retryAt
			return nil

		default: // permanent
			s.metrics.RemindersFailed.Inc()
			sendLog.Status = model.DeliveryStatusPermanentFail
			if err := tx.SendLogs().Update(ctx, sendLog); err != nil {
				return err
			}
			reminder.State = model.ReminderStateFailed
			return tx.Reminders().Update(ctx, reminder)
		}
	})
	if err != nil {
		return err
	}

	if plan.rearmAt != nil {
		return s.sched.Schedule(ctx, plan.reminder.ID, *plan.rearmAt)
	}
	return nil
}

// failPermanently handles an unresolvable channel inside the load
// transaction: the reminder fails and a permanent-fail row is logged.
func (s *Service) failPermanently(ctx context.Context, tx repository.Store, reminder *model.Reminder, user *model.User, reason string) error {
	reminder.State = model.ReminderStateFailed
	reminder.LastError = &reason
	if err := tx.Reminders().Update(ctx, reminder); err != nil {
		return err
	}
	s.metrics.RemindersFailed.Inc()
	return tx.SendLogs().Create(ctx, &model.SendLog{
		ReminderID: &reminder.ID,
		UserID:     user.ID,
		Channel:    reminder.Channel,
		Status:     model.DeliveryStatusPermanentFail,
		SentAt:     s.clk.Now(),
		LastError:  &reason,
	})
}

// Backoff returns the truncated exponential retry delay with jitter for the
// given attempt count: base doubling per attempt, capped, jittered to
// [d/2, d).
func (s *Service) Backoff(attempt int) time.Duration {
	d := s.cfg.BackoffBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.cfg.BackoffCap {
			d = s.cfg.BackoffCap
			break
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	half := d / 2
	return half + time.Duration(s.rnd.Int63n(int64(half)))
}
