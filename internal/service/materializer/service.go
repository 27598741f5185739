// Package materializer expands an event's reminder offsets into absolute-time
// reminder rows and keeps them in sync with the event across updates.
package materializer

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/clock"
	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/internal/scheduler"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
	"github.com/jwalitptl/deadline-tracker/pkg/logger"
	"github.com/jwalitptl/deadline-tracker/pkg/timeutil"
)

const reasonPastDue = "past-due at materialization"
const reasonSuperseded = "superseded by event update"
const reasonEventClosed = "event no longer open"

type Service struct {
	store    repository.Store
	sched    scheduler.Adapter
	clk      clock.Clock
	grace    time.Duration
	channels []string
	logger   *logger.Logger
}

func NewService(store repository.Store, sched scheduler.Adapter, clk clock.Clock, grace time.Duration, log *logger.Logger) *Service {
	return &Service{
		store:    store,
		sched:    sched,
		clk:      clk,
		grace:    grace,
		channels: []string{"email"},
		logger:   log,
	}
}

// schedOp is a scheduler call deferred until after the transaction commits;
// the adapter may cross a broker boundary and must not run inside the tx.
type schedOp struct {
	kind string // "schedule", "cancel", "enqueue"
	id   uuid.UUID
	at   time.Time
}

// Materialize reconciles the event's reminder rows with its current due date
// and offsets. It retries once on a uniqueness conflict (concurrent
// materialization of the same event) before surfacing the error.
func (s *Service) Materialize(ctx context.Context, eventID uuid.UUID) error {
	err := s.materialize(ctx, eventID)
	if errors.IsConflict(err) {
		s.logger.Warn("retrying materialization after conflict", "event_id", eventID.String())
		err = s.materialize(ctx, eventID)
	}
	return err
}

func (s *Service) materialize(ctx context.Context, eventID uuid.UUID) error {
	var ops []schedOp

	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		event, err := tx.Events().Get(ctx, eventID)
		if err != nil {
			return err
		}

		existing, err := tx.Reminders().ListByEvent(ctx, eventID, model.ReminderStatePending)
		if err != nil {
			return err
		}

		if event.Status != model.EventStatusOpen {
			for _, rem := range existing {
				if err := s.cancelReminder(ctx, tx, rem, reasonEventClosed); err != nil {
					return err
				}
				ops = append(ops, schedOp{kind: "cancel", id: rem.ID})
			}
			return nil
		}

		desired, err := s.desiredSet(event)
		if err != nil {
			return err
		}

		byKey := make(map[model.ReminderKey]*model.Reminder, len(existing))
		for _, rem := range existing {
			byKey[rem.Key()] = rem
		}

		// Existing but no longer desired.
		for key, rem := range byKey {
			if _, ok := desired[key]; ok {
				continue
			}
			if err := s.cancelReminder(ctx, tx, rem, reasonSuperseded); err != nil {
				return err
			}
			ops = append(ops, schedOp{kind: "cancel", id: rem.ID})
		}

		for key, fireAt := range desired {
			rem, ok := byKey[key]
			if !ok {
				rem = &model.Reminder{
					EventID: eventID,
					Offset:  key.Offset,
					FireAt:  fireAt,
					State:   model.ReminderStatePending,
					Channel: key.Channel,
				}
				op, err := s.placeReminder(ctx, tx, rem, true)
				if err != nil {
					return err
				}
				if op != nil {
					ops = append(ops, *op)
				}
				continue
			}

			if rem.FireAt.Equal(fireAt) {
				continue
			}
			rem.FireAt = fireAt
			op, err := s.placeReminder(ctx, tx, rem, false)
			if err != nil {
				return err
			}
			if op != nil {
				ops = append(ops, *op)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return s.applyOps(ctx, ops)
}

// desiredSet computes (offset, channel) → fire_at, deduplicating offsets that
// collapse to the same fire instant for the same channel.
func (s *Service) desiredSet(event *model.Event) (map[model.ReminderKey]time.Time, error) {
	desired := make(map[model.ReminderKey]time.Time)
	seenFire := make(map[string]map[time.Time]bool)

	for _, raw := range event.Offsets {
		offset, err := timeutil.ParseOffset(raw)
		if err != nil {
			return nil, errors.Validation("invalid reminder offset", err)
		}
		fireAt := event.DueAt.Add(-offset)

		for _, ch := range s.channels {
			if seenFire[ch] == nil {
				seenFire[ch] = make(map[time.Time]bool)
			}
			if seenFire[ch][fireAt] {
				continue
			}
			seenFire[ch][fireAt] = true
			desired[model.ReminderKey{Offset: offset, Channel: ch}] = fireAt
		}
	}
	return desired, nil
}

// placeReminder writes the reminder row and decides how it enters the
// scheduler: armed at fire_at, enqueued immediately when just past due, or
// cancelled when the fire instant is already beyond the grace window.
func (s *Service) placeReminder(ctx context.Context, tx repository.Store, rem *model.Reminder, insert bool) (*schedOp, error) {
	now := s.clk.Now()

	if !rem.FireAt.After(now) && now.Sub(rem.FireAt) > s.grace {
		reason := reasonPastDue
		rem.State = model.ReminderStateCancelled
		rem.LastError = &reason
		if insert {
			return nil, tx.Reminders().Create(ctx, rem)
		}
		return &schedOp{kind: "cancel", id: rem.ID}, tx.Reminders().Update(ctx, rem)
	}

	var err error
	if insert {
		err = tx.Reminders().Create(ctx, rem)
	} else {
		err = tx.Reminders().Update(ctx, rem)
	}
	if err != nil {
		return nil, err
	}

	if !rem.FireAt.After(now) {
		return &schedOp{kind: "enqueue", id: rem.ID}, nil
	}
	return &schedOp{kind: "schedule", id: rem.ID, at: rem.FireAt}, nil
}

func (s *Service) cancelReminder(ctx context.Context, tx repository.Store, rem *model.Reminder, reason string) error {
	rem.State = model.ReminderStateCancelled
	rem.LastError = &reason
	return tx.Reminders().Update(ctx, rem)
}

func (s *Service) applyOps(ctx context.Context, ops []schedOp) error {
	for _, op := range ops {
		var err error
		switch op.kind {
		case "schedule":
			err = s.sched.Schedule(ctx, op.id, op.at)
		case "cancel":
			err = s.sched.Cancel(ctx, op.id)
		case "enqueue":
			err = s.sched.EnqueueNow(ctx, op.id)
		}
		if err != nil {
			// The row is committed; resync will re-arm it on the next
			// cold start even if the broker call failed.
			s.logger.Error(err, "scheduler call failed", "reminder_id", op.id.String(), "op", op.kind)
		}
	}
	return nil
}
