// Package scheduler provides the timed-firing facade over the task runtime.
// Adapters persist nothing of their own; their state is derivable from the
// store and rebuilt by Resync on cold start.
package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/repository"
)

// FireFunc is invoked when a reminder's timer fires.
type FireFunc func(ctx context.Context, reminderID uuid.UUID)

// Adapter schedules reminder firings. All operations are idempotent:
// Schedule on an armed id replaces the prior timer, Cancel on an unknown id
// is a no-op.
type Adapter interface {
	Schedule(ctx context.Context, reminderID uuid.UUID, at time.Time) error
	Cancel(ctx context.Context, reminderID uuid.UUID) error
	EnqueueNow(ctx context.Context, reminderID uuid.UUID) error
}

const resyncBatchSize = 1000

// Resync re-arms timers for every pending reminder. It takes a read snapshot
// and then conditionally arms each row only if it is still pending, so a
// concurrent materialization cannot be clobbered.
func Resync(ctx context.Context, store repository.Store, adapter Adapter) error {
	pending, err := store.Reminders().ListPending(ctx, resyncBatchSize)
	if err != nil {
		return err
	}

	for _, snapshot := range pending {
		current, err := store.Reminders().Get(ctx, snapshot.ID)
		if err != nil {
			continue // deleted since the snapshot
		}
		if current.State != snapshot.State {
			continue
		}
		if err := adapter.Schedule(ctx, current.ID, current.FireAt); err != nil {
			return err
		}
	}
	return nil
}
