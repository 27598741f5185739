package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryAdapter arms in-process timers. Suitable for tests and single-node
// deployments; state is lost on restart and rebuilt by Resync.
type MemoryAdapter struct {
	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
	fire   FireFunc
}

func NewMemoryAdapter(fire FireFunc) *MemoryAdapter {
	return &MemoryAdapter{
		timers: make(map[uuid.UUID]*time.Timer),
		fire:   fire,
	}
}

func (a *MemoryAdapter) Schedule(ctx context.Context, reminderID uuid.UUID, at time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t, ok := a.timers[reminderID]; ok {
		t.Stop()
	}

	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	a.timers[reminderID] = time.AfterFunc(delay, func() {
		a.mu.Lock()
		delete(a.timers, reminderID)
		a.mu.Unlock()
		a.fire(context.Background(), reminderID)
	})
	return nil
}

func (a *MemoryAdapter) Cancel(ctx context.Context, reminderID uuid.UUID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if t, ok := a.timers[reminderID]; ok {
		t.Stop()
		delete(a.timers, reminderID)
	}
	return nil
}

func (a *MemoryAdapter) EnqueueNow(ctx context.Context, reminderID uuid.UUID) error {
	return a.Schedule(ctx, reminderID, time.Now())
}

// Armed reports whether a timer is currently armed for the reminder.
func (a *MemoryAdapter) Armed(reminderID uuid.UUID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.timers[reminderID]
	return ok
}
