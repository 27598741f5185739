package materializer

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/deadline-tracker/internal/clock"
	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository/memory"
	"github.com/jwalitptl/deadline-tracker/pkg/logger"
)

type recorder struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
	cancelled map[uuid.UUID]int
	enqueued  []uuid.UUID
}

func newRecorder() *recorder {
	return &recorder{
		scheduled: make(map[uuid.UUID]time.Time),
		cancelled: make(map[uuid.UUID]int),
	}
}

func (r *recorder) Schedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled[id] = at
	return nil
}

func (r *recorder) Cancel(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scheduled, id)
	r.cancelled[id]++
	return nil
}

func (r *recorder) EnqueueNow(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.enqueued = append(r.enqueued, id)
	return nil
}

var baseTime = time.Date(2025, 5, 25, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) (*memory.Store, *recorder, *clock.Fake, *Service) {
	t.Helper()
	store := memory.NewStore()
	rec := newRecorder()
	clk := clock.NewFake(baseTime)
	svc := NewService(store, rec, clk, 60*time.Second, logger.NewLogger(nil))
	return store, rec, clk, svc
}

func createEvent(t *testing.T, store *memory.Store, dueAt time.Time, offsets ...string) *model.Event {
	t.Helper()
	event := &model.Event{
		UserID:  uuid.New(),
		Title:   "file quarterly report",
		DueAt:   dueAt,
		Status:  model.EventStatusOpen,
		Offsets: offsets,
	}
	require.NoError(t, store.Events().Create(context.Background(), event))
	return event
}

func pendingReminders(t *testing.T, store *memory.Store, eventID uuid.UUID) []*model.Reminder {
	t.Helper()
	out, err := store.Reminders().ListByEvent(context.Background(), eventID, model.ReminderStatePending)
	require.NoError(t, err)
	return out
}

func TestMaterializeCreatesRemindersAtOffsets(t *testing.T) {
	ctx := context.Background()
	store, rec, _, svc := newFixture(t)

	dueAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := createEvent(t, store, dueAt, "24h", "1h")

	require.NoError(t, svc.Materialize(ctx, event.ID))

	pending := pendingReminders(t, store, event.ID)
	require.Len(t, pending, 2)
	assert.True(t, pending[0].FireAt.Equal(time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC)))
	assert.True(t, pending[1].FireAt.Equal(time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)))
	for _, rem := range pending {
		assert.Equal(t, "email", rem.Channel)
		at, ok := rec.scheduled[rem.ID]
		require.True(t, ok, "reminder not armed")
		assert.True(t, at.Equal(rem.FireAt))
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store, _, _, svc := newFixture(t)

	event := createEvent(t, store, baseTime.Add(48*time.Hour), "24h", "1h")
	require.NoError(t, svc.Materialize(ctx, event.ID))
	require.NoError(t, svc.Materialize(ctx, event.ID))

	all, err := store.Reminders().ListByEvent(ctx, event.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMaterializeRetimesOnDueDateChange(t *testing.T) {
	ctx := context.Background()
	store, rec, _, svc := newFixture(t)

	event := createEvent(t, store, baseTime.Add(48*time.Hour), "24h")
	require.NoError(t, svc.Materialize(ctx, event.ID))

	before := pendingReminders(t, store, event.ID)
	require.Len(t, before, 1)

	event.DueAt = baseTime.Add(72 * time.Hour)
	require.NoError(t, store.Events().Update(ctx, event))
	require.NoError(t, svc.Materialize(ctx, event.ID))

	after := pendingReminders(t, store, event.ID)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].ID, after[0].ID, "row is updated, not replaced")
	assert.True(t, after[0].FireAt.Equal(baseTime.Add(48*time.Hour)))
	assert.True(t, rec.scheduled[after[0].ID].Equal(after[0].FireAt))
}

func TestMaterializeCancelsRemovedOffsets(t *testing.T) {
	ctx := context.Background()
	store, rec, _, svc := newFixture(t)

	event := createEvent(t, store, baseTime.Add(48*time.Hour), "24h", "1h")
	require.NoError(t, svc.Materialize(ctx, event.ID))

	event.Offsets = []string{"24h"}
	require.NoError(t, store.Events().Update(ctx, event))
	require.NoError(t, svc.Materialize(ctx, event.ID))

	pending := pendingReminders(t, store, event.ID)
	require.Len(t, pending, 1)
	assert.Equal(t, 24*time.Hour, pending[0].Offset)

	cancelled, err := store.Reminders().ListByEvent(ctx, event.ID, model.ReminderStateCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	require.NotNil(t, cancelled[0].LastError)
	assert.Equal(t, reasonSuperseded, *cancelled[0].LastError)
	assert.Equal(t, 1, rec.cancelled[cancelled[0].ID])
}

func TestMaterializeCancelsAllWhenEventClosed(t *testing.T) {
	ctx := context.Background()
	store, rec, _, svc := newFixture(t)

	event := createEvent(t, store, baseTime.Add(48*time.Hour), "24h", "1h")
	require.NoError(t, svc.Materialize(ctx, event.ID))

	event.Status = model.EventStatusArchived
	require.NoError(t, store.Events().Update(ctx, event))
	require.NoError(t, svc.Materialize(ctx, event.ID))

	assert.Empty(t, pendingReminders(t, store, event.ID))
	cancelled, err := store.Reminders().ListByEvent(ctx, event.ID, model.ReminderStateCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 2)
	for _, rem := range cancelled {
		require.NotNil(t, rem.LastError)
		assert.Equal(t, reasonEventClosed, *rem.LastError)
		assert.Equal(t, 1, rec.cancelled[rem.ID])
	}
}

func TestMaterializePastDueBeyondGraceIsCancelled(t *testing.T) {
	ctx := context.Background()
	store, rec, _, svc := newFixture(t)

	// Due in 1h with a 24h offset: the fire instant is 23h in the past.
	event := createEvent(t, store, baseTime.Add(time.Hour), "24h")
	require.NoError(t, svc.Materialize(ctx, event.ID))

	assert.Empty(t, pendingReminders(t, store, event.ID))
	cancelled, err := store.Reminders().ListByEvent(ctx, event.ID, model.ReminderStateCancelled)
	require.NoError(t, err)
	require.Len(t, cancelled, 1)
	require.NotNil(t, cancelled[0].LastError)
	assert.Equal(t, reasonPastDue, *cancelled[0].LastError)
	assert.Empty(t, rec.scheduled)
	assert.Empty(t, rec.enqueued)
}

func TestMaterializeJustPastDueWithinGraceEnqueues(t *testing.T) {
	ctx := context.Background()
	store, rec, _, svc := newFixture(t)

	// Fire instant 30s in the past, inside the 60s grace window.
	event := createEvent(t, store, baseTime.Add(time.Hour-30*time.Second), "1h")
	require.NoError(t, svc.Materialize(ctx, event.ID))

	pending := pendingReminders(t, store, event.ID)
	require.Len(t, pending, 1)
	require.Len(t, rec.enqueued, 1)
	assert.Equal(t, pending[0].ID, rec.enqueued[0])
}

func TestMaterializeDeduplicatesEqualFireInstants(t *testing.T) {
	ctx := context.Background()
	store, _, _, svc := newFixture(t)

	// 24h and 1d collapse to the same fire instant.
	event := createEvent(t, store, baseTime.Add(48*time.Hour), "24h", "1d")
	require.NoError(t, svc.Materialize(ctx, event.ID))

	assert.Len(t, pendingReminders(t, store, event.ID), 1)
}

func TestMaterializeRejectsInvalidOffset(t *testing.T) {
	ctx := context.Background()
	store, _, _, svc := newFixture(t)

	event := createEvent(t, store, baseTime.Add(48*time.Hour), "soon")
	assert.Error(t, svc.Materialize(ctx, event.ID))
}
