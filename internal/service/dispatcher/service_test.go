package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/deadline-tracker/internal/channel"
	"github.com/jwalitptl/deadline-tracker/internal/clock"
	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository/memory"
	"github.com/jwalitptl/deadline-tracker/pkg/logger"
	"github.com/jwalitptl/deadline-tracker/pkg/metrics"
)

var baseTime = time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)

type fakeChannel struct {
	mu      sync.Mutex
	results []channel.Result
	calls   int
}

func (f *fakeChannel) Tag() string                           { return channel.TagEmail }
func (f *fakeChannel) AddressOf(u *model.User) string        { return u.Email }
func (f *fakeChannel) Deliver(ctx context.Context, recipient, subject, body string) channel.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	res := channel.Result{Outcome: channel.OutcomeDelivered}
	if f.calls < len(f.results) {
		res = f.results[f.calls]
	}
	f.calls++
	return res
}

type recorder struct {
	mu        sync.Mutex
	scheduled map[uuid.UUID]time.Time
}

func newRecorder() *recorder {
	return &recorder{scheduled: make(map[uuid.UUID]time.Time)}
}

func (r *recorder) Schedule(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduled[id] = at
	return nil
}

func (r *recorder) Cancel(ctx context.Context, id uuid.UUID) error     { return nil }
func (r *recorder) EnqueueNow(ctx context.Context, id uuid.UUID) error { return nil }

type fixture struct {
	store *memory.Store
	ch    *fakeChannel
	sched *recorder
	clk   *clock.Fake
	svc   *Service

	user     *model.User
	event    *model.Event
	reminder *model.Reminder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		store: memory.NewStore(),
		ch:    &fakeChannel{},
		sched: newRecorder(),
		clk:   clock.NewFake(baseTime),
	}
	f.svc = NewService(f.store, channel.NewRegistry(f.ch), f.sched, f.clk, Config{
		MaxAttempts:   3,
		BackoffBase:   30 * time.Second,
		BackoffCap:    30 * time.Minute,
		SkewTolerance: 5 * time.Second,
	}, logger.NewLogger(nil), metrics.NewTestMetrics())

	f.user = &model.User{Email: "owner@example.com", DisplayName: "Owner", Active: true}
	require.NoError(t, f.store.Users().Create(ctx, f.user))

	f.event = &model.Event{
		UserID:  f.user.ID,
		Title:   "submit report",
		DueAt:   baseTime.Add(time.Hour),
		Status:  model.EventStatusOpen,
		Offsets: []string{"1h"},
	}
	require.NoError(t, f.store.Events().Create(ctx, f.event))

	f.reminder = &model.Reminder{
		EventID: f.event.ID,
		Offset:  time.Hour,
		FireAt:  baseTime,
		State:   model.ReminderStatePending,
		Channel: channel.TagEmail,
	}
	require.NoError(t, f.store.Reminders().Create(ctx, f.reminder))
	return f
}

func (f *fixture) currentReminder(t *testing.T) *model.Reminder {
	t.Helper()
	rem, err := f.store.Reminders().Get(context.Background(), f.reminder.ID)
	require.NoError(t, err)
	return rem
}

func TestFireDeliversAndMarksSent(t *testing.T) {
	f := newFixture(t)

	f.svc.Fire(context.Background(), f.reminder.ID)

	rem := f.currentReminder(t)
	assert.Equal(t, model.ReminderStateSent, rem.State)
	assert.Equal(t, 1, rem.AttemptCount)
	assert.Equal(t, 1, f.ch.calls)

	logs := f.store.AllSendLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.DeliveryStatusDelivered, logs[0].Status)
	assert.Equal(t, f.user.ID, logs[0].UserID)
}

func TestFireReplayIsIdempotent(t *testing.T) {
	f := newFixture(t)

	f.svc.Fire(context.Background(), f.reminder.ID)
	f.svc.Fire(context.Background(), f.reminder.ID)

	assert.Equal(t, 1, f.ch.calls, "second fire must not deliver")
	assert.Len(t, f.store.AllSendLogs(), 1)
}

func TestFireCancelsWhenEventNotOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.event.Status = model.EventStatusDone
	require.NoError(t, f.store.Events().Update(ctx, f.event))

	f.svc.Fire(ctx, f.reminder.ID)

	rem := f.currentReminder(t)
	assert.Equal(t, model.ReminderStateCancelled, rem.State)
	assert.Equal(t, 0, f.ch.calls)
	assert.Empty(t, f.store.AllSendLogs())
}

func TestFireTooEarlyRearmsWithoutDelivering(t *testing.T) {
	f := newFixture(t)

	f.clk.Set(baseTime.Add(-time.Minute))
	f.svc.Fire(context.Background(), f.reminder.ID)

	rem := f.currentReminder(t)
	assert.Equal(t, model.ReminderStatePending, rem.State)
	assert.Equal(t, 0, rem.AttemptCount)
	assert.Equal(t, 0, f.ch.calls)

	at, ok := f.sched.scheduled[f.reminder.ID]
	require.True(t, ok, "early fire must re-arm")
	assert.True(t, at.Equal(f.reminder.FireAt))
}

func TestFireWithinSkewToleranceDelivers(t *testing.T) {
	f := newFixture(t)

	f.clk.Set(baseTime.Add(-3 * time.Second))
	f.svc.Fire(context.Background(), f.reminder.ID)

	assert.Equal(t, model.ReminderStateSent, f.currentReminder(t).State)
}

func TestFireTransientFailureSchedulesRetry(t *testing.T) {
	f := newFixture(t)
	f.ch.results = []channel.Result{
		{Outcome: channel.OutcomeTransientFail, Err: fmt.Errorf("connection reset")},
	}

	f.svc.Fire(context.Background(), f.reminder.ID)

	rem := f.currentReminder(t)
	assert.Equal(t, model.ReminderStatePending, rem.State)
	assert.Equal(t, 1, rem.AttemptCount)
	require.NotNil(t, rem.LastError)

	logs := f.store.AllSendLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.DeliveryStatusTransientFail, logs[0].Status)

	at, ok := f.sched.scheduled[f.reminder.ID]
	require.True(t, ok, "transient failure must re-arm")
	delay := at.Sub(f.clk.Now())
	assert.GreaterOrEqual(t, delay, 15*time.Second)
	assert.Less(t, delay, 30*time.Second)
}

func TestFireExhaustsAttemptsThenFails(t *testing.T) {
	f := newFixture(t)
	transient := channel.Result{Outcome: channel.OutcomeTransientFail, Err: fmt.Errorf("timeout")}
	f.ch.results = []channel.Result{transient, transient, transient}

	for i := 0; i < 3; i++ {
		f.svc.Fire(context.Background(), f.reminder.ID)
	}

	rem := f.currentReminder(t)
	assert.Equal(t, model.ReminderStateFailed, rem.State)
	assert.Equal(t, 3, rem.AttemptCount)
	assert.Len(t, f.store.AllSendLogs(), 3)

	// A replay after terminal failure is a no-op.
	f.svc.Fire(context.Background(), f.reminder.ID)
	assert.Equal(t, 3, f.ch.calls)
}

func TestFirePermanentFailure(t *testing.T) {
	f := newFixture(t)
	f.ch.results = []channel.Result{
		{Outcome: channel.OutcomePermanentFail, Err: fmt.Errorf("550 no such user")},
	}

	f.svc.Fire(context.Background(), f.reminder.ID)

	rem := f.currentReminder(t)
	assert.Equal(t, model.ReminderStateFailed, rem.State)
	assert.Equal(t, 1, rem.AttemptCount)

	logs := f.store.AllSendLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.DeliveryStatusPermanentFail, logs[0].Status)
	assert.Empty(t, f.sched.scheduled, "permanent failure never retries")
}

func TestFireDuplicateDeliveryIsRecordedAsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// A prior attempt delivered but its reminder-state update was lost.
	require.NoError(t, f.store.SendLogs().Create(ctx, &model.SendLog{
		ReminderID: &f.reminder.ID,
		UserID:     f.user.ID,
		Channel:    channel.TagEmail,
		Status:     model.DeliveryStatusDelivered,
		SentAt:     baseTime.Add(-time.Minute),
	}))

	f.svc.Fire(ctx, f.reminder.ID)

	assert.Equal(t, model.ReminderStateSent, f.currentReminder(t).State)

	var delivered, duplicate int
	for _, sl := range f.store.AllSendLogs() {
		switch sl.Status {
		case model.DeliveryStatusDelivered:
			delivered++
		case model.DeliveryStatusDeliveredDuplicate:
			duplicate++
		}
	}
	assert.Equal(t, 1, delivered, "at most one delivered row per reminder")
	assert.Equal(t, 1, duplicate)
}

func TestFireUnknownChannelFailsPermanently(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.reminder.Channel = "sms"
	require.NoError(t, f.store.Reminders().Update(ctx, f.reminder))

	f.svc.Fire(ctx, f.reminder.ID)

	rem := f.currentReminder(t)
	assert.Equal(t, model.ReminderStateFailed, rem.State)

	logs := f.store.AllSendLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, model.DeliveryStatusPermanentFail, logs[0].Status)
	assert.Equal(t, 0, f.ch.calls)
}

func TestFireUnknownReminderIsNoOp(t *testing.T) {
	f := newFixture(t)
	f.svc.Fire(context.Background(), uuid.New())
	assert.Equal(t, 0, f.ch.calls)
	assert.Empty(t, f.store.AllSendLogs())
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	f := newFixture(t)

	bounds := []time.Duration{
		30 * time.Second,  // attempt 1
		time.Minute,       // attempt 2
		2 * time.Minute,   // attempt 3
		4 * time.Minute,   // attempt 4
		8 * time.Minute,   // attempt 5
		16 * time.Minute,  // attempt 6
		30 * time.Minute,  // attempt 7, capped
		30 * time.Minute,  // attempt 8, still capped
	}
	for attempt, max := range bounds {
		got := f.svc.Backoff(attempt + 1)
		assert.GreaterOrEqual(t, got, max/2, "attempt %d", attempt+1)
		assert.Less(t, got, max, "attempt %d", attempt+1)
	}
}
