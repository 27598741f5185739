package digest

import (
	"context"
	"strings"
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
	"github.com/jwalitptl/deadline-tracker/pkg/metrics"
)

// 2025-06-02 09:00 UTC, past the default 08:00 digest hour.
var baseTime = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

type sentDigest struct {
	user    *model.User
	subject string
	body    string
	runID   *uuid.UUID
}

type fakeDeliverer struct {
	mu   sync.Mutex
	sent []sentDigest
}

func (f *fakeDeliverer) DeliverDirect(ctx context.Context, user *model.User, channelTag, subject, body string, digestRunID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentDigest{user: user, subject: subject, body: body, runID: digestRunID})
	return nil
}

func newFixture(t *testing.T, tz string) (*memory.Store, *fakeDeliverer, *clock.Fake, *Service, *model.User) {
	t.Helper()
	store := memory.NewStore()
	deliverer := &fakeDeliverer{}
	clk := clock.NewFake(baseTime)
	svc := NewService(store, deliverer, clk, Config{
		Horizon:   7 * 24 * time.Hour,
		LocalHour: 8,
	}, logger.NewLogger(nil), metrics.NewTestMetrics())

	user := &model.User{
		Email:       "owner@example.com",
		DisplayName: "Owner",
		Timezone:    tz,
		Active:      true,
	}
	require.NoError(t, store.Users().Create(context.Background(), user))
	return store, deliverer, clk, svc, user
}

func addEvent(t *testing.T, store *memory.Store, userID uuid.UUID, title string, dueAt time.Time, labels ...*model.Label) *model.Event {
	t.Helper()
	ctx := context.Background()
	event := &model.Event{
		UserID: userID,
		Title:  title,
		DueAt:  dueAt,
		Status: model.EventStatusOpen,
	}
	require.NoError(t, store.Events().Create(ctx, event))
	if len(labels) > 0 {
		ids := make([]uuid.UUID, len(labels))
		for i, l := range labels {
			ids[i] = l.ID
		}
		require.NoError(t, store.Events().SetLabels(ctx, event.ID, ids))
	}
	return event
}

func addLabel(t *testing.T, store *memory.Store, userID uuid.UUID, name string) *model.Label {
	t.Helper()
	label := &model.Label{UserID: userID, Name: name, Color: "#3cb44b"}
	require.NoError(t, store.Labels().Create(context.Background(), label))
	return label
}

func TestRunForUserSendsGroupedDigest(t *testing.T) {
	store, deliverer, _, svc, user := newFixture(t, "")
	ctx := context.Background()

	work := addLabel(t, store, user.ID, "Work")
	urgent := addLabel(t, store, user.ID, "Urgent")

	addEvent(t, store, user.ID, "submit report", baseTime.Add(4*time.Hour), work, urgent)
	addEvent(t, store, user.ID, "review budget", baseTime.Add(24*time.Hour), work)
	addEvent(t, store, user.ID, "renew passport", baseTime.Add(48*time.Hour))

	require.NoError(t, svc.RunForUser(ctx, user))

	require.Len(t, deliverer.sent, 1)
	sent := deliverer.sent[0]
	assert.Equal(t, "Deadlines for 2025-06-02", sent.subject)
	require.NotNil(t, sent.runID)

	// Both labels carry the multi-label event; groups order by first due.
	assert.Contains(t, sent.body, "Urgent\n")
	assert.Contains(t, sent.body, "Work\n")
	assert.Contains(t, sent.body, "(unlabeled)\n")
	assert.Contains(t, sent.body, "submit report")
	assert.Contains(t, sent.body, "review budget")
	assert.Contains(t, sent.body, "renew passport")
	urgentIdx := strings.Index(sent.body, "Urgent")
	unlabeledIdx := strings.Index(sent.body, "(unlabeled)")
	assert.Less(t, urgentIdx, unlabeledIdx, "earlier first-due group renders first")
}

func TestRunForUserOncePerDay(t *testing.T) {
	store, deliverer, _, svc, user := newFixture(t, "")
	ctx := context.Background()

	addEvent(t, store, user.ID, "submit report", baseTime.Add(4*time.Hour))

	require.NoError(t, svc.RunForUser(ctx, user))
	require.NoError(t, svc.RunForUser(ctx, user))

	assert.Len(t, deliverer.sent, 1, "second run on the same local date must be skipped")

	run, err := store.DigestRuns().Get(ctx, user.ID, "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, user.ID, run.UserID)
}

func TestRunForUserBeforeLocalHourDoesNothing(t *testing.T) {
	store, deliverer, clk, svc, user := newFixture(t, "")
	ctx := context.Background()

	addEvent(t, store, user.ID, "submit report", baseTime.Add(4*time.Hour))

	clk.Set(time.Date(2025, 6, 2, 7, 59, 0, 0, time.UTC))
	require.NoError(t, svc.RunForUser(ctx, user))

	assert.Empty(t, deliverer.sent)
	_, err := store.DigestRuns().Get(ctx, user.ID, "2025-06-02")
	assert.Error(t, err, "no run row before the digest hour")
}

func TestRunForUserAtMidnightHour(t *testing.T) {
	store := memory.NewStore()
	deliverer := &fakeDeliverer{}
	clk := clock.NewFake(time.Date(2025, 6, 2, 0, 30, 0, 0, time.UTC))
	svc := NewService(store, deliverer, clk, Config{
		Horizon:   7 * 24 * time.Hour,
		LocalHour: 0,
	}, logger.NewLogger(nil), metrics.NewTestMetrics())

	user := &model.User{Email: "owner@example.com", DisplayName: "Owner", Active: true}
	require.NoError(t, store.Users().Create(context.Background(), user))
	addEvent(t, store, user.ID, "submit report", clk.Now().Add(4*time.Hour))

	require.NoError(t, svc.RunForUser(context.Background(), user))
	assert.Len(t, deliverer.sent, 1, "hour zero means midnight, not the default hour")
}

func TestRunForUserHonorsUserTimezone(t *testing.T) {
	store, deliverer, clk, svc, user := newFixture(t, "America/New_York")
	ctx := context.Background()

	addEvent(t, store, user.ID, "submit report", baseTime.Add(4*time.Hour))

	// 09:00 UTC is 05:00 in New York, before the digest hour.
	require.NoError(t, svc.RunForUser(ctx, user))
	assert.Empty(t, deliverer.sent)

	// 13:00 UTC is 09:00 in New York.
	clk.Set(time.Date(2025, 6, 2, 13, 0, 0, 0, time.UTC))
	require.NoError(t, svc.RunForUser(ctx, user))
	assert.Len(t, deliverer.sent, 1)
}

func TestRunForUserEmptyWindowRecordsRunWithoutSending(t *testing.T) {
	store, deliverer, _, svc, user := newFixture(t, "")
	ctx := context.Background()

	// Beyond the 7 day horizon.
	addEvent(t, store, user.ID, "far away", baseTime.Add(30*24*time.Hour))

	require.NoError(t, svc.RunForUser(ctx, user))

	assert.Empty(t, deliverer.sent)
	_, err := store.DigestRuns().Get(ctx, user.ID, "2025-06-02")
	assert.NoError(t, err, "run is recorded so later ticks do not retry")
}

func TestRunForUserExcludesClosedEvents(t *testing.T) {
	store, deliverer, _, svc, user := newFixture(t, "")
	ctx := context.Background()

	done := addEvent(t, store, user.ID, "already done", baseTime.Add(4*time.Hour))
	done.Status = model.EventStatusDone
	require.NoError(t, store.Events().Update(ctx, done))
	addEvent(t, store, user.ID, "still open", baseTime.Add(4*time.Hour))

	require.NoError(t, svc.RunForUser(ctx, user))

	require.Len(t, deliverer.sent, 1)
	assert.NotContains(t, deliverer.sent[0].body, "already done")
	assert.Contains(t, deliverer.sent[0].body, "still open")
}

func TestRunOnceSkipsInactiveUsers(t *testing.T) {
	store, deliverer, _, svc, user := newFixture(t, "")
	ctx := context.Background()

	addEvent(t, store, user.ID, "submit report", baseTime.Add(4*time.Hour))
	require.NoError(t, store.Users().Deactivate(ctx, user.ID))

	require.NoError(t, svc.RunOnce(ctx))
	assert.Empty(t, deliverer.sent)
}

func TestGroupByLabelOrdering(t *testing.T) {
	later := &model.Event{Title: "later", DueAt: baseTime.Add(48 * time.Hour), Labels: []*model.Label{{Name: "B"}}}
	earlier := &model.Event{Title: "earlier", DueAt: baseTime.Add(2 * time.Hour), Labels: []*model.Label{{Name: "A"}}}
	bare := &model.Event{Title: "bare", DueAt: baseTime.Add(24 * time.Hour)}

	groups := groupByLabel([]*model.Event{later, earlier, bare})

	require.Len(t, groups, 3)
	assert.Equal(t, "A", groups[0].name)
	assert.Equal(t, unlabeledGroup, groups[1].name)
	assert.Equal(t, "B", groups[2].name)
}
