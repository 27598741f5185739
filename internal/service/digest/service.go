// Package digest builds the daily per-user summary of upcoming deadlines,
// grouped by label. A unique DigestRun row per (user, local date) guards
// against double sends across workers.
package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/deadline-tracker/internal/channel"
	"github.com/jwalitptl/deadline-tracker/internal/clock"
	"github.com/jwalitptl/deadline-tracker/internal/model"
	"github.com/jwalitptl/deadline-tracker/internal/repository"
	"github.com/jwalitptl/deadline-tracker/pkg/errors"
	"github.com/jwalitptl/deadline-tracker/pkg/logger"
	"github.com/jwalitptl/deadline-tracker/pkg/metrics"
)

const unlabeledGroup = "(unlabeled)"

// Deliverer is the dispatcher's direct delivery path.
type Deliverer interface {
	DeliverDirect(ctx context.Context, user *model.User, channelTag, subject, body string, digestRunID *uuid.UUID) error
}

type Config struct {
	Horizon   time.Duration
	LocalHour int
}

type Service struct {
	store     repository.Store
	deliverer Deliverer
	clk       clock.Clock
	cfg       Config
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(store repository.Store, deliverer Deliverer, clk clock.Clock, cfg Config, log *logger.Logger, m *metrics.Metrics) *Service {
	if cfg.Horizon <= 0 {
		cfg.Horizon = 7 * 24 * time.Hour
	}
	if cfg.LocalHour < 0 || cfg.LocalHour > 23 {
		cfg.LocalHour = 8
	}
	return &Service{
		store:     store,
		deliverer: deliverer,
		clk:       clk,
		cfg:       cfg,
		logger:    log,
		metrics:   m,
	}
}

// Start ticks once a minute and digests every user whose local morning has
// arrived. The DigestRun uniqueness makes repeated ticks harmless.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("starting digest builder")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("shutting down digest builder")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error(err, "digest cycle failed")
			}
		}
	}
}

// RunOnce digests all active users that are due a digest right now.
func (s *Service) RunOnce(ctx context.Context) error {
	users, err := s.store.Users().ListActive(ctx)
	if err != nil {
		return err
	}

	for _, user := range users {
		if err := s.RunForUser(ctx, user); err != nil {
			s.logger.Error(err, "digest failed", "user_id", user.ID.String())
		}
	}
	return nil
}

// RunForUser builds and sends the digest for one user, or does nothing when
// it is not yet the user's digest hour or today's run already exists.
func (s *Service) RunForUser(ctx context.Context, user *model.User) error {
	loc := user.Location()
	localNow := s.clk.Now().In(loc)
	if localNow.Hour() < s.cfg.LocalHour {
		return nil
	}
	today := localNow.Format("2006-01-02")

	run := &model.DigestRun{
		UserID:      user.ID,
		CoveredDate: today,
		BuiltAt:     s.clk.Now(),
	}
	if err := s.store.DigestRuns().Create(ctx, run); err != nil {
		if errors.IsConflict(err) {
			s.metrics.DigestsSkipped.Inc()
			return nil
		}
		return err
	}

	now := s.clk.Now()
	events, err := s.store.Events().ListDueWindow(ctx, user.ID, now, now.Add(s.cfg.Horizon))
	if err != nil {
		return err
	}

	groups := groupByLabel(events)
	if len(groups) == 0 {
		// The run is still recorded so a later tick does not retry.
		return nil
	}

	subject := fmt.Sprintf("Deadlines for %s", today)
	body := renderBody(groups, loc)

	s.metrics.DigestsBuilt.Inc()
	return s.deliverer.DeliverDirect(ctx, user, channel.TagEmail, subject, body, &run.ID)
}

type group struct {
	name   string
	events []*model.Event
}

// groupByLabel buckets events per label name; multi-label events appear in
// every bucket, label-less ones under "(unlabeled)". Events inside a group
// keep due_at order; groups order by their first due instant.
func groupByLabel(events []*model.Event) []group {
	byName := make(map[string][]*model.Event)
	for _, e := range events {
		if len(e.Labels) == 0 {
			byName[unlabeledGroup] = append(byName[unlabeledGroup], e)
			continue
		}
		for _, l := range e.Labels {
			byName[l.Name] = append(byName[l.Name], e)
		}
	}

	groups := make([]group, 0, len(byName))
	for name, evs := range byName {
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].DueAt.Before(evs[j].DueAt) })
		groups = append(groups, group{name: name, events: evs})
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if !groups[i].events[0].DueAt.Equal(groups[j].events[0].DueAt) {
			return groups[i].events[0].DueAt.Before(groups[j].events[0].DueAt)
		}
		return groups[i].name < groups[j].name
	})
	return groups
}

func renderBody(groups []group, loc *time.Location) string {
	var b strings.Builder
	for i, g := range groups {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s\n", g.name)
		for _, e := range g.events {
			fmt.Fprintf(&b, "  %s — %s\n", e.DueAt.In(loc).Format("2006-01-02 15:04"), e.Title)
		}
	}
	return b.String()
}
